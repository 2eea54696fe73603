package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/boardscan/internal/ocr"
)

// createTestImageFile writes a white PNG and returns its path.
func createTestImageFile(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, encodeWhitePNG(t, width, height), 0644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return path
}

func encodeWhitePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// callTool runs tools/call and returns the decoded result text, or the
// error response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) (map[string]interface{}, *MCPError) {
	t.Helper()
	params, _ := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("tool result is not JSON: %v", err)
	}
	return out, nil
}

func TestHandleToolsCall_BoardScanPath(t *testing.T) {
	s := newTestServer(t, map[int]string{400: "SN-7", 800: "Power board"}, "", nil)

	out, rpcErr := callTool(t, s, "board_scan", map[string]interface{}{"path": createTestImageFile(t, 1000, 500)})
	if rpcErr != nil {
		t.Fatalf("board_scan failed: %+v", rpcErr)
	}

	if out["payload"] != "numero_serie: SN-7; modelo: SN-7; descripcion: Power board" {
		t.Errorf("payload: got %v", out["payload"])
	}
	if qr, _ := out["qr_image_b64"].(string); qr == "" {
		t.Error("qr_image_b64 missing")
	}
	if out["catalog"] != "board" || out["width"] != float64(1000) {
		t.Errorf("catalog/width: %v/%v", out["catalog"], out["width"])
	}
}

func TestHandleToolsCall_BoardScanBase64WithoutQR(t *testing.T) {
	s := newTestServer(t, map[int]string{800: "desc"}, "", nil)

	data := "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodeWhitePNG(t, 1000, 500))
	out, rpcErr := callTool(t, s, "board_scan", map[string]interface{}{"image_base64": data, "include_qr": false})
	if rpcErr != nil {
		t.Fatalf("board_scan failed: %+v", rpcErr)
	}
	if out["payload"] != "descripcion: desc" {
		t.Errorf("payload: got %v", out["payload"])
	}
	if out["qr_image_b64"] != nil {
		t.Error("qr image should be left out when include_qr is false")
	}
	if out["qr_modules"] == nil {
		t.Error("qr_modules should still be reported")
	}
}

func TestHandleToolsCall_BoardScanNoText(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	out, rpcErr := callTool(t, s, "board_scan", map[string]interface{}{"path": createTestImageFile(t, 300, 200)})
	if rpcErr != nil {
		t.Fatalf("board_scan failed: %+v", rpcErr)
	}
	if v, present := out["qr_image_b64"]; !present || v != nil {
		t.Errorf("qr_image_b64 should be null, got %v", v)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	unavailable := ocr.EngineFunc(func(ctx context.Context, img image.Image, params ocr.Params) (string, error) {
		return "", ocr.ErrEngineUnavailable
	})
	notImage := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(notImage, []byte("hello"), 0644)

	tests := []struct {
		name     string
		server   *Server
		tool     string
		args     map[string]interface{}
		wantCode int
	}{
		{"no image", newTestServer(t, nil, "", nil), "board_scan", map[string]interface{}{}, codeInvalidParams},
		{"not an image", newTestServer(t, nil, "", nil), "board_scan", map[string]interface{}{"path": notImage}, codeInvalidParams},
		{"bad base64", newTestServer(t, nil, "", nil), "board_overlay", map[string]interface{}{"image_base64": "***"}, codeInvalidParams},
		{"missing file", newTestServer(t, nil, "", nil), "board_scan", map[string]interface{}{"path": "/nonexistent/photo.png"}, codeToolFailed},
		{"engine unavailable", newTestServerWithEngine(t, unavailable, "", nil), "board_scan", map[string]interface{}{"path": createTestImageFile(t, 100, 100)}, codeEngineUnavailable},
		{"unknown tool", newTestServer(t, nil, "", nil), "image_crop", map[string]interface{}{}, codeInvalidParams},
		{"bad arguments", newTestServer(t, nil, "", nil), "board_regions", map[string]interface{}{"width": "wide"}, codeInvalidParams},
		{"half a size", newTestServer(t, nil, "", nil), "board_regions", map[string]interface{}{"width": 100}, codeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rpcErr := callTool(t, tt.server, tt.tool, tt.args)
			if rpcErr == nil {
				t.Fatal("expected an error")
			}
			if rpcErr.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d (%s: %v)", rpcErr.Code, tt.wantCode, rpcErr.Message, rpcErr.Data)
			}
		})
	}
}

func TestHandleToolsCall_BoardRegions(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	out, rpcErr := callTool(t, s, "board_regions", map[string]interface{}{"width": 1000, "height": 500})
	if rpcErr != nil {
		t.Fatalf("board_regions failed: %+v", rpcErr)
	}
	regions := out["regions"].([]interface{})
	if len(regions) != 3 {
		t.Fatalf("got %d regions, want 3", len(regions))
	}
	first := regions[0].(map[string]interface{})
	if first["name"] != "numero_serie" {
		t.Errorf("first region: %v", first["name"])
	}
	pixels := first["pixels"].(map[string]interface{})
	if pixels["x1"] != float64(100) || pixels["x2"] != float64(300) {
		t.Errorf("pixels: %v", pixels)
	}

	// without a size there are no pixel boxes
	out, rpcErr = callTool(t, s, "board_regions", nil)
	if rpcErr != nil {
		t.Fatalf("board_regions failed: %+v", rpcErr)
	}
	first = out["regions"].([]interface{})[0].(map[string]interface{})
	if _, ok := first["pixels"]; ok {
		t.Error("pixels should be omitted without a size")
	}

	// the size can come from an image
	out, rpcErr = callTool(t, s, "board_regions", map[string]interface{}{"path": createTestImageFile(t, 640, 480)})
	if rpcErr != nil {
		t.Fatalf("board_regions failed: %+v", rpcErr)
	}
	if out["width"] != float64(640) || out["height"] != float64(480) {
		t.Errorf("size: %v x %v", out["width"], out["height"])
	}
}

func TestHandleToolsCall_BoardOverlay(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	out, rpcErr := callTool(t, s, "board_overlay", map[string]interface{}{"path": createTestImageFile(t, 400, 300)})
	if rpcErr != nil {
		t.Fatalf("board_overlay failed: %+v", rpcErr)
	}
	if out["regions"] != float64(3) || out["mime_type"] != "image/png" {
		t.Errorf("overlay: %v", out)
	}
	if _, err := base64.StdEncoding.DecodeString(out["image_base64"].(string)); err != nil {
		t.Errorf("image_base64 invalid: %v", err)
	}
}

func TestHandleToolsCall_OCRInfo(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	out, rpcErr := callTool(t, s, "ocr_info", nil)
	if rpcErr != nil {
		t.Fatalf("ocr_info failed: %+v", rpcErr)
	}
	if out["available"] != true || out["backend"] != "func" {
		t.Errorf("ocr_info: %v", out)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`[1,2]`)})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("expected invalid params error, got %+v", resp)
	}
}
