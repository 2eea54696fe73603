package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"strings"
	"testing"

	"github.com/ironsheep/boardscan/internal/catalog"
	"github.com/ironsheep/boardscan/internal/extract"
	"github.com/ironsheep/boardscan/internal/ocr"
	"github.com/ironsheep/boardscan/internal/payload"
	"github.com/ironsheep/boardscan/internal/scan"
)

// newTestServer returns a Server over the board catalog. The engine answers
// with texts keyed by the width of the crop it receives.
func newTestServer(t *testing.T, texts map[int]string, in string, out *bytes.Buffer) *Server {
	t.Helper()
	engine := ocr.EngineFunc(func(ctx context.Context, img image.Image, params ocr.Params) (string, error) {
		return texts[img.Bounds().Dx()], nil
	})
	return newTestServerWithEngine(t, engine, in, out)
}

func newTestServerWithEngine(t *testing.T, engine ocr.Engine, in string, out *bytes.Buffer) *Server {
	t.Helper()
	cat, err := catalog.Builtin("board")
	if err != nil {
		t.Fatalf("Builtin(board) failed: %v", err)
	}
	sc := scan.New(extract.NewAssembler(extract.NewExtractor(engine), cat, 1), payload.DefaultEncoder())
	if out == nil {
		out = &bytes.Buffer{}
	}
	return New(sc, engine, Options{Version: "test", In: strings.NewReader(in), Out: out})
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}

			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("initialize failed: %+v", resp)
	}

	result := resp.Result.(map[string]interface{})
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != "boardscan" || info["version"] != "test" {
		t.Errorf("serverInfo: got %v", info)
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: "p", Method: "ping"})
	if resp == nil || resp.Error != nil || resp.ID != "p" {
		t.Errorf("ping: got %+v", resp)
	}
}

func TestHandleRequest_NotificationsInitialized(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	if resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"}); resp != nil {
		t.Errorf("notification should have no response, got %+v", resp)
	}
}

func TestHandleRequest_MethodNotFound(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 7, Method: "resources/list"})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected an error response")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("code: got %d, want -32601", resp.Error.Code)
	}
}

func TestRun(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	}, "\n")
	var out bytes.Buffer

	if err := newTestServer(t, nil, in, &out).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	dec := json.NewDecoder(&out)
	var responses []MCPResponse
	for dec.More() {
		var resp MCPResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("bad output: %v", err)
		}
		responses = append(responses, resp)
	}

	// initialize, parse error, tools/list, ping
	if len(responses) != 4 {
		t.Fatalf("got %d responses, want 4: %s", len(responses), out.String())
	}
	if responses[1].Error == nil || responses[1].Error.Code != -32700 {
		t.Errorf("invalid line should produce a parse error, got %+v", responses[1])
	}
	if responses[2].ID != float64(2) || responses[3].ID != float64(3) {
		t.Errorf("ids out of order: %v %v", responses[2].ID, responses[3].ID)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestServer(t, nil, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, nil).Run(ctx)
	if err != context.Canceled {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}
