package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/boardscan/internal/catalog"
	"github.com/ironsheep/boardscan/internal/extract"
	"github.com/ironsheep/boardscan/internal/imaging"
	"github.com/ironsheep/boardscan/internal/ocr"
	"github.com/ironsheep/boardscan/internal/scan"
)

// JSON-RPC error codes for tool failures.
const (
	codeInvalidParams     = -32602
	codeToolFailed        = -32000
	codeEngineUnavailable = -32001
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "board_scan").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Bad input is reported with -32602, an unavailable OCR engine with -32001
// and other failures with -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ToolTimeout)
	defer cancel()

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrEngineUnavailable):
			return s.errorResponse(req.ID, codeEngineUnavailable, "OCR engine unavailable", err.Error())
		case errors.Is(err, scan.ErrInputMissing), errors.Is(err, imaging.ErrDecode), errors.Is(err, errUnknownTool), errors.Is(err, errInvalidArgs):
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		default:
			return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
		}
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

var (
	errUnknownTool = errors.New("unknown tool")
	errInvalidArgs = errors.New("invalid arguments")
)

func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return nil
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	case "board_scan":
		return s.handleBoardScan(ctx, args)
	case "board_regions":
		return s.handleBoardRegions(args)
	case "board_overlay":
		return s.handleBoardOverlay(args)
	case "ocr_info":
		return ocr.GetInfo(ctx, s.engine), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownTool, name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type imageSourceArgs struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

// load decodes the image named by path, or carried inline as base64.
func (a imageSourceArgs) load() (*imaging.DecodedImage, error) {
	switch {
	case a.Path != "":
		return imaging.DecodeFile(a.Path)
	case a.ImageBase64 != "":
		data, err := imaging.DecodeBase64(a.ImageBase64)
		if err != nil {
			return nil, err
		}
		return imaging.Decode(data)
	default:
		return nil, fmt.Errorf("%w: set path or image_base64", scan.ErrInputMissing)
	}
}

// === Scan ===

type boardScanArgs struct {
	imageSourceArgs
	IncludeQR *bool `json:"include_qr"`
}

type boardScanResult struct {
	Catalog       string         `json:"catalog"`
	ExtractedData extract.Record `json:"extracted_data"`
	Payload       *string        `json:"payload"`
	QRImageB64    *string        `json:"qr_image_b64"`
	QRModules     int            `json:"qr_modules,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	ElapsedMS     int64          `json:"elapsed_ms"`
}

func (s *Server) handleBoardScan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a boardScanArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := a.load()
	if err != nil {
		return nil, err
	}
	result, err := s.scanner.ProcessImage(ctx, img)
	if err != nil {
		return nil, err
	}

	out := boardScanResult{
		Catalog:       result.Catalog,
		ExtractedData: result.Record,
		Warnings:      result.Warnings,
		Width:         result.Width,
		Height:        result.Height,
		ElapsedMS:     result.Elapsed.Milliseconds(),
	}
	if result.QR != nil {
		out.Payload = &result.Payload
		out.QRModules = result.QR.Modules
		if a.IncludeQR == nil || *a.IncludeQR {
			out.QRImageB64 = result.QRBase64()
		}
	}
	return out, nil
}

// === Regions ===

type boardRegionsArgs struct {
	imageSourceArgs
	Width  int `json:"width"`
	Height int `json:"height"`
}

type regionInfo struct {
	catalog.Region
	Pixels *imaging.Box `json:"pixels,omitempty"`
}

type boardRegionsResult struct {
	Catalog string       `json:"catalog"`
	Width   int          `json:"width,omitempty"`
	Height  int          `json:"height,omitempty"`
	Regions []regionInfo `json:"regions"`
}

func (s *Server) handleBoardRegions(args json.RawMessage) (interface{}, error) {
	var a boardRegionsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path != "" || a.ImageBase64 != "" {
		img, err := a.load()
		if err != nil {
			return nil, err
		}
		a.Width, a.Height = img.Width, img.Height
	}
	if a.Width < 0 || a.Height < 0 || (a.Width == 0) != (a.Height == 0) {
		return nil, fmt.Errorf("%w: width and height must both be positive", errInvalidArgs)
	}

	cat := s.scanner.Catalog()
	out := boardRegionsResult{Catalog: cat.Name(), Width: a.Width, Height: a.Height}
	for _, r := range cat.Regions() {
		info := regionInfo{Region: r}
		if a.Width > 0 {
			box := r.PixelBox(a.Width, a.Height)
			info.Pixels = &box
		}
		out.Regions = append(out.Regions, info)
	}
	return out, nil
}

// === Overlay ===

func (s *Server) handleBoardOverlay(args json.RawMessage) (interface{}, error) {
	var a imageSourceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := a.load()
	if err != nil {
		return nil, err
	}
	return imaging.RegionOverlay(img.Image, s.scanner.Catalog().PixelBoxes(img.Width, img.Height))
}
