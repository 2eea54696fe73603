package server

import (
	"context"
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	want := []string{"board_scan", "board_regions", "board_overlay", "ocr_info"}
	if len(tools) != len(want) {
		t.Fatalf("got %d tools, want %d", len(tools), len(want))
	}
	for i, name := range want {
		if tools[i].Name != name {
			t.Errorf("tool %d: got %s, want %s", i, tools[i].Name, name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("missing description")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("schema type: got %v", tool.InputSchema["type"])
			}
			if _, ok := tool.InputSchema["properties"].(map[string]interface{}); !ok {
				t.Error("schema properties should be an object")
			}
		})
	}
}

func TestToolDefinitions_ImageSource(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		if tool.Name == "ocr_info" {
			continue
		}
		props := tool.InputSchema["properties"].(map[string]interface{})
		for _, key := range []string{"path", "image_base64"} {
			if _, ok := props[key]; !ok {
				t.Errorf("%s: missing %s property", tool.Name, key)
			}
		}
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(t, nil, "", nil)

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("tools/list failed: %+v", resp)
	}
	result := resp.Result.(map[string]interface{})
	tools, ok := result["tools"].([]Tool)
	if !ok || len(tools) != 4 {
		t.Errorf("tools: got %v", result["tools"])
	}
}
