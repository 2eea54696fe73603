package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageSourceProperties are shared by every tool that takes an image.
func imageSourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file",
		},
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Image content as base64, optionally as a data URL (data:image/png;base64,...). Used when path is empty.",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	scanProps := imageSourceProperties()
	scanProps["include_qr"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Include the QR code PNG as base64 in the result. Default true",
		"default":     true,
	}

	regionProps := imageSourceProperties()
	regionProps["width"] = map[string]interface{}{
		"type":        "integer",
		"description": "Image width in pixels, to compute pixel boxes without an image",
	}
	regionProps["height"] = map[string]interface{}{
		"type":        "integer",
		"description": "Image height in pixels, to compute pixel boxes without an image",
	}

	return []Tool{
		{
			Name:        "board_scan",
			Description: "Read the catalog's text fields from a photo with OCR and encode them as a QR code. Returns the fields in catalog order, the QR payload and the QR image (null when no text was found).",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": scanProps,
			},
		},
		{
			Name:        "board_regions",
			Description: "List the regions of the active catalog with their fractional boxes and OCR settings. Give an image or width/height to also get pixel boxes.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": regionProps,
			},
		},
		{
			Name:        "board_overlay",
			Description: "Draw the catalog regions and their names on a photo and return it as base64 PNG. Use this to check that regions line up with the labels before scanning.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageSourceProperties(),
			},
		},
		{
			Name:        "ocr_info",
			Description: "Report whether the OCR engine is available, which backend is in use and its version.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
