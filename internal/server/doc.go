// Package server implements the MCP (Model Context Protocol) transport for
// the board scanner.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - board_scan: OCR the catalog regions of a photo and build the QR code
//   - board_regions: List catalog regions, optionally as pixel boxes
//   - board_overlay: Draw the regions on a photo for calibration
//   - ocr_info: Report OCR engine availability and version
//
// Images are given either as an absolute path or inline as base64 (a data
// URL prefix is accepted). Nothing is cached between calls.
//
// # Error Handling
//
// Tool failures are JSON-RPC error responses whose data field holds the Go
// error string:
//   - -32602: missing, undecodable or malformed input, unknown tool
//   - -32001: the OCR engine is unavailable
//   - -32000: any other failure
//
// # Usage
//
//	srv := server.New(scanner, engine, server.Options{Version: version})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
