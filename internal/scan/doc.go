// Package scan composes the pipeline that turns a photo into a record and a
// QR code. Transports (HTTP, MCP, CLI) share one Scanner built at startup.
package scan
