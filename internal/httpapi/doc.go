// Package httpapi exposes the scanner over HTTP.
//
// Routes:
//
//	GET  /               liveness text
//	GET  /health         service and OCR engine status
//	POST /process_image  scan an image (multipart "image", JSON {"image": base64}, or raw body)
//	GET  /regions        catalog listing, with pixel boxes for ?width=&height=
//	POST /overlay        draw the catalog regions on an image
//
// Errors are JSON objects {"error": "..."}: 400 for missing or undecodable
// input, 413 for oversized uploads, 503 when the OCR engine is unavailable,
// 504 when the request times out, 500 otherwise. Every response carries an
// X-Request-ID header.
package httpapi
