// Package ocr provides the text recognition boundary used by region extraction.
//
// Two Tesseract backends implement the Engine interface:
//
//   - TesseractEngine: the gosseract/v2 binding to libtesseract (cgo builds)
//   - CLIEngine: the tesseract executable run as a local process
//
// Both are configured at startup with the location of the engine (tessdata
// prefix, binary path) and are then handed to the extractor, so engine
// discovery never happens inside the extraction code.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//   - Windows: Download from https://github.com/UB-Mannheim/tesseract/wiki
//
// # Per-call configuration
//
// Each region carries a configuration string in Tesseract command line form,
// parsed by ParseConfig:
//
//	--psm 7 -l eng
//	--psm sparse_text -c tessedit_char_whitelist=0123456789/
//
// The page segmentation mode describes the layout expected inside the crop
// (a single line, sparse digits, a block of text).
//
// # Error Handling
//
// Any failure that means the engine itself cannot run (missing binary,
// missing language data, libtesseract initialisation failure) wraps
// ErrEngineUnavailable. Callers match it with errors.Is and treat it as fatal
// for the whole request. An engine that runs but finds no text returns an
// empty string and no error.
package ocr
