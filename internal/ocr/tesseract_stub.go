//go:build !cgo

package ocr

import (
	"context"
	"fmt"
	"image"
)

// TesseractEngine is unavailable in builds without cgo; use CLIEngine instead.
type TesseractEngine struct {
	tessdataPrefix string
}

// NewTesseractEngine returns an engine that always reports ErrEngineUnavailable.
func NewTesseractEngine(tessdataPrefix string) *TesseractEngine {
	return &TesseractEngine{tessdataPrefix: tessdataPrefix}
}

// Name implements Engine.
func (e *TesseractEngine) Name() string { return "gosseract" }

// Recognize implements Engine.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image, params Params) (string, error) {
	return "", fmt.Errorf("%w: gosseract requires a cgo build", ErrEngineUnavailable)
}

// Check implements Checker.
func (e *TesseractEngine) Check(ctx context.Context) (string, error) {
	return "", fmt.Errorf("%w: gosseract requires a cgo build", ErrEngineUnavailable)
}
