package ocr

import (
	"context"
	"errors"
	"image"
)

// ErrEngineUnavailable reports that the OCR engine cannot be reached or
// initialised. It is a deployment problem, never a property of the image.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Engine recognises text in an image.
//
// Recognize returns the raw engine output; callers trim it. An error wrapping
// ErrEngineUnavailable means no region of the request can be read.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, params Params) (string, error)
}

// Checker is implemented by engines that can verify their installation
// without an input image. Check returns the engine version.
type Checker interface {
	Check(ctx context.Context) (string, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, img image.Image, params Params) (string, error)

// Name implements Engine.
func (f EngineFunc) Name() string { return "func" }

// Recognize implements Engine.
func (f EngineFunc) Recognize(ctx context.Context, img image.Image, params Params) (string, error) {
	return f(ctx, img, params)
}

// Info contains information about the OCR subsystem.
type Info struct {
	Available bool   `json:"available"`
	Backend   string `json:"backend"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GetInfo reports whether e is usable. Engines that do not implement Checker
// are assumed available.
func GetInfo(ctx context.Context, e Engine) Info {
	info := Info{Backend: e.Name(), Available: true}
	c, ok := e.(Checker)
	if !ok {
		return info
	}
	version, err := c.Check(ctx)
	if err != nil {
		info.Available = false
		info.Error = err.Error()
		return info
	}
	info.Version = version
	return info
}
