//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognises text through the gosseract binding to libtesseract.
//
// A new client is created per call, so the engine is safe for concurrent use.
type TesseractEngine struct {
	tessdataPrefix string
	clientFactory  func() *gosseract.Client
}

// NewTesseractEngine constructs a gosseract-backed engine. An empty
// tessdataPrefix lets Tesseract use TESSDATA_PREFIX or its compiled-in path.
func NewTesseractEngine(tessdataPrefix string) *TesseractEngine {
	return &TesseractEngine{
		tessdataPrefix: tessdataPrefix,
		clientFactory:  gosseract.NewClient,
	}
}

// Name implements Engine.
func (e *TesseractEngine) Name() string { return "gosseract" }

// Recognize implements Engine.
//
// Setter failures are configuration errors. Failures from Text, where the
// client first initialises libtesseract, wrap ErrEngineUnavailable.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image, params Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client := e.clientFactory()
	defer client.Close()

	if err := e.configure(client, params); err != nil {
		return "", err
	}

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return text, nil
}

func (e *TesseractEngine) configure(client *gosseract.Client, params Params) error {
	if e.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if len(params.Languages) > 0 {
		if err := client.SetLanguage(params.Languages...); err != nil {
			return fmt.Errorf("failed to set language: %w", err)
		}
	}
	if params.PSM != PSMUnset {
		if err := client.SetPageSegMode(gosseract.PageSegMode(params.PSM)); err != nil {
			return fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}
	if params.Whitelist != "" {
		if err := client.SetWhitelist(params.Whitelist); err != nil {
			return fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	for k, v := range params.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("failed to set variable %s: %w", k, err)
		}
	}
	return nil
}

// Check implements Checker by running the engine over a blank image, which
// forces libtesseract and its language data to load.
func (e *TesseractEngine) Check(ctx context.Context) (string, error) {
	blank := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range blank.Pix {
		blank.Pix[i] = color.White.Y
	}
	if _, err := e.Recognize(ctx, blank, DefaultParams()); err != nil {
		return "", err
	}

	client := e.clientFactory()
	defer client.Close()
	return client.Version(), nil
}
