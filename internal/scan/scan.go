package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ironsheep/boardscan/internal/catalog"
	"github.com/ironsheep/boardscan/internal/extract"
	"github.com/ironsheep/boardscan/internal/imaging"
	"github.com/ironsheep/boardscan/internal/payload"
)

// ErrInputMissing is returned when no image bytes were supplied.
var ErrInputMissing = errors.New("no image provided")

// Result is the outcome of scanning one image.
type Result struct {
	Record extract.Record `json:"extracted_data"`

	// Payload is the serialized record, or "" when every field is empty.
	Payload string `json:"payload"`

	// QR is nil when there is no payload.
	QR *payload.Encoded `json:"qr,omitempty"`

	// Warnings name the regions that collapsed to an empty box.
	Warnings []string `json:"warnings,omitempty"`

	Catalog string        `json:"catalog"`
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Format  string        `json:"format"`
	Elapsed time.Duration `json:"elapsed"`
}

// QRBase64 returns the QR image as base64 PNG, or nil when there is no
// payload.
func (r *Result) QRBase64() *string {
	if r.QR == nil {
		return nil
	}
	return &r.QR.Base64
}

// Scanner runs the full pipeline: decode, read every region, serialize and
// render the QR code. It holds no per-request state and is safe for
// concurrent use.
type Scanner struct {
	assembler *extract.Assembler
	encoder   payload.Encoder
}

// New returns a Scanner.
func New(assembler *extract.Assembler, encoder payload.Encoder) *Scanner {
	return &Scanner{assembler: assembler, encoder: encoder}
}

// Catalog returns the region catalog in use.
func (s *Scanner) Catalog() *catalog.Catalog { return s.assembler.Catalog() }

// Process decodes data and scans it.
//
// Errors wrap ErrInputMissing, imaging.ErrDecode, ocr.ErrEngineUnavailable
// or payload.ErrEncode.
func (s *Scanner) Process(ctx context.Context, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrInputMissing
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return s.ProcessImage(ctx, img)
}

// ProcessImage scans an already decoded image.
func (s *Scanner) ProcessImage(ctx context.Context, img *imaging.DecodedImage) (*Result, error) {
	if img == nil || img.Image == nil {
		return nil, ErrInputMissing
	}
	start := time.Now()

	assembly, err := s.assembler.Assemble(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	result := &Result{
		Record:   assembly.Record,
		Warnings: assembly.Degenerate,
		Catalog:  s.Catalog().Name(),
		Width:    img.Width,
		Height:   img.Height,
		Format:   img.Format,
	}

	encoded, err := s.encoder.Encode(assembly.Record)
	if err != nil {
		return nil, fmt.Errorf("payload failed: %w", err)
	}
	if encoded == nil {
		log.Printf("WARN: no text extracted from any of %d regions, no QR code generated", len(assembly.Record))
	} else {
		result.Payload = encoded.Payload
		result.QR = encoded
	}

	result.Elapsed = time.Since(start)
	return result, nil
}
