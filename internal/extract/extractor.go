package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ironsheep/boardscan/internal/catalog"
	"github.com/ironsheep/boardscan/internal/imaging"
	"github.com/ironsheep/boardscan/internal/ocr"
	"golang.org/x/text/unicode/norm"
)

// ErrRegionDegenerate marks a region whose pixel box has no area on the
// current image. It is logged and recorded as a warning; the field is empty.
var ErrRegionDegenerate = errors.New("region collapses to an empty box")

// Extractor reads the text of one region.
type Extractor struct {
	engine   ocr.Engine
	language string
	debug    bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLanguage sets the language used when a region does not name one.
func WithLanguage(lang string) Option {
	return func(e *Extractor) { e.language = lang }
}

// WithDebug logs every region's OCR output.
func WithDebug(debug bool) Option {
	return func(e *Extractor) { e.debug = debug }
}

// NewExtractor returns an Extractor that recognises text with engine.
func NewExtractor(engine ocr.Engine, opts ...Option) *Extractor {
	e := &Extractor{engine: engine}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the OCR engine in use.
func (e *Extractor) Engine() ocr.Engine { return e.engine }

// Extract returns the trimmed, NFC-normalised text inside region r of img.
//
// A region that collapses to an empty box on this image yields "" and a
// logged warning, never an error. Errors come from the engine; an error
// wrapping ocr.ErrEngineUnavailable means no region can be read.
func (e *Extractor) Extract(ctx context.Context, img *imaging.DecodedImage, r catalog.Region) (string, error) {
	text, err := e.extract(ctx, img, r)
	if errors.Is(err, ErrRegionDegenerate) {
		return "", nil
	}
	return text, err
}

func (e *Extractor) extract(ctx context.Context, img *imaging.DecodedImage, r catalog.Region) (string, error) {
	box := r.PixelBox(img.Width, img.Height)
	if box.Empty() {
		err := fmt.Errorf("%w: %q at %s on %dx%d image", ErrRegionDegenerate, r.Name, box, img.Width, img.Height)
		log.Printf("WARN: %v", err)
		return "", err
	}

	crop, err := imaging.CropBox(img.Image, box)
	if err != nil {
		return "", fmt.Errorf("region %q: %w", r.Name, err)
	}
	prepared := imaging.Prepare(crop, r.Preprocess)

	raw, err := e.engine.Recognize(ctx, prepared, r.Params.WithLanguage(e.language))
	if err != nil {
		return "", fmt.Errorf("region %q: %w", r.Name, err)
	}

	// engines may emit decomposed accents; fields compare and serialize as NFC
	text := norm.NFC.String(strings.TrimSpace(raw))
	if e.debug {
		log.Printf("DEBUG: region %s %s -> %q", r.Name, box, text)
	}
	return text, nil
}
