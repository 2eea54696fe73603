package scan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/ironsheep/boardscan/internal/catalog"
	"github.com/ironsheep/boardscan/internal/extract"
	"github.com/ironsheep/boardscan/internal/imaging"
	"github.com/ironsheep/boardscan/internal/ocr"
	"github.com/ironsheep/boardscan/internal/payload"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// newScanner builds a Scanner over the built-in board catalog.
func newScanner(t *testing.T, engine ocr.Engine) *Scanner {
	t.Helper()
	cat, err := catalog.Builtin("board")
	if err != nil {
		t.Fatalf("Builtin(board) failed: %v", err)
	}
	assembler := extract.NewAssembler(extract.NewExtractor(engine), cat, 1)
	return New(assembler, payload.DefaultEncoder())
}

// byWidth answers with the text registered for the crop width the engine
// receives. Board regions scaled by 2 on a 1000px image: numero_serie and
// modelo are 400px wide, descripcion is 800px.
func byWidth(texts map[int]string) ocr.EngineFunc {
	return func(ctx context.Context, img image.Image, params ocr.Params) (string, error) {
		return texts[img.Bounds().Dx()], nil
	}
}

func TestProcess(t *testing.T) {
	s := newScanner(t, byWidth(map[int]string{400: " SN-123\n", 800: "Control board"}))

	result, err := s.Process(context.Background(), pngBytes(t, 1000, 500))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if got := result.Record.Names(); len(got) != 3 || got[0] != "numero_serie" || got[1] != "modelo" || got[2] != "descripcion" {
		t.Errorf("field order: got %v", got)
	}
	if v, _ := result.Record.Get("numero_serie"); v != "SN-123" {
		t.Errorf("numero_serie: got %q", v)
	}
	want := "numero_serie: SN-123; modelo: SN-123; descripcion: Control board"
	if result.Payload != want {
		t.Errorf("Payload: got %q, want %q", result.Payload, want)
	}
	if result.QRBase64() == nil || *result.QRBase64() == "" {
		t.Error("QR image missing")
	}
	if result.Width != 1000 || result.Height != 500 || result.Format != "png" {
		t.Errorf("image info: %dx%d %s", result.Width, result.Height, result.Format)
	}
	if result.Catalog != "board" {
		t.Errorf("Catalog: got %q", result.Catalog)
	}
}

func TestProcess_NoText(t *testing.T) {
	s := newScanner(t, byWidth(nil))

	result, err := s.Process(context.Background(), pngBytes(t, 200, 100))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.QR != nil || result.QRBase64() != nil {
		t.Error("all-empty record should have no QR image")
	}
	if result.Payload != "" {
		t.Errorf("Payload: got %q, want empty", result.Payload)
	}
	if !result.Record.AllEmpty() || len(result.Record) != 3 {
		t.Errorf("record should hold 3 empty fields, got %v", result.Record)
	}
}

func TestProcess_DegenerateRegionsOnTinyImage(t *testing.T) {
	s := newScanner(t, byWidth(nil))

	// 3x3: numero_serie and modelo collapse vertically (0.20-0.25 of 3px)
	result, err := s.Process(context.Background(), pngBytes(t, 3, 3))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Warnings) != 2 || result.Warnings[0] != "numero_serie" || result.Warnings[1] != "modelo" {
		t.Errorf("Warnings: got %v", result.Warnings)
	}
	if len(result.Record) != 3 {
		t.Errorf("record should still have every field, got %v", result.Record)
	}
}

func TestProcess_Errors(t *testing.T) {
	unavailable := ocr.EngineFunc(func(ctx context.Context, img image.Image, params ocr.Params) (string, error) {
		return "", ocr.ErrEngineUnavailable
	})

	tests := []struct {
		name   string
		engine ocr.Engine
		data   []byte
		want   error
	}{
		{"missing", byWidth(nil), nil, ErrInputMissing},
		{"not an image", byWidth(nil), []byte("hello"), imaging.ErrDecode},
		{"engine unavailable", unavailable, pngBytes(t, 100, 100), ocr.ErrEngineUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newScanner(t, tt.engine).Process(context.Background(), tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProcess_EncodeError(t *testing.T) {
	cat, err := catalog.Builtin("board")
	if err != nil {
		t.Fatalf("Builtin(board) failed: %v", err)
	}
	enc := payload.DefaultEncoder()
	enc.BoxSize = 0
	s := New(extract.NewAssembler(extract.NewExtractor(byWidth(map[int]string{800: "x"})), cat, 1), enc)

	_, err = s.Process(context.Background(), pngBytes(t, 1000, 500))
	if !errors.Is(err, payload.ErrEncode) {
		t.Errorf("error = %v, want ErrEncode", err)
	}
}

func TestProcessImage_Nil(t *testing.T) {
	if _, err := newScanner(t, byWidth(nil)).ProcessImage(context.Background(), nil); !errors.Is(err, ErrInputMissing) {
		t.Errorf("error = %v, want ErrInputMissing", err)
	}
}
