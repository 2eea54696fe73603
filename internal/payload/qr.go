package payload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ironsheep/boardscan/internal/extract"
	"github.com/lucasb-eyer/go-colorful"
	"rsc.io/qr"
)

// ErrEncode reports that a payload could not be turned into a QR image,
// for example because it exceeds the capacity of the largest QR version.
var ErrEncode = errors.New("qr encoding failed")

// Defaults match the common "box size 10, border 4" QR rendering.
const (
	DefaultBoxSize    = 10
	DefaultBorder     = 4
	DefaultForeground = "#000000"
	DefaultBackground = "#ffffff"
	maxBoxSize        = 100
	maxBorder         = 40
)

var levelNames = map[string]qr.Level{
	"L": qr.L,
	"M": qr.M,
	"Q": qr.Q,
	"H": qr.H,
}

// ParseLevel parses an error correction level: L, M, Q or H. The empty
// string selects L.
func ParseLevel(s string) (qr.Level, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return qr.L, nil
	}
	level, ok := levelNames[s]
	if !ok {
		return qr.L, fmt.Errorf("unknown QR error correction level %q (want L, M, Q or H)", s)
	}
	return level, nil
}

// LevelName returns the letter for level.
func LevelName(level qr.Level) string {
	for name, l := range levelNames {
		if l == level {
			return name
		}
	}
	return "?"
}

// Encoder turns records into QR code images.
type Encoder struct {
	Format     Format
	Level      qr.Level
	BoxSize    int    // pixels per module
	Border     int    // quiet zone, in modules
	Foreground string // hex colour of dark modules
	Background string // hex colour of light modules and the border
}

// DefaultEncoder returns an Encoder using the join format, level L, 10px
// modules, a 4-module border, black on white.
func DefaultEncoder() Encoder {
	return Encoder{
		Format:     FormatJoin,
		Level:      qr.L,
		BoxSize:    DefaultBoxSize,
		Border:     DefaultBorder,
		Foreground: DefaultForeground,
		Background: DefaultBackground,
	}
}

// Encoded is a rendered QR code.
type Encoded struct {
	Payload string `json:"payload"`
	PNG     []byte `json:"-"`
	Base64  string `json:"base64"`
	Modules int    `json:"modules"` // symbol size, without border
	Pixels  int    `json:"pixels"`  // image width and height
}

// Validate checks the rendering settings.
func (e Encoder) Validate() error {
	if _, err := ParseFormat(string(e.Format)); err != nil {
		return err
	}
	if LevelName(e.Level) == "?" {
		return fmt.Errorf("invalid QR error correction level %d", e.Level)
	}
	if e.BoxSize < 1 || e.BoxSize > maxBoxSize {
		return fmt.Errorf("box size must be in [1,%d], got %d", maxBoxSize, e.BoxSize)
	}
	if e.Border < 0 || e.Border > maxBorder {
		return fmt.Errorf("border must be in [0,%d], got %d", maxBorder, e.Border)
	}
	fg, err := parseColor(e.Foreground, DefaultForeground)
	if err != nil {
		return fmt.Errorf("foreground: %w", err)
	}
	bg, err := parseColor(e.Background, DefaultBackground)
	if err != nil {
		return fmt.Errorf("background: %w", err)
	}
	if fg == bg {
		return fmt.Errorf("foreground and background are both %s", fg.Hex())
	}
	return nil
}

// Encode serializes r and renders it. A record without any value has no
// payload: Encode returns nil and no error.
func (e Encoder) Encode(r extract.Record) (*Encoded, error) {
	text, err := Serialize(r, e.Format)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return e.Render(text)
}

// Render encodes text as a QR code PNG.
func (e Encoder) Render(text string) (*Encoded, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	code, err := qr.Encode(text, e.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	fg, _ := parseColor(e.Foreground, DefaultForeground)
	bg, _ := parseColor(e.Background, DefaultBackground)
	img := rasterize(code, e.BoxSize, e.Border, toNRGBA(fg), toNRGBA(bg))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	return &Encoded{
		Payload: text,
		PNG:     buf.Bytes(),
		Base64:  base64.StdEncoding.EncodeToString(buf.Bytes()),
		Modules: code.Size,
		Pixels:  img.Bounds().Dx(),
	}, nil
}

func rasterize(code *qr.Code, box, border int, fg, bg color.NRGBA) *image.NRGBA {
	side := (code.Size + 2*border) * box
	img := imaging.New(side, side, bg)
	for my := 0; my < code.Size; my++ {
		for mx := 0; mx < code.Size; mx++ {
			if !code.Black(mx, my) {
				continue
			}
			x0, y0 := (mx+border)*box, (my+border)*box
			for y := y0; y < y0+box; y++ {
				for x := x0; x < x0+box; x++ {
					img.SetNRGBA(x, y, fg)
				}
			}
		}
	}
	return img
}

func parseColor(s, fallback string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = fallback
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return c, nil
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
