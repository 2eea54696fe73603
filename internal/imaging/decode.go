package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"strings"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrDecode reports input bytes that are not a supported raster image.
// It is the only failure attributable to the format of client input.
var ErrDecode = errors.New("image decode failed")

// ErrTooLarge reports an image whose header declares more than MaxPixels
// pixels. It is always returned wrapped together with ErrDecode.
var ErrTooLarge = errors.New("image too large")

// MaxPixels bounds width*height of a decoded image, checked against the
// header before any pixel data is allocated.
const MaxPixels = 64 << 20

// DecodedImage is an image decoded for a single request.
type DecodedImage struct {
	// Image holds the pixels. Its bounds may not start at (0,0).
	Image image.Image

	// Width is the image width in pixels, always > 0.
	Width int `json:"width"`

	// Height is the image height in pixels, always > 0.
	Height int `json:"height"`

	// Format is the name the decoder registered: "png", "jpeg", "gif",
	// "bmp", "tiff" or "webp". It is sniffed from the content.
	Format string `json:"format"`
}

// Decode decodes raw image bytes. The format is detected from the content,
// never from a file name.
//
// # Errors
//
// Every failure wraps ErrDecode: empty input, unknown or corrupt data,
// images with a zero dimension, and images over MaxPixels (also ErrTooLarge).
func Decode(data []byte) (*DecodedImage, error) {
	return decodeLimit(data, MaxPixels)
}

func decodeLimit(data []byte, maxPixels int64) (*DecodedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrDecode)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %w: %dx%d exceeds %d pixels", ErrDecode, ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels (%dx%d)", ErrDecode, bounds.Dx(), bounds.Dy())
	}

	return &DecodedImage{
		Image:  img,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}

// DecodeFile reads and decodes the image at path.
//
// A missing or unreadable file is an I/O error, not ErrDecode.
func DecodeFile(path string) (*DecodedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return Decode(data)
}

// DecodeBase64 returns the bytes carried by a base64 string, accepting an
// optional "data:<mime>;base64," prefix as produced by browsers.
//
// Whitespace inside the payload is ignored. Invalid base64 wraps ErrDecode.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: malformed data URL", ErrDecode)
		}
		if !strings.HasSuffix(s[:comma], ";base64") {
			return nil, fmt.Errorf("%w: data URL is not base64 encoded", ErrDecode)
		}
		s = s[comma+1:]
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Browsers sometimes strip padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecode, err)
	}
	return data, nil
}
