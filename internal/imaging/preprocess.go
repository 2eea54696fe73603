package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// Method selects how a crop is binarized before OCR.
type Method string

// Binarization methods.
const (
	MethodOtsu     Method = "otsu"     // automatic threshold from the crop histogram
	MethodAdaptive Method = "adaptive" // threshold against the local mean
	MethodFixed    Method = "fixed"    // constant threshold
	MethodNone     Method = "none"     // grayscale only
)

// GrayMode selects the intensity conversion.
type GrayMode string

// Grayscale conversions.
const (
	GrayLuma      GrayMode = "luma"      // weighted RGB luminance
	GrayLightness GrayMode = "lightness" // CIE L*, perceptually uniform
)

// Polarity controls whether binarized output is normalised to dark text on
// a light background.
type Polarity string

// Polarity settings.
const (
	PolarityAuto Polarity = "auto"
	PolarityKeep Polarity = "keep"
)

const (
	defaultWindow = 15
	defaultOffset = 10
	maxScale      = 8
)

// Preprocess is the per-region preparation applied to a crop before OCR.
// The zero value means: luma grayscale, Otsu threshold, auto polarity.
// Window and Offset are pointers so that an explicit 0 is kept.
type Preprocess struct {
	Method    Method   `yaml:"method,omitempty" json:"method,omitempty"`
	Gray      GrayMode `yaml:"gray,omitempty" json:"gray,omitempty"`
	Scale     float64  `yaml:"scale,omitempty" json:"scale,omitempty"`         // upscale factor, 1 keeps the size
	Sharpen   float64  `yaml:"sharpen,omitempty" json:"sharpen,omitempty"`     // gaussian sharpen sigma, 0 disables
	Threshold int      `yaml:"threshold,omitempty" json:"threshold,omitempty"` // fixed method, 1-255
	Window    *int     `yaml:"window,omitempty" json:"window,omitempty"`       // adaptive method, box radius in pixels
	Offset    *int     `yaml:"offset,omitempty" json:"offset,omitempty"`       // adaptive method, subtracted from the local mean
	Polarity  Polarity `yaml:"polarity,omitempty" json:"polarity,omitempty"`
}

// WithDefaults fills unset fields.
func (p Preprocess) WithDefaults() Preprocess {
	if p.Method == "" {
		p.Method = MethodOtsu
	}
	if p.Gray == "" {
		p.Gray = GrayLuma
	}
	if p.Scale == 0 {
		p.Scale = 1
	}
	if p.Polarity == "" {
		p.Polarity = PolarityAuto
	}
	if p.Method == MethodAdaptive {
		if p.Window == nil {
			p.Window = Int(defaultWindow)
		}
		if p.Offset == nil {
			p.Offset = Int(defaultOffset)
		}
	}
	return p
}

// Int returns a pointer to v, for the optional Preprocess fields.
func Int(v int) *int { return &v }

// Validate checks p after defaults are applied.
func (p Preprocess) Validate() error {
	p = p.WithDefaults()
	switch p.Method {
	case MethodOtsu, MethodAdaptive, MethodNone:
	case MethodFixed:
		if p.Threshold < 1 || p.Threshold > 255 {
			return fmt.Errorf("fixed threshold must be in [1,255], got %d", p.Threshold)
		}
	default:
		return fmt.Errorf("unknown preprocess method %q", p.Method)
	}
	switch p.Gray {
	case GrayLuma, GrayLightness:
	default:
		return fmt.Errorf("unknown gray mode %q", p.Gray)
	}
	switch p.Polarity {
	case PolarityAuto, PolarityKeep:
	default:
		return fmt.Errorf("unknown polarity %q", p.Polarity)
	}
	if p.Scale < 0 || p.Scale > maxScale || math.IsNaN(p.Scale) {
		return fmt.Errorf("scale must be in (0,%d], got %v", maxScale, p.Scale)
	}
	if p.Sharpen < 0 {
		return fmt.Errorf("sharpen must not be negative, got %v", p.Sharpen)
	}
	if p.Window != nil && *p.Window < 0 {
		return fmt.Errorf("window must not be negative, got %d", *p.Window)
	}
	return nil
}

// Prepare converts a crop into the single-channel image handed to OCR.
//
// Steps, in order: optional upscale (Lanczos), optional sharpen, intensity
// conversion, binarization, polarity normalisation. Binarization runs on the
// crop alone so each region gets a threshold fitted to its own lighting.
func Prepare(img image.Image, p Preprocess) *image.Gray {
	p = p.WithDefaults()

	var src image.Image = img
	if p.Scale != 1 {
		w := int(math.Round(float64(img.Bounds().Dx()) * p.Scale))
		if w < 1 {
			w = 1
		}
		src = imaging.Resize(src, w, 0, imaging.Lanczos)
	}
	if p.Sharpen > 0 {
		src = imaging.Sharpen(src, p.Sharpen)
	}

	gray := Grayscale(src, p.Gray)

	var out *image.Gray
	switch p.Method {
	case MethodNone:
		return gray
	case MethodFixed:
		out = segment.Threshold(gray, uint8(p.Threshold))
	case MethodAdaptive:
		out = AdaptiveThreshold(gray, *p.Window, *p.Offset)
	default:
		out = segment.Threshold(gray, OtsuThreshold(gray)+1)
	}

	if p.Polarity == PolarityAuto && darkMajority(out) {
		invert(out)
	}
	return out
}

// Grayscale converts img to a single intensity channel.
func Grayscale(img image.Image, mode GrayMode) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	if mode != GrayLightness {
		// bild returns RGBA with equal channels; keep one
		rgba := effect.Grayscale(img)
		for i := range gray.Pix {
			gray.Pix[i] = rgba.Pix[i*4]
		}
		return gray
	}

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c, ok := colorful.MakeColor(img.At(x+bounds.Min.X, y+bounds.Min.Y))
			if !ok {
				// fully transparent
				gray.Pix[y*gray.Stride+x] = 0xFF
				continue
			}
			l, _, _ := c.Lab()
			gray.Pix[y*gray.Stride+x] = uint8(math.Round(math.Min(math.Max(l, 0), 1) * 255))
		}
	}
	return gray
}

// OtsuThreshold returns the intensity t that best separates the histogram of
// g into two classes, [0,t] and (t,255], by maximising between-class variance.
// A uniform image returns its single intensity.
func OtsuThreshold(g *image.Gray) uint8 {
	bins := histogram.NewRGBAHistogram(g).R.Bins

	total := 0
	var sum float64
	for i, n := range bins {
		total += n
		sum += float64(i * n)
	}
	if total == 0 {
		return 0
	}

	var (
		sumB    float64
		weightB int
		best    float64 = -1
		bestT   int
		lo, hi  = -1, -1
	)
	for i, n := range bins {
		if n > 0 {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo == hi {
		return uint8(lo)
	}

	for t := 0; t < len(bins); t++ {
		weightB += bins[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * bins[t])
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			bestT = t
		}
	}
	return uint8(bestT)
}

// AdaptiveThreshold marks a pixel black when it is darker than the mean of its
// (2*radius+1)² neighbourhood minus offset, white otherwise.
func AdaptiveThreshold(g *image.Gray, radius, offset int) *image.Gray {
	mean := blur.Box(g, float64(radius))

	bounds := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			v := int(g.Pix[y*g.Stride+x])
			m := int(mean.Pix[y*mean.Stride+x*4])
			if v < m-offset {
				out.Pix[y*out.Stride+x] = 0x00
			} else {
				out.Pix[y*out.Stride+x] = 0xFF
			}
		}
	}
	return out
}

// darkMajority reports whether more than half of a binary image is black.
// Text is the minority class on a label, so a dark majority means light text
// on a dark background.
func darkMajority(g *image.Gray) bool {
	dark := 0
	for _, v := range g.Pix {
		if v < 0x80 {
			dark++
		}
	}
	return dark*2 > len(g.Pix)
}

func invert(g *image.Gray) {
	for i, v := range g.Pix {
		g.Pix[i] = 0xFF - v
	}
}
