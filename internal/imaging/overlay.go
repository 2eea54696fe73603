package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabeledBox is a pixel box with the name drawn next to it in an overlay.
type LabeledBox struct {
	Label string `json:"label"`
	Box   Box    `json:"box"`
}

// OverlayResult contains the image with region outlines drawn on it.
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Regions     int    `json:"regions"`
}

const outlineWidth = 2

// RegionOverlay draws each box outline and label on a copy of img and
// returns it as a base64 PNG. Operators use it to check catalog geometry
// against real photos. Empty boxes are skipped.
func RegionOverlay(img image.Image, boxes []LabeledBox) (*OverlayResult, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	drawn := 0
	for i, lb := range boxes {
		if lb.Box.Empty() {
			continue
		}
		c := paletteColor(i, len(boxes))
		drawOutline(result, lb.Box, c)
		drawLabel(result, lb.Box.X1, lb.Box.Y1, lb.Label, c)
		drawn++
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, result, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode overlay image: %w", err)
	}

	return &OverlayResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Regions:     drawn,
	}, nil
}

// paletteColor spreads n hues evenly around the colour wheel.
func paletteColor(i, n int) color.RGBA {
	h := 360 * float64(i) / float64(max(n, 1))
	r, g, b := colorful.Hsv(h, 0.85, 0.95).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func drawOutline(img *image.RGBA, b Box, c color.RGBA) {
	bounds := img.Bounds()
	set := func(x, y int) {
		if image.Pt(x, y).In(bounds) {
			img.SetRGBA(x, y, c)
		}
	}
	for t := 0; t < outlineWidth; t++ {
		for x := b.X1; x < b.X2; x++ {
			set(x, b.Y1+t)
			set(x, b.Y2-1-t)
		}
		for y := b.Y1; y < b.Y2; y++ {
			set(b.X1+t, y)
			set(b.X2-1-t, y)
		}
	}
}

// drawLabel draws text on a dark background just above (x, y), or just
// inside the box when there is no room above it.
func drawLabel(img *image.RGBA, x, y int, text string, fg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Height + 2

	top := y - height
	if top < img.Bounds().Min.Y {
		top = y + outlineWidth
	}
	bg := image.Rect(x, top, x+width, top+height).Intersect(img.Bounds())
	draw.Draw(img, bg, image.NewUniform(color.RGBA{0, 0, 0, 180}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x + 2), Y: fixed.I(top + face.Ascent + 1)},
	}
	d.DrawString(text)
}
