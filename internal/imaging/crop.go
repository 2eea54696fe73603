package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Box is a pixel rectangle relative to the image origin.
//
// (X1, Y1) is inclusive (top-left), (X2, Y2) is exclusive (bottom-right).
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Dx returns the box width.
func (b Box) Dx() int { return b.X2 - b.X1 }

// Dy returns the box height.
func (b Box) Dy() int { return b.Y2 - b.Y1 }

// Empty reports whether the box has zero width or height.
func (b Box) Empty() bool { return b.X2 <= b.X1 || b.Y2 <= b.Y1 }

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}

// PixelBox converts fractional coordinates to pixels for an image of the
// given size: each coordinate is multiplied by the matching dimension,
// truncated toward negative infinity, and clamped into [0,width] / [0,height].
//
// The result may be Empty; callers decide how to treat that.
func PixelBox(x1, y1, x2, y2 float64, width, height int) Box {
	toPx := func(frac float64, size int) int {
		return clamp(int(math.Floor(frac*float64(size))), 0, size)
	}
	return Box{
		X1: toPx(x1, width),
		Y1: toPx(y1, height),
		X2: toPx(x2, width),
		Y2: toPx(y2, height),
	}
}

// CropBox extracts box from img. The box is relative to img.Bounds().Min.
func CropBox(img image.Image, box Box) (*image.NRGBA, error) {
	if box.Empty() {
		return nil, fmt.Errorf("invalid crop region %s: x1 must be < x2, y1 must be < y2", box)
	}

	bounds := img.Bounds()
	if box.X1 < 0 || box.Y1 < 0 || box.X2 > bounds.Dx() || box.Y2 > bounds.Dy() {
		return nil, fmt.Errorf("crop region %s outside image bounds (0,0)-(%d,%d)",
			box, bounds.Dx(), bounds.Dy())
	}

	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Add(bounds.Min)
	return imaging.Crop(img, rect), nil
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
