// Package imaging holds the pixel-level steps of a scan: decoding uploads,
// turning normalized region boxes into pixel boxes, cropping, preparing a
// crop for OCR, and drawing calibration overlays.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner. A Box is
// half-open: (X1,Y1) is inclusive and (X2,Y2) is exclusive, so a box covers
// Dx()*Dy() pixels. Boxes are relative to the image's bounds, which matters
// for sub-images whose bounds do not start at the origin.
//
// # Preprocessing
//
// Prepare always returns a fresh *image.Gray. Each crop is thresholded on
// its own histogram, so regions photographed under different lighting get
// different thresholds. With the default auto polarity the output is dark
// text on a light background, which is what Tesseract expects.
//
// # Thread Safety
//
// All functions are stateless and never modify their input images, so they
// can be called concurrently, including on the same source image.
//
// # Error Handling
//
// Decode, DecodeFile and DecodeBase64 wrap ErrDecode when the bytes are not
// a supported image. Callers check it with errors.Is to tell bad uploads
// apart from I/O and engine failures.
package imaging
