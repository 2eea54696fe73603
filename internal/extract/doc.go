// Package extract reads the text of catalog regions from a decoded image and
// assembles it into an ordered record.
//
// For each region the Extractor converts the fractional box to pixels,
// crops, prepares the crop (see imaging.Prepare) and runs the OCR engine
// with the region's parameters. A region that collapses to an empty box on
// a small image produces an empty field and a warning, not an error.
//
// The Assembler walks the catalog in order. It can read regions in parallel
// with a fixed number of workers; field order and error reporting do not
// depend on the worker count.
package extract
