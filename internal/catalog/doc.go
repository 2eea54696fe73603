// Package catalog defines the named regions read from a photographed object.
//
// A catalog is a YAML document listing regions in the order their fields
// appear in the extracted record:
//
//	name: board
//	regions:
//	  - name: numero_serie
//	    bbox: [0.10, 0.20, 0.30, 0.25]
//	    ocr: "--psm single_line"
//	    preprocess: {scale: 2}
//
// Boxes are fractions of the image width and height, so one catalog serves
// photos of any resolution. The ocr string uses tesseract command line
// syntax (see ocr.ParseConfig). Catalogs are validated once when loaded and
// are read-only afterwards.
//
// The built-in catalogs "board" and "card" are compiled into the binary;
// Resolve also accepts a path to a YAML file.
package catalog
