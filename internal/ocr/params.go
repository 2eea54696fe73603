package ocr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PageSegMode is a Tesseract page segmentation mode.
type PageSegMode int

// Page segmentation modes, numbered as Tesseract numbers them.
const (
	PSMUnset            PageSegMode = -1 // leave the engine default
	PSMOSDOnly          PageSegMode = 0
	PSMAutoOSD          PageSegMode = 1
	PSMAutoOnly         PageSegMode = 2
	PSMAuto             PageSegMode = 3
	PSMSingleColumn     PageSegMode = 4
	PSMSingleBlockVert  PageSegMode = 5
	PSMSingleBlock      PageSegMode = 6
	PSMSingleLine       PageSegMode = 7
	PSMSingleWord       PageSegMode = 8
	PSMCircleWord       PageSegMode = 9
	PSMSingleChar       PageSegMode = 10
	PSMSparseText       PageSegMode = 11
	PSMSparseTextOSD    PageSegMode = 12
	PSMRawLine          PageSegMode = 13
	maxPageSegMode                  = PSMRawLine
	whitelistVariable               = "tessedit_char_whitelist"
)

var psmNames = map[string]PageSegMode{
	"osd_only":               PSMOSDOnly,
	"auto_osd":               PSMAutoOSD,
	"auto_only":              PSMAutoOnly,
	"auto":                   PSMAuto,
	"single_column":          PSMSingleColumn,
	"single_block_vert_text": PSMSingleBlockVert,
	"single_block":           PSMSingleBlock,
	"single_line":            PSMSingleLine,
	"single_word":            PSMSingleWord,
	"circle_word":            PSMCircleWord,
	"single_char":            PSMSingleChar,
	"sparse_text":            PSMSparseText,
	"sparse_text_osd":        PSMSparseTextOSD,
	"raw_line":               PSMRawLine,
}

// Params configures a single OCR invocation.
type Params struct {
	// PSM is the page segmentation mode. PSMUnset keeps the engine default.
	PSM PageSegMode

	// OEM is the engine mode (0-3), or -1 to keep the engine default.
	// Only the CLI engine honours it.
	OEM int

	// Languages are Tesseract language codes, e.g. "eng".
	Languages []string

	// Whitelist restricts recognition to these characters when non-empty.
	Whitelist string

	// Variables are additional Tesseract variables set with -c key=value.
	Variables map[string]string
}

// DefaultParams returns Params with every setting left at the engine default.
func DefaultParams() Params {
	return Params{PSM: PSMUnset, OEM: -1}
}

// ParseConfig parses a Tesseract command line style configuration string.
//
// Recognised options:
//
//	--psm N|name     page segmentation mode (0-13 or e.g. single_line)
//	--oem N          OCR engine mode (0-3)
//	-l lang[+lang]   languages
//	-c key=value     engine variable; tessedit_char_whitelist sets Whitelist
//
// An empty string yields DefaultParams.
func ParseConfig(s string) (Params, error) {
	p := DefaultParams()
	fields := strings.Fields(s)

	next := func(i int, opt string) (string, error) {
		if i+1 >= len(fields) {
			return "", fmt.Errorf("option %s requires a value", opt)
		}
		return fields[i+1], nil
	}

	for i := 0; i < len(fields); i++ {
		opt := fields[i]
		switch opt {
		case "--psm":
			v, err := next(i, opt)
			if err != nil {
				return Params{}, err
			}
			psm, err := parsePSM(v)
			if err != nil {
				return Params{}, err
			}
			p.PSM = psm
			i++
		case "--oem":
			v, err := next(i, opt)
			if err != nil {
				return Params{}, err
			}
			oem, err := strconv.Atoi(v)
			if err != nil || oem < 0 || oem > 3 {
				return Params{}, fmt.Errorf("invalid --oem value %q", v)
			}
			p.OEM = oem
			i++
		case "-l":
			v, err := next(i, opt)
			if err != nil {
				return Params{}, err
			}
			for _, lang := range strings.Split(v, "+") {
				if lang == "" {
					return Params{}, fmt.Errorf("invalid language list %q", v)
				}
				p.Languages = append(p.Languages, lang)
			}
			i++
		case "-c":
			v, err := next(i, opt)
			if err != nil {
				return Params{}, err
			}
			key, value, ok := strings.Cut(v, "=")
			if !ok || key == "" {
				return Params{}, fmt.Errorf("invalid -c value %q: want key=value", v)
			}
			if key == whitelistVariable {
				p.Whitelist = value
			} else {
				if p.Variables == nil {
					p.Variables = make(map[string]string)
				}
				p.Variables[key] = value
			}
			i++
		default:
			return Params{}, fmt.Errorf("unknown option %q", opt)
		}
	}

	return p, nil
}

func parsePSM(v string) (PageSegMode, error) {
	if psm, ok := psmNames[strings.ToLower(v)]; ok {
		return psm, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || PageSegMode(n) > maxPageSegMode {
		return PSMUnset, fmt.Errorf("invalid --psm value %q", v)
	}
	return PageSegMode(n), nil
}

// WithLanguage returns a copy of p that falls back to lang when no language
// was configured.
func (p Params) WithLanguage(lang string) Params {
	if len(p.Languages) == 0 && lang != "" {
		p.Languages = []string{lang}
	}
	return p
}

// Args renders p as tesseract command line arguments in a fixed order.
func (p Params) Args() []string {
	var args []string
	if len(p.Languages) > 0 {
		args = append(args, "-l", strings.Join(p.Languages, "+"))
	}
	if p.PSM != PSMUnset {
		args = append(args, "--psm", strconv.Itoa(int(p.PSM)))
	}
	if p.OEM >= 0 {
		args = append(args, "--oem", strconv.Itoa(p.OEM))
	}
	if p.Whitelist != "" {
		args = append(args, "-c", whitelistVariable+"="+p.Whitelist)
	}
	keys := make([]string, 0, len(p.Variables))
	for k := range p.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-c", k+"="+p.Variables[k])
	}
	return args
}

// String returns the canonical configuration string; ParseConfig(p.String())
// yields an equivalent Params.
func (p Params) String() string {
	return strings.Join(p.Args(), " ")
}
