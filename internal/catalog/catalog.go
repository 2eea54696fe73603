package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/ironsheep/boardscan/internal/imaging"
	"github.com/ironsheep/boardscan/internal/ocr"
	"gopkg.in/yaml.v3"
)

//go:embed catalogs/*.yaml
var builtinFS embed.FS

// ErrUnknownCatalog is returned when a name matches neither a built-in
// catalog nor a readable file.
var ErrUnknownCatalog = errors.New("unknown catalog")

// Region is a named rectangle, in fractions of the image size, read by OCR.
type Region struct {
	Name string `json:"name"`

	// BBox is (x1, y1, x2, y2) with every component in [0,1], x1 < x2 and
	// y1 < y2.
	BBox [4]float64 `json:"bbox"`

	// OCR is the configuration string as written in the catalog.
	OCR string `json:"ocr,omitempty"`

	// Params is OCR parsed by ocr.ParseConfig.
	Params ocr.Params `json:"-"`

	Preprocess imaging.Preprocess `json:"preprocess"`
}

// PixelBox converts the region to pixels for an image of the given size.
func (r Region) PixelBox(width, height int) imaging.Box {
	return imaging.PixelBox(r.BBox[0], r.BBox[1], r.BBox[2], r.BBox[3], width, height)
}

// Validate checks the region's geometry and settings and fills Params.
func (r *Region) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("region name is empty")
	}
	for _, v := range r.BBox {
		// NaN fails both comparisons
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("region %q: bbox %v outside [0,1]", r.Name, r.BBox)
		}
	}
	if r.BBox[0] >= r.BBox[2] || r.BBox[1] >= r.BBox[3] {
		return fmt.Errorf("region %q: bbox %v needs x1 < x2 and y1 < y2", r.Name, r.BBox)
	}
	params, err := ocr.ParseConfig(r.OCR)
	if err != nil {
		return fmt.Errorf("region %q: ocr: %w", r.Name, err)
	}
	r.Params = params
	if err := r.Preprocess.Validate(); err != nil {
		return fmt.Errorf("region %q: preprocess: %w", r.Name, err)
	}
	return nil
}

// Catalog is an ordered, read-only set of regions with unique names.
// It is safe for concurrent use.
type Catalog struct {
	name    string
	regions []Region
	index   map[string]int
}

// New builds a catalog from regions, validating each one. Order is kept.
func New(name string, regions ...Region) (*Catalog, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("catalog %q has no regions", name)
	}
	c := &Catalog{
		name:    name,
		regions: make([]Region, 0, len(regions)),
		index:   make(map[string]int, len(regions)),
	}
	for i := range regions {
		r := regions[i]
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("catalog %q: region %d: %w", name, i, err)
		}
		if _, dup := c.index[r.Name]; dup {
			return nil, fmt.Errorf("catalog %q: duplicate region name %q", name, r.Name)
		}
		c.index[r.Name] = len(c.regions)
		c.regions = append(c.regions, r)
	}
	return c, nil
}

type document struct {
	Name    string        `yaml:"name"`
	Regions []regionEntry `yaml:"regions"`
}

type regionEntry struct {
	Name       string             `yaml:"name"`
	BBox       []float64          `yaml:"bbox"`
	OCR        string             `yaml:"ocr"`
	Preprocess imaging.Preprocess `yaml:"preprocess"`
}

// Parse decodes a YAML catalog document. Unknown keys are errors so that
// typos in a hand-edited catalog do not pass silently.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog document is empty")
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	regions := make([]Region, 0, len(doc.Regions))
	for i, e := range doc.Regions {
		if len(e.BBox) != 4 {
			return nil, fmt.Errorf("catalog %q: region %d (%s): bbox needs 4 values, got %d", doc.Name, i, e.Name, len(e.BBox))
		}
		regions = append(regions, Region{
			Name:       e.Name,
			BBox:       [4]float64{e.BBox[0], e.BBox[1], e.BBox[2], e.BBox[3]},
			OCR:        e.OCR,
			Preprocess: e.Preprocess,
		})
	}
	return New(doc.Name, regions...)
}

// Load reads and parses a catalog file.
func Load(filePath string) (*Catalog, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	if c.name == "" {
		c.name = strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	}
	return c, nil
}

// Builtin returns one of the catalogs compiled into the binary.
func Builtin(name string) (*Catalog, error) {
	data, err := builtinFS.ReadFile("catalogs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q (built-in: %s)", ErrUnknownCatalog, name, strings.Join(BuiltinNames(), ", "))
	}
	return Parse(data)
}

// BuiltinNames lists the built-in catalogs in sorted order.
func BuiltinNames() []string {
	entries, err := fs.ReadDir(builtinFS, "catalogs")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve accepts a built-in name or a path to a YAML file.
func Resolve(nameOrPath string) (*Catalog, error) {
	if nameOrPath == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownCatalog)
	}
	for _, n := range BuiltinNames() {
		if n == nameOrPath {
			return Builtin(n)
		}
	}
	c, err := Load(nameOrPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q is neither a built-in (%s) nor a file", ErrUnknownCatalog, nameOrPath, strings.Join(BuiltinNames(), ", "))
	}
	return c, err
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Len returns the number of regions.
func (c *Catalog) Len() int { return len(c.regions) }

// Names returns region names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.regions))
	for i, r := range c.regions {
		names[i] = r.Name
	}
	return names
}

// Regions returns a copy of the regions in catalog order.
func (c *Catalog) Regions() []Region {
	out := make([]Region, len(c.regions))
	copy(out, c.regions)
	return out
}

// Lookup finds a region by name.
func (c *Catalog) Lookup(name string) (Region, bool) {
	i, ok := c.index[name]
	if !ok {
		return Region{}, false
	}
	return c.regions[i], true
}

// PixelBoxes maps every region to pixels for an image of the given size,
// in catalog order. Collapsed boxes are included as empty boxes.
func (c *Catalog) PixelBoxes(width, height int) []imaging.LabeledBox {
	boxes := make([]imaging.LabeledBox, len(c.regions))
	for i, r := range c.regions {
		boxes[i] = imaging.LabeledBox{Label: r.Name, Box: r.PixelBox(width, height)}
	}
	return boxes
}
