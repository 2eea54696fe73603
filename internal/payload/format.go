package payload

import (
	"fmt"
	"strings"

	"github.com/ironsheep/boardscan/internal/extract"
	"gopkg.in/yaml.v3"
)

// Format selects how a record is serialized into the QR payload.
type Format string

// Payload formats.
const (
	// FormatJoin writes "name: value" pairs separated by "; ", leaving out
	// empty fields.
	FormatJoin Format = "join"

	// FormatYAML writes a YAML mapping of every field, empty ones included,
	// in record order.
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. The empty string selects FormatJoin.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJoin, nil
	case FormatJoin, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown payload format %q (want join or yaml)", s)
	}
}

// Serialize renders r in format f. The result depends only on the record's
// names, values and order. A record with no non-empty field has no payload
// and yields "".
func Serialize(r extract.Record, f Format) (string, error) {
	if r.AllEmpty() {
		return "", nil
	}
	switch f {
	case FormatJoin, "":
		return serializeJoin(r), nil
	case FormatYAML:
		return serializeYAML(r)
	default:
		return "", fmt.Errorf("%w: unknown payload format %q", ErrEncode, f)
	}
}

func serializeJoin(r extract.Record) string {
	parts := make([]string, 0, len(r))
	for _, field := range r {
		if field.Value == "" {
			continue
		}
		parts = append(parts, field.Name+": "+field.Value)
	}
	return strings.Join(parts, "; ")
}

// serializeYAML builds the mapping node by hand; marshalling a Go map would
// sort the keys.
func serializeYAML(r extract.Record) (string, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, field := range r {
		var key, value yaml.Node
		if err := key.Encode(field.Name); err != nil {
			return "", fmt.Errorf("%w: field %q: %v", ErrEncode, field.Name, err)
		}
		if err := value.Encode(field.Value); err != nil {
			return "", fmt.Errorf("%w: field %q: %v", ErrEncode, field.Name, err)
		}
		doc.Content = append(doc.Content, &key, &value)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}
