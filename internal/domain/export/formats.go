package export

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// codec writes markup verbatim instead of escaping <, > and & and sorts
// map keys so exports are stable.
var codec = sonic.Config{
	SortMapKeys:      true,
	CompactMarshaler: true,
	ValidateString:   true,
}.Froze()

// Format is an export encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ParseFormat accepts a format name or file extension; "" means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case YAML:
		return "application/yaml"
	case TOML:
		return "application/toml"
	default:
		return "application/json"
	}
}

// Encode serializes doc. JSON and YAML keep attribute order; TOML tables
// are written with sorted keys.
func Encode(doc Document, f Format) ([]byte, error) {
	switch f {
	case JSON:
		data, err := codec.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return data, nil
	case YAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return data, nil
	case TOML:
		tree, err := genericTree(doc)
		if err != nil {
			return nil, err
		}
		data, err := toml.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("failed to encode toml: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// EncodeValue writes any value as indented JSON with the export codec.
func EncodeValue(v interface{}) ([]byte, error) {
	data, err := codec.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode json: %w", err)
	}
	return data, nil
}

// Decode reads a JSON export and checks its version.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := codec.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode export: %w", err)
	}
	if err := doc.CheckVersion(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// genericTree converts doc to maps and slices without null values, which
// TOML cannot represent.
func genericTree(doc Document) (map[string]interface{}, error) {
	raw, err := codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode toml: %w", err)
	}
	var tree map[string]interface{}
	if err := codec.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to encode toml: %w", err)
	}
	return stripNulls(tree).(map[string]interface{}), nil
}

func stripNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if child == nil {
				delete(t, k)
				continue
			}
			t[k] = stripNulls(child)
		}
		return t
	case []interface{}:
		out := t[:0]
		for _, child := range t {
			if child != nil {
				out = append(out, stripNulls(child))
			}
		}
		return out
	}
	return v
}
