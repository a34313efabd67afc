// Package ordered encodes string maps as JSON and YAML objects whose keys
// keep insertion order. Values are written verbatim: markup characters are
// not escaped.
package ordered

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
)

// Pair is one key/value entry.
type Pair struct {
	Key   string
	Value string
}

// MarshalJSON writes pairs as an object in order.
func MarshalJSON(pairs []Pair) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := sonic.MarshalString(p.Key)
		if err != nil {
			return nil, err
		}
		val, err := sonic.MarshalString(p.Value)
		if err != nil {
			return nil, err
		}
		buf.WriteString(key)
		buf.WriteByte(':')
		buf.WriteString(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of string values keeping key order. A JSON
// null yields nil.
func UnmarshalJSON(data []byte) ([]Pair, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	out := []Pair{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		var val string
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		out = append(out, Pair{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

// MapSlice converts pairs to an ordered YAML mapping.
func MapSlice(pairs []Pair) yaml.MapSlice {
	ms := make(yaml.MapSlice, 0, len(pairs))
	for _, p := range pairs {
		ms = append(ms, yaml.MapItem{Key: p.Key, Value: p.Value})
	}
	return ms
}
