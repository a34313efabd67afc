package inspector

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/shared/ordered"
)

// Attribute is one name/value pair.
type Attribute struct {
	Name  string
	Value string
}

// Attributes is an ordered attribute map. It serializes as a JSON or YAML
// object whose keys keep DOM attribute order.
type Attributes []Attribute

// AttributesOf copies the attributes of n in source order.
func AttributesOf(n *html.Node) Attributes {
	out := make(Attributes, 0, len(n.Attr))
	for _, a := range n.Attr {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}
		out = append(out, Attribute{Name: name, Value: a.Val})
	}
	return out
}

// Get returns the value for name.
func (a Attributes) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Names returns attribute names in order.
func (a Attributes) Names() []string {
	names := make([]string, len(a))
	for i, attr := range a {
		names[i] = attr.Name
	}
	return names
}

// Map returns an unordered copy.
func (a Attributes) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, attr := range a {
		m[attr.Name] = attr.Value
	}
	return m
}

// MarshalJSON writes an object in attribute order. Values are not
// HTML-escaped.
func (a Attributes) MarshalJSON() ([]byte, error) {
	return ordered.MarshalJSON(a.pairs())
}

// UnmarshalJSON reads an object keeping key order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	pairs, err := ordered.UnmarshalJSON(data)
	if err != nil {
		return fmt.Errorf("attributes: %w", err)
	}
	if pairs == nil {
		*a = nil
		return nil
	}
	out := make(Attributes, len(pairs))
	for i, p := range pairs {
		out[i] = Attribute{Name: p.Key, Value: p.Value}
	}
	*a = out
	return nil
}

// MarshalYAML emits an ordered mapping.
func (a Attributes) MarshalYAML() (interface{}, error) {
	return ordered.MapSlice(a.pairs()), nil
}

func (a Attributes) pairs() []ordered.Pair {
	out := make([]ordered.Pair, len(a))
	for i, attr := range a {
		out[i] = ordered.Pair{Key: attr.Name, Value: attr.Value}
	}
	return out
}
