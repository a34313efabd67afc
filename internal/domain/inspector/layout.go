package inspector

import (
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
)

// StyleProperties is the computed-style subset recorded on descriptors.
var StyleProperties = []string{
	"display", "position", "visibility", "opacity",
	"width", "height", "margin", "padding", "border",
	"color", "background-color", "font-family", "font-size", "font-weight",
	"z-index", "overflow", "cursor", "pointer-events",
}

// Layout supplies rendering information for a node. Sources without a
// layout engine return zero geometry.
type Layout interface {
	Geometry(n *html.Node) (Geometry, error)
	Style(n *html.Node) (map[string]string, error)
}

// StaticLayout serves documents parsed without a browser: geometry is
// always zero and styles come from the inline style attribute.
type StaticLayout struct{}

// Geometry implements Layout.
func (StaticLayout) Geometry(*html.Node) (Geometry, error) {
	return Geometry{}, nil
}

// Style returns the inline declarations, later declarations overriding
// earlier ones unless the earlier one is !important.
func (StaticLayout) Style(n *html.Node) (map[string]string, error) {
	return InlineStyle(dom.AttrValue(n, "style"))
}

// InlineStyle parses a style attribute into property/value pairs.
func InlineStyle(text string) (map[string]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	decls, err := parser.ParseDeclarations(text)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(decls))
	important := make(map[string]bool)
	for _, d := range decls {
		prop := strings.ToLower(d.Property)
		if important[prop] && !d.Important {
			continue
		}
		out[prop] = d.Value
		important[prop] = d.Important
	}
	return out, nil
}
