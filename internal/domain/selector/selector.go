// Package selector synthesizes XPath and CSS selectors for elements.
//
// Selectors are best effort. An element with an id is addressed by that id
// alone, so a page with duplicate ids yields selectors that match more than
// one element. Verify reports this; nothing rewrites the selector.
package selector

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/shared/ordered"
)

// Set is the pair of selectors stored on a descriptor.
type Set struct {
	XPath string `json:"xpath"`
	CSS   string `json:"css"`
}

// Alternates holds the secondary selectors recorded alongside a Set.
type Alternates struct {
	ID             string          `json:"id,omitempty"`
	ClassName      string          `json:"className,omitempty"`
	NthChild       string          `json:"nthChild,omitempty"`
	DataAttributes DataSelectors `json:"dataAttributes,omitempty" yaml:"dataAttributes,omitempty"`
}

// DataAttribute is one data-* attribute selector.
type DataAttribute struct {
	Name     string
	Selector string
}

// DataSelectors maps data-* attribute names to their selectors. It
// serializes as an object keyed by attribute name in attribute order.
type DataSelectors []DataAttribute

// Get returns the selector for the named attribute.
func (d DataSelectors) Get(name string) (string, bool) {
	for _, a := range d {
		if a.Name == name {
			return a.Selector, true
		}
	}
	return "", false
}

func (d DataSelectors) MarshalJSON() ([]byte, error) {
	return ordered.MarshalJSON(d.pairs())
}

func (d *DataSelectors) UnmarshalJSON(data []byte) error {
	pairs, err := ordered.UnmarshalJSON(data)
	if err != nil {
		return fmt.Errorf("data selectors: %w", err)
	}
	if pairs == nil {
		*d = nil
		return nil
	}
	out := make(DataSelectors, len(pairs))
	for i, p := range pairs {
		out[i] = DataAttribute{Name: p.Key, Selector: p.Value}
	}
	*d = out
	return nil
}

func (d DataSelectors) MarshalYAML() (interface{}, error) {
	return ordered.MapSlice(d.pairs()), nil
}

func (d DataSelectors) pairs() []ordered.Pair {
	out := make([]ordered.Pair, len(d))
	for i, a := range d {
		out[i] = ordered.Pair{Key: a.Name, Value: a.Selector}
	}
	return out
}

// For returns both primary selectors of n.
func For(n *html.Node) Set {
	return Set{XPath: XPath(n), CSS: CSS(n)}
}

// AlternatesFor returns the secondary selectors of n.
func AlternatesFor(n *html.Node) Alternates {
	return Alternates{
		ID:             IDSelector(n),
		ClassName:      ClassSelector(n),
		NthChild:       NthChild(n),
		DataAttributes: DataAttributes(n),
	}
}

// XPath returns an absolute XPath for n. Elements with an id short-circuit
// to an id lookup; anything else is addressed by position among same-tag
// siblings. Non-element nodes yield "".
func XPath(n *html.Node) string {
	if !dom.IsElement(n) {
		return ""
	}
	if id := dom.ID(n); id != "" {
		return fmt.Sprintf(`//*[@id="%s"]`, id)
	}
	switch tag := dom.TagName(n); {
	case tag == "html" && !dom.IsElement(n.Parent):
		return "/html"
	case tag == "body" && dom.TagName(n.Parent) == "html":
		return "/html/body"
	}

	pos := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if dom.IsElement(s) && dom.TagName(s) == dom.TagName(n) {
			pos++
		}
	}
	return XPath(n.Parent) + "/" + dom.TagName(n) + "[" + strconv.Itoa(pos) + "]"
}

// CSS returns a CSS selector for n built from tag names and classes. The walk
// stops at body, or early at the first ancestor with an id, which is joined
// with a descendant combinator.
func CSS(n *html.Node) string {
	if !dom.IsElement(n) {
		return ""
	}
	if id := dom.ID(n); id != "" {
		return "#" + id
	}

	sel := compound(n)
	for p := dom.Parent(n); p != nil && dom.TagName(p) != "body"; p = dom.Parent(p) {
		if id := dom.ID(p); id != "" {
			return "#" + id + " " + sel
		}
		sel = compound(p) + " > " + sel
	}
	return sel
}

func compound(n *html.Node) string {
	classes := dom.Classes(n)
	if len(classes) == 0 {
		return dom.TagName(n)
	}
	return dom.TagName(n) + "." + strings.Join(classes, ".")
}

// IDSelector returns "#id", or "" without an id.
func IDSelector(n *html.Node) string {
	if id := dom.ID(n); id != "" {
		return "#" + id
	}
	return ""
}

// ClassSelector returns ".a.b" for the element's classes, or "".
func ClassSelector(n *html.Node) string {
	classes := dom.Classes(n)
	if len(classes) == 0 {
		return ""
	}
	return "." + strings.Join(classes, ".")
}

// NthChild returns "tag:nth-child(i)" counting all element siblings, or ""
// when n has no parent element.
func NthChild(n *html.Node) string {
	if dom.Parent(n) == nil {
		return ""
	}
	index := 1
	for s := dom.PrevElement(n); s != nil; s = dom.PrevElement(s) {
		index++
	}
	return fmt.Sprintf("%s:nth-child(%d)", dom.TagName(n), index)
}

// DataAttributes returns one attribute selector per data-* attribute in
// attribute order.
func DataAttributes(n *html.Node) DataSelectors {
	if !dom.IsElement(n) {
		return nil
	}
	var out DataSelectors
	for _, a := range n.Attr {
		if !strings.HasPrefix(a.Key, "data-") {
			continue
		}
		out = append(out, DataAttribute{
			Name:     a.Key,
			Selector: fmt.Sprintf(`[%s="%s"]`, a.Key, a.Val),
		})
	}
	return out
}
