// Package a11y computes accessible roles, names and descriptions for
// elements of a parsed document.
//
// Resolution never fails: a reference that does not resolve, or a rule that
// yields only whitespace, falls through to the next rule.
package a11y

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
)

// textNamed elements take their name from their own text content.
var textNamed = map[string]bool{
	"button": true, "a": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// Resolver answers role, name and description queries against one document.
type Resolver struct {
	doc *dom.Document
}

// NewResolver creates a resolver bound to doc.
func NewResolver(doc *dom.Document) *Resolver {
	return &Resolver{doc: doc}
}

// Role returns the explicit role if set, else the implicit one. Never empty.
func (r *Resolver) Role(n *html.Node) string {
	if role := ExplicitRole(n); role != "" {
		return role
	}
	return ImplicitRole(n)
}

// Name computes the accessible name. The first rule producing non-empty
// text wins:
//
//	aria-labelledby > aria-label > <label> > title > alt (img) >
//	placeholder (input) > text content (button, a, h1-h6)
func (r *Resolver) Name(n *html.Node) string {
	if !dom.IsElement(n) {
		return ""
	}
	tag := dom.TagName(n)

	rules := []func() string{
		func() string { return r.referencedText(n, "aria-labelledby") },
		func() string { return dom.AttrValue(n, "aria-label") },
		func() string { return r.labelText(n) },
		func() string { return dom.AttrValue(n, "title") },
		func() string {
			if tag != "img" {
				return ""
			}
			return dom.AttrValue(n, "alt")
		},
		func() string {
			if tag != "input" {
				return ""
			}
			return dom.AttrValue(n, "placeholder")
		},
		func() string {
			if !textNamed[tag] {
				return ""
			}
			return dom.TextContent(n)
		},
	}
	for _, rule := range rules {
		if name := dom.NormalizeWhitespace(rule()); name != "" {
			return name
		}
	}
	return ""
}

// Description returns the text of aria-describedby targets, else the
// aria-description attribute.
func (r *Resolver) Description(n *html.Node) string {
	if !dom.IsElement(n) {
		return ""
	}
	if desc := r.referencedText(n, "aria-describedby"); desc != "" {
		return desc
	}
	return dom.NormalizeWhitespace(dom.AttrValue(n, "aria-description"))
}

// LabelTexts returns the trimmed text of each associated label element.
func (r *Resolver) LabelTexts(n *html.Node) []string {
	labels := r.doc.Labels(n)
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, dom.NormalizeWhitespace(dom.TextContent(l)))
	}
	return out
}

// referencedText resolves an id reference list attribute. Ids that match
// no element are dropped.
func (r *Resolver) referencedText(n *html.Node, attr string) string {
	ids := strings.Fields(dom.AttrValue(n, attr))
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		target := r.doc.ElementByID(id)
		if target == nil {
			continue
		}
		if text := dom.NormalizeWhitespace(dom.TextContent(target)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func (r *Resolver) labelText(n *html.Node) string {
	return strings.Join(r.LabelTexts(n), " ")
}
