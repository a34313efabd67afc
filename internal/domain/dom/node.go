package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Walk visits n and its descendants in tree order. Returning false from fn
// skips the children of the visited node.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// TagName returns the lowercase tag name of an element, or "" otherwise.
func TagName(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns an attribute value and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	if !IsElement(n) {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// AttrValue returns an attribute value or "".
func AttrValue(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return v
}

// HasAttr reports attribute presence.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// ID returns the id attribute.
func ID(n *html.Node) string {
	return AttrValue(n, "id")
}

// Classes splits the class attribute on whitespace.
func Classes(n *html.Node) []string {
	return strings.Fields(AttrValue(n, "class"))
}

// Parent returns the parent element, or nil at the document root.
func Parent(n *html.Node) *html.Node {
	if n == nil || !IsElement(n.Parent) {
		return nil
	}
	return n.Parent
}

// Children returns the element children of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c) {
			out = append(out, c)
		}
	}
	return out
}

// PrevElement returns the previous element sibling.
func PrevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if IsElement(s) {
			return s
		}
	}
	return nil
}

// NextElement returns the next element sibling.
func NextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if IsElement(s) {
			return s
		}
	}
	return nil
}

// DescendantCount counts descendant elements.
func DescendantCount(n *html.Node) int {
	count := 0
	Walk(n, func(c *html.Node) bool {
		if c != n && IsElement(c) {
			count++
		}
		return true
	})
	return count
}

// TextContent concatenates all descendant text, like the DOM property.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var buf bytes.Buffer
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			buf.WriteString(c.Data)
		}
		return true
	})
	return buf.String()
}

// NormalizeWhitespace trims and collapses whitespace runs into one space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// OuterHTML renders n including its own tag.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}

// IsCustomElement reports whether the tag name contains a hyphen.
func IsCustomElement(n *html.Node) bool {
	return strings.Contains(TagName(n), "-")
}

// Closest returns the nearest ancestor-or-self element with the given tag.
func Closest(n *html.Node, tag string) *html.Node {
	for c := n; c != nil; c = c.Parent {
		if TagName(c) == tag {
			return c
		}
	}
	return nil
}

// InheritedAttr returns the value of attr on n or its closest ancestor that
// sets it, the way lang and dir inherit.
func InheritedAttr(n *html.Node, attr string) string {
	for c := n; c != nil; c = c.Parent {
		if v, ok := Attr(c, attr); ok {
			return v
		}
	}
	return ""
}
