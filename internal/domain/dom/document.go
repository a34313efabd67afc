package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize limits HTML input to 10MB.
const MaxHTMLSize = 10 * 1024 * 1024

var (
	ErrEmptyHTML    = errors.New("html content required")
	ErrHTMLTooLarge = fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
	ErrNoMatch      = errors.New("no element matches query")
)

// Document is a parsed page plus the lookups the resolver and the
// selector synthesizer need: an id index, label association, and
// CSS/XPath queries.
type Document struct {
	root  *html.Node
	url   *url.URL
	ids   map[string]*html.Node
	query *goquery.Document
}

// Parse parses an HTML string. pageURL may be empty.
func Parse(src string, pageURL string) (*Document, error) {
	if err := Validate(src); err != nil {
		return nil, err
	}
	root, err := htmlquery.Parse(decode([]byte(src)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return FromNode(root, pageURL), nil
}

// ParseReader reads at most MaxHTMLSize bytes from r and parses them.
func ParseReader(r io.Reader, pageURL string) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxHTMLSize+1))
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	return Parse(string(data), pageURL)
}

// FromNode wraps an already parsed tree.
func FromNode(root *html.Node, pageURL string) *Document {
	d := &Document{
		root:  root,
		ids:   make(map[string]*html.Node),
		query: goquery.NewDocumentFromNode(root),
	}
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			d.url = u
		}
	}
	Walk(root, func(n *html.Node) bool {
		if id, ok := Attr(n, "id"); ok && id != "" {
			// getElementById semantics: first in tree order wins
			if _, seen := d.ids[id]; !seen {
				d.ids[id] = n
			}
		}
		return true
	})
	return d
}

// Validate checks HTML size.
func Validate(src string) error {
	if len(src) == 0 {
		return ErrEmptyHTML
	}
	if len(src) > MaxHTMLSize {
		return ErrHTMLTooLarge
	}
	return nil
}

// DetectCharset guesses the charset of raw page bytes.
func DetectCharset(data []byte) string {
	if utf8.Valid(data) {
		return "utf-8"
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func decode(data []byte) io.Reader {
	cs := DetectCharset(data)
	if cs == "utf-8" {
		return bytes.NewReader(data)
	}
	r, err := charset.NewReader(bytes.NewReader(data), "text/html; charset="+cs)
	if err != nil {
		return bytes.NewReader(data)
	}
	return r
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// URL returns the page URL, or nil for documents loaded without one.
func (d *Document) URL() *url.URL { return d.url }

// Location returns the page URL as a string.
func (d *Document) Location() string {
	if d.url == nil {
		return ""
	}
	return d.url.String()
}

// Selection exposes the goquery view of the document.
func (d *Document) Selection() *goquery.Document { return d.query }

// ElementByID returns the first element with the given id, or nil.
func (d *Document) ElementByID(id string) *html.Node {
	return d.ids[id]
}

// Body returns the body element, or nil.
func (d *Document) Body() *html.Node {
	return htmlquery.FindOne(d.root, "/html/body")
}

// Title returns the trimmed document title.
func (d *Document) Title() string {
	return strings.TrimSpace(d.query.Find("title").First().Text())
}

// Query returns all elements matching a CSS selector in document order.
func (d *Document) Query(css string) ([]*html.Node, error) {
	if _, err := cascadia.Compile(css); err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", css, err)
	}
	return d.query.Find(css).Nodes, nil
}

// QueryXPath returns all nodes matching an XPath expression.
func (d *Document) QueryXPath(expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return nodes, nil
}

// Find resolves a node reference given either as XPath or CSS. Exactly one
// of the two should be set; XPath wins when both are.
func (d *Document) Find(xpath, css string) (*html.Node, error) {
	var (
		nodes []*html.Node
		err   error
	)
	switch {
	case xpath != "":
		nodes, err = d.QueryXPath(xpath)
	case css != "":
		nodes, err = d.Query(css)
	default:
		return nil, errors.New("xpath or css required")
	}
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, ErrNoMatch
}

// ResolveURL resolves ref against the page URL. Without a page URL the
// reference is returned unchanged.
func (d *Document) ResolveURL(ref string) string {
	if d.url == nil {
		return ref
	}
	u, err := d.url.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

var labelable = map[string]bool{
	"button": true, "input": true, "meter": true, "output": true,
	"progress": true, "select": true, "textarea": true,
}

// IsLabelable reports whether n can be associated with a label element.
func IsLabelable(n *html.Node) bool {
	if !IsElement(n) || !labelable[TagName(n)] {
		return false
	}
	if TagName(n) == "input" && strings.EqualFold(AttrValue(n, "type"), "hidden") {
		return false
	}
	return true
}

// Labels returns the label elements associated with n in tree order: labels
// whose for attribute names n, and a label that wraps n without a for
// attribute. Non-labelable elements have none.
func (d *Document) Labels(n *html.Node) []*html.Node {
	if !IsLabelable(n) {
		return nil
	}
	var labels []*html.Node
	Walk(d.root, func(l *html.Node) bool {
		if TagName(l) != "label" {
			return true
		}
		if d.labeledControl(l) == n {
			labels = append(labels, l)
		}
		return true
	})
	return labels
}

func (d *Document) labeledControl(label *html.Node) *html.Node {
	if target, ok := Attr(label, "for"); ok {
		n := d.ElementByID(target)
		if n != nil && IsLabelable(n) {
			return n
		}
		return nil
	}
	var found *html.Node
	Walk(label, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c != label && IsLabelable(c) {
			found = c
			return false
		}
		return true
	})
	return found
}
