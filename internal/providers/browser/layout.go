package browser

import (
	"context"

	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
	"github.com/GriffinCanCode/pagelens/internal/domain/selector"
)

const lookupFn = `function lookup(xpath) {
  return document.evaluate(xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
}`

const geometryScript = `xpath => {
  ` + lookupFn + `
  const el = lookup(xpath);
  if (!el || !el.getBoundingClientRect) return null;
  const r = el.getBoundingClientRect();
  return { x: r.x, y: r.y, width: r.width, height: r.height };
}`

const styleScript = `({ xpath, props }) => {
  ` + lookupFn + `
  const el = lookup(xpath);
  if (!el || el.nodeType !== Node.ELEMENT_NODE) return null;
  const cs = window.getComputedStyle(el);
  const out = {};
  for (const p of props) out[p] = cs.getPropertyValue(p);
  return out;
}`

// Layout implements inspector.Layout against the rendered page.
type Layout struct {
	page *Page
}

// Geometry returns the bounding client rect of n's counterpart in the page.
func (l *Layout) Geometry(n *html.Node) (inspector.Geometry, error) {
	xpath := selector.XPath(n)
	if xpath == "" {
		return inspector.Geometry{}, nil
	}
	v, err := l.page.evaluate(context.Background(), geometryScript, xpath)
	if err != nil {
		return inspector.Geometry{}, err
	}
	return geometryFrom(v), nil
}

// Style returns the computed values of inspector.StyleProperties.
func (l *Layout) Style(n *html.Node) (map[string]string, error) {
	xpath := selector.XPath(n)
	if xpath == "" {
		return nil, nil
	}
	v, err := l.page.evaluate(context.Background(), styleScript, map[string]interface{}{
		"xpath": xpath,
		"props": inspector.StyleProperties,
	})
	if err != nil {
		return nil, err
	}
	return stylesFrom(v), nil
}

func geometryFrom(v interface{}) inspector.Geometry {
	m, ok := v.(map[string]interface{})
	if !ok {
		return inspector.Geometry{}
	}
	return inspector.Geometry{
		X:      toFloat(m["x"]),
		Y:      toFloat(m["y"]),
		Width:  toFloat(m["width"]),
		Height: toFloat(m["height"]),
	}
}

func stylesFrom(v interface{}) map[string]string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, raw := range m {
		if s, ok := raw.(string); ok && s != "" {
			out[k] = s
		}
	}
	return out
}
