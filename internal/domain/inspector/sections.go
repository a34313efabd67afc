package inspector

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/a11y"
	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
)

const (
	maxInnerHTML = 500
	maxOuterHTML = 1000
	maxAncestors = 10
)

var (
	formTags  = map[string]bool{"input": true, "select": true, "textarea": true, "button": true, "form": true}
	mediaTags = map[string]bool{"img": true, "video": true, "audio": true, "canvas": true, "svg": true, "picture": true, "source": true}
	// natively focusable or activatable controls
	interactiveTags = map[string]bool{"a": true, "button": true, "input": true, "select": true, "textarea": true}
	clickableTags   = map[string]bool{"a": true, "button": true, "input": true, "select": true, "textarea": true, "label": true}
	editableTags    = map[string]bool{"input": true, "textarea": true, "select": true}
)

func ariaOf(n *html.Node) Aria {
	attrs := Attributes{}
	for _, a := range AttributesOf(n) {
		if strings.HasPrefix(a.Name, "aria-") {
			attrs = append(attrs, a)
		}
	}
	get := func(k string) string { return dom.AttrValue(n, k) }
	return Aria{
		Attributes:   attrs,
		ExplicitRole: a11y.ExplicitRole(n),
		ImplicitRole: a11y.ImplicitRole(n),
		LabelInfo: LabelInfo{
			AriaLabel:       get("aria-label"),
			AriaLabelledBy:  get("aria-labelledby"),
			AriaDescribedBy: get("aria-describedby"),
		},
		State: AriaState{
			Hidden:   get("aria-hidden"),
			Expanded: get("aria-expanded"),
			Selected: get("aria-selected"),
			Checked:  get("aria-checked"),
			Disabled: get("aria-disabled"),
			Busy:     get("aria-busy"),
			Live:     get("aria-live"),
		},
		Relationships: Relationships{
			Owns:             get("aria-owns"),
			Controls:         get("aria-controls"),
			FlowTo:           get("aria-flowto"),
			ActiveDescendant: get("aria-activedescendant"),
		},
	}
}

// tabIndex follows the DOM property: an explicit integer wins, natively
// focusable elements default to 0, everything else to -1.
func tabIndex(n *html.Node) int {
	if v, ok := dom.Attr(n, "tabindex"); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	switch dom.TagName(n) {
	case "a", "area":
		if dom.HasAttr(n, "href") {
			return 0
		}
	case "button", "select", "textarea", "iframe", "summary":
		return 0
	case "input":
		if !strings.EqualFold(dom.AttrValue(n, "type"), "hidden") {
			return 0
		}
	}
	if isContentEditable(n) {
		return 0
	}
	return -1
}

func focusOf(n *html.Node) Focus {
	ti := tabIndex(n)
	return Focus{
		TabIndex:        ti,
		IsFocusable:     ti >= 0,
		CanReceiveFocus: ti >= 0 || interactiveTags[dom.TagName(n)],
	}
}

func isContentEditable(n *html.Node) bool {
	v, ok := dom.Attr(n, "contenteditable")
	if !ok {
		return false
	}
	v = strings.ToLower(v)
	return v == "" || v == "true" || v == "plaintext-only"
}

func interactionOf(n *html.Node) Interaction {
	tag := dom.TagName(n)
	ce := "inherit"
	if v, ok := dom.Attr(n, "contenteditable"); ok {
		if v == "" {
			v = "true"
		}
		ce = strings.ToLower(v)
	}
	return Interaction{
		Clickable: clickableTags[tag] ||
			dom.HasAttr(n, "onclick") ||
			a11y.ExplicitRole(n) == "button" ||
			tabIndex(n) >= 0,
		Editable:          editableTags[tag] || isContentEditable(n),
		Draggable:         draggable(n),
		HasEventListeners: hasHandlerAttr(n),
		Disabled:          dom.HasAttr(n, "disabled"),
		Readonly:          dom.HasAttr(n, "readonly"),
		Required:          dom.HasAttr(n, "required"),
		ContentEditable:   ce,
	}
}

func draggable(n *html.Node) bool {
	switch strings.ToLower(dom.AttrValue(n, "draggable")) {
	case "true":
		return true
	case "false":
		return false
	}
	tag := dom.TagName(n)
	return tag == "img" || (tag == "a" && dom.HasAttr(n, "href"))
}

// hasHandlerAttr detects inline event handlers. Listeners attached from
// script are invisible to a static parse.
func hasHandlerAttr(n *html.Node) bool {
	for _, a := range n.Attr {
		if len(a.Key) > 2 && strings.HasPrefix(a.Key, "on") {
			return true
		}
	}
	return false
}

func formOf(doc *dom.Document, n *html.Node) *FormInfo {
	tag := dom.TagName(n)
	if !formTags[tag] {
		return nil
	}

	info := &FormInfo{
		Type:     controlType(n),
		Name:     dom.AttrValue(n, "name"),
		Value:    controlValue(n),
		Checked:  dom.HasAttr(n, "checked"),
		Multiple: dom.HasAttr(n, "multiple"),
		Labels:   []LabelRef{},
		Constraints: Constraints{
			Required:  dom.HasAttr(n, "required"),
			Pattern:   dom.AttrValue(n, "pattern"),
			Min:       dom.AttrValue(n, "min"),
			Max:       dom.AttrValue(n, "max"),
			Step:      dom.AttrValue(n, "step"),
			MinLength: intAttr(n, "minlength", -1),
			MaxLength: intAttr(n, "maxlength", -1),
		},
	}
	if owner := FormOwnerOf(doc, n); owner != nil {
		info.Form = owner
	}
	for _, l := range doc.Labels(n) {
		info.Labels = append(info.Labels, LabelRef{
			ID:          dom.ID(l),
			TextContent: strings.TrimSpace(dom.TextContent(l)),
		})
	}
	return info
}

// FormOwnerOf returns the owning form of a control: the form named by the
// form attribute, else the nearest enclosing form. A form owns itself.
func FormOwnerOf(doc *dom.Document, n *html.Node) *FormOwner {
	var form *html.Node
	if ref, ok := dom.Attr(n, "form"); ok && dom.TagName(n) != "form" {
		if f := doc.ElementByID(ref); dom.TagName(f) == "form" {
			form = f
		}
	} else {
		form = dom.Closest(n, "form")
	}
	if form == nil {
		return nil
	}
	method := strings.ToLower(strings.TrimSpace(dom.AttrValue(form, "method")))
	if method != "post" && method != "dialog" {
		method = "get"
	}
	return &FormOwner{
		ID:     dom.ID(form),
		Name:   dom.AttrValue(form, "name"),
		Action: FormAction(doc, form),
		Method: method,
	}
}

// FormAction resolves the action attribute of a form against the page URL.
// A missing or empty action submits to the page itself.
func FormAction(doc *dom.Document, form *html.Node) string {
	action := strings.TrimSpace(dom.AttrValue(form, "action"))
	if action == "" {
		return doc.Location()
	}
	return doc.ResolveURL(action)
}

func controlType(n *html.Node) string {
	switch dom.TagName(n) {
	case "input":
		if t := strings.ToLower(strings.TrimSpace(dom.AttrValue(n, "type"))); t != "" {
			return t
		}
		return "text"
	case "button":
		switch t := strings.ToLower(dom.AttrValue(n, "type")); t {
		case "button", "reset":
			return t
		}
		return "submit"
	case "select":
		if dom.HasAttr(n, "multiple") {
			return "select-multiple"
		}
		return "select-one"
	case "textarea":
		return "textarea"
	}
	return ""
}

func controlValue(n *html.Node) string {
	switch dom.TagName(n) {
	case "textarea":
		return dom.TextContent(n)
	case "select":
		var first, selected *html.Node
		dom.Walk(n, func(c *html.Node) bool {
			if dom.TagName(c) != "option" {
				return true
			}
			if first == nil {
				first = c
			}
			if selected == nil && dom.HasAttr(c, "selected") {
				selected = c
			}
			return false
		})
		if selected == nil {
			selected = first
		}
		if selected == nil {
			return ""
		}
		if v, ok := dom.Attr(selected, "value"); ok {
			return v
		}
		return dom.NormalizeWhitespace(dom.TextContent(selected))
	case "form":
		return ""
	}
	return dom.AttrValue(n, "value")
}

func intAttr(n *html.Node, key string, def int) int {
	v, ok := dom.Attr(n, key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || i < 0 {
		return def
	}
	return i
}

func mediaOf(doc *dom.Document, n *html.Node) *MediaInfo {
	tag := dom.TagName(n)
	if !mediaTags[tag] {
		return nil
	}
	get := func(k string) string { return dom.AttrValue(n, k) }
	info := &MediaInfo{
		TagName: tag,
		Alt:     get("alt"),
		Title:   get("title"),
		Width:   get("width"),
		Height:  get("height"),
	}
	if src := get("src"); src != "" {
		info.Src = doc.ResolveURL(src)
	}
	switch tag {
	case "img":
		info.Loading = get("loading")
		info.Decoding = get("decoding")
		info.Sizes = get("sizes")
		info.Srcset = get("srcset")
	case "video", "audio":
		info.Controls = dom.HasAttr(n, "controls")
		info.Autoplay = dom.HasAttr(n, "autoplay")
		info.Loop = dom.HasAttr(n, "loop")
		info.Muted = dom.HasAttr(n, "muted")
		info.Preload = get("preload")
	}
	return info
}

func refOf(n *html.Node) ElementRef {
	return ElementRef{
		TagName:   dom.TagName(n),
		ID:        dom.ID(n),
		ClassName: dom.AttrValue(n, "class"),
		Role:      a11y.ExplicitRole(n),
	}
}

func contextOf(n *html.Node) Context {
	ctx := Context{
		Children:        []ElementRef{},
		Ancestors:       []ElementRef{},
		DescendantCount: dom.DescendantCount(n),
	}
	for _, c := range dom.Children(n) {
		ctx.Children = append(ctx.Children, refOf(c))
	}

	parent := dom.Parent(n)
	if parent == nil {
		return ctx
	}
	ref := refOf(parent)
	ctx.Parent = &ref

	siblings := dom.Children(parent)
	ctx.Siblings.Total = len(siblings)
	for i, s := range siblings {
		if s != n {
			continue
		}
		ctx.Siblings.Position = i + 1
		if i > 0 {
			prev := refOf(siblings[i-1])
			ctx.Siblings.Previous = &prev
		}
		if i+1 < len(siblings) {
			next := refOf(siblings[i+1])
			ctx.Siblings.Next = &next
		}
	}

	for a := parent; a != nil && dom.TagName(a) != "body" && len(ctx.Ancestors) < maxAncestors; a = dom.Parent(a) {
		ctx.Ancestors = append(ctx.Ancestors, refOf(a))
	}
	return ctx
}

func metadataOf(n *html.Node) Metadata {
	dataset := Attributes{}
	for _, a := range n.Attr {
		if name, ok := strings.CutPrefix(a.Key, "data-"); ok {
			dataset = append(dataset, Attribute{Name: camelCase(name), Value: a.Val})
		}
	}
	return Metadata{
		IsCustomElement: dom.IsCustomElement(n),
		Lang:            dom.InheritedAttr(n, "lang"),
		Dir:             dom.AttrValue(n, "dir"),
		Title:           dom.AttrValue(n, "title"),
		Dataset:         dataset,
	}
}

// camelCase converts a data attribute suffix to its dataset key.
func camelCase(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if r == '-' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}
