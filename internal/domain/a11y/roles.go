package a11y

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
)

// DefaultRole is returned for elements without an explicit or implicit role.
const DefaultRole = "generic"

var implicitRoles = map[string]string{
	"button":   "button",
	"h1":       "heading",
	"h2":       "heading",
	"h3":       "heading",
	"h4":       "heading",
	"h5":       "heading",
	"h6":       "heading",
	"nav":      "navigation",
	"main":     "main",
	"section":  "region",
	"article":  "article",
	"aside":    "complementary",
	"header":   "banner",
	"footer":   "contentinfo",
	"form":     "form",
	"table":    "table",
	"tr":       "row",
	"td":       "cell",
	"th":       "columnheader",
	"ul":       "list",
	"ol":       "list",
	"li":       "listitem",
	"dialog":   "dialog",
	"select":   "combobox",
	"textarea": "textbox",
}

var inputRoles = map[string]string{
	"button":   "button",
	"submit":   "button",
	"reset":    "button",
	"image":    "button",
	"checkbox": "checkbox",
	"radio":    "radio",
	"range":    "slider",
	"search":   "searchbox",
	"text":     "textbox",
	"email":    "textbox",
	"password": "textbox",
	"tel":      "textbox",
	"url":      "textbox",
	"number":   "spinbutton",
}

// ExplicitRole returns the role attribute verbatim, or "".
func ExplicitRole(n *html.Node) string {
	return strings.TrimSpace(dom.AttrValue(n, "role"))
}

// ImplicitRole returns the role implied by the tag and its attributes,
// ignoring any role attribute. Non-elements and unknown tags are generic.
func ImplicitRole(n *html.Node) string {
	switch tag := dom.TagName(n); tag {
	case "a":
		if dom.HasAttr(n, "href") {
			return "link"
		}
		return DefaultRole
	case "img":
		if strings.TrimSpace(dom.AttrValue(n, "alt")) != "" {
			return "img"
		}
		return "presentation"
	case "input":
		return InputRole(dom.AttrValue(n, "type"))
	default:
		if role, ok := implicitRoles[tag]; ok {
			return role
		}
		return DefaultRole
	}
}

// InputRole maps an input type to its role. Missing and unknown types are
// text fields.
func InputRole(inputType string) string {
	if role, ok := inputRoles[strings.ToLower(strings.TrimSpace(inputType))]; ok {
		return role
	}
	return "textbox"
}
