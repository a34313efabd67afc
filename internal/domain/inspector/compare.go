package inspector

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FieldChange is one difference between two captures of an element.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Compare lists the differences between two descriptors, ignoring the
// capture time. Attribute changes are reported per attribute.
func Compare(a, b Descriptor) []FieldChange {
	var changes []FieldChange
	add := func(field, before, after string) {
		if before != after {
			changes = append(changes, FieldChange{Field: field, Before: before, After: after})
		}
	}

	add("role", a.Role, b.Role)
	add("accessibleName", a.AccessibleName, b.AccessibleName)
	add("accessibleDescription", a.AccessibleDescription, b.AccessibleDescription)
	add("selectors.xpath", a.Selectors.XPath, b.Selectors.XPath)
	add("selectors.css", a.Selectors.CSS, b.Selectors.CSS)
	add("geometry", formatGeometry(a.Geometry), formatGeometry(b.Geometry))
	add("textContent", a.TextContent, b.TextContent)

	for _, attr := range a.Attributes {
		after, ok := b.Attributes.Get(attr.Name)
		if !ok {
			changes = append(changes, FieldChange{Field: "attributes." + attr.Name, Before: attr.Value})
			continue
		}
		add("attributes."+attr.Name, attr.Value, after)
	}
	for _, attr := range b.Attributes {
		if _, ok := a.Attributes.Get(attr.Name); !ok {
			changes = append(changes, FieldChange{Field: "attributes." + attr.Name, After: attr.Value})
		}
	}
	return changes
}

func formatGeometry(g Geometry) string {
	return fmt.Sprintf("%g,%g %gx%g", g.X, g.Y, g.Width, g.Height)
}

// DiffMarkup returns a patch turning the outer HTML of a into that of b,
// or "" when they match.
func DiffMarkup(a, b Descriptor) string {
	if a.OuterHTML == b.OuterHTML {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(a.OuterHTML, b.OuterHTML, false))
	return dmp.PatchToText(dmp.PatchMake(a.OuterHTML, diffs))
}
