package pentest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
)

// XSSPayload is the value every text field is tested with.
const XSSPayload = `<script>alert("test")</script>`

const textFields = `input[type="text"], input[type="search"], textarea`

// checkCSRF warns about forms without an input whose name mentions csrf or
// token.
func checkCSRF(doc *dom.Document, emit func(FindingType, string)) {
	forms := doc.Selection().Find("form")
	forms.Each(func(_ int, form *goquery.Selection) {
		if hasCSRFInput(form) {
			return
		}
		emit(Warning, fmt.Sprintf("Form with action %q may be missing CSRF token.", formAction(doc, form)))
	})

	if forms.Length() == 0 {
		emit(Info, "No forms found on this page.")
		return
	}
	emit(Info, fmt.Sprintf("Checked %d form(s) for CSRF protection.", forms.Length()))
}

// formAction is the resolved action of form, or a placeholder when the form
// posts to a page with no known URL.
func formAction(doc *dom.Document, form *goquery.Selection) string {
	if action := inspector.FormAction(doc, form.Get(0)); action != "" {
		return action
	}
	return "(current page)"
}

func hasCSRFInput(form *goquery.Selection) bool {
	found := false
	form.Find("input").EachWithBreak(func(_ int, in *goquery.Selection) bool {
		name := strings.ToLower(in.AttrOr("name", ""))
		found = strings.Contains(name, "csrf") || strings.Contains(name, "token")
		return !found
	})
	return found
}

// checkXSS flags text fields that would hold a script payload. A field is
// safe only when its pattern constraint rejects the payload.
func checkXSS(ctx context.Context, doc *dom.Document, matcher *PatternMatcher, emit func(FindingType, string)) {
	fields := doc.Selection().Find(textFields)
	vulnerable := 0

	fields.Each(func(_ int, field *goquery.Selection) {
		if rejectsPayload(ctx, field, matcher) {
			return
		}
		emit(Danger, fmt.Sprintf("Input field %q may be vulnerable to XSS (accepts script tags).", fieldName(field)))
		vulnerable++
	})

	switch {
	case fields.Length() == 0:
		emit(Info, "No text input fields found on this page.")
	case vulnerable == 0:
		emit(Success, fmt.Sprintf("Checked %d input field(s) - no obvious XSS vulnerabilities detected.", fields.Length()))
	default:
		emit(Warning, fmt.Sprintf("Found %d potentially vulnerable input field(s).", vulnerable))
	}
}

func rejectsPayload(ctx context.Context, field *goquery.Selection, matcher *PatternMatcher) bool {
	pattern, ok := field.Attr("pattern")
	if !ok || goquery.NodeName(field) != "input" || matcher == nil {
		return false
	}
	ok, err := matcher.Matches(ctx, pattern, XSSPayload)
	if err != nil {
		// an invalid pattern places no constraint on the value
		return false
	}
	return !ok
}

func fieldName(field *goquery.Selection) string {
	for _, attr := range []string{"name", "id"} {
		if v := field.AttrOr(attr, ""); v != "" {
			return v
		}
	}
	return "unnamed"
}
