package selector

import (
	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
)

// Report describes how many elements each selector of a Set matches in a
// document. Errors are recorded rather than returned.
type Report struct {
	XPathMatches int    `json:"xpathMatches"`
	CSSMatches   int    `json:"cssMatches"`
	XPathUnique  bool   `json:"xpathUnique"`
	CSSUnique    bool   `json:"cssUnique"`
	XPathError   string `json:"xpathError,omitempty"`
	CSSError     string `json:"cssError,omitempty"`
}

// Verify evaluates both selectors against doc.
func Verify(doc *dom.Document, set Set) Report {
	var r Report
	if set.XPath != "" {
		nodes, err := doc.QueryXPath(set.XPath)
		if err != nil {
			r.XPathError = err.Error()
		}
		r.XPathMatches = len(nodes)
	}
	if set.CSS != "" {
		nodes, err := doc.Query(set.CSS)
		if err != nil {
			r.CSSError = err.Error()
		}
		r.CSSMatches = len(nodes)
	}
	r.XPathUnique = r.XPathMatches == 1
	r.CSSUnique = r.CSSMatches == 1
	return r
}
