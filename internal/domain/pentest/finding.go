// Package pentest runs a passive security checklist against a loaded page:
// form CSRF tokens, script-accepting inputs, sensitive client storage and
// response security headers. Active requests are limited to an authorized
// host scope.
package pentest

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoResults is returned when an empty report is copied.
var ErrNoResults = errors.New("no results to copy")

// FindingType is the severity of a finding.
type FindingType string

const (
	Info    FindingType = "info"
	Warning FindingType = "warning"
	Danger  FindingType = "danger"
	Success FindingType = "success"
)

// Check names.
const (
	CheckRun     = "run"
	CheckCSRF    = "csrf"
	CheckXSS     = "xss"
	CheckStorage = "storage"
	CheckNetwork = "network"
)

// Finding is one line of a report.
type Finding struct {
	Check     string      `json:"check"`
	Type      FindingType `json:"type"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// Report is the ordered result of a run.
type Report struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Findings   []Finding `json:"findings"`
}

// Counts tallies findings by type.
func (r *Report) Counts() map[FindingType]int {
	out := make(map[FindingType]int, 4)
	for _, f := range r.Findings {
		out[f.Type]++
	}
	return out
}

// Text renders the report for the clipboard. Dates are shown in the
// location of at; finding times in their own location.
func (r *Report) Text(at time.Time) string {
	var b strings.Builder
	b.WriteString("Security Test Report\n")
	fmt.Fprintf(&b, "URL: %s\n", r.URL)
	fmt.Fprintf(&b, "Date: %s\n", at.Format("1/2/2006, 3:04:05 PM"))
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n\n")

	for i, f := range r.Findings {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, strings.ToUpper(string(f.Type)), f.Message)
		fmt.Fprintf(&b, "   Time: %s\n\n", f.Timestamp.Format("3:04:05 PM"))
	}

	fmt.Fprintf(&b, "Total findings: %d\n", len(r.Findings))
	return b.String()
}
