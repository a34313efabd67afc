package pentest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrOutOfScope is returned for hosts outside the authorized scope.
var ErrOutOfScope = errors.New("host outside authorized scope")

// Request is a request observed while the page was loaded.
type Request struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestLog lists observed requests in order.
type RequestLog interface {
	Requests() []Request
}

// ProbeResult is the response to a header probe.
type ProbeResult struct {
	Status int
	Header http.Header
}

// HeaderProber issues a GET for a page and returns its status and headers.
type HeaderProber interface {
	ProbeHeaders(ctx context.Context, pageURL string) (ProbeResult, error)
}

// Scope is the set of host globs active probes may target.
type Scope struct {
	patterns []string
}

// NewScope validates and lowercases host globs such as "*.example.com".
func NewScope(patterns ...string) (Scope, error) {
	var s Scope
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return Scope{}, fmt.Errorf("invalid scope pattern %q", p)
		}
		s.patterns = append(s.patterns, p)
	}
	return s, nil
}

// Patterns returns the configured globs.
func (s Scope) Patterns() []string { return append([]string(nil), s.patterns...) }

// Allows reports whether host matches any glob.
func (s Scope) Allows(host string) bool {
	host = strings.ToLower(host)
	for _, p := range s.patterns {
		if ok, _ := doublestar.Match(p, host); ok {
			return true
		}
	}
	return false
}

// Check returns ErrOutOfScope unless rawURL's host is allowed.
func (s Scope) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrOutOfScope, rawURL)
	}
	if !s.Allows(u.Hostname()) {
		return fmt.Errorf("%w: %s", ErrOutOfScope, u.Hostname())
	}
	return nil
}

// checkNetwork lists observed requests and probes the page for security
// headers.
func checkNetwork(ctx context.Context, pageURL string, log RequestLog, prober HeaderProber, scope Scope, emit func(FindingType, string)) {
	if log != nil {
		for i, r := range log.Requests() {
			method := r.Method
			if method == "" {
				method = http.MethodGet
			}
			emit(Info, fmt.Sprintf("HTTP Request #%d: %s (Method: %s)", i+1, r.URL, method))
		}
	}

	switch {
	case prober == nil:
		emit(Info, "Header probe unavailable for this source.")
		return
	case !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://"):
		emit(Info, "No page URL; skipping header probe.")
		return
	}
	if err := scope.Check(pageURL); err != nil {
		emit(Warning, fmt.Sprintf("Skipped test request to %s: %v.", pageURL, err))
		return
	}

	res, err := prober.ProbeHeaders(ctx, pageURL)
	if err != nil {
		emit(Danger, fmt.Sprintf("Test request to %s failed.", pageURL))
		return
	}
	if res.Status != http.StatusOK {
		emit(Warning, fmt.Sprintf("Test request failed with status %d.", res.Status))
		return
	}
	emit(Success, fmt.Sprintf("Test request to current page succeeded (Status: %d).", res.Status))
	if len(res.Header.Values("X-Frame-Options")) == 0 {
		emit(Warning, "Missing X-Frame-Options header - page may be vulnerable to clickjacking.")
	}
	if len(res.Header.Values("X-Content-Type-Options")) == 0 {
		emit(Warning, "Missing X-Content-Type-Options header.")
	}
}
