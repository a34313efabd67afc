package pentest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-jose/go-jose/v3"

	"github.com/GriffinCanCode/pagelens/internal/domain/sitedata"
)

// allowedServices are analytics and infrastructure keys that are never
// reported.
var allowedServices = []string{
	"hubspot", "__hstc", "__hssc", "__hssrc", "hubspotutk",
	"_ga", "_gid", "_gcl_au", "_fbp", "_ce.", "amp_",
	"intercom", "optanon", "ajs_", "cb_", "cebs", "cebsp_",
	"awsalb", "awsalbcors", "utm_", "hs_", "rws_",
}

var (
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	encodedPattern = regexp.MustCompile(`^[A-Za-z0-9+/=_-]+$`)

	secretPatterns = []struct {
		re   *regexp.Regexp
		name string
	}{
		{regexp.MustCompile(`(?i)password`), "password"},
		{regexp.MustCompile(`(?i)secret`), "secret"},
		{regexp.MustCompile(`(?i)api[_-]?key`), "API key"},
		{regexp.MustCompile(`(?i)private[_-]?key`), "private key"},
		{regexp.MustCompile(`(?i)client[_-]?secret`), "client secret"},
		{regexp.MustCompile(`(?i)bearer`), "bearer token"},
	}
)

// IsAllowedService reports whether key belongs to a known analytics or
// load-balancer service.
func IsAllowedService(key string) bool {
	k := strings.ToLower(key)
	for _, s := range allowedServices {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// IsJWT reports whether value is a compact JWS whose header names an
// algorithm or a JWT type.
func IsJWT(value string) bool {
	if !strings.HasPrefix(value, "eyJ") || strings.Count(value, ".") != 2 {
		return false
	}
	jws, err := jose.ParseSigned(value)
	if err != nil || len(jws.Signatures) == 0 {
		return false
	}
	h := jws.Signatures[0].Header
	if typ, ok := h.ExtraHeaders[jose.HeaderType].(string); ok && typ == "JWT" {
		return true
	}
	return h.Algorithm != ""
}

// AnalyzeEntry inspects one storage key/value. sensitive is true when any
// critical rule matched; warnings alone do not count.
func AnalyzeEntry(key, value string) (findings []Finding, sensitive bool) {
	if IsAllowedService(key) {
		return nil, false
	}
	keyLower := strings.ToLower(key)
	valueLower := strings.ToLower(value)

	danger := func(format string, args ...interface{}) {
		findings = append(findings, Finding{Type: Danger, Message: fmt.Sprintf(format, args...)})
		sensitive = true
	}
	warn := func(format string, args ...interface{}) {
		findings = append(findings, Finding{Type: Warning, Message: fmt.Sprintf(format, args...)})
	}

	if strings.Contains(keyLower, "token") || strings.Contains(keyLower, "auth") || strings.Contains(keyLower, "msal") {
		danger("🔴 CRITICAL: Authentication token found in storage - Key: %q", key)
	}

	if IsJWT(value) {
		danger("🔴 CRITICAL: JWT token detected in storage - Key: %q", key)
	}

	if strings.Contains(valueLower, "accesstoken") || strings.Contains(valueLower, "refreshtoken") || strings.Contains(valueLower, "idtoken") {
		if strings.Contains(value, `"accessToken"`) || strings.Contains(value, `"refreshToken"`) || strings.Contains(value, `"idToken"`) {
			danger("🔴 CRITICAL: OAuth token detected - Key: %q", key)
		}
	}

	if email := emailPattern.FindString(value); email != "" {
		warn("⚠️ WARNING: Email address found in storage - Key: %q - Email: %q", key, email)
	}

	for _, p := range secretPatterns {
		if p.re.MatchString(keyLower) || p.re.MatchString(valueLower) {
			danger("🔴 CRITICAL: Possible %s found in storage - Key: %q", p.name, key)
		}
	}

	if len(value) > 200 && encodedPattern.MatchString(value) &&
		!strings.Contains(value, "%") && !strings.Contains(keyLower, "consent") && !strings.Contains(keyLower, "config") {
		warn("⚠️ WARNING: Long encoded string detected (potential token) - Key: %q", key)
	}
	return findings, sensitive
}

// checkStorage analyzes both storage areas and the cookie string.
func checkStorage(ctx context.Context, store sitedata.Store, emit func(FindingType, string)) {
	critical := 0
	analyze := func(key, value string) {
		findings, sensitive := AnalyzeEntry(key, value)
		for _, f := range findings {
			emit(f.Type, f.Message)
		}
		if sensitive {
			critical++
		}
	}

	for _, area := range []sitedata.Area{sitedata.Local, sitedata.Session} {
		items, err := store.Items(ctx, area)
		switch {
		case err != nil:
			emit(Warning, fmt.Sprintf("Unable to access %s.", area))
		case len(items) == 0:
			emit(Success, fmt.Sprintf("No data found in %s.", area))
		default:
			emit(Info, fmt.Sprintf("Found %d item(s) in %s - analyzing...", len(items), area))
			for _, it := range items {
				analyze(it.Key, it.Value)
			}
		}
	}

	cookies, err := store.Cookies(ctx)
	switch {
	case err != nil:
		emit(Warning, "Unable to access cookies.")
	case cookies == "":
		emit(Success, "No cookies found.")
	default:
		parts := strings.Split(cookies, ";")
		emit(Info, fmt.Sprintf("Found %d cookie(s) - analyzing...", len(parts)))
		for _, c := range parts {
			name, value, _ := strings.Cut(strings.TrimSpace(c), "=")
			analyze(name, value)
		}
	}

	if critical > 0 {
		emit(Danger, fmt.Sprintf("🚨 CRITICAL: Found %d instances of sensitive data in client-side storage!", critical))
		emit(Danger, "Recommendation: Sensitive authentication tokens should be stored securely server-side or in httpOnly cookies.")
	}
}
