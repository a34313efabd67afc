package sitedata

import (
	"context"
	"errors"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const expiredCookie = "=;expires=Thu, 01 Jan 1970 00:00:00 GMT;path=/"

// View holds the display text of each section.
type View struct {
	Host           string `json:"host"`
	Cookies        string `json:"cookies"`
	LocalStorage   string `json:"localStorage"`
	SessionStorage string `json:"sessionStorage"`
	IndexedDB      string `json:"indexedDB"`
	CacheStorage   string `json:"cacheStorage"`
}

// ClearResult summarizes a Clear call.
type ClearResult struct {
	Host     string   `json:"host"`
	Cookies  []string `json:"cookies"`
	Errors   []string `json:"errors,omitempty"`
	Reloaded bool     `json:"reloaded"`
	Message  string   `json:"message"`
}

// Inspector reads and clears the data in a Store.
type Inspector struct {
	store  Store
	logger *zap.Logger
}

// NewInspector creates an inspector. A nil logger discards output.
func NewInspector(store Store, logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{store: store, logger: logger}
}

// Inspect collects every section. Access errors become section text.
func (i *Inspector) Inspect(ctx context.Context) View {
	v := View{Host: i.store.Host()}

	cookies, err := i.store.Cookies(ctx)
	if err != nil {
		i.logger.Warn("failed to read cookies", zap.Error(err))
	}
	v.Cookies = strings.Join(strings.Split(cookies, "; "), "\n")
	if v.Cookies == "" {
		v.Cookies = "No cookies found."
	}

	v.LocalStorage = i.storageText(ctx, Local)
	v.SessionStorage = i.storageText(ctx, Session)

	names, err := i.store.IndexedDBNames(ctx)
	switch {
	case err != nil:
		v.IndexedDB = "Error accessing IndexedDB names: " + err.Error()
	case len(names) == 0:
		v.IndexedDB = "No IndexedDB databases found."
	default:
		v.IndexedDB = strings.Join(names, "\n")
	}

	caches, err := i.store.CacheNames(ctx)
	switch {
	case errors.Is(err, ErrUnsupported):
		v.CacheStorage = "Cache Storage API not available."
	case err != nil:
		v.CacheStorage = "Error accessing Cache Storage names: " + err.Error()
	case len(caches) == 0:
		v.CacheStorage = "No Cache Storage entries found."
	default:
		v.CacheStorage = strings.Join(caches, "\n")
	}
	return v
}

func (i *Inspector) storageText(ctx context.Context, area Area) string {
	items, err := i.store.Items(ctx, area)
	if err != nil {
		return "Error accessing " + string(area) + ": " + err.Error()
	}
	if len(items) == 0 {
		return "No " + string(area) + " data."
	}
	return renderItems(items)
}

// renderItems writes items as a two-space indented JSON object in
// insertion order. A repeated key keeps its first position and last value.
func renderItems(items []Item) string {
	var keys []string
	values := make(map[string]string, len(items))
	for _, it := range items {
		if _, ok := values[it.Key]; !ok {
			keys = append(keys, it.Key)
		}
		values[it.Key] = it.Value
	}

	var b strings.Builder
	b.WriteString("{\n")
	for n, k := range keys {
		key, _ := sonic.MarshalString(k)
		val, _ := sonic.MarshalString(values[k])
		b.WriteString("  ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(val)
		if n < len(keys)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}")
	return b.String()
}

// HasAnyData reports whether cookies, localStorage or sessionStorage hold
// anything. Access errors count as empty.
func (i *Inspector) HasAnyData(ctx context.Context) bool {
	if c, err := i.store.Cookies(ctx); err == nil && c != "" {
		return true
	}
	for _, area := range []Area{Local, Session} {
		if items, err := i.store.Items(ctx, area); err == nil && len(items) > 0 {
			return true
		}
	}
	return false
}

// Clear expires every visible cookie and empties both storage areas.
// IndexedDB and Cache Storage are left alone.
func (i *Inspector) Clear(ctx context.Context, reload bool) ClearResult {
	host := i.store.Host()
	res := ClearResult{Host: host, Cookies: []string{}}
	i.logger.Info("clearing site data", zap.String("host", host))

	cookies, err := i.store.Cookies(ctx)
	if err != nil {
		i.logger.Error("failed to read cookies", zap.Error(err))
		res.Errors = append(res.Errors, "cookies: "+err.Error())
	}
	for _, name := range CookieNames(cookies) {
		for _, d := range CookieExpiryDirectives(name, host) {
			if err := i.store.SetCookie(ctx, d); err != nil {
				i.logger.Error("failed to expire cookie", zap.String("cookie", name), zap.Error(err))
			}
		}
		res.Cookies = append(res.Cookies, name)
	}

	for _, area := range []Area{Local, Session} {
		if err := i.store.ClearItems(ctx, area); err != nil {
			i.logger.Error("failed to clear storage", zap.String("area", string(area)), zap.Error(err))
			res.Errors = append(res.Errors, string(area)+": "+err.Error())
			continue
		}
		i.logger.Info("storage cleared", zap.String("area", string(area)))
	}

	res.Message = "Accessible client-side data (cookies, localStorage, sessionStorage) for " + host + " cleared!"
	if reload {
		if err := i.store.Reload(ctx); err != nil {
			i.logger.Error("failed to reload page", zap.Error(err))
			res.Errors = append(res.Errors, "reload: "+err.Error())
		} else {
			res.Reloaded = true
		}
	}
	return res
}

// CookieNames splits a document.cookie string into cookie names.
func CookieNames(cookies string) []string {
	var names []string
	for _, c := range strings.Split(cookies, "; ") {
		name, _, _ := strings.Cut(c, "=")
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// CookieExpiryDirectives returns the assignments that expire name for the
// root path, for host, and for every dot-prefixed parent domain with at
// least two labels.
func CookieExpiryDirectives(name, host string) []string {
	out := []string{
		name + expiredCookie,
		name + expiredCookie + ";domain=" + host,
	}
	parts := strings.Split(host, ".")
	for len(parts) > 1 {
		out = append(out, name+expiredCookie+";domain=."+strings.Join(parts, "."))
		parts = parts[1:]
	}
	return out
}
