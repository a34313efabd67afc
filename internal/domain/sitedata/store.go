// Package sitedata inspects and clears the client-side data a page can reach:
// cookies, local and session storage, IndexedDB names and Cache Storage names.
package sitedata

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrUnsupported is returned by a Store that has no such storage API.
var ErrUnsupported = errors.New("storage api not available")

// Area is a Web Storage area.
type Area string

const (
	Local   Area = "localStorage"
	Session Area = "sessionStorage"
)

// Item is a storage key/value pair.
type Item struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Store is the page-side view of site data. Implementations exist for a
// live browser page and for memory.
type Store interface {
	// Host is the page hostname the data belongs to.
	Host() string
	// Cookies returns the document.cookie string ("a=1; b=2").
	Cookies(ctx context.Context) (string, error)
	// SetCookie applies a document.cookie assignment.
	SetCookie(ctx context.Context, directive string) error
	Items(ctx context.Context, area Area) ([]Item, error)
	ClearItems(ctx context.Context, area Area) error
	IndexedDBNames(ctx context.Context) ([]string, error)
	// CacheNames returns ErrUnsupported when Cache Storage is absent.
	CacheNames(ctx context.Context) ([]string, error)
	Reload(ctx context.Context) error
}

// MemoryStore is a Store held in memory. It backs static sources and tests.
type MemoryStore struct {
	mu       sync.Mutex
	host     string
	cookies  []Item
	areas    map[Area][]Item
	failures map[Area]error
	dbs      []string
	caches   []string
	reloads  int
	now      func() time.Time
}

// NewMemoryStore returns an empty store for host. Cache Storage is
// unsupported until SetCaches is called.
func NewMemoryStore(host string) *MemoryStore {
	return &MemoryStore{
		host:     host,
		areas:    make(map[Area][]Item),
		failures: make(map[Area]error),
		now:      time.Now,
	}
}

func (m *MemoryStore) Host() string { return m.host }

func (m *MemoryStore) Cookies(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := make([]string, 0, len(m.cookies))
	for _, c := range m.cookies {
		parts = append(parts, c.Key+"="+c.Value)
	}
	return strings.Join(parts, "; "), nil
}

// SetCookie understands name=value with the expires, max-age and domain
// attributes. A domain that does not cover the host is ignored, as a
// browser would.
func (m *MemoryStore) SetCookie(ctx context.Context, directive string) error {
	fields := strings.Split(directive, ";")
	name, value, _ := strings.Cut(fields[0], "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	expired := false
	for _, f := range fields[1:] {
		k, v, _ := strings.Cut(strings.TrimSpace(f), "=")
		switch strings.ToLower(k) {
		case "expires":
			if t, err := time.Parse(time.RFC1123, v); err == nil && t.Before(m.now()) {
				expired = true
			}
		case "max-age":
			if n, err := strconv.Atoi(v); err == nil && n <= 0 {
				expired = true
			}
		case "domain":
			if !domainMatches(m.host, v) {
				return nil
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, c := range m.cookies {
		if c.Key == name {
			idx = i
			break
		}
	}
	switch {
	case expired && idx >= 0:
		m.cookies = append(m.cookies[:idx], m.cookies[idx+1:]...)
	case expired:
	case idx >= 0:
		m.cookies[idx].Value = value
	default:
		m.cookies = append(m.cookies, Item{Key: name, Value: value})
	}
	return nil
}

func domainMatches(host, domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func (m *MemoryStore) Items(ctx context.Context, area Area) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[area]; err != nil {
		return nil, err
	}
	return append([]Item(nil), m.areas[area]...), nil
}

func (m *MemoryStore) ClearItems(ctx context.Context, area Area) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[area]; err != nil {
		return err
	}
	delete(m.areas, area)
	return nil
}

func (m *MemoryStore) IndexedDBNames(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dbs...), nil
}

func (m *MemoryStore) CacheNames(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.caches == nil {
		return nil, ErrUnsupported
	}
	return append([]string(nil), m.caches...), nil
}

func (m *MemoryStore) Reload(ctx context.Context) error {
	m.mu.Lock()
	m.reloads++
	m.mu.Unlock()
	return nil
}

// SetItem sets key in area, keeping the original position of an existing key.
func (m *MemoryStore) SetItem(area Area, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.areas[area] {
		if it.Key == key {
			m.areas[area][i].Value = value
			return
		}
	}
	m.areas[area] = append(m.areas[area], Item{Key: key, Value: value})
}

// AddDatabase records an IndexedDB database name.
func (m *MemoryStore) AddDatabase(name string) {
	m.mu.Lock()
	m.dbs = append(m.dbs, name)
	m.mu.Unlock()
}

// SetCaches enables Cache Storage with the given names.
func (m *MemoryStore) SetCaches(names ...string) {
	m.mu.Lock()
	m.caches = append([]string{}, names...)
	m.mu.Unlock()
}

// Fail makes every access to area return err. A nil err clears it.
func (m *MemoryStore) Fail(area Area, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, area)
		return
	}
	m.failures[area] = err
}

// Reloads reports how many times Reload was called.
func (m *MemoryStore) Reloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}
