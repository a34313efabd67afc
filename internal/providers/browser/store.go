package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/GriffinCanCode/pagelens/internal/domain/sitedata"
)

const itemsScript = `area => {
  try {
    const s = window[area];
    const out = [];
    for (let i = 0; i < s.length; i++) {
      const k = s.key(i);
      out.push([k, s.getItem(k)]);
    }
    return { items: out };
  } catch (e) {
    return { error: String(e && e.message || e) };
  }
}`

const clearScript = `area => {
  try { window[area].clear(); return null; } catch (e) { return String(e && e.message || e); }
}`

const indexedDBScript = `async () => {
  if (!window.indexedDB || typeof indexedDB.databases !== "function") return { names: [] };
  try {
    const dbs = await indexedDB.databases();
    return { names: dbs.map(d => d.name).filter(Boolean) };
  } catch (e) {
    return { error: String(e && e.message || e) };
  }
}`

const cacheScript = `async () => {
  if (!("caches" in window)) return { unsupported: true };
  try {
    return { names: await caches.keys() };
  } catch (e) {
    return { error: String(e && e.message || e) };
  }
}`

// Store implements sitedata.Store on the live page.
type Store struct {
	page *Page
}

var _ sitedata.Store = (*Store)(nil)

// Host implements sitedata.Store.
func (s *Store) Host() string { return s.page.Host() }

// Cookies implements sitedata.Store.
func (s *Store) Cookies(ctx context.Context) (string, error) {
	v, err := s.page.evaluate(ctx, `() => document.cookie`)
	if err != nil {
		return "", err
	}
	str, _ := v.(string)
	return str, nil
}

// SetCookie implements sitedata.Store.
func (s *Store) SetCookie(ctx context.Context, directive string) error {
	_, err := s.page.evaluate(ctx, `d => { document.cookie = d; }`, directive)
	return err
}

// Items implements sitedata.Store.
func (s *Store) Items(ctx context.Context, area sitedata.Area) ([]sitedata.Item, error) {
	v, err := s.page.evaluate(ctx, itemsScript, string(area))
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]interface{})
	if msg, ok := m["error"].(string); ok {
		return nil, errors.New(msg)
	}
	pairs, _ := m["items"].([]interface{})
	items := make([]sitedata.Item, 0, len(pairs))
	for _, raw := range pairs {
		pair, ok := raw.([]interface{})
		if !ok || len(pair) != 2 {
			continue
		}
		key, _ := pair[0].(string)
		value, _ := pair[1].(string)
		items = append(items, sitedata.Item{Key: key, Value: value})
	}
	return items, nil
}

// ClearItems implements sitedata.Store.
func (s *Store) ClearItems(ctx context.Context, area sitedata.Area) error {
	v, err := s.page.evaluate(ctx, clearScript, string(area))
	if err != nil {
		return err
	}
	if msg, ok := v.(string); ok {
		return errors.New(msg)
	}
	return nil
}

// IndexedDBNames implements sitedata.Store.
func (s *Store) IndexedDBNames(ctx context.Context) ([]string, error) {
	return s.names(ctx, indexedDBScript)
}

// CacheNames implements sitedata.Store.
func (s *Store) CacheNames(ctx context.Context) ([]string, error) {
	return s.names(ctx, cacheScript)
}

func (s *Store) names(ctx context.Context, script string) ([]string, error) {
	v, err := s.page.evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]interface{})
	if unsupported, _ := m["unsupported"].(bool); unsupported {
		return nil, sitedata.ErrUnsupported
	}
	if msg, ok := m["error"].(string); ok {
		return nil, errors.New(msg)
	}
	return toStrings(m["names"]), nil
}

// Reload implements sitedata.Store.
func (s *Store) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}
