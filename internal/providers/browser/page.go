package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
)

// Page is one open page in its own browser context. It implements
// io.Closer so a session can release it.
type Page struct {
	launcher *Launcher
	bctx     playwright.BrowserContext
	page     playwright.Page
	logger   *zap.Logger

	requests *RequestLog
	observer *Observer

	closeOnce sync.Once
	closeErr  error
	mu        sync.RWMutex
	closed    bool
}

func newPage(l *Launcher, bctx playwright.BrowserContext, pg playwright.Page) *Page {
	p := &Page{
		launcher: l,
		bctx:     bctx,
		page:     pg,
		logger:   l.logger,
		requests: NewRequestLog(l.cfg.RequestLogSize),
	}
	p.observer = newObserver(p)
	return p
}

// install registers event handlers and the observer bridge. It runs before
// navigation so the first document already carries the bridge.
func (p *Page) install() error {
	p.page.OnRequest(func(r playwright.Request) {
		p.requests.Add(r.URL(), r.Method())
	})
	p.page.OnDialog(func(d playwright.Dialog) {
		p.logger.Debug("dismissed dialog", zap.String("type", d.Type()), zap.String("message", d.Message()))
		_ = d.Dismiss()
	})
	p.page.OnClose(func(playwright.Page) {
		p.markClosed()
	})
	if err := p.page.ExposeFunction(bindingName, p.observer.dispatch); err != nil {
		return fmt.Errorf("expose observer binding: %w", err)
	}
	script := observerBridge
	if err := p.page.AddInitScript(playwright.Script{Content: &script}); err != nil {
		return fmt.Errorf("install observer bridge: %w", err)
	}
	return nil
}

func (p *Page) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// evaluate runs a script in the page unless the page has been closed.
func (p *Page) evaluate(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	return p.page.Evaluate(script, args...)
}

// URL is the current page URL.
func (p *Page) URL() string { return p.page.URL() }

// Host is the hostname of the current page URL.
func (p *Page) Host() string {
	u, err := url.Parse(p.page.URL())
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// UserAgent returns navigator.userAgent.
func (p *Page) UserAgent(ctx context.Context) string {
	v, err := p.evaluate(ctx, `() => navigator.userAgent`)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Viewport returns the page viewport size.
func (p *Page) Viewport() (width, height int) {
	if s := p.page.ViewportSize(); s != nil {
		return s.Width, s.Height
	}
	return 0, 0
}

// Document snapshots the rendered DOM.
func (p *Page) Document(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := p.page.Content()
	if err != nil {
		return nil, fmt.Errorf("page content: %w", err)
	}
	return dom.Parse(content, p.page.URL())
}

// Layout returns the live layout of the page.
func (p *Page) Layout() *Layout { return &Layout{page: p} }

// Store returns the page's site data.
func (p *Page) Store() *Store { return &Store{page: p} }

// Requests returns the requests observed since the page opened.
func (p *Page) Requests() *RequestLog { return p.requests }

// Observer returns the change observer for captured elements.
func (p *Page) Observer() *Observer { return p.observer }

// Close closes the page and its browser context.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		p.markClosed()
		p.observer.cancelAll()
		if err := p.bctx.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			p.closeErr = fmt.Errorf("close page: %w", err)
		}
		p.launcher.release(p)
	})
	return p.closeErr
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	}
	return 0
}

func toStrings(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
