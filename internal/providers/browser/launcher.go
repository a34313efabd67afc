package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

var (
	ErrClosed     = errors.New("browser is closed")
	ErrInvalidURL = errors.New("invalid page url")
)

// Config tunes the launched browser and the pages it opens.
type Config struct {
	Headless bool
	// NavigationTimeout bounds page loads and script evaluation.
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
	UserAgent         string
	IgnoreHTTPSErrors bool
	Args              []string
	// RequestLogSize caps the requests kept per page.
	RequestLogSize int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		ViewportWidth:     1280,
		ViewportHeight:    800,
		Args: []string{
			"--disable-gpu",
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-extensions",
			"--mute-audio",
			"--no-first-run",
		},
		RequestLogSize: 500,
	}
}

// Launcher owns the playwright driver and a Chromium instance.
type Launcher struct {
	cfg     Config
	logger  *zap.Logger
	pw      *playwright.Playwright
	browser playwright.Browser

	mu     sync.Mutex
	closed bool
	pages  map[*Page]struct{}
}

// Launch starts the driver and the browser.
func Launch(cfg Config, logger *zap.Logger) (*Launcher, error) {
	def := DefaultConfig()
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = def.NavigationTimeout
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = def.ViewportWidth, def.ViewportHeight
	}
	if cfg.RequestLogSize <= 0 {
		cfg.RequestLogSize = def.RequestLogSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     cfg.Args,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	logger.Info("browser launched",
		zap.Bool("headless", cfg.Headless),
		zap.String("version", b.Version()))
	return &Launcher{
		cfg:     cfg,
		logger:  logger,
		pw:      pw,
		browser: b,
		pages:   make(map[*Page]struct{}),
	}, nil
}

// Open loads rawURL in a fresh browser context and waits for the network
// to go idle.
func (l *Launcher) Open(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.mu.Unlock()

	opts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(l.cfg.IgnoreHTTPSErrors),
		Viewport: &playwright.Size{
			Width:  l.cfg.ViewportWidth,
			Height: l.cfg.ViewportHeight,
		},
	}
	if l.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(l.cfg.UserAgent)
	}
	bctx, err := l.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	timeoutMs := float64(l.cfg.NavigationTimeout.Milliseconds())
	bctx.SetDefaultTimeout(timeoutMs)
	bctx.SetDefaultNavigationTimeout(timeoutMs)

	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}

	p := newPage(l, bctx, pg)
	if err := p.install(); err != nil {
		_ = bctx.Close()
		return nil, err
	}

	// playwright calls are not context aware; closing the browser context
	// aborts a navigation in flight.
	stop := context.AfterFunc(ctx, func() { _ = bctx.Close() })
	_, err = pg.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(timeoutMs),
	})
	if !stop() || ctx.Err() != nil {
		_ = bctx.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("navigate to %s: %w", rawURL, err)
	}

	l.mu.Lock()
	l.pages[p] = struct{}{}
	l.mu.Unlock()

	l.logger.Info("page opened", zap.String("url", pg.URL()))
	return p, nil
}

func (l *Launcher) release(p *Page) {
	l.mu.Lock()
	delete(l.pages, p)
	l.mu.Unlock()
}

// Close closes every open page, the browser and the driver.
func (l *Launcher) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	pages := make([]*Page, 0, len(l.pages))
	for p := range l.pages {
		pages = append(pages, p)
	}
	l.mu.Unlock()

	for _, p := range pages {
		_ = p.Close()
	}
	var errs []error
	if err := l.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := l.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	l.logger.Info("browser closed")
	return errors.Join(errs...)
}
