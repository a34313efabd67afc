package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
	"github.com/GriffinCanCode/pagelens/internal/domain/pentest"
	"github.com/GriffinCanCode/pagelens/internal/domain/session"
	"github.com/GriffinCanCode/pagelens/internal/domain/sitedata"
	"github.com/GriffinCanCode/pagelens/internal/providers/browser"
	"github.com/GriffinCanCode/pagelens/internal/providers/fetch"
	"github.com/GriffinCanCode/pagelens/internal/providers/filesystem"
)

var (
	ErrInvalidSource   = errors.New("invalid source")
	ErrLiveUnavailable = errors.New("live browser source is not enabled")
)

// SourceRequest names the page to load. Kind may be omitted: a path means
// a file, inline HTML means html, otherwise url.
type SourceRequest struct {
	Kind session.SourceKind `json:"kind,omitempty"`
	HTML string             `json:"html,omitempty"`
	URL  string             `json:"url,omitempty"`
	Path string             `json:"path,omitempty"`
}

func (r SourceRequest) kind() session.SourceKind {
	switch {
	case r.Kind != "":
		return r.Kind
	case r.Path != "", r.HTML != "":
		return session.SourceHTML
	default:
		return session.SourceURL
	}
}

// Page is a loaded page with the adapters the tools need.
type Page struct {
	Document *dom.Document
	Layout   inspector.Layout
	Store    sitedata.Store
	Requests pentest.RequestLog
	Observer session.Observer
	Source   session.Source
	Closer   io.Closer
}

// Close releases the page, if anything holds it open.
func (p *Page) Close() error {
	if p.Closer == nil {
		return nil
	}
	return p.Closer.Close()
}

// Loader turns source requests into pages. Either provider may be nil.
type Loader struct {
	fetch   *fetch.Client
	browser *browser.Launcher
}

// NewLoader creates a loader.
func NewLoader(fc *fetch.Client, b *browser.Launcher) *Loader {
	return &Loader{fetch: fc, browser: b}
}

// LiveEnabled reports whether live sources can be opened.
func (l *Loader) LiveEnabled() bool { return l.browser != nil }

// Load opens the page described by req.
func (l *Loader) Load(ctx context.Context, req SourceRequest) (*Page, error) {
	switch kind := req.kind(); kind {
	case session.SourceHTML:
		var (
			doc *dom.Document
			err error
		)
		if req.Path != "" {
			doc, err = filesystem.Load(req.Path)
		} else {
			doc, err = dom.Parse(req.HTML, req.URL)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
		return staticPage(doc, session.Source{Kind: session.SourceHTML, URL: doc.Location()}), nil

	case session.SourceURL:
		if strings.TrimSpace(req.URL) == "" {
			return nil, fmt.Errorf("%w: url required", ErrInvalidSource)
		}
		if l.fetch == nil {
			return nil, fmt.Errorf("%w: fetching is not configured", ErrInvalidSource)
		}
		doc, err := l.fetch.Document(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return staticPage(doc, session.Source{Kind: session.SourceURL, URL: doc.Location()}), nil

	case session.SourceLive:
		if l.browser == nil {
			return nil, ErrLiveUnavailable
		}
		return l.openLive(ctx, req.URL)

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, kind)
	}
}

func (l *Loader) openLive(ctx context.Context, rawURL string) (*Page, error) {
	bp, err := l.browser.Open(ctx, rawURL)
	if err != nil {
		if errors.Is(err, browser.ErrInvalidURL) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
		return nil, err
	}
	doc, err := bp.Document(ctx)
	if err != nil {
		_ = bp.Close()
		return nil, err
	}
	w, h := bp.Viewport()
	return &Page{
		Document: doc,
		Layout:   bp.Layout(),
		Store:    bp.Store(),
		Requests: bp.Requests(),
		Observer: bp.Observer(),
		Source: session.Source{
			Kind:      session.SourceLive,
			URL:       bp.URL(),
			UserAgent: bp.UserAgent(ctx),
			Viewport:  session.Viewport{Width: w, Height: h},
		},
		Closer: bp,
	}, nil
}

// staticPage wraps a parsed document with no layout engine. Its site data
// starts empty.
func staticPage(doc *dom.Document, src session.Source) *Page {
	host := ""
	if u := doc.URL(); u != nil {
		host = u.Hostname()
	}
	return &Page{
		Document: doc,
		Layout:   inspector.StaticLayout{},
		Store:    sitedata.NewMemoryStore(host),
		Observer: session.NopObserver{},
		Source:   src,
	}
}
