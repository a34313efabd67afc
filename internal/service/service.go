package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/domain/export"
	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
	"github.com/GriffinCanCode/pagelens/internal/domain/pentest"
	"github.com/GriffinCanCode/pagelens/internal/domain/selector"
	"github.com/GriffinCanCode/pagelens/internal/domain/session"
	"github.com/GriffinCanCode/pagelens/internal/domain/sitedata"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/pagelens/internal/providers/clipboard"
)

// ErrNodeNotFound is returned when a capture reference matches no element.
var ErrNodeNotFound = errors.New("no element matches the reference")

// Config tunes the service.
type Config struct {
	MaxSessions int
	Pentest     pentest.Options
}

// Service coordinates pages, sessions and tools.
type Service struct {
	loader   *Loader
	sessions *session.Manager
	copier   *clipboard.Copier
	runner   *pentest.Runner
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	tracer   *tracing.Tracer
	now      func() time.Time

	// pages holds the page behind each session, keyed by session id.
	pages sync.Map
}

// New creates a service. A nil copier copies nowhere and a nil metrics
// collector gets a private one.
func New(cfg Config, loader *Loader, copier *clipboard.Copier, metrics *monitoring.Metrics, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	if copier == nil {
		copier = clipboard.NewCopier(nil, nil, nil, logger.Named("clipboard"))
	}

	opts := cfg.Pentest
	if opts.Logger == nil {
		opts.Logger = logger.Named("pentest")
	}
	onFinding := opts.OnFinding
	opts.OnFinding = func(f pentest.Finding) {
		metrics.RecordFinding(f.Check, string(f.Type))
		if onFinding != nil {
			onFinding(f)
		}
	}
	runner, err := pentest.NewRunner(opts)
	if err != nil {
		return nil, fmt.Errorf("create pentest runner: %w", err)
	}

	sessions := session.NewManager(logger.Named("session"), cfg.MaxSessions).
		WithGauge(metrics.SetSessionsActive)

	return &Service{
		loader:   loader,
		sessions: sessions,
		copier:   copier,
		runner:   runner,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// WithClock replaces the time source used for export metadata.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithTracer records load and tool spans with t.
func (s *Service) WithTracer(t *tracing.Tracer) *Service {
	s.tracer = t
	return s
}

// span opens a tracing span when a tracer is set.
func (s *Service) span(ctx context.Context, name string) (context.Context, func(error)) {
	if s.tracer == nil {
		return ctx, func(error) {}
	}
	sp, ctx := s.tracer.StartSpan(ctx, name)
	return ctx, func(err error) { s.tracer.End(sp, err) }
}

// Metrics returns the metrics collector.
func (s *Service) Metrics() *monitoring.Metrics { return s.metrics }

// LiveEnabled reports whether live sources are available.
func (s *Service) LiveEnabled() bool { return s.loader.LiveEnabled() }

// CreateSession loads a page and opens a stopped capture session on it.
func (s *Service) CreateSession(ctx context.Context, req SourceRequest) (*session.Session, error) {
	ctx, end := s.span(ctx, "load")
	page, err := s.loader.Load(ctx, req)
	end(err)
	if err != nil {
		return nil, err
	}

	agg := inspector.NewAggregator(page.Document).
		WithLayout(page.Layout).
		WithLogger(s.logger.Named("inspector"))
	sess, err := s.sessions.Create(agg, session.Options{
		Source:   page.Source,
		Observer: page.Observer,
		Closer:   page.Closer,
	})
	if err != nil {
		_ = page.Close()
		return nil, err
	}
	s.pages.Store(sess.ID().String(), page)
	return sess, nil
}

// Session returns a session by id.
func (s *Service) Session(sid string) (*session.Session, error) {
	return s.sessions.Get(sid)
}

// Sessions lists open sessions.
func (s *Service) Sessions() []session.Summary {
	return s.sessions.List()
}

// DeleteSession closes a session and its page.
func (s *Service) DeleteSession(sid string) error {
	s.pages.Delete(sid)
	return s.sessions.Delete(sid)
}

// Capture resolves an XPath or CSS reference in the session document and
// captures the first element it matches.
func (s *Service) Capture(sid, xpath, css string) (session.Entry, error) {
	sess, err := s.sessions.Get(sid)
	if err != nil {
		return session.Entry{}, err
	}
	n, err := sess.Document().Find(xpath, css)
	if err != nil {
		if errors.Is(err, dom.ErrNoMatch) {
			return session.Entry{}, fmt.Errorf("%w: %v", ErrNodeNotFound, err)
		}
		return session.Entry{}, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	entry, err := sess.Capture(n)
	if err != nil {
		return session.Entry{}, err
	}
	s.metrics.RecordCapture(string(sess.Source().Kind))
	return entry, nil
}

// Diff compares a captured element with a fresh capture of the same node.
type Diff struct {
	Index     int                     `json:"index"`
	Changed   bool                    `json:"changed"`
	Changes   []inspector.FieldChange `json:"changes"`
	Markup    string                  `json:"markupPatch,omitempty"`
	Selectors selector.Report         `json:"selectors"`
}

// Diff recaptures entry index and reports what changed.
func (s *Service) Diff(sid string, index int) (Diff, error) {
	sess, err := s.sessions.Get(sid)
	if err != nil {
		return Diff{}, err
	}
	before, after, err := sess.Recapture(index)
	if err != nil {
		return Diff{}, err
	}
	changes := inspector.Compare(before, after)
	if changes == nil {
		changes = []inspector.FieldChange{}
	}
	return Diff{
		Index:     index,
		Changed:   len(changes) > 0,
		Changes:   changes,
		Markup:    inspector.DiffMarkup(before, after),
		Selectors: selector.Verify(sess.Document(), before.Selectors),
	}, nil
}

// ExportDocument builds the export of a session. With index set, only that
// element is exported.
func (s *Service) ExportDocument(sid string, index *int) (export.Document, error) {
	sess, err := s.sessions.Get(sid)
	if err != nil {
		return export.Document{}, err
	}

	src := sess.Source()
	meta := export.Meta{ExportTime: s.now(), URL: src.URL, UserAgent: src.UserAgent}
	if meta.URL == "" {
		meta.URL = sess.Document().Location()
	}
	if src.Viewport.Width > 0 || src.Viewport.Height > 0 {
		meta.Viewport = &export.Viewport{Width: src.Viewport.Width, Height: src.Viewport.Height}
	}

	if index == nil {
		return export.New(meta, sess.Descriptors()).WithObservations(sess.AllObservations()), nil
	}
	entry, err := sess.Entry(*index)
	if err != nil {
		return export.Document{}, err
	}
	single := export.Single(meta, entry.Descriptor)
	if obs := sess.Observations(*index); len(obs) > 0 {
		single = single.WithObservations(map[int][]inspector.Observation{0: obs})
	}
	return single, nil
}

// Rendered is an encoded export ready to send or write.
type Rendered struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Render encodes and optionally compresses doc.
func (s *Service) Render(doc export.Document, f export.Format, c export.Compression) (Rendered, error) {
	data, err := export.Encode(doc, f)
	if err != nil {
		return Rendered{}, err
	}
	contentType := f.ContentType()
	if c != export.None {
		if data, err = export.Compress(data, c); err != nil {
			return Rendered{}, err
		}
		contentType = "application/octet-stream"
	}
	compression := string(c)
	if compression == "" {
		compression = "none"
	}
	s.metrics.RecordExport(string(f), compression)
	return Rendered{Data: data, Filename: export.Filename(doc.Meta.ExportTime, f, c), ContentType: contentType}, nil
}

// CopyOptions selects what Copy puts on the clipboard.
type CopyOptions struct {
	Index *int
	// SelectorsOnly copies the selector set of the element at Index.
	SelectorsOnly bool
}

// Copy places the session export, one element or its selectors on the
// clipboard.
func (s *Service) Copy(ctx context.Context, sid string, opts CopyOptions) (clipboard.Result, error) {
	doc, err := s.ExportDocument(sid, opts.Index)
	if err != nil {
		return clipboard.Result{}, err
	}

	msgs := clipboard.ElementMessages
	var data []byte
	if opts.SelectorsOnly {
		if opts.Index == nil {
			return clipboard.Result{}, fmt.Errorf("%w: selectors copy needs an element index", ErrInvalidSource)
		}
		msgs = clipboard.SelectorMessages
		data, err = export.EncodeValue(doc.Elements[0].Selectors)
	} else {
		data, err = export.Encode(doc, export.JSON)
	}
	if err != nil {
		return clipboard.Result{}, err
	}

	res, err := s.copier.Copy(ctx, string(data), msgs)
	s.metrics.RecordClipboardCopy(res.Writer)
	return res, err
}

// Notifications returns the newest user notifications.
func (s *Service) Notifications(limit int) []clipboard.Notification {
	return s.copier.Notifier().History(limit)
}

// Target is the page a one-shot tool runs on: an open session's page or a
// source loaded for the call.
type Target struct {
	SessionID string        `json:"sessionId,omitempty"`
	Source    SourceRequest `json:"source"`
}

// open resolves t. The returned release closes pages loaded for the call
// and leaves session pages alone.
func (s *Service) open(ctx context.Context, t Target) (*Page, func(), error) {
	if t.SessionID != "" {
		if _, err := s.sessions.Get(t.SessionID); err != nil {
			return nil, nil, err
		}
		v, ok := s.pages.Load(t.SessionID)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, t.SessionID)
		}
		return v.(*Page), func() {}, nil
	}

	page, err := s.loader.Load(ctx, t.Source)
	if err != nil {
		return nil, nil, err
	}
	return page, func() {
		if err := page.Close(); err != nil {
			s.logger.Warn("failed to close page", zap.Error(err))
		}
	}, nil
}

// PentestResult is a finished checklist run.
type PentestResult struct {
	Report    *pentest.Report   `json:"report"`
	Text      string            `json:"text"`
	Copy      *clipboard.Result `json:"copy,omitempty"`
	CopyError string            `json:"copyError,omitempty"`
}

// Pentest runs the security checklist on t. With copyReport the text
// report is also copied; a failed copy does not fail the run.
func (s *Service) Pentest(ctx context.Context, t Target, copyReport bool) (*PentestResult, error) {
	page, release, err := s.open(ctx, t)
	if err != nil {
		return nil, err
	}
	defer release()

	timer := monitoring.NewTimer(s.metrics, "pentest")
	ctx, end := s.span(ctx, "pentest")
	report, err := s.runner.Run(ctx, pentest.Target{
		Document: page.Document,
		URL:      page.Source.URL,
		Store:    page.Store,
		Requests: page.Requests,
	})
	end(err)
	if err != nil {
		timer.Stop("cancelled")
		s.metrics.RecordPentestRun("cancelled")
		return &PentestResult{Report: report}, err
	}
	timer.Stop("ok")
	s.metrics.RecordPentestRun("completed")

	res := &PentestResult{Report: report, Text: report.Text(s.now())}
	if copyReport {
		cr, err := s.copier.Copy(ctx, res.Text, clipboard.ReportMessages)
		s.metrics.RecordClipboardCopy(cr.Writer)
		if err != nil {
			res.CopyError = err.Error()
		} else {
			res.Copy = &cr
		}
	}
	return res, nil
}

// SiteData is the site-data view of a page.
type SiteData struct {
	View    sitedata.View `json:"view"`
	HasData bool          `json:"hasData"`
}

// InspectSiteData reads the client-side data visible to t.
func (s *Service) InspectSiteData(ctx context.Context, t Target) (SiteData, error) {
	page, release, err := s.open(ctx, t)
	if err != nil {
		return SiteData{}, err
	}
	defer release()

	in := sitedata.NewInspector(page.Store, s.logger.Named("sitedata"))
	return SiteData{View: in.Inspect(ctx), HasData: in.HasAnyData(ctx)}, nil
}

// ClearSiteData clears cookies and web storage visible to t.
func (s *Service) ClearSiteData(ctx context.Context, t Target, reload bool) (sitedata.ClearResult, error) {
	page, release, err := s.open(ctx, t)
	if err != nil {
		return sitedata.ClearResult{}, err
	}
	defer release()

	timer := monitoring.NewTimer(s.metrics, "sitedata_clear")
	ctx, end := s.span(ctx, "sitedata_clear")
	res := sitedata.NewInspector(page.Store, s.logger.Named("sitedata")).Clear(ctx, reload)
	end(nil)
	outcome := "ok"
	if len(res.Errors) > 0 {
		outcome = "partial"
	}
	timer.Stop(outcome)
	s.metrics.RecordSitedataClear(outcome)
	return res, nil
}

// Close deletes every session.
func (s *Service) Close() {
	s.sessions.CloseAll()
	s.pages.Range(func(k, _ interface{}) bool {
		s.pages.Delete(k)
		return true
	})
}
