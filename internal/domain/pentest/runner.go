package pentest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/domain/sitedata"
	"github.com/GriffinCanCode/pagelens/internal/shared/id"
)

// DefaultStagger is the pause between checks.
const DefaultStagger = 100 * time.Millisecond

// Target is the page under test. Store and Requests are optional; a
// missing store is treated as empty.
type Target struct {
	Document *dom.Document
	URL      string
	Store    sitedata.Store
	Requests RequestLog
}

// Options configures a Runner.
type Options struct {
	Prober  HeaderProber
	Scope   Scope
	Stagger time.Duration
	Matcher *PatternMatcher
	Logger  *zap.Logger
	// OnFinding is called for each finding as it is recorded.
	OnFinding func(Finding)
}

// Runner executes the checklist in a fixed order.
type Runner struct {
	opts Options
	now  func() time.Time
}

// NewRunner creates a runner. A missing matcher is created with defaults.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Stagger < 0 {
		opts.Stagger = 0
	}
	if opts.Matcher == nil {
		m, err := NewPatternMatcher(0)
		if err != nil {
			return nil, err
		}
		opts.Matcher = m
	}
	return &Runner{opts: opts, now: time.Now}, nil
}

// WithClock replaces the time source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Scope returns the authorized scope.
func (r *Runner) Scope() Scope { return r.opts.Scope }

// Run executes every check. On cancellation it returns the findings
// gathered so far with the context error.
func (r *Runner) Run(ctx context.Context, t Target) (*Report, error) {
	if t.Document == nil {
		return nil, errors.New("pentest target has no document")
	}
	if t.URL == "" {
		t.URL = t.Document.Location()
	}
	if t.Store == nil {
		host := ""
		if u := t.Document.URL(); u != nil {
			host = u.Hostname()
		}
		t.Store = sitedata.NewMemoryStore(host)
	}

	report := &Report{ID: id.NewReportID().String(), URL: t.URL, StartedAt: r.now(), Findings: []Finding{}}
	var mu sync.Mutex
	emitter := func(check string) func(FindingType, string) {
		return func(typ FindingType, msg string) {
			f := Finding{Check: check, Type: typ, Message: msg, Timestamp: r.now()}
			mu.Lock()
			report.Findings = append(report.Findings, f)
			mu.Unlock()
			r.opts.Logger.Debug("pentest finding",
				zap.String("report", report.ID),
				zap.String("check", check),
				zap.String("type", string(typ)),
				zap.String("message", msg))
			if r.opts.OnFinding != nil {
				r.opts.OnFinding(f)
			}
		}
	}

	r.opts.Logger.Info("starting security analysis", zap.String("url", t.URL), zap.String("report", report.ID))
	emitter(CheckRun)(Info, fmt.Sprintf("Starting security analysis on %s", t.URL))

	steps := []struct {
		check string
		run   func(emit func(FindingType, string))
	}{
		{CheckCSRF, func(emit func(FindingType, string)) { checkCSRF(t.Document, emit) }},
		{CheckXSS, func(emit func(FindingType, string)) { checkXSS(ctx, t.Document, r.opts.Matcher, emit) }},
		{CheckStorage, func(emit func(FindingType, string)) { checkStorage(ctx, t.Store, emit) }},
		{CheckNetwork, func(emit func(FindingType, string)) {
			checkNetwork(ctx, t.URL, t.Requests, r.opts.Prober, r.opts.Scope, emit)
		}},
	}
	for _, step := range steps {
		if err := r.pause(ctx); err != nil {
			report.FinishedAt = r.now()
			return report, err
		}
		step.run(emitter(step.check))
	}

	if err := r.pause(ctx); err != nil {
		report.FinishedAt = r.now()
		return report, err
	}
	emitter(CheckRun)(Success, "Security analysis completed.")
	report.FinishedAt = r.now()

	counts := report.Counts()
	r.opts.Logger.Info("security analysis completed",
		zap.String("report", report.ID),
		zap.Int("findings", len(report.Findings)),
		zap.Int("danger", counts[Danger]),
		zap.Int("warning", counts[Warning]))
	return report, nil
}

func (r *Runner) pause(ctx context.Context) error {
	if r.opts.Stagger == 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.opts.Stagger):
		return nil
	}
}
