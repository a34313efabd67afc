package server

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagelens/internal/domain/pentest"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/config"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/pagelens/internal/providers/browser"
	"github.com/GriffinCanCode/pagelens/internal/providers/clipboard"
	"github.com/GriffinCanCode/pagelens/internal/providers/fetch"
	"github.com/GriffinCanCode/pagelens/internal/service"
)

// notificationHistory is how many notifications are kept for the API.
const notificationHistory = 50

// Stack is the wired service with the providers behind it. The server and
// the CLI share it.
type Stack struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	Tracer  *tracing.Tracer
	Fetch   *fetch.Client
	Browser *browser.Launcher
	Service *service.Service
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg config.LogConfig) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if cfg.Development {
		lc = logging.DevelopmentConfig()
	}
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	return logging.New(lc)
}

// NewStack wires the providers and the service. The browser is optional:
// when it cannot start, live sources are reported as unavailable.
func NewStack(cfg *config.Config, logger *logging.Logger) (*Stack, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("pagelens", logger.Component("trace"))

	fc := fetch.New(fetch.Config{
		Timeout:   cfg.Fetch.Timeout,
		Retries:   cfg.Fetch.Retries,
		UserAgent: cfg.Fetch.UserAgent,
		RateLimit: cfg.Fetch.RateLimit,
	}, logger.Component("fetch"))

	var launcher *browser.Launcher
	if cfg.Browser.Enabled {
		bc := browser.DefaultConfig()
		bc.Headless = cfg.Browser.Headless
		bc.NavigationTimeout = cfg.Browser.Timeout
		bc.ViewportWidth = cfg.Browser.ViewportWidth
		bc.ViewportHeight = cfg.Browser.ViewportHeight
		bc.UserAgent = cfg.Browser.UserAgent
		bc.IgnoreHTTPSErrors = cfg.Browser.IgnoreHTTPSErrors

		l, err := browser.Launch(bc, logger.Component("browser"))
		if err != nil {
			logger.Warn("browser unavailable, live sources disabled", zap.Error(err))
		} else {
			launcher = l
		}
	}

	scope, err := pentest.NewScope(cfg.Pentest.AllowedHosts...)
	if err != nil {
		tracer.Close()
		closeLauncher(launcher)
		return nil, fmt.Errorf("invalid pentest scope: %w", err)
	}

	svc, err := service.New(service.Config{
		MaxSessions: cfg.Session.Max,
		Pentest: pentest.Options{
			Prober:  fc,
			Scope:   scope,
			Stagger: cfg.Pentest.Stagger,
		},
	}, service.NewLoader(fc, launcher), newCopier(cfg.Export, logger), metrics, logger.Component("service"))
	if err != nil {
		tracer.Close()
		closeLauncher(launcher)
		return nil, err
	}
	svc.WithTracer(tracer)

	return &Stack{
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
		Fetch:   fc,
		Browser: launcher,
		Service: svc,
	}, nil
}

// newCopier uses the system clipboard command when one exists and drop
// files otherwise.
func newCopier(cfg config.ExportConfig, logger *logging.Logger) *clipboard.Copier {
	log := logger.Component("clipboard")
	var primary clipboard.Writer
	if w, err := clipboard.NewCommandWriter(); err == nil {
		primary = w
	} else {
		log.Info("no clipboard command, copies go to files", zap.String("dir", cfg.ClipboardDir))
	}
	var fallback clipboard.Writer
	if cfg.ClipboardDir != "" {
		fallback = clipboard.NewFileWriter(cfg.ClipboardDir)
	}
	return clipboard.NewCopier(primary, fallback, clipboard.NewNotifier(log, notificationHistory), log)
}

func closeLauncher(l *browser.Launcher) {
	if l != nil {
		_ = l.Close()
	}
}

// Close releases sessions, the browser and the tracer.
func (s *Stack) Close() error {
	s.Service.Close()
	var errs []error
	if s.Browser != nil {
		if err := s.Browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	s.Tracer.Close()
	return errors.Join(errs...)
}
