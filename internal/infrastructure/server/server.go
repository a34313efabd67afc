package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/pagelens/internal/api/http"
	"github.com/GriffinCanCode/pagelens/internal/api/middleware"
	"github.com/GriffinCanCode/pagelens/internal/api/ws"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/config"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/tracing"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router *gin.Engine
	stack  *Stack
	logger *logging.Logger
	config *config.Config
	http   *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Info("initializing pagelens server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("browser", cfg.Browser.Enabled),
		zap.Int("session_max", cfg.Session.Max),
	)

	stack, err := NewStack(cfg, logger)
	if err != nil {
		return nil, err
	}
	return newServer(cfg, stack), nil
}

func newServer(cfg *config.Config, stack *Stack) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	logger := stack.Logger

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(stack.Tracer))
	router.Use(middleware.Logger(logger.Component("http")))
	router.Use(monitoring.Middleware(stack.Metrics))

	cors := middleware.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.AllowedOrigins
	}
	cors.ExposeHeaders = append(cors.ExposeHeaders, tracing.TraceHeader, tracing.SpanHeader)
	router.Use(middleware.CORS(cors))

	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := api.NewHandlers(stack.Service, stack.Fetch.BreakerStates, logger.Component("api"))
	feed := ws.NewHandler(stack.Service, logger.Component("ws"), nil)

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(stack.Metrics.Handler()))
	handlers.Register(router.Group("/api"), feed.HandleConnection)

	logger.Info("server initialized", zap.Bool("live", stack.Service.LiveEnabled()))
	return &Server{
		router: router,
		stack:  stack,
		logger: logger,
		config: cfg,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return <-errCh
}

// Close releases sessions and the browser.
func (s *Server) Close() error {
	err := s.stack.Close()
	if err != nil {
		s.logger.Error("failed to close server", zap.Error(err))
	}
	_ = s.logger.Sync()
	return err
}
