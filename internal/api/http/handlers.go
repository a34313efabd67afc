package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagelens/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/pagelens/internal/service"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Handlers contains HTTP request handlers
type Handlers struct {
	svc     *service.Service
	logger  *zap.Logger
	metrics *monitoring.Metrics
	breaker func() map[string]resilience.State
	started time.Time
}

// NewHandlers creates a new handlers instance. breakers may be nil.
func NewHandlers(svc *service.Service, breakers func() map[string]resilience.State, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		svc:     svc,
		logger:  logger,
		metrics: svc.Metrics(),
		breaker: breakers,
		started: time.Now(),
	}
}

// Root handles the root endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "pagelens",
		"version": Version,
		"tools":   []string{"inspector", "sitedata", "pentest"},
	})
}

// Health handles health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"version":  Version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"sessions": len(h.svc.Sessions()),
		"live":     h.svc.LiveEnabled(),
	})
}

// MetricsJSON returns the metrics snapshot and fetch circuit states.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	breakers := map[string]string{}
	if h.breaker != nil {
		for host, state := range h.breaker() {
			breakers[host] = state.String()
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"metrics":  h.metrics.Snapshot(),
		"breakers": breakers,
	})
}

// Register mounts the API routes on g.
func (h *Handlers) Register(g gin.IRouter, feed gin.HandlerFunc) {
	g.GET("/", h.Root)
	g.GET("/health", h.Health)
	g.GET("/metrics/json", h.MetricsJSON)

	sessions := g.Group("/sessions")
	sessions.POST("", h.CreateSession)
	sessions.GET("", h.ListSessions)
	sessions.GET("/:id", h.GetSession)
	sessions.DELETE("/:id", h.DeleteSession)
	sessions.POST("/:id/start", h.StartCapture)
	sessions.POST("/:id/stop", h.StopCapture)
	sessions.POST("/:id/toggle", h.ToggleCapture)
	sessions.POST("/:id/capture", h.Capture)
	sessions.GET("/:id/elements", h.ListElements)
	sessions.DELETE("/:id/elements", h.ClearElements)
	sessions.GET("/:id/elements/:index/diff", h.DiffElement)
	sessions.GET("/:id/export", h.Export)
	sessions.POST("/:id/copy", h.Copy)
	if feed != nil {
		sessions.GET("/:id/ws", feed)
	}

	g.POST("/pentest", h.Pentest)
	g.POST("/sitedata/inspect", h.InspectSiteData)
	g.POST("/sitedata/clear", h.ClearSiteData)
	g.GET("/notifications", h.Notifications)
}
