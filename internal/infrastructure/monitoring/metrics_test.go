package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsAreIsolated(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordCapture("html")

	assert.Contains(t, scrape(t, a), `pagelens_captures_total{source="html"} 1`)
	assert.NotContains(t, scrape(t, b), `pagelens_captures_total{source="html"}`)
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordFinding("storage", "danger")
	m.RecordFinding("storage", "danger")
	m.RecordExport("yaml", "zstd")
	m.RecordPentestRun("completed")
	m.RecordSitedataClear("partial")
	m.RecordClipboardCopy("")
	m.RecordWSEvent("dropped")
	m.SetSessionsActive(3)

	body := scrape(t, m)
	assert.Contains(t, body, `pagelens_pentest_findings_total{check="storage",type="danger"} 2`)
	assert.Contains(t, body, `pagelens_exports_total{compression="zstd",format="yaml"} 1`)
	assert.Contains(t, body, `pagelens_pentest_runs_total{outcome="completed"} 1`)
	assert.Contains(t, body, `pagelens_sitedata_clears_total{outcome="partial"} 1`)
	assert.Contains(t, body, `pagelens_clipboard_copies_total{writer="none"} 1`)
	assert.Contains(t, body, `pagelens_ws_events_total{result="dropped"} 1`)
	assert.Contains(t, body, `pagelens_sessions_active 3`)
	assert.Contains(t, body, `pagelens_uptime_seconds`)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalFindings)
	assert.Equal(t, int64(3), snap.ActiveSessions)
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/sessions/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, path := range []string{"/sessions/a", "/sessions/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `pagelens_http_requests_total{method="GET",path="/sessions/:id",status="200"} 2`)
	assert.Contains(t, body, `pagelens_http_requests_total{method="GET",path="unmatched",status="404"} 1`)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
}

func TestTimer(t *testing.T) {
	m := NewMetrics()
	d := NewTimer(m, "pentest").Stop("ok")
	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.Contains(t, scrape(t, m), `pagelens_operation_duration_seconds_count{operation="pentest",status="ok"} 1`)

	assert.NotPanics(t, func() { NewTimer(nil, "x").Stop("ok") })
}
