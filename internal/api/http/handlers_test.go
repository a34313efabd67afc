package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagelens/internal/domain/export"
	"github.com/GriffinCanCode/pagelens/internal/domain/pentest"
	"github.com/GriffinCanCode/pagelens/internal/domain/session"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/pagelens/internal/providers/clipboard"
	"github.com/GriffinCanCode/pagelens/internal/providers/fetch"
	"github.com/GriffinCanCode/pagelens/internal/service"
)

const page = `<html><head><title>Shop</title></head><body>
<form action="/login"><input type="password" name="pw"></form>
<button id="buy" aria-label="Buy now">Buy</button>
</body></html>`

type memWriter struct{ err error }

func (w *memWriter) Name() string { return "mem" }

func (w *memWriter) Write(context.Context, string) error { return w.err }

func setupRouter(t *testing.T, w clipboard.Writer) (*gin.Engine, *service.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fc := fetch.New(fetch.Config{Timeout: 5 * time.Second, RetryWaitMin: time.Millisecond}, nil)
	svc, err := service.New(service.Config{MaxSessions: 2, Pentest: pentest.Options{}},
		service.NewLoader(fc, nil), clipboard.NewCopier(w, nil, nil, nil), nil, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	router := gin.New()
	NewHandlers(svc, fc.BreakerStates, nil).Register(router.Group("/api"), nil)
	return router, svc
}

func do(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := do(router, http.MethodPost, "/api/sessions", gin.H{"html": page, "url": "https://shop.example.com/"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestHealthAndRoot(t *testing.T) {
	router, _ := setupRouter(t, &memWriter{})

	w := do(router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["live"])

	w = do(router, http.MethodGet, "/api/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pagelens", decode(t, w)["service"])
}

func TestCaptureFlow(t *testing.T) {
	router, _ := setupRouter(t, &memWriter{})
	sid := createSession(t, router)
	base := "/api/sessions/" + sid

	w := do(router, http.MethodPost, base+"/capture", gin.H{"css": "#buy"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodPost, base+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["capturing"])

	w = do(router, http.MethodPost, base+"/capture", gin.H{"css": "#buy"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(0), decode(t, w)["index"])

	w = do(router, http.MethodPost, base+"/capture", gin.H{"css": "#nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodPost, base+"/capture", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, base+"/elements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = do(router, http.MethodGet, base+"/elements/0/diff", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["changed"])

	w = do(router, http.MethodGet, base+"/elements/3/diff", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(router, http.MethodGet, base+"/elements/x/diff", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["elements"])

	w = do(router, http.MethodDelete, base+"/elements", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(router, http.MethodGet, base+"/elements", nil)
	assert.Equal(t, float64(0), decode(t, w)["count"])
}

func TestExport(t *testing.T) {
	router, _ := setupRouter(t, &memWriter{})
	sid := createSession(t, router)
	base := "/api/sessions/" + sid
	do(router, http.MethodPost, base+"/start", nil)
	do(router, http.MethodPost, base+"/capture", gin.H{"xpath": "//button"})

	w := do(router, http.MethodGet, base+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="element-bible-`)
	doc, err := export.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Meta.TotalElements)

	w = do(router, http.MethodGet, base+"/export?format=yaml&compress=gzip", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `.yaml.gz"`)
	plain, err := export.Decompress(w.Body.Bytes(), export.Gzip)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "accessibleName: Buy now")

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, base+"/export?format=xml", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, base+"/export?compress=rar", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, base+"/export?index=4", nil).Code)
}

func TestCopyFailureIsBadGateway(t *testing.T) {
	router, _ := setupRouter(t, &memWriter{err: errors.New("no display")})
	sid := createSession(t, router)

	w := do(router, http.MethodPost, "/api/sessions/"+sid+"/copy", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode(t, w)["error"], "all copy methods failed")

	w = do(router, http.MethodGet, "/api/notifications?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestSessionErrors(t *testing.T) {
	router, _ := setupRouter(t, &memWriter{})

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/sessions/sess_missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodDelete, "/api/sessions/sess_missing", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/api/sessions", gin.H{"path": "/etc/passwd"}).Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		do(router, http.MethodPost, "/api/sessions", gin.H{"kind": "live", "url": "https://example.com"}).Code)

	createSession(t, router)
	sid := createSession(t, router)
	w := do(router, http.MethodPost, "/api/sessions", gin.H{"html": page})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, float64(2), decode(t, w)["count"])
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodDelete, "/api/sessions/"+sid, nil).Code)
}

func TestPentestAndSiteData(t *testing.T) {
	router, _ := setupRouter(t, &memWriter{})
	sid := createSession(t, router)

	w := do(router, http.MethodPost, "/api/pentest", gin.H{"sessionId": sid})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Contains(t, body["text"], "Security Test Report")
	assert.Nil(t, body["copy"])

	w = do(router, http.MethodPost, "/api/sitedata/inspect",
		gin.H{"source": gin.H{"html": page, "url": "https://shop.example.com/"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["hasData"])

	w = do(router, http.MethodPost, "/api/sitedata/clear", gin.H{"sessionId": sid, "reload": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shop.example.com", decode(t, w)["host"])

	w = do(router, http.MethodPost, "/api/pentest", gin.H{"sessionId": "sess_missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsJSON(t *testing.T) {
	router, _ := setupRouter(t, &memWriter{})
	createSession(t, router)

	w := do(router, http.MethodGet, "/api/metrics/json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["metrics"].(map[string]interface{})["activeSessions"])
	assert.Empty(t, body["breakers"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrSessionNotFound, http.StatusNotFound},
		{session.ErrNotCapturing, http.StatusConflict},
		{export.ErrUnsupportedFormat, http.StatusBadRequest},
		{pentest.ErrOutOfScope, http.StatusForbidden},
		{resilience.ErrCircuitOpen, http.StatusServiceUnavailable},
		{clipboard.ErrCopyFailed, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
