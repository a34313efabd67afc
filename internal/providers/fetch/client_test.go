package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagelens/internal/infrastructure/resilience"
)

func testConfig() Config {
	return Config{
		Timeout:         5 * time.Second,
		Retries:         0,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    time.Millisecond,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Frame-Options", "DENY")
		_, _ = w.Write([]byte(`<html><head><title>Fixture</title></head><body><a id="x" href="/next">next</a></body></html>`))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusFound)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.UserAgent()))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPage(t *testing.T) {
	srv := newServer(t)
	c := New(testConfig(), nil)

	page, err := c.FetchPage(context.Background(), srv.URL+"/moved")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Equal(t, srv.URL+"/page", page.URL)
	assert.Contains(t, page.ContentType, "text/html")
	assert.Contains(t, string(page.Body), "Fixture")
}

func TestDocumentResolvesAgainstFinalURL(t *testing.T) {
	srv := newServer(t)
	doc, err := New(testConfig(), nil).Document(context.Background(), srv.URL+"/moved")
	require.NoError(t, err)

	assert.Equal(t, "Fixture", doc.Title())
	assert.Equal(t, srv.URL+"/page", doc.Location())
	assert.Equal(t, srv.URL+"/next", doc.ResolveURL("/next"))
}

func TestFetchPageRejectsErrors(t *testing.T) {
	srv := newServer(t)
	c := New(testConfig(), nil)

	_, err := c.FetchPage(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = c.FetchPage(context.Background(), "ftp://example.com/")
	assert.ErrorContains(t, err, "invalid page url")
}

func TestUserAgent(t *testing.T) {
	srv := newServer(t)
	cfg := testConfig()
	cfg.UserAgent = "pagelens-test"

	page, err := New(cfg, nil).FetchPage(context.Background(), srv.URL+"/ua")
	require.NoError(t, err)
	assert.Equal(t, "pagelens-test", string(page.Body))
}

func TestProbeHeaders(t *testing.T) {
	srv := newServer(t)
	c := New(testConfig(), nil)

	res, err := c.ProbeHeaders(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))

	res, err = c.ProbeHeaders(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestServerErrorsTripHostBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := New(testConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := c.ProbeHeaders(ctx, srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, res.Status)
	}

	_, err := c.ProbeHeaders(ctx, srv.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())

	u, _ := url.Parse(srv.URL)
	assert.Equal(t, resilience.StateOpen, c.BreakerStates()[u.Hostname()])
}

func TestRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()
	cfg := testConfig()
	cfg.Retries = 3

	page, err := New(cfg, nil).FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", string(page.Body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestCancelledContext(t *testing.T) {
	srv := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig(), nil).FetchPage(ctx, srv.URL+"/page")
	assert.Error(t, err)
}
