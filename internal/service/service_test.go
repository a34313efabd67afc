package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagelens/internal/domain/export"
	"github.com/GriffinCanCode/pagelens/internal/domain/pentest"
	"github.com/GriffinCanCode/pagelens/internal/domain/selector"
	"github.com/GriffinCanCode/pagelens/internal/domain/session"
	"github.com/GriffinCanCode/pagelens/internal/providers/clipboard"
	"github.com/GriffinCanCode/pagelens/internal/providers/fetch"
)

const page = `<!DOCTYPE html><html><head><title>Shop</title></head><body>
<form action="/login"><input type="text" name="user"><input type="password" name="pw"></form>
<button id="buy" aria-label="Buy now">Buy</button>
<a class="nav" href="/about">About</a>
</body></html>`

type memWriter struct {
	err  error
	last string
}

func (w *memWriter) Name() string { return "mem" }

func (w *memWriter) Write(_ context.Context, text string) error {
	if w.err != nil {
		return w.err
	}
	w.last = text
	return nil
}

var fixedNow = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, w clipboard.Writer) *Service {
	t.Helper()
	fc := fetch.New(fetch.Config{Timeout: 5 * time.Second, RetryWaitMin: time.Millisecond}, nil)
	svc, err := New(Config{MaxSessions: 4, Pentest: pentest.Options{Stagger: 0}},
		NewLoader(fc, nil), clipboard.NewCopier(w, nil, nil, nil), nil, nil)
	require.NoError(t, err)
	svc.WithClock(func() time.Time { return fixedNow })
	t.Cleanup(svc.Close)
	return svc
}

func htmlSource() SourceRequest {
	return SourceRequest{HTML: page, URL: "https://shop.example.com/"}
}

func TestSessionCaptureAndExport(t *testing.T) {
	svc := newService(t, &memWriter{})
	sess, err := svc.CreateSession(context.Background(), htmlSource())
	require.NoError(t, err)
	assert.Equal(t, session.SourceHTML, sess.Source().Kind)

	_, err = svc.Capture(sess.ID().String(), "", "#buy")
	assert.ErrorIs(t, err, session.ErrNotCapturing)

	sess.Start()
	entry, err := svc.Capture(sess.ID().String(), "", "#buy")
	require.NoError(t, err)
	assert.Equal(t, 0, entry.Index)
	assert.Equal(t, "Buy now", entry.Descriptor.AccessibleName)

	_, err = svc.Capture(sess.ID().String(), "//a[@class='nav']", "")
	require.NoError(t, err)

	doc, err := svc.ExportDocument(sess.ID().String(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Meta.TotalElements)
	assert.Equal(t, "https://shop.example.com/", doc.Meta.URL)
	assert.Nil(t, doc.Meta.Viewport)
	assert.Equal(t, fixedNow, doc.Meta.ExportTime)

	one := 1
	single, err := svc.ExportDocument(sess.ID().String(), &one)
	require.NoError(t, err)
	require.Len(t, single.Elements, 1)
	assert.Equal(t, "link", single.Elements[0].Role)

	r, err := svc.Render(doc, export.YAML, export.Gzip)
	require.NoError(t, err)
	assert.Equal(t, "element-bible-2024-03-09.yaml.gz", r.Filename)
	assert.Equal(t, "application/octet-stream", r.ContentType)
	plain, err := export.Decompress(r.Data, export.Gzip)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "accessibleName: Buy now")
}

func TestCaptureReferenceErrors(t *testing.T) {
	svc := newService(t, &memWriter{})
	sess, err := svc.CreateSession(context.Background(), htmlSource())
	require.NoError(t, err)
	sess.Start()

	_, err = svc.Capture(sess.ID().String(), "", "#missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = svc.Capture(sess.ID().String(), "", "")
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = svc.Capture("sess_nope", "", "#buy")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestDiffUnchanged(t *testing.T) {
	svc := newService(t, &memWriter{})
	sess, err := svc.CreateSession(context.Background(), htmlSource())
	require.NoError(t, err)
	sess.Start()
	_, err = svc.Capture(sess.ID().String(), "", "a.nav")
	require.NoError(t, err)

	d, err := svc.Diff(sess.ID().String(), 0)
	require.NoError(t, err)
	assert.False(t, d.Changed)
	assert.Empty(t, d.Changes)
	assert.Empty(t, d.Markup)
	assert.Equal(t, selector.Report{XPathMatches: 1, CSSMatches: 1, XPathUnique: true, CSSUnique: true}, d.Selectors)

	_, err = svc.Diff(sess.ID().String(), 5)
	assert.ErrorIs(t, err, session.ErrEntryNotFound)
}

func TestCopy(t *testing.T) {
	w := &memWriter{}
	svc := newService(t, w)
	sess, err := svc.CreateSession(context.Background(), htmlSource())
	require.NoError(t, err)
	sess.Start()
	_, err = svc.Capture(sess.ID().String(), "", "#buy")
	require.NoError(t, err)

	res, err := svc.Copy(context.Background(), sess.ID().String(), CopyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "mem", res.Writer)
	assert.Equal(t, clipboard.ElementMessages.Success, res.Notification.Message)
	doc, err := export.Decode([]byte(w.last))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Meta.TotalElements)

	zero := 0
	res, err = svc.Copy(context.Background(), sess.ID().String(), CopyOptions{Index: &zero, SelectorsOnly: true})
	require.NoError(t, err)
	assert.Equal(t, clipboard.SelectorMessages.Success, res.Notification.Message)
	assert.Contains(t, w.last, `"xpath": "//*[@id=\"buy\"]"`)

	_, err = svc.Copy(context.Background(), sess.ID().String(), CopyOptions{SelectorsOnly: true})
	assert.ErrorIs(t, err, ErrInvalidSource)

	w.err = errors.New("no display")
	_, err = svc.Copy(context.Background(), sess.ID().String(), CopyOptions{})
	assert.ErrorIs(t, err, clipboard.ErrCopyFailed)

	notes := svc.Notifications(10)
	require.NotEmpty(t, notes)
	assert.Equal(t, clipboard.LevelDanger, notes[0].Level)
}

func TestLoadSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()
	svc := newService(t, &memWriter{})
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, SourceRequest{URL: srv.URL + "/shop"})
	require.NoError(t, err)
	assert.Equal(t, session.SourceURL, sess.Source().Kind)
	assert.Equal(t, srv.URL+"/shop", sess.Source().URL)

	path := filepath.Join(t.TempDir(), "saved.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))
	sess, err = svc.CreateSession(ctx, SourceRequest{Path: path})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.Source().URL, "file://"))

	_, err = svc.CreateSession(ctx, SourceRequest{Kind: session.SourceLive, URL: srv.URL})
	assert.ErrorIs(t, err, ErrLiveUnavailable)

	_, err = svc.CreateSession(ctx, SourceRequest{Kind: session.SourceHTML})
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = svc.CreateSession(ctx, SourceRequest{})
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = svc.CreateSession(ctx, SourceRequest{Kind: "ftp", URL: srv.URL})
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestSessionLimitAndDelete(t *testing.T) {
	svc := newService(t, &memWriter{})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		sess, err := svc.CreateSession(ctx, htmlSource())
		require.NoError(t, err)
		ids = append(ids, sess.ID().String())
	}
	_, err := svc.CreateSession(ctx, htmlSource())
	assert.ErrorIs(t, err, session.ErrTooManySessions)
	assert.Len(t, svc.Sessions(), 4)

	require.NoError(t, svc.DeleteSession(ids[0]))
	assert.ErrorIs(t, svc.DeleteSession(ids[0]), session.ErrSessionNotFound)
	_, err = svc.InspectSiteData(ctx, Target{SessionID: ids[0]})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, int64(3), svc.Metrics().Snapshot().ActiveSessions)
}

func TestPentestOnSession(t *testing.T) {
	w := &memWriter{}
	svc := newService(t, w)
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, htmlSource())
	require.NoError(t, err)

	res, err := svc.Pentest(ctx, Target{SessionID: sess.ID().String()}, true)
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.Equal(t, "https://shop.example.com/", res.Report.URL)
	assert.Equal(t, "Starting security analysis on https://shop.example.com/", res.Report.Findings[0].Message)
	assert.Contains(t, res.Text, "Security Test Report\nURL: https://shop.example.com/\n")
	require.NotNil(t, res.Copy)
	assert.Equal(t, res.Text, w.last)
	assert.Equal(t, int64(len(res.Report.Findings)), svc.Metrics().Snapshot().TotalFindings)

	// the form has no CSRF token
	var csrf []string
	for _, f := range res.Report.Findings {
		if f.Check == pentest.CheckCSRF && f.Type == pentest.Warning {
			csrf = append(csrf, f.Message)
		}
	}
	assert.Equal(t, []string{`Form with action "https://shop.example.com/login" may be missing CSRF token.`}, csrf)
}

func TestPentestCopyFailureKeepsReport(t *testing.T) {
	svc := newService(t, &memWriter{err: errors.New("denied")})
	res, err := svc.Pentest(context.Background(), Target{Source: htmlSource()}, true)
	require.NoError(t, err)
	assert.Nil(t, res.Copy)
	assert.Contains(t, res.CopyError, "all copy methods failed")
}

func TestPentestCancelled(t *testing.T) {
	svc := newService(t, &memWriter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Pentest(ctx, Target{Source: htmlSource()}, false)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
}

func TestSiteData(t *testing.T) {
	svc := newService(t, &memWriter{})
	ctx := context.Background()

	data, err := svc.InspectSiteData(ctx, Target{Source: htmlSource()})
	require.NoError(t, err)
	assert.Equal(t, "shop.example.com", data.View.Host)
	assert.Equal(t, "No cookies found.", data.View.Cookies)
	assert.False(t, data.HasData)

	res, err := svc.ClearSiteData(ctx, Target{Source: htmlSource()}, true)
	require.NoError(t, err)
	assert.True(t, res.Reloaded)
	assert.Equal(t, "Accessible client-side data (cookies, localStorage, sessionStorage) for shop.example.com cleared!", res.Message)
}
