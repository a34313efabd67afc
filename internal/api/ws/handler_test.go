package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagelens/internal/domain/session"
	"github.com/GriffinCanCode/pagelens/internal/service"
)

const page = `<html><body><button id="buy">Buy</button><a href="/x">X</a></body></html>`

func setup(t *testing.T) (*httptest.Server, *service.Service, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := service.New(service.Config{}, service.NewLoader(nil, nil), nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	sess, err := svc.CreateSession(context.Background(), service.SourceRequest{HTML: page, URL: "https://example.com/"})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/sessions/:id/ws", NewHandler(svc, nil, nil).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, svc, sess.ID().String()
}

func dial(t *testing.T, srv *httptest.Server, sid string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sid + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first message of the given type.
func readUntil(t *testing.T, conn *websocket.Conn, kind string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] == kind {
			return msg
		}
	}
}

func TestFeedStreamsSessionEvents(t *testing.T) {
	srv, svc, sid := setup(t)
	conn := dial(t, srv, sid)

	hello := readUntil(t, conn, "system")
	assert.Equal(t, false, hello["capturing"])

	require.NoError(t, conn.WriteJSON(Message{Type: "start"}))
	state := readUntil(t, conn, "state")
	assert.Equal(t, true, state["capturing"])

	_, err := svc.Capture(sid, "", "#buy")
	require.NoError(t, err)
	ev := readUntil(t, conn, string(session.EventCapture))
	assert.Equal(t, sid, ev["sessionId"])

	require.NoError(t, conn.WriteJSON(Message{Type: "capture", CSS: "a"}))
	captured := readUntil(t, conn, "captured")
	assert.Equal(t, float64(1), captured["entry"].(map[string]interface{})["index"])

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	readUntil(t, conn, "pong")

	require.NoError(t, conn.WriteJSON(Message{Type: "bogus"}))
	bad := readUntil(t, conn, "error")
	assert.Equal(t, "unknown message type", bad["message"])
}

func TestFeedClosesWhenSessionDeleted(t *testing.T) {
	srv, svc, sid := setup(t)
	conn := dial(t, srv, sid)
	readUntil(t, conn, "system")

	require.NoError(t, svc.DeleteSession(sid))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr, "feed should close before the ping interval")
		assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
		assert.Equal(t, "session deleted", closeErr.Text)
		return
	}
}

func TestFeedCloseSurvivesFullQueue(t *testing.T) {
	f := &feed{events: make(chan session.Event, 1), closed: make(chan struct{})}
	require.True(t, f.push(session.Event{Type: session.EventState}))
	assert.False(t, f.push(session.Event{Type: session.EventState}))

	f.close()
	f.close()
	select {
	case <-f.closed:
	default:
		t.Fatal("close signal lost")
	}
}

func TestFeedUnknownSession(t *testing.T) {
	srv, _, _ := setup(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/sess_missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestFeedDropsWhenFull(t *testing.T) {
	f := &feed{events: make(chan session.Event, 1)}

	assert.True(t, f.push(session.Event{Type: session.EventState}))
	assert.False(t, f.push(session.Event{Type: session.EventClear}))
	assert.Equal(t, uint64(1), f.dropped.Load())
	assert.Equal(t, session.EventState, (<-f.events).Type)
}
