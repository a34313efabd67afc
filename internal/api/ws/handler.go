package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagelens/internal/domain/session"
	"github.com/GriffinCanCode/pagelens/internal/service"
)

const (
	// DefaultBuffer is the per-connection event queue length.
	DefaultBuffer = 64

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// Message is a client control message.
type Message struct {
	Type  string `json:"type"`
	XPath string `json:"xpath,omitempty"`
	CSS   string `json:"css,omitempty"`
}

// Reply is a direct answer to a control message.
type Reply struct {
	Type      string         `json:"type"`
	Message   string         `json:"message,omitempty"`
	Capturing *bool          `json:"capturing,omitempty"`
	Entry     *session.Entry `json:"entry,omitempty"`
	Dropped   uint64         `json:"dropped,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler upgrades session feed connections.
type Handler struct {
	svc      *service.Service
	logger   *zap.Logger
	buffer   int
	upgrader websocket.Upgrader
}

// NewHandler creates a feed handler. checkOrigin may be nil to allow any
// origin.
func NewHandler(svc *service.Service, logger *zap.Logger, checkOrigin func(r *http.Request) bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		svc:    svc,
		logger: logger,
		buffer: DefaultBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// WithBuffer sets the per-connection event queue length.
func (h *Handler) WithBuffer(n int) *Handler {
	if n > 0 {
		h.buffer = n
	}
	return h
}

// HandleConnection serves GET /sessions/:id/ws.
func (h *Handler) HandleConnection(c *gin.Context) {
	sid := c.Param("id")
	sess, err := h.svc.Session(sid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", sid), zap.Error(err))
		return
	}
	defer conn.Close()

	metrics := h.svc.Metrics()
	metrics.IncWSConnections()
	defer metrics.DecWSConnections()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	f := &feed{
		conn:    conn,
		events:  make(chan session.Event, h.buffer),
		replies: make(chan Reply, 8),
		closed:  make(chan struct{}),
	}
	unsubscribe := sess.Subscribe(func(e session.Event) {
		if e.Type == session.EventClosed {
			f.close()
			return
		}
		if f.push(e) {
			metrics.RecordWSEvent("sent")
		} else {
			metrics.RecordWSEvent("dropped")
		}
	})
	defer unsubscribe()
	if _, err := h.svc.Session(sid); err != nil {
		f.close()
	}

	h.logger.Info("session feed connected", zap.String("session_id", sid))
	capturing := sess.IsCapturing()
	f.reply(ctx, Reply{Type: "system", Message: "Connected to session " + sid, Capturing: &capturing})

	go func() {
		defer cancel()
		h.readLoop(ctx, f, sid)
	}()
	if err := f.writeLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("session feed write stopped", zap.String("session_id", sid), zap.Error(err))
	}
	h.logger.Info("session feed closed",
		zap.String("session_id", sid),
		zap.Uint64("dropped", f.dropped.Load()))
}

func (h *Handler) readLoop(ctx context.Context, f *feed, sid string) {
	f.conn.SetReadLimit(64 * 1024)
	_ = f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPongHandler(func(string) error {
		return f.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := f.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("session feed read error", zap.String("session_id", sid), zap.Error(err))
			}
			return
		}
		f.reply(ctx, h.handle(sid, msg))
	}
}

func (h *Handler) handle(sid string, msg Message) Reply {
	sess, err := h.svc.Session(sid)
	if err != nil {
		return Reply{Type: "error", Message: err.Error()}
	}

	switch msg.Type {
	case "ping":
		return Reply{Type: "pong"}
	case "start":
		sess.Start()
	case "stop":
		sess.Stop()
	case "toggle":
		sess.Toggle()
	case "capture":
		entry, err := h.svc.Capture(sid, msg.XPath, msg.CSS)
		if err != nil {
			return Reply{Type: "error", Message: err.Error()}
		}
		return Reply{Type: "captured", Entry: &entry}
	default:
		return Reply{Type: "error", Message: "unknown message type"}
	}
	capturing := sess.IsCapturing()
	return Reply{Type: "state", Capturing: &capturing}
}

// feed serializes writes to one connection.
type feed struct {
	conn    *websocket.Conn
	events  chan session.Event
	replies chan Reply
	dropped atomic.Uint64

	// closed is signalled once the session is deleted. It bypasses the
	// event queue so a full buffer cannot hide it.
	closed    chan struct{}
	closeOnce sync.Once
}

func (f *feed) close() {
	f.closeOnce.Do(func() { close(f.closed) })
}

// push queues e without blocking and reports whether it was queued.
func (f *feed) push(e session.Event) bool {
	select {
	case f.events <- e:
		return true
	default:
		f.dropped.Add(1)
		return false
	}
}

func (f *feed) reply(ctx context.Context, r Reply) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.Dropped = f.dropped.Load()
	select {
	case f.replies <- r:
	case <-ctx.Done():
	}
}

func (f *feed) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = f.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		case r := <-f.replies:
			if err := f.writeJSON(r); err != nil {
				return err
			}
		case e := <-f.events:
			if err := f.writeJSON(e); err != nil {
				return err
			}
		case <-f.closed:
			_ = f.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session deleted"))
			return nil
		case <-ticker.C:
			if err := f.write(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (f *feed) writeJSON(v interface{}) error {
	_ = f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteJSON(v)
}

func (f *feed) write(kind int, data []byte) error {
	_ = f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteMessage(kind, data)
}
