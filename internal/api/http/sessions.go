package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/pagelens/internal/domain/export"
	"github.com/GriffinCanCode/pagelens/internal/domain/session"
	"github.com/GriffinCanCode/pagelens/internal/service"
)

// SessionView is the detail view of a session.
type SessionView struct {
	ID           string               `json:"id"`
	Source       session.Source       `json:"source"`
	Capturing    bool                 `json:"capturing"`
	Elements     int                  `json:"elements"`
	Capabilities session.Capabilities `json:"capabilities"`
	CreatedAt    time.Time            `json:"createdAt"`
}

func viewOf(s *session.Session) SessionView {
	return SessionView{
		ID:           s.ID().String(),
		Source:       s.Source(),
		Capturing:    s.IsCapturing(),
		Elements:     s.Len(),
		Capabilities: s.Capabilities(),
		CreatedAt:    s.CreatedAt(),
	}
}

// decodeSource binds a source request. Local paths are a CLI-only source.
func decodeSource(req service.SourceRequest) (service.SourceRequest, error) {
	if req.Path != "" {
		return req, fmt.Errorf("%w: file paths are not accepted over http", service.ErrInvalidSource)
	}
	return req, nil
}

// CreateSession handles POST /sessions
func (h *Handlers) CreateSession(c *gin.Context) {
	var req service.SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req, err := decodeSource(req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	sess, err := h.svc.CreateSession(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(sess))
}

// ListSessions handles GET /sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	list := h.svc.Sessions()
	c.JSON(http.StatusOK, gin.H{"sessions": list, "count": len(list)})
}

// GetSession handles GET /sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	sess, err := h.svc.Session(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

// DeleteSession handles DELETE /sessions/:id
func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.svc.DeleteSession(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) setCapture(c *gin.Context, apply func(*session.Session)) {
	sess, err := h.svc.Session(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	apply(sess)
	c.JSON(http.StatusOK, gin.H{"id": sess.ID().String(), "capturing": sess.IsCapturing()})
}

// StartCapture handles POST /sessions/:id/start
func (h *Handlers) StartCapture(c *gin.Context) {
	h.setCapture(c, (*session.Session).Start)
}

// StopCapture handles POST /sessions/:id/stop
func (h *Handlers) StopCapture(c *gin.Context) {
	h.setCapture(c, (*session.Session).Stop)
}

// ToggleCapture handles POST /sessions/:id/toggle
func (h *Handlers) ToggleCapture(c *gin.Context) {
	h.setCapture(c, func(s *session.Session) { s.Toggle() })
}

// CaptureRequest names the element to capture.
type CaptureRequest struct {
	XPath string `json:"xpath"`
	CSS   string `json:"css"`
}

// Capture handles POST /sessions/:id/capture
func (h *Handlers) Capture(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.XPath == "" && req.CSS == "" {
		badRequest(c, "xpath or css is required")
		return
	}

	entry, err := h.svc.Capture(c.Param("id"), req.XPath, req.CSS)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListElements handles GET /sessions/:id/elements
func (h *Handlers) ListElements(c *gin.Context) {
	sess, err := h.svc.Session(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	entries := sess.Entries()
	if entries == nil {
		entries = []session.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"elements": entries, "count": len(entries)})
}

// ClearElements handles DELETE /sessions/:id/elements
func (h *Handlers) ClearElements(c *gin.Context) {
	sess, err := h.svc.Session(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	sess.Clear()
	c.Status(http.StatusNoContent)
}

// DiffElement handles GET /sessions/:id/elements/:index/diff
func (h *Handlers) DiffElement(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		badRequest(c, "index must be a non-negative integer")
		return
	}
	d, err := h.svc.Diff(c.Param("id"), index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// optionalIndex reads an element index from a query value.
func optionalIndex(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		return nil, fmt.Errorf("index must be a non-negative integer")
	}
	return &i, nil
}

// Export handles GET /sessions/:id/export?format=&compress=&index=
func (h *Handlers) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	compression, err := export.ParseCompression(c.Query("compress"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	index, err := optionalIndex(c.Query("index"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	doc, err := h.svc.ExportDocument(c.Param("id"), index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out, err := h.svc.Render(doc, format, compression)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.Filename))
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

// CopyRequest selects what to copy.
type CopyRequest struct {
	Index         *int `json:"index"`
	SelectorsOnly bool `json:"selectorsOnly"`
}

// Copy handles POST /sessions/:id/copy
func (h *Handlers) Copy(c *gin.Context) {
	var req CopyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if req.Index != nil && *req.Index < 0 {
		badRequest(c, "index must be a non-negative integer")
		return
	}

	res, err := h.svc.Copy(c.Request.Context(), c.Param("id"), service.CopyOptions{
		Index:         req.Index,
		SelectorsOnly: req.SelectorsOnly,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
