package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/pagelens/internal/service"
)

// TargetRequest picks the page a tool runs on.
type TargetRequest struct {
	SessionID string                `json:"sessionId"`
	Source    service.SourceRequest `json:"source"`
}

func (r TargetRequest) target() (service.Target, error) {
	if r.SessionID != "" {
		return service.Target{SessionID: r.SessionID}, nil
	}
	src, err := decodeSource(r.Source)
	if err != nil {
		return service.Target{}, err
	}
	return service.Target{Source: src}, nil
}

// PentestRequest runs the security checklist.
type PentestRequest struct {
	TargetRequest
	Copy bool `json:"copy"`
}

// Pentest handles POST /pentest
func (h *Handlers) Pentest(c *gin.Context) {
	var req PentestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := req.target()
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.svc.Pentest(c.Request.Context(), t, req.Copy)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// InspectSiteData handles POST /sitedata/inspect
func (h *Handlers) InspectSiteData(c *gin.Context) {
	var req TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := req.target()
	if err != nil {
		h.writeError(c, err)
		return
	}

	data, err := h.svc.InspectSiteData(c.Request.Context(), t)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// ClearRequest clears site data and optionally reloads the page.
type ClearRequest struct {
	TargetRequest
	Reload bool `json:"reload"`
}

// ClearSiteData handles POST /sitedata/clear
func (h *Handlers) ClearSiteData(c *gin.Context) {
	var req ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := req.target()
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.svc.ClearSiteData(c.Request.Context(), t, req.Reload)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Notifications handles GET /notifications?limit=
func (h *Handlers) Notifications(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	notes := h.svc.Notifications(limit)
	c.JSON(http.StatusOK, gin.H{"notifications": notes, "count": len(notes)})
}
