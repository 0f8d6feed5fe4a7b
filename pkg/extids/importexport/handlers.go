package importexport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/externalids"
)

// Handler handles import/export requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new import/export handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ImportRequest represents an import request
type ImportRequest struct {
	ExternalIDs []Entry `json:"external_ids" binding:"required"`
}

// ExportResponse is the export document; it is also a valid ImportRequest
type ExportResponse struct {
	ExportedAt  time.Time `json:"exported_at"`
	ExternalIDs []Entry   `json:"external_ids"`
}

// Import loads external ids
func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.svc.Import(c.Request.Context(), req.ExternalIDs))
}

// Export dumps the caller's visible external ids, optionally filtered by
// system_id, record_type and active
func (h *Handler) Export(c *gin.Context) {
	var f externalids.Filter
	if raw := c.Query("system_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid system ID"})
			return
		}
		f.SystemID = uint(id)
	}
	f.RecordType = c.Query("record_type")
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		f.Active = &active
	}

	entries, err := h.svc.Export(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export external ids"})
		return
	}
	c.JSON(http.StatusOK, ExportResponse{ExportedAt: time.Now().UTC(), ExternalIDs: entries})
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
}
