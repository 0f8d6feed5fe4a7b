package urltemplates

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/models"
)

// Handler handles URL template requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new URL template handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{svc: NewService(db)}
}

// UpsertRequest represents the request to create or replace a template
type UpsertRequest struct {
	Code       string `json:"code" binding:"required"`
	Name       string `json:"name"`
	Template   string `json:"template" binding:"required"`
	RecordType string `json:"record_type"`
	Sequence   *int   `json:"sequence"`
	Active     *bool  `json:"active"`
}

// UpdateRequest represents the request to edit a template
type UpdateRequest struct {
	Name     *string `json:"name"`
	Template *string `json:"template"`
	Sequence *int    `json:"sequence"`
	Active   *bool   `json:"active"`
}

// RenameRequest represents the administrative code rename
type RenameRequest struct {
	Code string `json:"code" binding:"required"`
}

// ValidateRequest carries a template to dry-run
type ValidateRequest struct {
	Template string `json:"template" binding:"required"`
}

// URLResponse represents a template in API responses
type URLResponse struct {
	ID         uint   `json:"id"`
	SystemID   uint   `json:"system_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Template   string `json:"template"`
	RecordType string `json:"record_type"`
	Sequence   int    `json:"sequence"`
	Active     bool   `json:"active"`
	UpdatedAt  string `json:"updated_at"`
}

// ToResponse converts a template for API output
func ToResponse(u models.ExternalSystemURL) URLResponse {
	return URLResponse{
		ID:         u.ID,
		SystemID:   u.SystemID,
		Code:       u.Code,
		Name:       u.Name,
		Template:   u.Template,
		RecordType: u.RecordType,
		Sequence:   u.Sequence,
		Active:     u.Active,
		UpdatedAt:  u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}

func respond(c *gin.Context, err error, fallback string) {
	status, msg := errs.Response(err, fallback)
	c.JSON(status, gin.H{"error": msg})
}

// List returns the templates of a system
func (h *Handler) List(c *gin.Context) {
	systemID, ok := parseID(c)
	if !ok {
		return
	}
	rows, err := h.svc.List(c.Request.Context(), systemID)
	if err != nil {
		respond(c, err, "Failed to fetch templates")
		return
	}
	responses := make([]URLResponse, len(rows))
	for i, row := range rows {
		responses[i] = ToResponse(row)
	}
	c.JSON(http.StatusOK, responses)
}

// Upsert creates or replaces a template on a system
func (h *Handler) Upsert(c *gin.Context) {
	systemID, ok := parseID(c)
	if !ok {
		return
	}
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, created, err := h.svc.Upsert(c.Request.Context(), UpsertInput{
		SystemID:   systemID,
		Code:       req.Code,
		Name:       req.Name,
		Template:   req.Template,
		RecordType: req.RecordType,
		Sequence:   req.Sequence,
		Active:     req.Active,
	})
	if err != nil {
		respond(c, err, "Failed to save template")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, ToResponse(*row))
}

// Update edits a template
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := h.svc.Update(c.Request.Context(), id, Patch{
		Name:     req.Name,
		Template: req.Template,
		Sequence: req.Sequence,
		Active:   req.Active,
	})
	if err != nil {
		respond(c, err, "Template not found")
		return
	}
	c.JSON(http.StatusOK, ToResponse(*row))
}

// Rename changes a template's code
func (h *Handler) Rename(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := h.svc.Rename(c.Request.Context(), id, req.Code)
	if err != nil {
		respond(c, err, "Template not found")
		return
	}
	c.JSON(http.StatusOK, ToResponse(*row))
}

// Delete removes a template
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respond(c, err, "Template not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

// Validate dry-runs a template against the probe tokens
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := Validate(req.Template); err != nil {
		respond(c, err, "Invalid template")
		return
	}
	preview, _ := Render(req.Template, ProbeTokens)
	c.JSON(http.StatusOK, gin.H{"valid": true, "preview": preview})
}

// RegisterRoutes registers read-only template routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/systems/:id/urls", h.List)
	rg.POST("/urls/validate", h.Validate)
}

// RegisterAdminRoutes registers template write routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/systems/:id/urls", h.Upsert)
	rg.PUT("/urls/:id", h.Update)
	rg.POST("/urls/:id/rename", h.Rename)
	rg.DELETE("/urls/:id", h.Delete)
}
