package externalids

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/records"
)

// Handler handles external id requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new external id handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateRequest represents the request to link a record
type CreateRequest struct {
	RecordType string `json:"record_type" binding:"required"`
	RecordID   uint   `json:"record_id" binding:"required"`
	SystemID   uint   `json:"system_id" binding:"required"`
	Identifier string `json:"external_identifier" binding:"required"`
	Notes      string `json:"notes"`
	Active     *bool  `json:"active"`
}

// UpdateRequest represents the request to edit a link
type UpdateRequest struct {
	SystemID   *uint   `json:"system_id"`
	Identifier *string `json:"external_identifier"`
	Notes      *string `json:"notes"`
	Active     *bool   `json:"active"`
}

// ExternalIDResponse represents a link in API responses
type ExternalIDResponse struct {
	ID            uint       `json:"id"`
	RecordType    string     `json:"record_type"`
	RecordID      uint       `json:"record_id"`
	SystemID      uint       `json:"system_id"`
	SystemCode    string     `json:"system_code"`
	Identifier    string     `json:"external_identifier"`
	Notes         string     `json:"notes"`
	Active        bool       `json:"active"`
	LastSync      *time.Time `json:"last_sync"`
	DisplayLabel  string     `json:"display_label"`
	RecordLabel   string     `json:"record_label"`
	RecordStatus  string     `json:"record_status"`
	OwningCompany *uint      `json:"owning_company_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RecordResponse is the record a link resolves to
type RecordResponse struct {
	RecordType  string `json:"record_type"`
	RecordID    uint   `json:"record_id"`
	DisplayName string `json:"display_name"`
	CompanyID   *uint  `json:"company_id,omitempty"`
}

// ViewToResponse converts a described link for API output
func ViewToResponse(v View) ExternalIDResponse {
	return ExternalIDResponse{
		ID:            v.ID,
		RecordType:    v.RecordType,
		RecordID:      v.RecordID,
		SystemID:      v.SystemID,
		SystemCode:    v.System.Code,
		Identifier:    v.Identifier,
		Notes:         v.Notes,
		Active:        v.Active,
		LastSync:      v.LastSync,
		DisplayLabel:  v.DisplayLabel,
		RecordLabel:   v.RecordLabel,
		RecordStatus:  v.RecordStatus.String(),
		OwningCompany: v.OwningCompany,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

// RecordToResponse converts a resolved record for API output
func RecordToResponse(rec *records.Record) RecordResponse {
	return RecordResponse{
		RecordType:  rec.Type,
		RecordID:    rec.ID,
		DisplayName: rec.DisplayName,
		CompanyID:   rec.CompanyID,
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid external id"})
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, key string) (uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key})
		return 0, false
	}
	return uint(v), true
}

func respond(c *gin.Context, err error, fallback string) {
	status, msg := errs.Response(err, fallback)
	c.JSON(status, gin.H{"error": msg})
}

// describe renders rows with their labels
func (h *Handler) describe(c *gin.Context, status int, rows []models.ExternalID) {
	views, err := h.svc.Describe(c.Request.Context(), rows)
	if err != nil {
		respond(c, err, "Failed to describe external ids")
		return
	}
	responses := make([]ExternalIDResponse, len(views))
	for i, v := range views {
		responses[i] = ViewToResponse(v)
	}
	c.JSON(status, responses)
}

func (h *Handler) describeOne(c *gin.Context, status int, row *models.ExternalID) {
	view, err := h.svc.DescribeOne(c.Request.Context(), *row)
	if err != nil {
		respond(c, err, "Failed to describe external id")
		return
	}
	c.JSON(status, ViewToResponse(view))
}

// List returns the visible links, filtered by query parameters
func (h *Handler) List(c *gin.Context) {
	var f Filter
	var ok bool
	if f.SystemID, ok = queryUint(c, "system_id"); !ok {
		return
	}
	if f.RecordID, ok = queryUint(c, "record_id"); !ok {
		return
	}
	f.RecordType = c.Query("record_type")
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		f.Active = &active
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	rows, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		respond(c, err, "Failed to fetch external ids")
		return
	}
	h.describe(c, http.StatusOK, rows)
}

// Get returns a single link
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	row, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respond(c, err, "External id not found")
		return
	}
	h.describeOne(c, http.StatusOK, row)
}

// Create links a record to an external identifier
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := h.svc.Create(c.Request.Context(), CreateInput{
		RecordType: req.RecordType,
		RecordID:   req.RecordID,
		SystemID:   req.SystemID,
		Identifier: req.Identifier,
		Notes:      req.Notes,
		Active:     req.Active,
	})
	if err != nil {
		respond(c, err, "Failed to create external id")
		return
	}
	h.describeOne(c, http.StatusCreated, row)
}

// Update edits a link
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
		SystemID:   req.SystemID,
		Identifier: req.Identifier,
		Notes:      req.Notes,
		Active:     req.Active,
	})
	if err != nil {
		respond(c, err, "External id not found")
		return
	}
	h.describeOne(c, http.StatusOK, row)
}

// Delete removes an archived link
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respond(c, err, "External id not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "External id deleted"})
}

// Archive deactivates a link
func (h *Handler) Archive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	row, err := h.svc.Archive(c.Request.Context(), id)
	if err != nil {
		respond(c, err, "External id not found")
		return
	}
	h.describeOne(c, http.StatusOK, row)
}

// Unarchive reactivates a link
func (h *Handler) Unarchive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	row, err := h.svc.Unarchive(c.Request.Context(), id)
	if err != nil {
		respond(c, err, "External id not found")
		return
	}
	h.describeOne(c, http.StatusOK, row)
}

// Sync stamps last_sync on a link
func (h *Handler) Sync(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	row, err := h.svc.SyncTouch(c.Request.Context(), id)
	if err != nil {
		respond(c, err, "External id not found")
		return
	}
	h.describeOne(c, http.StatusOK, row)
}

// Search finds links by "system:identifier" text
func (h *Handler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.svc.SearchByText(c.Request.Context(), c.Query("q"), c.Query("op"), limit)
	if err != nil {
		respond(c, err, "Search failed")
		return
	}
	h.describe(c, http.StatusOK, rows)
}

// Resolve returns the record behind a system code and identifier
func (h *Handler) Resolve(c *gin.Context) {
	system, identifier := c.Query("system"), c.Query("identifier")
	if system == "" || identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "system and identifier are required"})
		return
	}
	rec, err := h.svc.ResolveRecord(c.Request.Context(), system, identifier)
	if err != nil {
		respond(c, err, "Failed to resolve external id")
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No record linked to " + system + ":" + identifier})
		return
	}
	c.JSON(http.StatusOK, RecordToResponse(rec))
}

// RegisterRoutes registers external id routes. Writes are limited by the caller's scope.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	ids := rg.Group("/external-ids")
	ids.GET("", h.List)
	ids.POST("", h.Create)
	ids.GET("/search", h.Search)
	ids.GET("/resolve", h.Resolve)
	ids.GET("/:id", h.Get)
	ids.PUT("/:id", h.Update)
	ids.DELETE("/:id", h.Delete)
	ids.POST("/:id/archive", h.Archive)
	ids.POST("/:id/unarchive", h.Unarchive)
	ids.POST("/:id/sync", h.Sync)
}
