package systems

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/models"
)

// Handler handles external system requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new systems handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateSystemRequest represents the request to register a system
type CreateSystemRequest struct {
	Code             string   `json:"code" binding:"required"`
	Name             string   `json:"name" binding:"required"`
	Description      string   `json:"description"`
	BaseURL          string   `json:"base_url" binding:"omitempty,url"`
	IDFormat         string   `json:"id_format"`
	IDPrefix         string   `json:"id_prefix"`
	StoreURLTemplate string   `json:"store_url_template"`
	AdminURLTemplate string   `json:"admin_url_template"`
	Sequence         *int     `json:"sequence"`
	Active           *bool    `json:"active"`
	AppliesTo        []string `json:"applies_to"`
}

// UpdateSystemRequest represents the request to edit a system
type UpdateSystemRequest struct {
	Code             *string   `json:"code"`
	Name             *string   `json:"name"`
	Description      *string   `json:"description"`
	BaseURL          *string   `json:"base_url"`
	IDFormat         *string   `json:"id_format"`
	IDPrefix         *string   `json:"id_prefix"`
	StoreURLTemplate *string   `json:"store_url_template"`
	AdminURLTemplate *string   `json:"admin_url_template"`
	Sequence         *int      `json:"sequence"`
	AppliesTo        *[]string `json:"applies_to"`
}

// SystemResponse represents a system in API responses
type SystemResponse struct {
	ID               uint     `json:"id"`
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	BaseURL          string   `json:"base_url"`
	IDFormat         string   `json:"id_format"`
	IDPrefix         string   `json:"id_prefix"`
	StoreURLTemplate string   `json:"store_url_template"`
	AdminURLTemplate string   `json:"admin_url_template"`
	Sequence         int      `json:"sequence"`
	Active           bool     `json:"active"`
	AppliesTo        []string `json:"applies_to"`
	ExternalIDCount  *int64   `json:"external_id_count,omitempty"`
}

// ToResponse converts a system for API output
func ToResponse(s models.ExternalSystem) SystemResponse {
	applies := s.AppliesTo()
	if applies == nil {
		applies = []string{}
	}
	return SystemResponse{
		ID:               s.ID,
		Code:             s.Code,
		Name:             s.Name,
		Description:      s.Description,
		BaseURL:          s.BaseURL,
		IDFormat:         s.IDFormat,
		IDPrefix:         s.IDPrefix,
		StoreURLTemplate: s.StoreURLTemplate,
		AdminURLTemplate: s.AdminURLTemplate,
		Sequence:         s.Sequence,
		Active:           s.Active,
		AppliesTo:        applies,
	}
}

// responses converts systems for output with the number of links the caller can see
func (h *Handler) responses(c *gin.Context, systems ...models.ExternalSystem) ([]SystemResponse, error) {
	ids := make([]uint, len(systems))
	for i, s := range systems {
		ids[i] = s.ID
	}
	counts, err := h.svc.LinkCounts(c.Request.Context(), ids...)
	if err != nil {
		return nil, err
	}
	out := make([]SystemResponse, len(systems))
	for i, s := range systems {
		count := counts[s.ID]
		out[i] = ToResponse(s)
		out[i].ExternalIDCount = &count
	}
	return out, nil
}

func (h *Handler) render(c *gin.Context, status int, systems []models.ExternalSystem) {
	out, err := h.responses(c, systems...)
	if err != nil {
		respond(c, err, "Failed to count external ids")
		return
	}
	c.JSON(status, out)
}

func (h *Handler) renderOne(c *gin.Context, status int, system *models.ExternalSystem) {
	out, err := h.responses(c, *system)
	if err != nil {
		respond(c, err, "Failed to count external ids")
		return
	}
	c.JSON(status, out[0])
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid system ID"})
		return 0, false
	}
	return uint(id), true
}

func respond(c *gin.Context, err error, fallback string) {
	status, msg := errs.Response(err, fallback)
	c.JSON(status, gin.H{"error": msg})
}

// List returns systems. Archived ones are included with ?archived=true
func (h *Handler) List(c *gin.Context) {
	systems, err := h.svc.List(c.Request.Context(), c.Query("archived") == "true")
	if err != nil {
		respond(c, err, "Failed to fetch systems")
		return
	}
	h.render(c, http.StatusOK, systems)
}

// Selectable returns the systems a record type may link to
func (h *Handler) Selectable(c *gin.Context) {
	recordType := c.Query("record_type")
	if recordType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record_type is required"})
		return
	}
	systems, err := h.svc.Selectable(c.Request.Context(), recordType)
	if err != nil {
		respond(c, err, "Failed to fetch systems")
		return
	}
	h.render(c, http.StatusOK, systems)
}

// Get returns a single system
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	system, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respond(c, err, "System not found")
		return
	}
	h.renderOne(c, http.StatusOK, system)
}

// Create registers a system
func (h *Handler) Create(c *gin.Context) {
	var req CreateSystemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	system, err := h.svc.Create(c.Request.Context(), Input{
		Code:             req.Code,
		Name:             req.Name,
		Description:      req.Description,
		BaseURL:          req.BaseURL,
		IDFormat:         req.IDFormat,
		IDPrefix:         req.IDPrefix,
		StoreURLTemplate: req.StoreURLTemplate,
		AdminURLTemplate: req.AdminURLTemplate,
		Sequence:         req.Sequence,
		Active:           req.Active,
		AppliesTo:        req.AppliesTo,
	})
	if err != nil {
		respond(c, err, "Failed to create system")
		return
	}
	h.renderOne(c, http.StatusCreated, system)
}

// Update edits a system
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateSystemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	system, err := h.svc.Update(c.Request.Context(), id, Patch{
		Code:             req.Code,
		Name:             req.Name,
		Description:      req.Description,
		BaseURL:          req.BaseURL,
		IDFormat:         req.IDFormat,
		IDPrefix:         req.IDPrefix,
		StoreURLTemplate: req.StoreURLTemplate,
		AdminURLTemplate: req.AdminURLTemplate,
		Sequence:         req.Sequence,
		AppliesTo:        req.AppliesTo,
	})
	if err != nil {
		respond(c, err, "System not found")
		return
	}
	h.renderOne(c, http.StatusOK, system)
}

// Archive deactivates a system
func (h *Handler) Archive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	system, err := h.svc.Archive(c.Request.Context(), id)
	if err != nil {
		respond(c, err, "System not found")
		return
	}
	h.renderOne(c, http.StatusOK, system)
}

// Unarchive reactivates a system
func (h *Handler) Unarchive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	system, err := h.svc.Unarchive(c.Request.Context(), id)
	if err != nil {
		respond(c, err, "System not found")
		return
	}
	h.renderOne(c, http.StatusOK, system)
}

// Delete removes an unreferenced system
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respond(c, err, "System not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "System deleted"})
}

// RegisterRoutes registers read-only system routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/systems", h.List)
	rg.GET("/systems/selectable", h.Selectable)
	rg.GET("/systems/:id", h.Get)
}

// RegisterAdminRoutes registers system write routes
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/systems", h.Create)
	rg.PUT("/systems/:id", h.Update)
	rg.DELETE("/systems/:id", h.Delete)
	rg.POST("/systems/:id/archive", h.Archive)
	rg.POST("/systems/:id/unarchive", h.Unarchive)
}
