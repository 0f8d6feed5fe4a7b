package linking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/externalids"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/systems"
	"github.com/mikepea/extids/pkg/extids/urltemplates"
)

// Handler serves the linking operations of every registered record type
type Handler struct {
	ids  *externalids.Service
	urls *urltemplates.Service
	log  logger.Logger
}

// NewHandler creates a new record linking handler
func NewHandler(ids *externalids.Service, urls *urltemplates.Service, log logger.Logger) *Handler {
	return &Handler{ids: ids, urls: urls, log: log}
}

// SetIDRequest sets one identifier
type SetIDRequest struct {
	Identifier string `json:"external_identifier" binding:"required"`
}

// LinkEntryRequest is one entry of a bulk set
type LinkEntryRequest struct {
	System     string  `json:"system" binding:"required"`
	Identifier string  `json:"external_identifier" binding:"required"`
	Notes      *string `json:"notes"`
}

// SetLinksRequest replaces the record's active links
type SetLinksRequest struct {
	Links []LinkEntryRequest `json:"links" binding:"dive"`
}

// IDResponse is a record's identifier in one system
type IDResponse struct {
	System     string `json:"system"`
	Identifier string `json:"external_identifier"`
}

// URLResponse is a built external URL
type URLResponse struct {
	System string `json:"system"`
	Kind   string `json:"kind"`
	URL    string `json:"url"`
}

func respond(c *gin.Context, err error, fallback string) {
	status, msg := errs.Response(err, fallback)
	c.JSON(status, gin.H{"error": msg})
}

// linker resolves the :type parameter, writing the error response on failure
func (h *Handler) linker(c *gin.Context) (*Linker, bool) {
	l, err := New(c.Param("type"), h.ids, h.urls, h.log)
	if err != nil {
		respond(c, err, "Unknown record type")
		return nil, false
	}
	return l, true
}

func (h *Handler) target(c *gin.Context) (*Linker, uint, bool) {
	l, ok := h.linker(c)
	if !ok {
		return nil, 0, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record ID"})
		return nil, 0, false
	}
	return l, uint(id), true
}

func (h *Handler) describe(c *gin.Context, rows []models.ExternalID) {
	views, err := h.ids.Describe(c.Request.Context(), rows)
	if err != nil {
		respond(c, err, "Failed to describe external ids")
		return
	}
	out := make([]externalids.ExternalIDResponse, len(views))
	for i, v := range views {
		out[i] = externalids.ViewToResponse(v)
	}
	c.JSON(http.StatusOK, out)
}

// Types lists the record types that can be linked
func (h *Handler) Types(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"record_types": h.ids.Records().Types()})
}

// LinkedIDs returns the record's links with labels
func (h *Handler) LinkedIDs(c *gin.Context) {
	l, id, ok := h.target(c)
	if !ok {
		return
	}
	views, err := l.LinkedIDs(c.Request.Context(), id)
	if err != nil {
		respond(c, err, "Failed to fetch external ids")
		return
	}
	out := make([]externalids.ExternalIDResponse, len(views))
	for i, v := range views {
		out[i] = externalids.ViewToResponse(v)
	}
	c.JSON(http.StatusOK, out)
}

// GetID returns the record's identifier in one system
func (h *Handler) GetID(c *gin.Context) {
	l, id, ok := h.target(c)
	if !ok {
		return
	}
	code := c.Param("system")
	value, found, err := l.GetExternalID(c.Request.Context(), id, code)
	if err != nil {
		respond(c, err, "Failed to fetch external id")
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "No " + code + " identifier for this record"})
		return
	}
	c.JSON(http.StatusOK, IDResponse{System: code, Identifier: value})
}

// SetID writes the record's identifier in one system
func (h *Handler) SetID(c *gin.Context) {
	l, id, ok := h.target(c)
	if !ok {
		return
	}
	var req SetIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := l.SetExternalID(c.Request.Context(), id, c.Param("system"), req.Identifier)
	if err != nil {
		respond(c, err, "Failed to set external id")
		return
	}
	view, err := h.ids.DescribeOne(c.Request.Context(), *row)
	if err != nil {
		respond(c, err, "Failed to describe external id")
		return
	}
	c.JSON(http.StatusOK, externalids.ViewToResponse(view))
}

// SetLinks replaces the record's active links
func (h *Handler) SetLinks(c *gin.Context) {
	l, id, ok := h.target(c)
	if !ok {
		return
	}
	var req SetLinksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries := make([]LinkEntry, len(req.Links))
	for i, e := range req.Links {
		entries[i] = LinkEntry{System: e.System, Identifier: e.Identifier, Notes: e.Notes}
	}
	rows, err := l.SetLinks(c.Request.Context(), id, entries)
	if err != nil {
		respond(c, err, "Failed to set external ids")
		return
	}
	h.describe(c, rows)
}

// Systems returns the systems the record is actively linked to
func (h *Handler) Systems(c *gin.Context) {
	l, id, ok := h.target(c)
	if !ok {
		return
	}
	linked, err := l.LinkedSystems(c.Request.Context(), id)
	if err != nil {
		respond(c, err, "Failed to fetch systems")
		return
	}
	out := make([]systems.SystemResponse, len(linked))
	for i, s := range linked {
		out[i] = systems.ToResponse(s)
	}
	c.JSON(http.StatusOK, out)
}

// URL builds the record's URL in a system
func (h *Handler) URL(c *gin.Context) {
	l, id, ok := h.target(c)
	if !ok {
		return
	}
	code, kind := c.Param("system"), c.DefaultQuery("kind", KindStore)
	url, found := l.GetExternalURL(c.Request.Context(), id, code, kind)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "No " + kind + " URL for this record in " + code})
		return
	}
	c.JSON(http.StatusOK, URLResponse{System: code, Kind: kind, URL: url})
}

// Search finds the record of :type linked to ?system=&value=
func (h *Handler) Search(c *gin.Context) {
	l, ok := h.linker(c)
	if !ok {
		return
	}
	code, value := c.Query("system"), c.Query("value")
	if code == "" || value == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "system and value are required"})
		return
	}
	rec, err := l.SearchByExternalID(c.Request.Context(), code, value)
	if err != nil {
		respond(c, err, "Search failed")
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No " + l.RecordType() + " linked to " + code + ":" + value})
		return
	}
	c.JSON(http.StatusOK, externalids.RecordToResponse(rec))
}

// RegisterRoutes registers the record routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	recs := rg.Group("/records")
	recs.GET("/types", h.Types)
	recs.GET("/:type/search", h.Search)
	recs.GET("/:type/:id/external-ids", h.LinkedIDs)
	recs.PUT("/:type/:id/external-ids", h.SetLinks)
	recs.GET("/:type/:id/external-ids/:system", h.GetID)
	recs.PUT("/:type/:id/external-ids/:system", h.SetID)
	recs.GET("/:type/:id/systems", h.Systems)
	recs.GET("/:type/:id/url/:system", h.URL)
}
