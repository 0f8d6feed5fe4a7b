package redirect

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/externalids"
	"github.com/mikepea/extids/pkg/extids/linking"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/urltemplates"
)

// Handler redirects to a record's page in an external system. Lookups run
// with the scope already on the request context; without one nothing is found.
type Handler struct {
	ids  *externalids.Service
	urls *urltemplates.Service
	log  logger.Logger
}

// NewHandler creates a new redirect handler
func NewHandler(ids *externalids.Service, urls *urltemplates.Service, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{ids: ids, urls: urls, log: log}
}

// Redirect sends the caller to the kind URL (store by default) of the record
func (h *Handler) Redirect(c *gin.Context) {
	recordType, code := c.Param("type"), c.Param("system")
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record ID"})
		return
	}

	l, err := linking.New(recordType, h.ids, h.urls, h.log)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown record type"})
		return
	}

	url, ok := l.GetExternalURL(c.Request.Context(), uint(id), code, c.Query("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No URL for this record in " + code})
		return
	}

	c.Redirect(http.StatusFound, url)
}

// RegisterRoutes registers redirect routes
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/go/:type/:id/:system", h.Redirect)
}
