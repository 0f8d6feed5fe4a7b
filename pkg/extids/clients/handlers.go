package clients

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/models"
)

// Handler handles API client administration
type Handler struct {
	svc *Service
}

// NewHandler creates a new clients handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ClientResponse represents a client in responses
type ClientResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	KeyPrefix   string     `json:"key_prefix"`
	Role        string     `json:"role"`
	RecordTypes []string   `json:"record_types"`
	CompanyIDs  []uint     `json:"company_ids"`
	Active      bool       `json:"active"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateClientRequest represents a request to create a client
type CreateClientRequest struct {
	Name        string   `json:"name" binding:"required"`
	Role        string   `json:"role"`
	RecordTypes []string `json:"record_types"`
	CompanyIDs  []uint   `json:"company_ids"`
}

// CreateClientResponse includes the secret (only shown once)
type CreateClientResponse struct {
	ClientResponse
	Secret string `json:"secret"`
}

// ToResponse converts a client for API output
func ToResponse(c models.APIClient) ClientResponse {
	types := c.RecordTypeList()
	if types == nil {
		types = []string{}
	}
	companies := c.CompanyIDList()
	if companies == nil {
		companies = []uint{}
	}
	return ClientResponse{
		ID:          c.ID,
		Name:        c.Name,
		KeyPrefix:   c.KeyPrefix,
		Role:        string(c.Role),
		RecordTypes: types,
		CompanyIDs:  companies,
		Active:      c.Active,
		LastUsedAt:  c.LastUsedAt,
		CreatedAt:   c.CreatedAt,
	}
}

// Create registers a client and returns its secret
func (h *Handler) Create(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	client, secret, err := h.svc.Create(c.Request.Context(), Input{
		Name:        req.Name,
		Role:        models.ClientRole(req.Role),
		RecordTypes: req.RecordTypes,
		CompanyIDs:  req.CompanyIDs,
	})
	if err != nil {
		status, msg := errs.Response(err, "Failed to create client")
		c.JSON(status, gin.H{"error": msg})
		return
	}

	// Return the secret - this is the only time it's visible
	c.JSON(http.StatusCreated, CreateClientResponse{ClientResponse: ToResponse(*client), Secret: secret})
}

// List returns all clients
func (h *Handler) List(c *gin.Context) {
	clients, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch clients"})
		return
	}
	responses := make([]ClientResponse, len(clients))
	for i, client := range clients {
		responses[i] = ToResponse(client)
	}
	c.JSON(http.StatusOK, responses)
}

// Delete removes a client
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}
	if err := h.svc.Delete(c.Request.Context(), uint(id)); err != nil {
		status, msg := errs.Response(err, "Client not found")
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Client deleted"})
}

// RegisterRoutes registers client routes; callers mount them behind admin auth
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/clients", h.Create)
	rg.GET("/clients", h.List)
	rg.DELETE("/clients/:id", h.Delete)
}
