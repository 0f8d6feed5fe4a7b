package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/clients"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/policy"
)

// Handler handles authentication requests
type Handler struct {
	clients *clients.Service
	issuer  *Issuer
	log     logger.Logger
}

// NewHandler creates a new auth handler
func NewHandler(svc *clients.Service, issuer *Issuer, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{clients: svc, issuer: issuer, log: log}
}

// TokenRequest represents the client credentials exchange
type TokenRequest struct {
	Client string `json:"client" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

// TokenResponse represents an issued token
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
}

// MeResponse describes the authenticated client
type MeResponse struct {
	ClientID    uint     `json:"client_id"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	RecordTypes []string `json:"record_types"`
	CompanyIDs  []uint   `json:"company_ids"`
}

// Token exchanges client credentials for a bearer token
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.clients.Authenticate(c.Request.Context(), req.Client, req.Secret)
	if err != nil {
		if errors.Is(err, clients.ErrInvalidCredentials) {
			h.log.Warn("token request rejected", logger.String("client", req.Client))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid client or secret"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to authenticate"})
		return
	}

	token, expires, err := h.issuer.GenerateToken(client)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expires, Role: string(client.Role)})
}

// Me returns the authenticated client and its scope
func (h *Handler) Me(c *gin.Context) {
	id, ok := GetClientID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	role, _ := GetRole(c)
	name, _ := c.Get(ContextKeyClientName)
	scope, _ := policy.FromContext(c.Request.Context())

	resp := MeResponse{ClientID: id, Role: role, RecordTypes: scope.RecordTypes, CompanyIDs: scope.CompanyIDs}
	resp.Name, _ = name.(string)
	if resp.RecordTypes == nil {
		resp.RecordTypes = []string{}
	}
	if resp.CompanyIDs == nil {
		resp.CompanyIDs = []uint{}
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/token", h.Token)
	rg.GET("/me", Middleware(h.issuer), h.Me)
}
