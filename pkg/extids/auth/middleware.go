package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/policy"
)

const (
	// ContextKeyClientID is the key for the client ID in gin context
	ContextKeyClientID = "client_id"
	// ContextKeyClientName is the key for the client name in gin context
	ContextKeyClientName = "client_name"
	// ContextKeyRole is the key for the client role in gin context
	ContextKeyRole = "role"
)

// Middleware validates bearer tokens. The client's visibility scope is put on
// the request context, where the services read it.
func Middleware(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := issuer.ValidateToken(parts[1])
		if err != nil {
			if err == ErrExpiredToken {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyClientID, claims.ClientID)
		c.Set(ContextKeyClientName, claims.Name)
		c.Set(ContextKeyRole, claims.Role)
		c.Request = c.Request.WithContext(policy.WithScope(c.Request.Context(), claims.Scope()))

		c.Next()
	}
}

// RequireAdmin checks that the caller holds the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextKeyRole)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		if role != string(models.ClientRoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetClientID returns the client ID from the gin context
func GetClientID(c *gin.Context) (uint, bool) {
	id, exists := c.Get(ContextKeyClientID)
	if !exists {
		return 0, false
	}
	return id.(uint), true
}

// GetRole returns the client role from the gin context
func GetRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(ContextKeyRole)
	if !exists {
		return "", false
	}
	return role.(string), true
}
