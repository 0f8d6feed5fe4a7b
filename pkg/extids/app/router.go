package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/admin"
	"github.com/mikepea/extids/pkg/extids/auth"
	"github.com/mikepea/extids/pkg/extids/clients"
	"github.com/mikepea/extids/pkg/extids/externalids"
	"github.com/mikepea/extids/pkg/extids/importexport"
	"github.com/mikepea/extids/pkg/extids/linking"
	"github.com/mikepea/extids/pkg/extids/middleware"
	"github.com/mikepea/extids/pkg/extids/redirect"
	"github.com/mikepea/extids/pkg/extids/systems"
	"github.com/mikepea/extids/pkg/extids/urltemplates"
)

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "extids"})
}

// Router builds the gin engine with every route registered
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Trace(), middleware.Log(a.Log))

	r.GET("/health", health)

	api := r.Group("/api")
	{
		api.GET("/health", health)

		// Token exchange (public)
		auth.NewHandler(a.Clients, a.Issuer, a.Log).RegisterRoutes(api.Group("/auth"))

		// Everything else needs a bearer token; the token's scope limits what is visible
		authed := api.Group("", auth.Middleware(a.Issuer))
		adminOnly := authed.Group("", auth.RequireAdmin())

		systemsHandler := systems.NewHandler(a.Systems)
		systemsHandler.RegisterRoutes(authed)
		systemsHandler.RegisterAdminRoutes(adminOnly)

		urlsHandler := urltemplates.NewHandler(a.DB)
		urlsHandler.RegisterRoutes(authed)
		urlsHandler.RegisterAdminRoutes(adminOnly)

		externalids.NewHandler(a.IDs).RegisterRoutes(authed)
		linking.NewHandler(a.IDs, a.URLs, a.Log).RegisterRoutes(authed)
		importexport.NewHandler(a.Imports).RegisterRoutes(authed)

		adminGroup := adminOnly.Group("/admin")
		clients.NewHandler(a.Clients).RegisterRoutes(adminGroup)
		admin.NewHandler(a.DB).RegisterRoutes(adminGroup)
	}

	// Redirects reveal identifiers, so they follow the caller's token scope
	redirect.NewHandler(a.IDs, a.URLs, a.Log).RegisterRoutes(r.Group("", auth.Middleware(a.Issuer)))

	return r
}
