package routes

import (
	"github.com/gin-gonic/gin"

	"mingle/internal/interfaces/http/handlers"
	"mingle/internal/interfaces/http/middleware"
)

// IntegrationRouteConfig holds dependencies for the integration routes.
type IntegrationRouteConfig struct {
	IntegrationHandler *handlers.IntegrationHandler
	AuthMiddleware     *middleware.AuthMiddleware
}

// SetupIntegrationRoutes configures the calendar integration API.
func SetupIntegrationRoutes(engine *gin.Engine, cfg *IntegrationRouteConfig) {
	api := engine.Group("/api/integration")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	{
		api.POST("/connect", cfg.IntegrationHandler.Connect)
		api.POST("/syncNow", cfg.IntegrationHandler.SyncNow)
		api.POST("/disconnect", cfg.IntegrationHandler.Disconnect)
		api.GET("/status", cfg.IntegrationHandler.Status)
		api.GET("/events", cfg.IntegrationHandler.Events)
		api.POST("/toggleMirror", cfg.IntegrationHandler.ToggleMirror)
		api.GET("/oauth/calendly/authorize", cfg.IntegrationHandler.AuthorizeCalendly)
		api.GET("/oauth/google/authorize", cfg.IntegrationHandler.AuthorizeGoogle)
	}

	// Provider redirects land here without a bearer token; the
	// single-use state parameter binds them to the initiating user.
	oauth := engine.Group("/api/integration/oauth")
	{
		oauth.GET("/calendly/callback", cfg.IntegrationHandler.CalendlyCallback)
		oauth.GET("/google/callback", cfg.IntegrationHandler.GoogleCallback)
	}
}
