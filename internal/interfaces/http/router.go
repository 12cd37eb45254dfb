// Package http wires the gin engine: dependencies, middleware, routes.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	appintegration "mingle/internal/application/integration"
	"mingle/internal/infrastructure/auth"
	"mingle/internal/infrastructure/cache"
	"mingle/internal/infrastructure/config"
	"mingle/internal/infrastructure/gcal"
	"mingle/internal/infrastructure/ratelimit"
	"mingle/internal/infrastructure/repository"
	"mingle/internal/infrastructure/vault"
	"mingle/internal/interfaces/http/handlers"
	"mingle/internal/interfaces/http/middleware"
	"mingle/internal/interfaces/http/routes"
	"mingle/internal/shared/logger"
	"mingle/internal/sync/feed"
	"mingle/internal/sync/mirror"
	"mingle/internal/sync/reconcile"
)

// Router holds the configured gin engine and the assembled service so
// the worker entrypoint can reuse the same pipeline wiring.
type Router struct {
	engine  *gin.Engine
	service *appintegration.Service
}

// NewRouter assembles repositories, the sync engine, and the HTTP
// surface from the shared process dependencies.
func NewRouter(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logger.Interface) (*Router, error) {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	service, err := BuildIntegrationService(db, redisClient, cfg, log)
	if err != nil {
		return nil, err
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWT.Secret, cfg.Auth.JWT.AccessExpMinutes)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, log)
	integrationHandler := handlers.NewIntegrationHandler(service, log)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	routes.SetupIntegrationRoutes(engine, &routes.IntegrationRouteConfig{
		IntegrationHandler: integrationHandler,
		AuthMiddleware:     authMiddleware,
	})

	return &Router{engine: engine, service: service}, nil
}

// Engine exposes the underlying gin engine for the HTTP server.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Service exposes the assembled integration service.
func (r *Router) Service() *appintegration.Service {
	return r.service
}

// BuildIntegrationService wires the integration service from process
// dependencies. Both the API server and the sync worker call this, so
// the two processes run the exact same pipeline.
func BuildIntegrationService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logger.Interface) (*appintegration.Service, error) {
	v, err := vault.New(cfg.Vault.Key)
	if err != nil {
		return nil, err
	}

	accountRepo := repository.NewAccountRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)

	fetchTimeout := feedFetchTimeout(cfg)
	fetcher := feed.NewFetcher(fetchTimeout, log)
	normalizer := feed.NewNormalizer(log)
	reconciler := reconcile.NewReconciler(meetingRepo, log)

	googleOAuth := auth.NewGoogleOAuthClient(cfg.OAuth.Google)
	calendlyOAuth := auth.NewCalendlyOAuthClient(cfg.OAuth.Calendly)
	googleTokens := auth.NewTokenManager(googleOAuth, v, accountRepo, log)

	sessionStore := cache.NewOAuthSessionStore(cache.NewRedisCache(redisClient, "mingle"))
	limiter := ratelimit.NewRedisRateLimiter(redisClient)

	return appintegration.NewService(appintegration.Deps{
		Accounts:      accountRepo,
		Meetings:      meetingRepo,
		Vault:         v,
		Fetcher:       fetcher,
		Normalizer:    normalizer,
		Reconciler:    reconciler,
		RateLimiter:   limiter,
		Sessions:      sessionStore,
		CalendlyOAuth: calendlyOAuth,
		GoogleOAuth:   googleOAuth,
		GoogleTokens:  googleTokens,
		CalendarFactory: func(ctx context.Context, accessToken string) (mirror.CalendarAPI, error) {
			return gcal.NewClient(ctx, accessToken, log)
		},
		SyncConfig: cfg.Sync,
		Logger:     log,
	}), nil
}

func feedFetchTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Sync.FetchTimeoutSeconds) * time.Second
}
