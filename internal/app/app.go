package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/config"
	"github.com/veltrix/shoprec/internal/database"
	"github.com/veltrix/shoprec/internal/handlers"
	"github.com/veltrix/shoprec/internal/middleware"
	"github.com/veltrix/shoprec/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Initialize services
	svc, err := services.New(cfg, app.logger, db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svc

	// Catalog is reference data the pipeline cannot run without
	if err := svc.Catalog.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load product catalog: %w", err)
	}

	// Initialize handlers
	app.handlers = handlers.New(app.logger, svc)

	// Setup router
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if err := a.services.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing services")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	// Health check endpoints (no auth required)
	router.GET("/health", a.handlers.Health.Health)
	router.GET("/ready", a.handlers.Health.Ready)

	// Prometheus metrics endpoint (no auth required)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		// Browsing stays possible without a login: identity is resolved
		// when a token is present and left anonymous otherwise.
		api.Use(middleware.OptionalAuth(a.services.Auth, a.logger))

		// Interaction routes
		interactions := api.Group("/interactions")
		{
			interactions.POST("", a.handlers.Interaction.Track)
			interactions.GET("/trending", a.handlers.Interaction.GetTrending)
		}

		// Recommendation routes
		recommendations := api.Group("/recommendations")
		{
			recommendations.GET("/trending", a.handlers.Recommendation.GetTrending)
			recommendations.GET("/:userId", a.handlers.Recommendation.GetRecommendations)
		}

		// Product routes
		api.GET("/products/:productId/similar", a.handlers.Recommendation.GetSimilar)

		// User routes require an authenticated caller
		users := api.Group("/users")
		users.Use(middleware.Auth(a.services.Auth, a.logger))
		{
			users.GET("/:userId/preferences", a.handlers.Interaction.GetPreferences)
			users.PUT("/:userId/preferences", a.handlers.Interaction.UpdatePreferences)
			users.GET("/:userId/analytics", a.handlers.Interaction.GetAnalytics)
			users.GET("/:userId/export", a.handlers.Interaction.ExportData)
			users.DELETE("/:userId", a.handlers.Interaction.ClearData)
		}
	}

	a.router = router
}
