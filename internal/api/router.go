package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/trailworks/trail/internal/app"
	iauth "github.com/trailworks/trail/internal/auth"
	"github.com/trailworks/trail/internal/exports"
	"github.com/trailworks/trail/internal/handlers"
	"github.com/trailworks/trail/internal/middleware"
	"github.com/trailworks/trail/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers the log routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, logSvc *services.LogService, sink exports.Sink) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if logSvc == nil {
		return nil, fmt.Errorf("log service must be provided")
	}
	if sink == nil {
		return nil, fmt.Errorf("export sink must be provided")
	}

	logHandler, err := handlers.NewLogHandler(logSvc, sink, handlers.WithExportTTL(cfg.Exports.TTL))
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	logs := r.Group("/api/v1/logs")

	// Entry creation is service-to-service; the internal trust boundary is
	// enforced outside this layer.
	logs.POST("", logHandler.Create)
	logs.POST("/bulk", logHandler.CreateBulk)

	requireAuth := middleware.Auth(jwt)
	logs.GET("", requireAuth, middleware.RequirePermission("logs.view"), logHandler.List)
	logs.GET("/stats", requireAuth, middleware.RequirePermission("logs.view"), logHandler.Stats)
	logs.GET("/:id", requireAuth, middleware.RequirePermission("logs.view"), logHandler.Get)
	logs.POST("/export", requireAuth, middleware.RequirePermission("logs.export"), logHandler.Export)
	logs.GET("/exports/:filename", requireAuth, middleware.RequirePermission("logs.export"), logHandler.Download)

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(cfg.Monitoring.Prometheus.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
