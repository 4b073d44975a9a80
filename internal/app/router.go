package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"

	"fleettrack/internal/handler"
	"fleettrack/internal/metrics"
	"fleettrack/internal/middleware"
	"fleettrack/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
// RateLimiter, Idempotency, Gatherer and NewRelicApp are optional.
type RouterDeps struct {
	TapHandler     *handler.TapHandler
	SessionHandler *handler.SessionHandler
	ReportHandler  *handler.ReportHandler
	DeviceHandler  *handler.DeviceHandler
	Idempotency    redis.IdempotencyStoreInterface
	RateLimiter    *middleware.RateLimiter
	Gatherer       prometheus.Gatherer
	NewRelicApp    *newrelic.Application
	Logger         *slog.Logger
	CORSOrigin     string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.CORSOrigin))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	if deps.RateLimiter != nil {
		v1.Use(deps.RateLimiter.Middleware())
	}
	if deps.Idempotency != nil {
		v1.Use(middleware.Idempotency(deps.Idempotency, middleware.DefaultIdempotencyTTL, deps.Logger))
	}
	{
		// Terminal routes.
		v1.POST("/taps", deps.TapHandler.HandleTap)
		v1.POST("/boardings", deps.TapHandler.RecordBoarding)

		// Session routes.
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", deps.SessionHandler.StartSession)
			sessions.GET("", deps.SessionHandler.ListActiveSessions)
			sessions.GET("/:id", deps.SessionHandler.GetSession)
			sessions.POST("/:id/end", deps.SessionHandler.EndSession)
		}

		// Report routes.
		reports := v1.Group("/reports")
		{
			reports.GET("/daily", deps.ReportHandler.Daily)
			reports.GET("/range", deps.ReportHandler.Range)
			reports.GET("/weekly", deps.ReportHandler.Weekly)
			reports.GET("/monthly", deps.ReportHandler.Monthly)
			reports.GET("/drivers/:id", deps.ReportHandler.Driver)
			reports.GET("/vehicles/:id", deps.ReportHandler.Vehicle)
		}

		// Device routes.
		devices := v1.Group("/devices")
		{
			devices.GET("/online", deps.DeviceHandler.ListOnline)
			devices.GET("/:id/presence", deps.DeviceHandler.GetPresence)
		}
	}

	return router
}
