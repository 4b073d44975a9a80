package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"fleettrack/internal/app"
	"fleettrack/internal/clock"
	"fleettrack/internal/config"
	"fleettrack/internal/database"
	"fleettrack/internal/handler"
	"fleettrack/internal/logger"
	"fleettrack/internal/metrics"
	"fleettrack/internal/middleware"
	internalRedis "fleettrack/internal/redis"
	"fleettrack/internal/repository/postgres"
	"fleettrack/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	log := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Error("failed to initialize New Relic", slog.String("error", err.Error()))
		} else {
			log.Info("New Relic enabled", slog.String("app", cfg.NewRelic.AppName))
		}
	}

	if cfg.Database.Migrate {
		if err := database.RunMigrations(cfg.Database.URL()); err != nil {
			log.Error("failed to migrate database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("database schema is up to date")
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	// Wire dependencies.
	server, limiter := wireServer(db, redisClient, nrApp, cfg, log)
	defer limiter.Stop()

	// Start server in goroutine.
	go func() {
		log.Info("starting server", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log *slog.Logger) (*http.Server, *middleware.RateLimiter) {
	provider := clock.NewProvider(cfg.Session.TZOffsetHours)

	// Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	// Initialize Redis stores.
	tapGuard := internalRedis.NewTapGuard(redisClient)
	presence := internalRedis.NewPresenceStore(redisClient)
	reportCache := internalRedis.NewReportCache(redisClient)
	idempotency := internalRedis.NewIdempotencyStore(redisClient)

	// Initialize repositories.
	txManager := postgres.NewTxManager(db, cfg.Database.LockTimeout)
	driverRepo := postgres.NewDriverRepository(db)
	vehicleRepo := postgres.NewVehicleRepository(db)
	deviceRepo := postgres.NewDeviceRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	eventRepo := postgres.NewPassengerEventRepository(db)
	reportRepo := postgres.NewReportRepository(db)

	// Initialize services.
	sessionCfg := service.SessionConfig{
		MaxRetries:   cfg.Session.MaxRetries,
		RetryBackoff: cfg.Session.RetryBackoff,
		TapDebounce:  cfg.Session.TapDebounce,
	}
	sessionService := service.NewSessionService(service.SessionServiceDeps{
		Tx:          txManager,
		Devices:     deviceRepo,
		Vehicles:    vehicleRepo,
		Drivers:     driverRepo,
		Sessions:    sessionRepo,
		Calendar:    provider,
		TapGuard:    tapGuard,
		Presence:    presence,
		ReportCache: reportCache,
		Metrics:     recorder,
		Logger:      log.With(slog.String("component", "session")),
	}, sessionCfg)
	boardingService := service.NewBoardingService(service.BoardingServiceDeps{
		Tx:       txManager,
		Devices:  deviceRepo,
		Sessions: sessionRepo,
		Events:   eventRepo,
		Clock:    provider,
		Presence: presence,
		Metrics:  recorder,
		Logger:   log.With(slog.String("component", "boarding")),
	}, sessionCfg)
	reportService := service.NewReportService(service.ReportServiceDeps{
		Reports:  reportRepo,
		Drivers:  driverRepo,
		Vehicles: vehicleRepo,
		Clock:    provider,
		Cache:    reportCache,
		CacheTTL: cfg.Report.CacheTTL,
		Metrics:  recorder,
		Logger:   log.With(slog.String("component", "report")),
	})
	deviceService := service.NewDeviceService(deviceRepo, presence, provider)

	limiterCfg := middleware.DefaultRateLimiterConfig()
	limiterCfg.Rate = rate.Limit(cfg.RateLimit.RPS)
	limiterCfg.Burst = cfg.RateLimit.Burst
	if cfg.RateLimit.RPS <= 0 {
		limiterCfg.Rate = rate.Inf
	}
	limiter := middleware.NewRateLimiter(limiterCfg, log)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		TapHandler:     handler.NewTapHandler(sessionService, boardingService),
		SessionHandler: handler.NewSessionHandler(sessionService),
		ReportHandler:  handler.NewReportHandler(reportService, provider),
		DeviceHandler:  handler.NewDeviceHandler(deviceService),
		Idempotency:    idempotency,
		RateLimiter:    limiter,
		Gatherer:       registry,
		NewRelicApp:    nrApp,
		Logger:         log,
		CORSOrigin:     cfg.Server.CORSOrigin,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, limiter
}
