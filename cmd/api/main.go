// Package main is the entrypoint for the adserve API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/soundstage/adserve/internal/cache"
	"github.com/soundstage/adserve/internal/config"
	"github.com/soundstage/adserve/internal/frequency"
	"github.com/soundstage/adserve/internal/handler"
	"github.com/soundstage/adserve/internal/metrics"
	"github.com/soundstage/adserve/internal/middleware"
	"github.com/soundstage/adserve/internal/repository"
	"github.com/soundstage/adserve/internal/server"
	"github.com/soundstage/adserve/internal/serving"
	"github.com/soundstage/adserve/internal/tracking"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Initialize metrics and tracking pipeline
	metricsRecorder := metrics.NewInMemory()
	publisher := tracking.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
	worker := tracking.NewWorker(cacheClient.Client(), repo, logger, tracking.NewConsumerID(), metricsRecorder)
	worker.SetBatchSize(cfg.TrackingBatchSize)

	// Initialize the serving engine
	sessions := serving.NewSessionManager(cfg.SessionIdleTTL, nil)
	adService := serving.NewAdService(serving.AdServiceConfig{
		Repo:        repo,
		Cache:       cacheClient,
		Frequency:   frequency.NewStore(cacheClient.FrequencyKV()),
		Publisher:   publisher,
		Sessions:    sessions,
		Metrics:     metricsRecorder,
		Logger:           logger,
		SettleDelay:      cfg.ImpressionSettle,
		ViewerHashSecret: cfg.ViewerHashSecret,
	})

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)
	serveHandler := handler.NewServeHandler(adService, logger)
	clickHandler := handler.NewClickHandler(adService, logger)
	statsHandler := handler.NewStatsHandler(repo, logger)

	// Setup router
	r := setupRouter(h, healthHandler, metricsHandler, serveHandler, clickHandler, statsHandler, repo, cacheClient, cfg, logger)

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Worker registers first so it drains last, after the serve path
	// has stopped producing events.
	srv.OnShutdown("tracking-worker", worker.Shutdown)
	srv.OnShutdown("serving-sessions", func(ctx context.Context) error {
		sessions.Shutdown()
		return nil
	})

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	go func() {
		if err := worker.Run(workerCtx); err != nil && err != context.Canceled {
			logger.Error("tracking worker exited", "error", err)
		}
	}()

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	metricsHandler *handler.MetricsHandler,
	serveHandler *handler.ServeHandler,
	clickHandler *handler.ClickHandler,
	statsHandler *handler.StatsHandler,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// Root info endpoint
	r.Get("/", h.Hello)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     logger,
		Repository: repo,
		Cache:      cacheClient,
	}

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       logger,
		Cache:        cacheClient,
		APIEnabled:   cfg.RateLimitAPIEnabled,
		ServeEnabled: cfg.RateLimitServeEnabled,
		ServeRPS:     cfg.RateLimitServeRPS,
		ServeBurst:   cfg.RateLimitServeBurst,
	}

	// Serve endpoint: anonymous, IP rate limited
	r.With(middleware.RateLimitIP(rateLimitCfg)).Get("/api/v1/serve", serveHandler.Serve)

	// Click-through redirect: anonymous, IP rate limited
	r.With(middleware.RateLimitIP(rateLimitCfg)).Get("/ads/{adID}/click", clickHandler.Click)

	// Advertiser reporting API (requires authentication)
	r.Route("/api/v1/stats", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))
		r.Use(middleware.Security(middleware.SecurityConfig{
			IsDevelopment:      cfg.IsDevelopment(),
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		}))

		r.With(middleware.RequireStats()).Get("/ads", statsHandler.ListAds)
		r.With(middleware.RequireStats()).Get("/ads/{adID}", statsHandler.GetAdStats)
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
