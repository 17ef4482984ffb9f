// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/currents/internal/api"
	"github.com/onnwee/currents/internal/archive"
	"github.com/onnwee/currents/internal/article"
	"github.com/onnwee/currents/internal/config"
	"github.com/onnwee/currents/internal/db"
	"github.com/onnwee/currents/internal/embed"
	"github.com/onnwee/currents/internal/engine"
	"github.com/onnwee/currents/internal/health"
	"github.com/onnwee/currents/internal/idempotency"
	"github.com/onnwee/currents/internal/jobs"
	"github.com/onnwee/currents/internal/learn"
	"github.com/onnwee/currents/internal/middleware"
	"github.com/onnwee/currents/internal/personal"
	"github.com/onnwee/currents/internal/ranking"
	"github.com/onnwee/currents/internal/rerank"
	"github.com/onnwee/currents/internal/snapshot"
	"github.com/onnwee/currents/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Currents Ranking API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (optional)
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "currents-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	// Postgres
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	// Metrics registry: per-package collectors registered explicitly.
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	engineMetrics := engine.NewMetrics()
	rerankMetrics := rerank.NewMetrics()
	learnMetrics := learn.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	if err := engineMetrics.Register(registry); err != nil {
		logger.Error("failed to register engine metrics", "error", err)
		os.Exit(1)
	}
	if err := rerankMetrics.Register(registry); err != nil {
		logger.Error("failed to register rerank metrics", "error", err)
		os.Exit(1)
	}
	if err := learnMetrics.Register(registry); err != nil {
		logger.Error("failed to register learn metrics", "error", err)
		os.Exit(1)
	}
	if err := jobMetrics.Register(registry); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// Domain wiring
	articles := article.NewPostgresStore(conn, logger)
	pool := article.NewPoolBuilder(articles, logger)
	scorer := ranking.NewScorer(cfg.Tier1Sources)
	snapshots := snapshot.NewRedisStore(redisClient, logger)

	var oracle engine.Oracle
	if cfg.RerankerURL != "" {
		client, err := rerank.NewClient(rerank.ClientConfig{
			BaseURL: cfg.RerankerURL,
			APIKey:  cfg.RerankerAPIKey,
			Metrics: rerankMetrics,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to create reranker client", "error", err)
			os.Exit(1)
		}
		oracle = client
	} else {
		logger.Info("no reranker configured, running heuristics-only")
	}

	liveHub := api.NewLiveHub(logger)
	rankingEngine := engine.New(engine.Config{}, pool, scorer, oracle, snapshots, logger).
		WithMetrics(engineMetrics).
		WithNotifier(liveHub)

	if cfg.ArchiveEnabled() {
		archiver, err := archive.New(archive.Config{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("failed to create snapshot archiver", "error", err)
			os.Exit(1)
		}
		rankingEngine = rankingEngine.WithArchiver(archiver)
	}

	learnStore := learn.NewPostgresStore(conn)
	recorder := learn.NewRecorder(learnStore, articles, logger, learnMetrics)
	if cfg.EmbedderURL != "" {
		provider, err := embed.NewHTTPProvider(embed.HTTPProviderConfig{
			BaseURL: cfg.EmbedderURL,
			APIKey:  cfg.EmbedderAPIKey,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to create embedding provider", "error", err)
			os.Exit(1)
		}
		recorder = recorder.WithEmbedder(embed.NewCache(provider, 4096))
	}

	overlay := personal.NewOverlay(snapshots, learnStore, logger)

	// Handlers
	trendingHandler := api.NewTrendingHandler(rankingEngine)
	feedHandler := api.NewFeedHandler(overlay)
	feedbackHandler := api.NewFeedbackHandler(recorder, logger)
	liveHandler := api.NewLiveHandler(liveHub, logger)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		RedisChecker:   health.NewRedisChecker(redisClient),
		DBChecker:      health.NewDBChecker(conn),
		MetricsEnabled: true,
	})

	// Per-endpoint rate limits keyed by path user id, falling back to
	// client IP. Wrapping inside the mux keeps the path values available.
	var feedLimit, feedbackLimit func(http.Handler) http.Handler
	if cfg.RateLimitEnabled {
		limitStore := middleware.NewRedisRateLimitStore(redisClient).AsRateLimitStore()
		feedLimit = middleware.RateLimiter(limitStore, middleware.DefaultFeedLimit(), middleware.UserKeyFunc(), httpMetrics)
		feedbackLimit = middleware.RateLimiter(limitStore, middleware.DefaultFeedbackLimit(), middleware.UserKeyFunc(), httpMetrics)
	} else {
		passthrough := func(next http.Handler) http.Handler { return next }
		feedLimit = passthrough
		feedbackLimit = passthrough
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/trending", trendingHandler.GetTrending)
	mux.HandleFunc("GET /v1/trending/live", liveHandler.GetLive)
	mux.Handle("GET /v1/users/{userID}/feed", pathUser(feedLimit(http.HandlerFunc(feedHandler.GetFeed))))
	mux.Handle("POST /v1/users/{userID}/feedback", pathUser(feedbackLimit(http.HandlerFunc(feedbackHandler.PostFeedback))))
	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /ready", healthHandlers.Ready)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"currents-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Outer chain: RequestID -> Logging -> HTTPMetrics -> (Tracing) ->
	// (CORS) -> (Idempotency) -> mux
	var handler http.Handler = mux
	if cfg.IdempotencyEnabled {
		idemRepo := idempotency.NewInMemoryRepository()
		handler = middleware.IdempotencyMiddleware(idemRepo, map[string]bool{
			"/v1/users/{id}/feedback": true,
		})(handler)
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins})(handler)
	}
	if cfg.TracingEnabled {
		handler = middleware.Tracing("currents-api")(handler)
	}
	if cfg.Env == "development" {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}
	handler = middleware.RequestID(middleware.Logging(logger)(middleware.HTTPMetrics(httpMetrics)(handler)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Hourly generation schedule
	generateJob := engine.NewGenerateJob(engine.GenerateJobConfig{
		CronSpec:   cfg.CronSpec,
		Logger:     logger,
		JobMetrics: jobMetrics,
	}, rankingEngine)
	if err := generateJob.Start(ctx); err != nil {
		logger.Error("failed to start generation job", "error", err)
		os.Exit(1)
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	generateJob.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// pathUser copies the userID path value into the request context so the
// rate limiter and request log key on the user rather than the client IP.
func pathUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := r.PathValue("userID"); userID != "" {
			r = r.WithContext(middleware.SetUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}
