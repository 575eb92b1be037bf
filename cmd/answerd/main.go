package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/threadmind/answerd/internal/config"
	"github.com/threadmind/answerd/internal/db"
	dbRedis "github.com/threadmind/answerd/internal/db/redis"
	"github.com/threadmind/answerd/internal/domain"
	logpkg "github.com/threadmind/answerd/internal/logger"
	"github.com/threadmind/answerd/internal/metrics"
	"github.com/threadmind/answerd/internal/repository/embcache"
	indexrepo "github.com/threadmind/answerd/internal/repository/index"
	watermarkrepo "github.com/threadmind/answerd/internal/repository/watermark"
	chiTransport "github.com/threadmind/answerd/internal/transport/chi"
	openaiEmb "github.com/threadmind/answerd/internal/transport/openai"
	redditTransport "github.com/threadmind/answerd/internal/transport/reddit"
	"github.com/threadmind/answerd/internal/usecase/health"
	"github.com/threadmind/answerd/internal/usecase/ingest"
	"github.com/threadmind/answerd/internal/usecase/matcher"
	"github.com/threadmind/answerd/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting answerd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("subreddit", cfg.Reddit.Subreddit),
	)

	// Both supported drivers speak RESP, so one store serves redis and valkey.
	var store db.Store
	store, err = dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.Register()

	// Build embedder chain — composition root
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	var embedder domain.Embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)

	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// A provider that cannot serve the configured model would poison every
	// pass, so refuse to start.
	healthCtx, cancelHealth := context.WithTimeout(ctx, time.Duration(cfg.Embedding.TimeoutSec)*time.Second)
	if err := base.HealthCheck(healthCtx); err != nil {
		cancelHealth()
		logger.Fatal("Embedding provider unavailable", zap.Error(err))
	}
	cancelHealth()

	// Similarity index. EnsureIndex fails when the stored vector dimension
	// differs from the configured one.
	indexRepo := indexrepo.New(store, cfg.Index.Name, cfg.Embedding.Dimensions).
		WithHNSW(indexrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
	if err := indexRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure similarity index", zap.Error(err))
	}

	watermarkStore := watermarkrepo.New(store, cfg.Index.Name)

	redditClient := redditTransport.NewClient(&redditTransport.Config{
		UserAgent:    cfg.Reddit.UserAgent,
		FetchLimit:   cfg.Reddit.FetchLimit,
		CommentLimit: cfg.Reddit.CommentLimit,
		Timeout:      time.Duration(cfg.Reddit.TimeoutSec) * time.Second,
		Logger:       logger,
	})

	// Use case services
	matcherSvc := matcher.New(embedder, indexRepo, cfg.Matcher.Threshold, cfg.Matcher.TopK, logger).
		WithQueryTimeout(time.Duration(cfg.Matcher.QueryTimeoutSec) * time.Second)

	ingestSvc := ingest.New(
		redditClient,
		embedder,
		indexRepo,
		watermarkStore,
		cfg.Reddit.Subreddit,
		time.Duration(cfg.Reddit.PollIntervalSec)*time.Second,
		logger,
	)

	healthSvc := health.New(store, base)

	// Create chi server
	server := chiTransport.NewServer(matcherSvc, ingestSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// Background ingestion loop, stopped on shutdown
	ingestCtx, cancelIngest := context.WithCancel(ctx)
	defer cancelIngest()
	go ingestSvc.Run(ingestCtx)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	cancelIngest()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
