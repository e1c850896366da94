package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"study-companion/internal/config"
	"study-companion/internal/database"
	"study-companion/internal/handlers"
	"study-companion/internal/logging"
	"study-companion/internal/metrics"
	"study-companion/internal/middleware"
	"study-companion/internal/router"
	"study-companion/internal/services"
	"study-companion/internal/session"
	"study-companion/internal/web"
	"study-companion/internal/websocket"
	"study-companion/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("✗ Configuration invalid")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Msg("🚀 Starting Study Companion...")
	logger.Info().Msg("✓ Environment variables loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Metrics ────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// ──── Step 3: Initialize Redis Clients (optional) ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("✗ Redis connection failed")
		}
		defer redisClients.Close()
		logger.Info().Msg("✓ Redis connected")
	} else {
		logger.Info().Msg("• REDIS_URL not set, using in-process rate limiting and events")
	}

	// ──── Step 4: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(ctx, services.GeminiConfig{
		APIKey:             cfg.GeminiAPIKey,
		Model:              cfg.GeminiModel,
		Temperature:        cfg.GeminiTemperature,
		RequestsPerMinute:  cfg.GeminiRequestsPerMin,
		ConcurrentRequests: cfg.GeminiConcurrentReqs,
		MaxRetries:         cfg.GeminiMaxRetries,
		HistoryLimit:       cfg.QnAHistoryLimit,
	}, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("✗ Gemini client initialization failed")
	}
	defer geminiService.Close()
	logger.Info().Str("model", cfg.GeminiModel).Msg("✓ Gemini client initialized")

	// ──── Step 5: Sessions ────
	store := session.NewStore(cfg.SessionTTL, cfg.FlashcardFlipDelay, m, logger)
	go store.Run(ctx)

	tokens := middleware.NewSessionTokens(cfg.SessionSecret)
	sessionAuth := middleware.NewSessionAuth(tokens, store, !cfg.IsDevelopment())
	logger.Info().Dur("ttl", cfg.SessionTTL).Msg("✓ Session store ready")

	var limiter middleware.Limiter
	var pubsub *redis.Client
	if redisClients != nil {
		limiter = middleware.NewRedisLimiter(redisClients.Commands, cfg.GenerateRateLimit, time.Minute)
		pubsub = redisClients.PubSub
	} else {
		memLimiter := middleware.NewMemoryLimiter(cfg.GenerateRateLimit, time.Minute)
		go memLimiter.Run(ctx)
		limiter = memLimiter
	}

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(pubsub, tokens, logger)
	logger.Info().Msg("✓ WebSocket hub started")

	// ──── Step 7: Start Job Worker Pool ────
	workerPool := worker.NewPool(geminiService, wsHub, m, logger, cfg.WorkerCount, cfg.JobQueueSize, cfg.JobTimeout)
	workerPool.Start()
	logger.Info().Int("workers", cfg.WorkerCount).Msg("✓ Worker pool started")

	// ──── Initialize Handlers ────
	renderer, err := web.NewRenderer()
	if err != nil {
		logger.Fatal().Err(err).Msg("✗ Template parsing failed")
	}

	pageHandler := handlers.NewPageHandler(sessionAuth, store, renderer, cfg.MaxImageBytes, logger)
	sessionHandler := handlers.NewSessionHandler(sessionAuth)
	imageHandler := handlers.NewImageHandler(cfg.MaxImageBytes, logger)
	generateHandler := handlers.NewGenerateHandler(workerPool, m, logger)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(router.Deps{
		SessionAuth:     sessionAuth,
		Limiter:         limiter,
		PageHandler:     pageHandler,
		SessionHandler:  sessionHandler,
		ImageHandler:    imageHandler,
		GenerateHandler: generateHandler,
		WSHub:           wsHub,
		Gatherer:        registry,
		FrontendURL:     cfg.FrontendURL,
		Logger:          logger,
	})

	// No WriteTimeout: websocket connections are long-lived.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		workerPool.Stop()
	}()

	logger.Info().Msgf("✓ Study Companion ready on http://localhost:%s", cfg.Port)
	logger.Info().Msgf("  API: http://localhost:%s/api/v1", cfg.Port)
	logger.Info().Msgf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server error")
	}

	<-shutdownDone
	logger.Info().Msg("Stopped")
}
