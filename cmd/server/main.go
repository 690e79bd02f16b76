package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"

	"gemini-chat-backend/internal/config"
	"gemini-chat-backend/internal/database"
	"gemini-chat-backend/internal/handlers"
	"gemini-chat-backend/internal/metrics"
	"gemini-chat-backend/internal/middleware"
	"gemini-chat-backend/internal/router"
	"gemini-chat-backend/internal/services"
	"gemini-chat-backend/internal/websocket"
	"gemini-chat-backend/web"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	setupLogging(cfg.LogFormat, cfg.LogLevel)
	log.WithField("env", cfg.Env).Info("Starting Gemini chat relay")

	// ──── Step 2: Initialize Completion Client ────
	generator, err := newGenerator(cfg)
	if err != nil {
		log.WithError(err).Fatal("Completion client initialization failed")
	}
	relay := services.NewRelayService(generator, cfg.GeminiConcurrentReqs)
	log.WithFields(log.Fields{
		"provider":    cfg.LLMProvider,
		"concurrency": cfg.GeminiConcurrentReqs,
	}).Info("Completion client initialized")

	// ──── Step 3: Rate Limiting (Redis when configured) ────
	var limiter middleware.Limiter
	if cfg.ChatRateLimit > 0 {
		if cfg.RedisURL != "" {
			redisClient, err := database.NewRedisClient(cfg.RedisURL)
			if err != nil {
				log.WithError(err).Fatal("Redis connection failed")
			}
			defer redisClient.Close()
			limiter = middleware.NewRedisRateLimiter(redisClient, cfg.ChatRateLimit, cfg.ChatRateWindow)
			log.Info("Redis connected, rate limiting is shared")
		} else {
			memLimiter := middleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow)
			defer memLimiter.Stop()
			limiter = memLimiter
			log.Info("In-memory rate limiting enabled")
		}
	}

	// ──── Step 4: Optional Bearer Auth ────
	var jwtAuth *middleware.JWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth = middleware.NewJWTAuth(cfg.JWTSecret)
		log.Info("Bearer auth enabled on /api/chat")
	}

	// ──── Step 5: Static Front-end ────
	var static fs.FS = web.Public()
	if cfg.StaticDir != "" {
		static = os.DirFS(cfg.StaticDir)
		log.WithField("dir", cfg.StaticDir).Info("Serving front-end from disk")
	}

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(relay, cfg.AllowedOrigins, limiter)

	// ──── Step 7: Start HTTP Server ────
	metrics.Register()
	r := router.New(handlers.NewChatHandler(relay), wsHub, router.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Limiter:        limiter,
		Auth:           jwtAuth,
		Static:         static,
		TrustProxy:     cfg.TrustProxy,
	})

	// No WriteTimeout: completions may take longer than any fixed bound.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("HTTP server shutdown incomplete")
		}
		close(done)
	}()

	log.Infof("Server listening on port %s", cfg.Port)
	log.Infof("  API: http://localhost:%s/api/chat", cfg.Port)
	log.Infof("  WS:  ws://localhost:%s/api/chat/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server error")
	}
	<-done
	relay.Close()
}

func newGenerator(cfg *config.Config) (services.ContentGenerator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return services.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	default:
		return services.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	}
}

func setupLogging(format, level string) {
	switch format {
	case "json":
		log.SetHandler(jsonhandler.New(os.Stderr))
	case "cli":
		log.SetHandler(cli.New(os.Stderr))
	default:
		log.SetHandler(text.New(os.Stderr))
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
