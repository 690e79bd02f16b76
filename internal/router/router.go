package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gemini-chat-backend/internal/handlers"
	"gemini-chat-backend/internal/middleware"
	"gemini-chat-backend/internal/websocket"
)

// Options carries the optional pieces of the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// Limiter guards the chat routes; nil disables rate limiting.
	Limiter middleware.Limiter
	// Auth guards the chat routes; nil leaves them public.
	Auth *middleware.JWTAuth
	// Static serves every non-API path.
	Static fs.FS
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
}

func New(chatHandler *handlers.ChatHandler, wsHub *websocket.Hub, opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if opts.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health check
	r.Get("/health", handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/chat", func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth.Middleware)
		}

		// The hub charges the limiter per frame, so only POST is limited here.
		var limit []func(http.Handler) http.Handler
		if opts.Limiter != nil {
			limit = append(limit, middleware.RateLimit(opts.Limiter))
		}
		r.With(limit...).Post("/", chatHandler.Chat)
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	if opts.Static != nil {
		r.Handle("/*", http.FileServer(http.FS(opts.Static)))
	}

	return r
}
