package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phantasma-ai/specky/internal/middleware"
	"github.com/phantasma-ai/specky/pkg/logger"
)

// RouterConfig holds what NewRouter needs beyond the handlers.
type RouterConfig struct {
	Sessions          *middleware.Sessions
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Logger            *logger.Logger
}

// NewRouter wires the chat and health handlers into a chi router.
func NewRouter(cfg RouterConfig, chat *ChatHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Session)

		r.Get("/", chat.Index)

		r.Route("/chat/{chatID}", func(r chi.Router) {
			r.Use(middleware.ChatIDParam)

			r.Get("/", chat.Page)
			r.Get("/convo", chat.Convo)
			r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).Post("/", chat.Send)
		})
	})

	r.Route("/api/v1/chats/{chatID}", func(r chi.Router) {
		r.Use(middleware.ChatIDParam)
		r.Get("/", chat.Status)
	})

	return r
}
