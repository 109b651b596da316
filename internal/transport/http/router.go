package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-collab-notify/internal/config"
	"github.com/go-collab-notify/internal/transport/http/handler"
	appmiddleware "github.com/go-collab-notify/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Events     handler.EventPublisher
	Quarantine handler.QuarantineStats
	Ready      handler.ReadinessCheck
}

// NewRouter builds and returns the ops router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 20 requests/second per IP, burst of 40.
	ingressRL := appmiddleware.NewRateLimiter(rate.Limit(20), 40)

	healthH := handler.NewHealthHandler(deps.Ready)
	statsH := handler.NewStatsHandler(deps.Quarantine)
	eventH := handler.NewEventHandler(deps.Events)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.Get("/stats/quarantine", statsH.Quarantine)
		r.With(ingressRL.Limit).Post("/events", eventH.Publish)
	})

	return r
}
