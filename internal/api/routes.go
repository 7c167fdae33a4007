package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the public routes. The signup form is embedded on
// third-party landing pages, so CORS stays open.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/subscribe", h.HandleSubscribe)
	r.Post("/unsubscribe/{id}", h.HandleUnsubscribe)
	r.Get("/health", h.HandleHealth)
	r.Get("/stats", h.HandleStats)

	return r
}
