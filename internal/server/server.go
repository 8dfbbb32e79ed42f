// internal/server/server.go
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loan-portal/internal/common/config"
)

// New builds the HTTP server with the middleware stack, health and metrics
// endpoints, and the loan application and draft routes.
func New(cfg config.ServerConfig, handler *Handler, drafts *DraftGateway) *http.Server {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(60 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/loan-applications", func(r chi.Router) {
		r.Post("/", handler.HandleAction)
		r.Get("/", handler.HandleList)
		r.Get("/{id}", handler.HandleGet)
	})

	if drafts != nil {
		router.Route("/api/drafts", drafts.Routes)
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  durationOrDefault(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOrDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  60 * time.Second,
	}
}

func durationOrDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
