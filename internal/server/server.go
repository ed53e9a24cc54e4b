// Package server assembles the host's HTTP surface: the pack websocket
// endpoint, the state API, health, and metrics.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clipcompanion/packbridge/internal/config"
	"github.com/clipcompanion/packbridge/internal/hostsrv"
)

// New constructs the HTTP handler for the packbridge host.
func New(cfg config.ServerConfig, reg *hostsrv.Registry, preg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api", func(ar chi.Router) {
		ar.Get("/state", StateHandler(reg))
		ar.Handle("/packs/connect", hostsrv.WSHandler(reg, cfg.ClientKey, cfg.AllowedOrigins))
	})

	if cfg.MetricsOnMainPort() {
		r.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	}

	return r
}

// MetricsHandler serves preg on its own listener when the metrics address
// differs from the main port.
func MetricsHandler(preg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	return mux
}

// StateHandler reports the connected packs as JSON.
func StateHandler(reg *hostsrv.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		state := struct {
			Packs []hostsrv.PackInfo `json:"packs"`
		}{Packs: reg.Snapshot()}
		if err := json.NewEncoder(w).Encode(state); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
