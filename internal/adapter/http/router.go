package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig carries the dependencies of the ops router. Redis is a
// closure because go-redis reports ping failures through a status
// command rather than a plain error.
type RouterConfig struct {
	Postgres Pinger
	Redis    func(ctx context.Context) error
}

// NewRouter builds the operational HTTP surface: liveness, readiness
// and Prometheus metrics. The transfer API itself is not served over
// HTTP by this process.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{"postgres": "ok", "redis": "ok"}
		status := http.StatusOK

		if cfg.Postgres != nil {
			if err := cfg.Postgres.Ping(ctx); err != nil {
				checks["postgres"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		if cfg.Redis != nil {
			if err := cfg.Redis(ctx); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		writeJSON(w, status, checks)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
