// Package httptransport wires the public HTTP surface: the asset directory,
// the two handoff coordinators, and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	claimHandler "regbook/internal/claim/handler"
	"regbook/internal/platform/middleware"
	registryHandler "regbook/internal/registry/handler"
	transferHandler "regbook/internal/transfer/handler"
	"regbook/internal/transport/http/shared"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Registry  *registryHandler.Handler
	Transfers *transferHandler.Handler
	Claims    *claimHandler.Handler
	Validator middleware.TokenValidator
	Logger    *slog.Logger
	Health    []HealthCheck
}

// NewRouter builds the full route tree. Handoff endpoints sit behind bearer
// auth; /healthz and /metrics stay open for probes and scrapers.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.Logger))

	r.Get("/healthz", handleHealth(d.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(d.Validator, d.Logger))
		d.Registry.Register(r)
		d.Transfers.Register(r)
		d.Claims.Register(r)
	})

	return r
}

func handleHealth(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks)+1)
		report["status"] = "ok"
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				report[c.Name] = err.Error()
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report[c.Name] = "ok"
		}

		shared.WriteJSON(w, status, report)
	}
}
