// Package api assembles the HTTP surface of the inventory service.
package api

import (
	"context"
	"net/http"
	"time"

	"inventoryapi/internal/config"
	"inventoryapi/internal/health"
	"inventoryapi/internal/httpx"
	"inventoryapi/internal/idempotency"
	"inventoryapi/internal/item"
	"inventoryapi/internal/level"
	"inventoryapi/internal/location"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies are the services and infrastructure the router serves.
// Health and Idempotency are optional.
type Dependencies struct {
	Config      *config.Config
	Log         *zap.Logger
	Items       item.Service
	Locations   location.Service
	Levels      level.Service
	Health      *health.Checker
	Idempotency idempotency.Claimer
}

// NewRouter builds the handler tree. Background work it starts stops with ctx.
func NewRouter(ctx context.Context, deps Dependencies) http.Handler {
	log := deps.Log

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrorMessage(w, r, log, http.StatusNotFound, "the requested resource could not be found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrorMessage(w, r, log, http.StatusMethodNotAllowed, "the "+r.Method+" method is not supported for this resource")
	})

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Handler())
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if deps.Config.RateLimitEnabled {
			limiter := newRateLimiter(deps.Config.RateLimitRPS, deps.Config.RateLimitBurst, log)
			go limiter.run(ctx, time.Minute, 3*time.Minute)
			r.Use(limiter.middleware)
		}
		if deps.Idempotency != nil {
			r.Use(idempotency.Middleware(deps.Idempotency, log))
		}

		item.NewHandler(deps.Items, log).Routes(r)
		location.NewHandler(deps.Locations, log).Routes(r)
		level.NewHandler(deps.Levels, log).Routes(r)
	})

	return r
}
