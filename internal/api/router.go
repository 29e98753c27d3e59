// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/ouvidoria/internal/middleware"
)

// Router wires the handlers into a chi route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil mw uses the defaults.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	h := router.handler
	mw := router.chiMiddleware

	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/health", h.Health)
		r.Get("/health/live", h.HealthLive)
	})

	r.Handle("/metrics", promhttp.Handler())

	// The event stream skips compression and the JSON security headers.
	r.Get("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chimiddleware.Compress(5, "application/json"))
		r.Use(mw.RateLimit())

		r.Get("/stats", h.Stats)

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", h.CacheStats)
			r.Get("/entry", h.CacheEntry)
			r.With(mw.RateLimitWrite()).Put("/entry", h.SetCacheEntry)
			r.With(mw.RateLimitWrite()).Post("/invalidate", h.InvalidateCache)
			r.With(mw.RateLimitWrite()).Delete("/", h.ClearCache)
		})

		r.Route("/filters", func(r chi.Router) {
			r.Get("/", h.Filters)
			r.Get("/request", h.FilterRequest)
			r.Get("/active", h.FilterActive)
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimitWrite())
				r.Post("/", h.ApplyFilter)
				r.Delete("/", h.ClearFilters)
				r.Delete("/clause", h.RemoveFilter)
			})
		})

		r.Route("/crossfilter", func(r chi.Router) {
			r.Get("/", h.Crossfilter)
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimitWrite())
				r.Post("/toggle", h.ToggleCrossfilter)
				r.Delete("/", h.ClearCrossfilter)
				r.Post("/project", h.ProjectCrossfilter)
			})
		})

		r.Route("/charts", func(r chi.Router) {
			r.Get("/", h.Charts)
			r.Get("/mappings", h.ChartMappings)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Chart)
				r.Get("/mapping", h.ChartFieldMapping)
				r.Group(func(r chi.Router) {
					r.Use(mw.RateLimitWrite())
					r.Put("/", h.RegisterChart)
					r.Delete("/", h.UnregisterChart)
					r.Post("/click", h.ChartClick)
				})
			})
		})

		r.Route("/data", func(r chi.Router) {
			r.Use(mw.RateLimitLoad())
			r.Post("/load", h.LoadData)
			r.Get("/dashboard", h.DashboardData)
		})

		r.With(mw.RateLimitWrite()).Put("/page", h.SetPage)
	})

	return r
}
