package api

import (
	"codeberg.org/mutker/vitalsd/internal/metrics"
	"github.com/go-chi/chi/v5"
)

func registerRoutes(router chi.Router, h *handler, deps Deps) {
	router.Get("/status", h.handleStatus)
	router.Get("/chart", h.handleChart)
	router.Get("/chart.png", h.handleChartPNG)
	router.Method("GET", "/metrics", deps.Metrics.Handler())

	// Ingestion, behind bearer auth when a secret is configured.
	router.Group(func(r chi.Router) {
		if deps.Verifier != nil {
			r.Use(deps.Verifier.Require(func() {
				deps.Metrics.Rejected(metrics.ReasonUnauthorized)
			}))
		}
		r.Post("/variables", h.handleVariables)
		r.Post("/api/v1/write", h.handleRemoteWrite)
	})
}
