package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesour/brick-offers-sub004/internal/tracking"
)

// SetupRoutes assembles the full router: operator API under /api, public
// tracking endpoints at their bit-stable paths, metrics and health.
func SetupRoutes(h *Handlers, trackingHandlers *tracking.Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Public tracking surface: pixel, click, webhook, unsubscribe.
	trackingHandlers.Mount(r)

	r.Route("/api", func(r chi.Router) {
		r.Route("/offers/{id}", func(r chi.Router) {
			r.Post("/submit", h.OfferSubmit)
			r.Post("/approve", h.OfferApprove)
			r.Post("/reject", h.OfferReject)
			r.Post("/responded", h.OfferResponded)
			r.Post("/converted", h.OfferConverted)
			r.Get("/preview", h.OfferPreview)
		})
		r.Get("/rate-limits", h.RateLimits)

		r.Route("/leads/{id}", func(r chi.Router) {
			r.Get("/analyses", h.LeadAnalyses)
			r.Get("/trend", h.LeadTrend)
			r.Get("/benchmark", h.LeadBenchmark)
		})

		r.Get("/issue-codes", h.IssueCodes)

		r.Get("/proposals/recyclable", h.ProposalRecyclable)
		r.Post("/proposals/{id}/recycle", h.ProposalRecycle)

		r.Get("/suppressions", h.SuppressionList)
		r.Post("/suppressions", h.SuppressionAdd)
		r.Delete("/suppressions", h.SuppressionRemove)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/depths", h.QueueDepths)
			r.Post("/redrive", h.QueueRedrive)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/analyze-lead", h.JobAnalyzeLead)
			r.Post("/discover-leads", h.JobDiscoverLeads)
			r.Post("/generate-proposal", h.JobGenerateProposal)
			r.Post("/generate-offer", h.JobGenerateOffer)
			r.Post("/sync-company-by-ico", h.JobSyncCompanyByICO)
		})
	})

	return r
}
