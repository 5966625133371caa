package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// routes configures the router: health endpoints unauthenticated, the
// /api/v1 group behind the org-context middleware.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Organization-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	hc := NewHealthChecker(s.deps.DB, s.deps.Redis)
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireOrg)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Post("/", s.handleCreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCampaign)
				r.Patch("/", s.handleUpdateCampaign)
				r.Delete("/", s.handleDeleteCampaign)
				r.Get("/steps", s.handleListSteps)
				r.Post("/generate-steps", s.handleGenerateSteps)
				r.Post("/enroll", s.handleEnroll)
			})
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", s.handleListEnrollments)
			r.Get("/{id}", s.handleGetEnrollment)
			r.Post("/{id}/reactivate", s.handleReactivateEnrollment)
		})

		r.Route("/replies", func(r chi.Router) {
			r.Get("/", s.handleListReplies)
			r.Get("/{id}", s.handleGetReply)
			r.Post("/{id}/action", s.handleActionReply)
		})

		r.Route("/settings/mail", func(r chi.Router) {
			r.Get("/", s.handleGetMailSettings)
			r.Put("/", s.handlePutMailSettings)
		})

		// Operational triggers, normally driven by the worker tickers.
		r.Route("/internal", func(r chi.Router) {
			r.Post("/run-sequencer-cycle", s.handleRunSequencerCycle)
			r.Post("/run-mailbox-poll", s.handleRunMailboxPoll)
		})
	})

	return r
}

// allowedOrigins reads CORS origins from the environment, defaulting to
// local development hosts.
func allowedOrigins() []string {
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return []string{"http://localhost:5173", "http://localhost:8080"}
}
