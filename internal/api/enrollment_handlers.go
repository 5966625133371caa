package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/httputil"
	"github.com/salestroopz/outreach-engine/internal/service/campaign"
	"github.com/salestroopz/outreach-engine/internal/service/enrollment"
)

// POST /api/v1/campaigns/{id}/enroll
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Leads []enrollment.EnrollInput `json:"leads"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Leads) == 0 {
		httputil.BadRequest(w, "leads is required")
		return
	}

	org, campaignID := orgID(r), chi.URLParam(r, "id")

	// The campaign must exist and belong to the caller's org.
	if _, err := s.deps.Campaigns.Get(r.Context(), org, campaignID); err != nil {
		s.campaignError(w, err)
		return
	}

	res, err := s.deps.Enrollments.Enroll(r.Context(), org, campaignID, req.Leads)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, res)
}

// GET /api/v1/enrollments
func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 25, 100)
	f := enrollment.ListFilter{
		CampaignID: r.URL.Query().Get("campaign_id"),
		Status:     r.URL.Query().Get("status"),
		Limit:      p.Limit,
		Offset:     p.Offset,
	}

	enrollments, total, err := s.deps.Enrollments.List(r.Context(), orgID(r), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if enrollments == nil {
		enrollments = []domain.Enrollment{}
	}
	httputil.OK(w, NewPaginatedResponse(enrollments, p, int64(total)))
}

// GET /api/v1/enrollments/{id}
func (s *Server) handleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Enrollments.Get(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.enrollmentError(w, err)
		return
	}
	httputil.OK(w, e)
}

// POST /api/v1/enrollments/{id}/reactivate
func (s *Server) handleReactivateEnrollment(w http.ResponseWriter, r *http.Request) {
	org, id := orgID(r), chi.URLParam(r, "id")

	if err := s.deps.Enrollments.Reactivate(r.Context(), org, id); err != nil {
		if errors.Is(err, enrollment.ErrNotReactivatable) {
			httputil.Error(w, http.StatusConflict,
				"only enrollments in the error state can be reactivated")
			return
		}
		s.enrollmentError(w, err)
		return
	}

	e, err := s.deps.Enrollments.Get(r.Context(), org, id)
	if err != nil {
		s.enrollmentError(w, err)
		return
	}
	httputil.OK(w, e)
}

func (s *Server) enrollmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, enrollment.ErrNotFound):
		httputil.NotFound(w, "enrollment not found")
	case errors.Is(err, enrollment.ErrLeadNotFound):
		httputil.NotFound(w, "lead not found")
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	default:
		httputil.InternalError(w, err)
	}
}
