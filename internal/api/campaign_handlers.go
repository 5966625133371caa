package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/httputil"
	"github.com/salestroopz/outreach-engine/internal/service/campaign"
)

// GET /api/v1/campaigns
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 25, 100)
	f := campaign.ListFilter{
		AIStatus: r.URL.Query().Get("ai_status"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		f.Active = &active
	}

	campaigns, total, err := s.deps.Campaigns.List(r.Context(), orgID(r), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}
	httputil.OK(w, NewPaginatedResponse(campaigns, p, int64(total)))
}

// POST /api/v1/campaigns
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}

	c, err := s.deps.Campaigns.Create(r.Context(), orgID(r), input)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, c)
}

// GET /api/v1/campaigns/{id}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Campaigns.Get(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.campaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// PATCH /api/v1/campaigns/{id}
func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var u struct {
		Name            *string `json:"name"`
		Description     *string `json:"description"`
		TargetAudience  *string `json:"target_audience"`
		OfferingSummary *string `json:"offering_summary"`
		IsActive        *bool   `json:"is_active"`
	}
	if !httputil.Decode(w, r, &u) {
		return
	}

	id := chi.URLParam(r, "id")
	err := s.deps.Campaigns.Update(r.Context(), orgID(r), id, campaign.UpdateFields{
		Name:            u.Name,
		Description:     u.Description,
		TargetAudience:  u.TargetAudience,
		OfferingSummary: u.OfferingSummary,
		IsActive:        u.IsActive,
	})
	if err != nil {
		s.campaignError(w, err)
		return
	}

	c, err := s.deps.Campaigns.Get(r.Context(), orgID(r), id)
	if err != nil {
		s.campaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// DELETE /api/v1/campaigns/{id}
func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Campaigns.Delete(r.Context(), orgID(r), chi.URLParam(r, "id")); err != nil {
		s.campaignError(w, err)
		return
	}
	httputil.NoContent(w)
}

// GET /api/v1/campaigns/{id}/steps
func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := s.deps.Campaigns.Steps(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.campaignError(w, err)
		return
	}
	if steps == nil {
		steps = []domain.CampaignStep{}
	}
	httputil.OK(w, map[string]any{"steps": steps, "count": len(steps)})
}

// generateStepsRequest is the body of a generation trigger. Force allows
// regenerating a campaign that already finished a run; step_count
// overrides the default sequence length.
type generateStepsRequest struct {
	Force     bool `json:"force"`
	StepCount int  `json:"step_count"`
}

// POST /api/v1/campaigns/{id}/generate-steps
func (s *Server) handleGenerateSteps(w http.ResponseWriter, r *http.Request) {
	var req generateStepsRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}
	if req.StepCount != 0 && (req.StepCount < 1 || req.StepCount > 10) {
		httputil.BadRequest(w, "step_count must be between 1 and 10")
		return
	}

	org, id := orgID(r), chi.URLParam(r, "id")

	if !req.Force {
		c, err := s.deps.Campaigns.Get(r.Context(), org, id)
		if err != nil {
			s.campaignError(w, err)
			return
		}
		if c.AIStatus == domain.AIStatusCompleted || c.AIStatus == domain.AIStatusCompletedPartial {
			httputil.Error(w, http.StatusConflict,
				"steps already generated; set force to regenerate")
			return
		}
	}

	status, err := s.deps.Generator.GenerateSteps(r.Context(), org, id, req.StepCount)
	if err != nil {
		switch {
		case errors.Is(err, campaign.ErrAlreadyGenerating):
			httputil.Error(w, http.StatusConflict, "step generation already running")
			return
		case errors.Is(err, campaign.ErrNotFound):
			httputil.NotFound(w, "campaign not found")
			return
		}
		// Generation failures land in ai_status; report the recorded
		// outcome rather than a bare 500.
		if status != "" {
			httputil.JSON(w, http.StatusUnprocessableEntity, map[string]any{
				"ai_status": status,
				"error":     err.Error(),
			})
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"ai_status": status})
}

func (s *Server) campaignError(w http.ResponseWriter, err error) {
	if errors.Is(err, campaign.ErrNotFound) {
		httputil.NotFound(w, "campaign not found")
		return
	}
	httputil.InternalError(w, err)
}
