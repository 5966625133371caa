package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/httputil"
	"github.com/salestroopz/outreach-engine/internal/service/reply"
)

// GET /api/v1/replies
func (s *Server) handleListReplies(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 25, 100)
	f := reply.ListFilter{
		CampaignID: r.URL.Query().Get("campaign_id"),
		Category:   r.URL.Query().Get("category"),
		Actionable: r.URL.Query().Get("actionable") == "true",
		Limit:      p.Limit,
		Offset:     p.Offset,
	}

	replies, total, err := s.deps.Replies.List(r.Context(), orgID(r), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if replies == nil {
		replies = []domain.InboundReply{}
	}
	httputil.OK(w, NewPaginatedResponse(replies, p, int64(total)))
}

// GET /api/v1/replies/{id}
func (s *Server) handleGetReply(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Replies.Get(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.replyError(w, err)
		return
	}
	httputil.OK(w, rep)
}

// POST /api/v1/replies/{id}/action
func (s *Server) handleActionReply(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Replies.MarkActioned(r.Context(), orgID(r), chi.URLParam(r, "id")); err != nil {
		s.replyError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"actioned": true})
}

func (s *Server) replyError(w http.ResponseWriter, err error) {
	if errors.Is(err, reply.ErrNotFound) {
		httputil.NotFound(w, "reply not found")
		return
	}
	httputil.InternalError(w, err)
}
