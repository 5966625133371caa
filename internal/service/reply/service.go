package reply

import (
	"context"

	"github.com/salestroopz/outreach-engine/internal/domain"
)

// Repository defines data access for inbound replies.
type Repository interface {
	// Get returns a single reply. Returns ErrNotFound if missing.
	Get(ctx context.Context, orgID, id string) (*domain.InboundReply, error)

	// List returns replies matching the filter, newest first.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.InboundReply, int, error)

	// MarkActioned sets is_actioned_by_user on a reply.
	MarkActioned(ctx context.Context, orgID, id string) error
}

// ListFilter controls filtering and pagination for reply lists.
type ListFilter struct {
	CampaignID string
	Category   string
	// Actionable limits results to replies that need a human follow-up
	// and have not been actioned yet.
	Actionable bool
	Limit      int
	Offset     int
}

// Service implements inbound reply queries and the actioned transition.
type Service struct {
	repo Repository
}

// NewService creates a reply service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a single reply.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.InboundReply, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns replies matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.InboundReply, int, error) {
	return s.repo.List(ctx, orgID, f)
}

// MarkActioned records that an operator has handled the reply. Marking
// an already-actioned reply is a no-op, not an error.
func (s *Service) MarkActioned(ctx context.Context, orgID, id string) error {
	return s.repo.MarkActioned(ctx, orgID, id)
}
