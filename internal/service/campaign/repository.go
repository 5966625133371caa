package campaign

import (
	"context"

	"github.com/salestroopz/outreach-engine/internal/domain"
)

// Repository defines the data access contract for campaigns and their
// step sequences. Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Update modifies a campaign. Only non-nil fields in the update are applied.
	Update(ctx context.Context, orgID, id string, u UpdateFields) error

	// Delete removes a campaign and its steps.
	Delete(ctx context.Context, orgID, id string) error

	// BeginGeneration transitions ai_status to "generating" with a guard:
	// a campaign already generating returns ErrAlreadyGenerating, never a
	// second concurrent run.
	BeginGeneration(ctx context.Context, orgID, id string) error

	// FinishGeneration records the terminal ai_status of a generation run.
	FinishGeneration(ctx context.Context, orgID, id string, status domain.AIStatus) error

	// ListSteps returns a campaign's steps ordered by step_number ASC.
	ListSteps(ctx context.Context, campaignID string) ([]domain.CampaignStep, error)

	// NextStep returns the step with the smallest step_number strictly
	// greater than afterStep, or ErrNoSteps when none exists.
	NextStep(ctx context.Context, campaignID string, afterStep int) (*domain.CampaignStep, error)

	// ReplaceSteps atomically deletes any existing steps and inserts the
	// new batch in one transaction, so a failed regeneration leaves the
	// prior batch intact. Returns the number of steps inserted.
	ReplaceSteps(ctx context.Context, campaignID string, steps []domain.CampaignStep) (int, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	AIStatus string
	Active   *bool
	Limit    int
	Offset   int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name            *string
	Description     *string
	TargetAudience  *string
	OfferingSummary *string
	IsActive        *bool
}
