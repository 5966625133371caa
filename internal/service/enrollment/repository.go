package enrollment

import (
	"context"

	"github.com/salestroopz/outreach-engine/internal/domain"
)

// Repository defines data access for enrollments and the leads they
// reference. Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single enrollment. Returns ErrNotFound if missing.
	Get(ctx context.Context, orgID, id string) (*domain.Enrollment, error)

	// List returns enrollments matching the filter, ordered by created_at DESC.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.Enrollment, int, error)

	// CreateBatch inserts enrollments for the given leads, skipping any
	// lead already enrolled in the campaign. Returns IDs of the created rows.
	CreateBatch(ctx context.Context, enrollments []domain.Enrollment) ([]string, error)

	// Reactivate moves an error enrollment back to active, clearing the
	// error fields and making it immediately due. Returns
	// ErrNotReactivatable when the row exists but is not in error status.
	Reactivate(ctx context.Context, orgID, id string) error

	// UpsertLeads inserts or updates leads by (org, email) and returns
	// them with IDs populated.
	UpsertLeads(ctx context.Context, orgID string, leads []domain.Lead) ([]domain.Lead, error)
}

// ListFilter controls filtering and pagination for enrollment lists.
type ListFilter struct {
	CampaignID string
	Status     string
	Limit      int
	Offset     int
}
