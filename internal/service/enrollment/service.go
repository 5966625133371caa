package enrollment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/logger"
)

// Service implements enrollment business logic.
type Service struct {
	repo Repository
}

// NewService creates an enrollment service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a single enrollment.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Enrollment, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns enrollments matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Enrollment, int, error) {
	return s.repo.List(ctx, orgID, f)
}

// EnrollInput describes one lead to enroll. Email is required; the rest
// is used to upsert the lead record.
type EnrollInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Company  string `json:"company"`
	Title    string `json:"title"`
	Website  string `json:"website"`
	Location string `json:"location"`
	Industry string `json:"industry"`
}

// EnrollResult reports the outcome of a batch enroll call.
type EnrollResult struct {
	EnrolledIDs []string `json:"enrolled_ids"`
	Enrolled    int      `json:"enrolled"`
	Skipped     int      `json:"skipped"`
}

// Enroll upserts the given leads and enrolls them into the campaign with
// status pending_enrollment. Leads already enrolled in the campaign are
// skipped, so re-posting the same list is safe.
func (s *Service) Enroll(ctx context.Context, orgID, campaignID string, inputs []EnrollInput) (*EnrollResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no leads to enroll")
	}

	leads := make([]domain.Lead, 0, len(inputs))
	for i, in := range inputs {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("lead %d: invalid email %q", i, in.Email)
		}
		leads = append(leads, domain.Lead{
			OrganizationID: orgID,
			Email:          email,
			Name:           in.Name,
			Company:        in.Company,
			Title:          in.Title,
			Website:        in.Website,
			Location:       in.Location,
			Industry:       in.Industry,
		})
	}

	leads, err := s.repo.UpsertLeads(ctx, orgID, leads)
	if err != nil {
		return nil, fmt.Errorf("upsert leads: %w", err)
	}

	enrollments := make([]domain.Enrollment, 0, len(leads))
	for _, l := range leads {
		enrollments = append(enrollments, domain.Enrollment{
			ID:             uuid.New().String(),
			OrganizationID: orgID,
			CampaignID:     campaignID,
			LeadID:         l.ID,
			Status:         domain.EnrollmentPending,
		})
	}

	ids, err := s.repo.CreateBatch(ctx, enrollments)
	if err != nil {
		return nil, fmt.Errorf("create enrollments: %w", err)
	}

	logger.Info("leads enrolled",
		"campaign_id", campaignID,
		"requested", len(inputs),
		"enrolled", len(ids))

	return &EnrollResult{
		EnrolledIDs: ids,
		Enrolled:    len(ids),
		Skipped:     len(inputs) - len(ids),
	}, nil
}

// Reactivate moves an errored enrollment back into the active pool.
// It is due immediately after reactivation.
func (s *Service) Reactivate(ctx context.Context, orgID, id string) error {
	if err := s.repo.Reactivate(ctx, orgID, id); err != nil {
		return err
	}
	logger.Info("enrollment reactivated", "enrollment_id", id)
	return nil
}
