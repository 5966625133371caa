package campaign

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/salestroopz/outreach-engine/internal/domain"
)

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo Repository
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, orgID, f)
}

// Create validates and persists a new campaign with ai_status=pending.
func (s *Service) Create(ctx context.Context, orgID string, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	c := &domain.Campaign{
		ID:              uuid.New().String(),
		OrganizationID:  orgID,
		Name:            input.Name,
		Description:     input.Description,
		TargetAudience:  input.TargetAudience,
		OfferingSummary: input.OfferingSummary,
		AIStatus:        domain.AIStatusPending,
		IsActive:        true,
	}
	if input.TargetProfileID != "" {
		c.TargetProfileID = &input.TargetProfileID
	}
	if input.OfferingID != "" {
		c.OfferingID = &input.OfferingID
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// Update modifies mutable campaign fields.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) error {
	return s.repo.Update(ctx, orgID, id, u)
}

// Delete removes a campaign and its steps.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	return s.repo.Delete(ctx, orgID, id)
}

// Steps returns the campaign's generated step sequence.
func (s *Service) Steps(ctx context.Context, orgID, id string) ([]domain.CampaignStep, error) {
	// Scope check before reading steps (steps are keyed by campaign only)
	if _, err := s.repo.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	return s.repo.ListSteps(ctx, id)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	TargetProfileID string `json:"target_profile_id"`
	OfferingID      string `json:"offering_id"`
	TargetAudience  string `json:"target_audience"`
	OfferingSummary string `json:"offering_summary"`
}
