package enrollment

import (
	"context"
	"errors"
	"testing"

	"github.com/salestroopz/outreach-engine/internal/domain"
)

type fakeRepo struct {
	enrollments map[string]*domain.Enrollment
	created     []domain.Enrollment
	upserted    []domain.Lead
	reactivated []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{enrollments: make(map[string]*domain.Enrollment)}
}

func (f *fakeRepo) Get(_ context.Context, orgID, id string) (*domain.Enrollment, error) {
	e, ok := f.enrollments[id]
	if !ok || e.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	return e, nil
}

func (f *fakeRepo) List(_ context.Context, orgID string, _ ListFilter) ([]domain.Enrollment, int, error) {
	var out []domain.Enrollment
	for _, e := range f.enrollments {
		if e.OrganizationID == orgID {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) CreateBatch(_ context.Context, enrollments []domain.Enrollment) ([]string, error) {
	var ids []string
	for _, e := range enrollments {
		f.created = append(f.created, e)
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (f *fakeRepo) Reactivate(_ context.Context, orgID, id string) error {
	e, ok := f.enrollments[id]
	if !ok || e.OrganizationID != orgID {
		return ErrNotFound
	}
	if e.Status != domain.EnrollmentError {
		return ErrNotReactivatable
	}
	e.Status = domain.EnrollmentActive
	f.reactivated = append(f.reactivated, id)
	return nil
}

func (f *fakeRepo) UpsertLeads(_ context.Context, orgID string, leads []domain.Lead) ([]domain.Lead, error) {
	for i := range leads {
		leads[i].ID = leads[i].Email // deterministic fake ID
	}
	f.upserted = append(f.upserted, leads...)
	return leads, nil
}

func TestEnroll(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	res, err := svc.Enroll(context.Background(), "org-1", "camp-1", []EnrollInput{
		{Email: "Jane@Example.com", Name: "Jane Smith", Company: "Acme"},
		{Email: "bob@example.com", Name: "Bob Lee"},
	})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if res.Enrolled != 2 {
		t.Errorf("enrolled = %d, want 2", res.Enrolled)
	}
	if len(repo.created) != 2 {
		t.Fatalf("created %d enrollments, want 2", len(repo.created))
	}
	for _, e := range repo.created {
		if e.Status != domain.EnrollmentPending {
			t.Errorf("status = %q, want %q", e.Status, domain.EnrollmentPending)
		}
		if e.CampaignID != "camp-1" {
			t.Errorf("campaign_id = %q", e.CampaignID)
		}
	}
	// Email normalized to lowercase before upsert
	if repo.upserted[0].Email != "jane@example.com" {
		t.Errorf("upserted email = %q, want lowercased", repo.upserted[0].Email)
	}
}

func TestEnrollRejectsInvalidEmail(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Enroll(context.Background(), "org-1", "camp-1", []EnrollInput{
		{Email: "not-an-email"},
	})
	if err == nil {
		t.Fatal("expected error for invalid email")
	}
}

func TestEnrollEmptyBatch(t *testing.T) {
	svc := NewService(newFakeRepo())

	if _, err := svc.Enroll(context.Background(), "org-1", "camp-1", nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestReactivate(t *testing.T) {
	repo := newFakeRepo()
	repo.enrollments["e1"] = &domain.Enrollment{
		ID: "e1", OrganizationID: "org-1", Status: domain.EnrollmentError,
	}
	repo.enrollments["e2"] = &domain.Enrollment{
		ID: "e2", OrganizationID: "org-1", Status: domain.EnrollmentActive,
	}
	svc := NewService(repo)

	if err := svc.Reactivate(context.Background(), "org-1", "e1"); err != nil {
		t.Fatalf("Reactivate error enrollment: %v", err)
	}
	if repo.enrollments["e1"].Status != domain.EnrollmentActive {
		t.Errorf("status after reactivate = %q", repo.enrollments["e1"].Status)
	}

	if err := svc.Reactivate(context.Background(), "org-1", "e2"); !errors.Is(err, ErrNotReactivatable) {
		t.Fatalf("Reactivate active enrollment = %v, want ErrNotReactivatable", err)
	}

	if err := svc.Reactivate(context.Background(), "org-2", "e1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Reactivate other org = %v, want ErrNotFound", err)
	}
}
