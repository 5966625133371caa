package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/salestroopz/outreach-engine/internal/config"
	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/repository/postgres"
	"github.com/salestroopz/outreach-engine/internal/service/campaign"
	"github.com/salestroopz/outreach-engine/internal/service/enrollment"
	"github.com/salestroopz/outreach-engine/internal/service/reply"
)

type fakeCampaigns struct {
	campaigns map[string]*domain.Campaign
	created   *campaign.CreateInput
}

func (f *fakeCampaigns) Get(_ context.Context, orgID, id string) (*domain.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return nil, campaign.ErrNotFound
	}
	return c, nil
}

func (f *fakeCampaigns) List(_ context.Context, orgID string, _ campaign.ListFilter) ([]domain.Campaign, int, error) {
	var out []domain.Campaign
	for _, c := range f.campaigns {
		if c.OrganizationID == orgID {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (f *fakeCampaigns) Create(_ context.Context, orgID string, input campaign.CreateInput) (*domain.Campaign, error) {
	f.created = &input
	c := &domain.Campaign{ID: "camp-new", OrganizationID: orgID, Name: input.Name,
		AIStatus: domain.AIStatusPending, IsActive: true}
	f.campaigns[c.ID] = c
	return c, nil
}

func (f *fakeCampaigns) Update(ctx context.Context, orgID, id string, u campaign.UpdateFields) error {
	c, err := f.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	return nil
}

func (f *fakeCampaigns) Delete(ctx context.Context, orgID, id string) error {
	if _, err := f.Get(ctx, orgID, id); err != nil {
		return err
	}
	delete(f.campaigns, id)
	return nil
}

func (f *fakeCampaigns) Steps(ctx context.Context, orgID, id string) ([]domain.CampaignStep, error) {
	if _, err := f.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	return []domain.CampaignStep{{ID: "step-1", CampaignID: id, StepNumber: 1}}, nil
}

type fakeEnrollments struct {
	enrollments map[string]*domain.Enrollment
	enrolled    []enrollment.EnrollInput
}

func (f *fakeEnrollments) Get(_ context.Context, orgID, id string) (*domain.Enrollment, error) {
	e, ok := f.enrollments[id]
	if !ok || e.OrganizationID != orgID {
		return nil, enrollment.ErrNotFound
	}
	return e, nil
}

func (f *fakeEnrollments) List(_ context.Context, orgID string, _ enrollment.ListFilter) ([]domain.Enrollment, int, error) {
	var out []domain.Enrollment
	for _, e := range f.enrollments {
		if e.OrganizationID == orgID {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

func (f *fakeEnrollments) Enroll(_ context.Context, orgID, campaignID string, inputs []enrollment.EnrollInput) (*enrollment.EnrollResult, error) {
	f.enrolled = inputs
	return &enrollment.EnrollResult{Enrolled: len(inputs)}, nil
}

func (f *fakeEnrollments) Reactivate(ctx context.Context, orgID, id string) error {
	e, err := f.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if e.Status != domain.EnrollmentError {
		return enrollment.ErrNotReactivatable
	}
	e.Status = domain.EnrollmentActive
	return nil
}

type fakeReplies struct {
	replies map[string]*domain.InboundReply
}

func (f *fakeReplies) Get(_ context.Context, orgID, id string) (*domain.InboundReply, error) {
	rep, ok := f.replies[id]
	if !ok || rep.OrganizationID != orgID {
		return nil, reply.ErrNotFound
	}
	return rep, nil
}

func (f *fakeReplies) List(_ context.Context, orgID string, _ reply.ListFilter) ([]domain.InboundReply, int, error) {
	var out []domain.InboundReply
	for _, rep := range f.replies {
		if rep.OrganizationID == orgID {
			out = append(out, *rep)
		}
	}
	return out, len(out), nil
}

func (f *fakeReplies) MarkActioned(ctx context.Context, orgID, id string) error {
	rep, err := f.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	rep.IsActionedByUser = true
	return nil
}

type fakeSettingsStore struct {
	byOrg map[string]*domain.OrgMailSettings
}

func (f *fakeSettingsStore) Get(_ context.Context, orgID string) (*domain.OrgMailSettings, error) {
	s, ok := f.byOrg[orgID]
	if !ok {
		return nil, postgres.ErrSettingsNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSettingsStore) Upsert(_ context.Context, s *domain.OrgMailSettings) error {
	cp := *s
	f.byOrg[s.OrganizationID] = &cp
	return nil
}

type fakeGenerator struct {
	status domain.AIStatus
	err    error
	calls  int
	steps  int
}

func (f *fakeGenerator) GenerateSteps(_ context.Context, _, _ string, numSteps int) (domain.AIStatus, error) {
	f.calls++
	f.steps = numSteps
	return f.status, f.err
}

type fakeCycleRunner struct{ sent, errored, ingested int }

func (f *fakeCycleRunner) RunCycleForOrg(_ context.Context, _ string) (int, int) {
	return f.sent, f.errored
}

func (f *fakeCycleRunner) PollOrg(_ context.Context, _ string) int {
	return f.ingested
}

type testEnv struct {
	server      *Server
	campaigns   *fakeCampaigns
	enrollments *fakeEnrollments
	replies     *fakeReplies
	settings    *fakeSettingsStore
	generator   *fakeGenerator
	runner      *fakeCycleRunner
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		campaigns:   &fakeCampaigns{campaigns: map[string]*domain.Campaign{}},
		enrollments: &fakeEnrollments{enrollments: map[string]*domain.Enrollment{}},
		replies:     &fakeReplies{replies: map[string]*domain.InboundReply{}},
		settings:    &fakeSettingsStore{byOrg: map[string]*domain.OrgMailSettings{}},
		generator:   &fakeGenerator{status: domain.AIStatusCompleted},
		runner:      &fakeCycleRunner{sent: 2, errored: 1, ingested: 3},
	}
	env.server = NewServer(config.ServerConfig{}, Deps{
		Campaigns:   env.campaigns,
		Enrollments: env.enrollments,
		Replies:     env.replies,
		Settings:    env.settings,
		Generator:   env.generator,
		Sequencer:   env.runner,
		Poller:      env.runner,
	})
	return env
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Organization-ID", "org-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireOrgRejectsMissingHeader(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateCampaign(t *testing.T) {
	env := setupTestServer(t)

	rec := doRequest(t, env.server.Handler(), http.MethodPost, "/api/v1/campaigns",
		map[string]string{"name": "Q3 SaaS outreach"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var c domain.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Name != "Q3 SaaS outreach" || c.AIStatus != domain.AIStatusPending {
		t.Errorf("unexpected campaign: %+v", c)
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	env := setupTestServer(t)

	rec := doRequest(t, env.server.Handler(), http.MethodGet, "/api/v1/campaigns/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGenerateSteps(t *testing.T) {
	env := setupTestServer(t)
	env.campaigns.campaigns["camp-1"] = &domain.Campaign{
		ID: "camp-1", OrganizationID: "org-1", Name: "A", AIStatus: domain.AIStatusPending,
	}

	rec := doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/campaigns/camp-1/generate-steps", map[string]any{"step_count": 5})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if env.generator.calls != 1 || env.generator.steps != 5 {
		t.Errorf("generator calls=%d steps=%d", env.generator.calls, env.generator.steps)
	}
}

func TestGenerateStepsConflictWithoutForce(t *testing.T) {
	env := setupTestServer(t)
	env.campaigns.campaigns["camp-1"] = &domain.Campaign{
		ID: "camp-1", OrganizationID: "org-1", Name: "A", AIStatus: domain.AIStatusCompleted,
	}

	rec := doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/campaigns/camp-1/generate-steps", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if env.generator.calls != 0 {
		t.Errorf("generator should not run without force, got %d calls", env.generator.calls)
	}

	// force bypasses the completed guard
	rec = doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/campaigns/camp-1/generate-steps", map[string]any{"force": true})
	if rec.Code != http.StatusOK {
		t.Errorf("forced regeneration status = %d, want 200", rec.Code)
	}
}

func TestGenerateStepsAlreadyRunning(t *testing.T) {
	env := setupTestServer(t)
	env.campaigns.campaigns["camp-1"] = &domain.Campaign{
		ID: "camp-1", OrganizationID: "org-1", Name: "A", AIStatus: domain.AIStatusGenerating,
	}
	env.generator.err = campaign.ErrAlreadyGenerating
	env.generator.status = ""

	rec := doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/campaigns/camp-1/generate-steps", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestEnroll(t *testing.T) {
	env := setupTestServer(t)
	env.campaigns.campaigns["camp-1"] = &domain.Campaign{
		ID: "camp-1", OrganizationID: "org-1", Name: "A",
	}

	rec := doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/campaigns/camp-1/enroll", map[string]any{
			"leads": []map[string]string{
				{"email": "jane@example.com", "name": "Jane", "company": "Acme"},
			},
		})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.enrollments.enrolled) != 1 || env.enrollments.enrolled[0].Email != "jane@example.com" {
		t.Errorf("enrolled = %+v", env.enrollments.enrolled)
	}
}

func TestEnrollUnknownCampaign(t *testing.T) {
	env := setupTestServer(t)

	rec := doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/campaigns/nope/enroll", map[string]any{
			"leads": []map[string]string{{"email": "jane@example.com"}},
		})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReactivateEnrollment(t *testing.T) {
	env := setupTestServer(t)
	env.enrollments.enrollments["enr-1"] = &domain.Enrollment{
		ID: "enr-1", OrganizationID: "org-1", Status: domain.EnrollmentError,
	}
	env.enrollments.enrollments["enr-2"] = &domain.Enrollment{
		ID: "enr-2", OrganizationID: "org-1", Status: domain.EnrollmentActive,
	}

	rec := doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/enrollments/enr-1/reactivate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var e domain.Enrollment
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Status != domain.EnrollmentActive {
		t.Errorf("status = %q, want active", e.Status)
	}

	// Active enrollments cannot be reactivated
	rec = doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/enrollments/enr-2/reactivate", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestActionReply(t *testing.T) {
	env := setupTestServer(t)
	env.replies.replies["rep-1"] = &domain.InboundReply{
		ID: "rep-1", OrganizationID: "org-1", Category: domain.ReplyPositiveMeetingInterest,
	}

	rec := doRequest(t, env.server.Handler(), http.MethodPost, "/api/v1/replies/rep-1/action", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !env.replies.replies["rep-1"].IsActionedByUser {
		t.Error("reply should be marked actioned")
	}
}

func TestMailSettingsRoundTrip(t *testing.T) {
	env := setupTestServer(t)

	// Unconfigured org gets defaults, not a 404
	rec := doRequest(t, env.server.Handler(), http.MethodGet, "/api/v1/settings/mail", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doRequest(t, env.server.Handler(), http.MethodPut, "/api/v1/settings/mail",
		map[string]any{
			"provider": "smtp", "smtp_host": "smtp.example.com", "smtp_port": 587,
			"smtp_password": "hunter2", "from_email": "sam@vendor.com",
			"is_configured": true,
		})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["has_smtp_password"] != true {
		t.Error("has_smtp_password should be true after storing a password")
	}
	if _, leaked := resp["smtp_password"]; leaked {
		t.Error("plaintext password must not appear in responses")
	}
	if env.settings.byOrg["org-1"].SMTPPassword != "hunter2" {
		t.Error("password should reach the store")
	}
}

func TestMailSettingsRejectsBadProvider(t *testing.T) {
	env := setupTestServer(t)

	rec := doRequest(t, env.server.Handler(), http.MethodPut, "/api/v1/settings/mail",
		map[string]any{"provider": "pigeon"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestForceCycleEndpoints(t *testing.T) {
	env := setupTestServer(t)

	rec := doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/internal/run-sequencer-cycle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["sent"] != 2 || out["errored"] != 1 {
		t.Errorf("cycle result = %v", out)
	}

	rec = doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/internal/run-mailbox-poll", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestForceCycleUnavailableWithoutWorkers(t *testing.T) {
	env := setupTestServer(t)
	env.server = NewServer(config.ServerConfig{}, Deps{
		Campaigns:   env.campaigns,
		Enrollments: env.enrollments,
		Replies:     env.replies,
		Settings:    env.settings,
		Generator:   env.generator,
	})

	rec := doRequest(t, env.server.Handler(), http.MethodPost,
		"/api/v1/internal/run-sequencer-cycle", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
