// Package api exposes the outreach engine over HTTP: campaign CRUD,
// step generation triggers, enrollment, the reply queue, org mail
// settings, and internal force-cycle endpoints for the workers.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/salestroopz/outreach-engine/internal/config"
	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/service/campaign"
	"github.com/salestroopz/outreach-engine/internal/service/enrollment"
	"github.com/salestroopz/outreach-engine/internal/service/reply"
)

// CampaignService is the campaign surface the handlers need.
type CampaignService interface {
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)
	List(ctx context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error)
	Create(ctx context.Context, orgID string, input campaign.CreateInput) (*domain.Campaign, error)
	Update(ctx context.Context, orgID, id string, u campaign.UpdateFields) error
	Delete(ctx context.Context, orgID, id string) error
	Steps(ctx context.Context, orgID, id string) ([]domain.CampaignStep, error)
}

// EnrollmentService is the enrollment surface the handlers need.
type EnrollmentService interface {
	Get(ctx context.Context, orgID, id string) (*domain.Enrollment, error)
	List(ctx context.Context, orgID string, f enrollment.ListFilter) ([]domain.Enrollment, int, error)
	Enroll(ctx context.Context, orgID, campaignID string, inputs []enrollment.EnrollInput) (*enrollment.EnrollResult, error)
	Reactivate(ctx context.Context, orgID, id string) error
}

// ReplyService is the inbound reply surface the handlers need.
type ReplyService interface {
	Get(ctx context.Context, orgID, id string) (*domain.InboundReply, error)
	List(ctx context.Context, orgID string, f reply.ListFilter) ([]domain.InboundReply, int, error)
	MarkActioned(ctx context.Context, orgID, id string) error
}

// SettingsStore reads and writes per-org mail settings.
type SettingsStore interface {
	Get(ctx context.Context, orgID string) (*domain.OrgMailSettings, error)
	Upsert(ctx context.Context, s *domain.OrgMailSettings) error
}

// StepGenerator triggers an AI sequence generation run.
type StepGenerator interface {
	GenerateSteps(ctx context.Context, orgID, campaignID string, numSteps int) (domain.AIStatus, error)
}

// SequencerRunner forces one sequencer cycle for an organization.
type SequencerRunner interface {
	RunCycleForOrg(ctx context.Context, orgID string) (sent, errored int)
}

// MailboxRunner forces one mailbox poll for an organization.
type MailboxRunner interface {
	PollOrg(ctx context.Context, orgID string) int
}

// Deps bundles everything the HTTP layer serves. Sequencer and Poller
// may be nil when the API runs separately from the workers; the
// force-cycle endpoints then return 503.
type Deps struct {
	DB          *sql.DB
	Redis       *redis.Client
	Campaigns   CampaignService
	Enrollments EnrollmentService
	Replies     ReplyService
	Settings    SettingsStore
	Generator   StepGenerator
	Sequencer   SequencerRunner
	Poller      MailboxRunner
}

// Server is the HTTP API server.
type Server struct {
	config  config.ServerConfig
	deps    Deps
	handler http.Handler
	server  *http.Server
}

// NewServer creates the API server with its routes wired.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{config: cfg, deps: deps}
	s.handler = s.routes()
	return s
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
