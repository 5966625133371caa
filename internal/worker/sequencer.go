package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/mailing"
	"github.com/salestroopz/outreach-engine/internal/pkg/distlock"
	"github.com/salestroopz/outreach-engine/internal/repository/postgres"
	"github.com/salestroopz/outreach-engine/internal/sequence"
)

// Sequencer advances due enrollments through their campaign step
// sequence: claim, personalize, send, record, schedule the next step.
// Multiple instances may run; a per-organization lock plus a per-row
// status claim keep each enrollment on exactly one sender.
type Sequencer struct {
	db       *sql.DB
	redis    *redis.Client
	settings *postgres.SettingsRepo
	tmpl     *mailing.TemplateService
	crafter  *sequence.Crafter

	// senderFor is swappable in tests.
	senderFor func(*domain.OrgMailSettings) mailing.Sender

	workerID     string
	pollInterval time.Duration
	batchSize    int
	lockTTL      time.Duration

	// Stats
	totalSent    int64
	totalSkipped int64
	totalErrors  int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// dueEnrollment is one row ready for a send attempt, joined with the
// lead and campaign fields the attempt needs.
type dueEnrollment struct {
	ID          string
	CampaignID  string
	CurrentStep int

	LeadID       string
	LeadEmail    string
	LeadName     string
	LeadCompany  string
	LeadTitle    string
	LeadIndustry string

	CampaignName    string
	TargetAudience  string
	OfferingSummary string
}

// NewSequencer creates a sequencer worker. redisClient may be nil; org
// locking then falls back to Postgres advisory locks.
func NewSequencer(db *sql.DB, redisClient *redis.Client, settings *postgres.SettingsRepo,
	tmpl *mailing.TemplateService, crafter *sequence.Crafter,
	smtp *mailing.SMTPSender, ses *mailing.SESSender) *Sequencer {
	return &Sequencer{
		db:       db,
		redis:    redisClient,
		settings: settings,
		tmpl:     tmpl,
		crafter:  crafter,
		senderFor: func(s *domain.OrgMailSettings) mailing.Sender {
			return mailing.SenderFor(s, smtp, ses)
		},
		workerID:     fmt.Sprintf("sequencer-%s", uuid.New().String()[:8]),
		pollInterval: 5 * time.Minute,
		batchSize:    200,
		lockTTL:      10 * time.Minute,
	}
}

// SetPollInterval overrides the cycle interval (config wiring).
func (s *Sequencer) SetPollInterval(d time.Duration) { s.pollInterval = d }

// SetBatchSize overrides the per-org batch limit.
func (s *Sequencer) SetBatchSize(n int) { s.batchSize = n }

// SetLockTTL overrides the per-org lock TTL.
func (s *Sequencer) SetLockTTL(d time.Duration) { s.lockTTL = d }

// Start begins the sequencer loop.
func (s *Sequencer) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	log.Printf("Sequencer: Starting worker %s", s.workerID)

	s.registerWorker()

	s.wg.Add(1)
	go s.runLoop()

	s.wg.Add(1)
	go s.heartbeatLoop()
}

// Stop gracefully stops the sequencer with a timeout.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	log.Println("Sequencer: Stopping...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Sequencer: All goroutines stopped cleanly")
	case <-time.After(30 * time.Second):
		log.Println("Sequencer: Shutdown timeout - forcing stop")
	}

	s.deregisterWorker()

	log.Printf("Sequencer: Stopped. Sent: %d, Skipped: %d, Errors: %d",
		atomic.LoadInt64(&s.totalSent), atomic.LoadInt64(&s.totalSkipped),
		atomic.LoadInt64(&s.totalErrors))
}

func (s *Sequencer) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// First cycle immediately on startup
	s.RunCycle(s.ctx)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunCycle(s.ctx)
		}
	}
}

// RunCycle processes every organization that has due enrollments.
func (s *Sequencer) RunCycle(ctx context.Context) {
	orgIDs, err := s.orgsWithDueEnrollments(ctx)
	if err != nil {
		log.Printf("Sequencer: Error listing due organizations: %v", err)
		return
	}

	for _, orgID := range orgIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.RunCycleForOrg(ctx, orgID)
	}
}

// RunCycleForOrg processes one organization's due batch under its lock.
// Returns sent and errored counts for the cycle.
func (s *Sequencer) RunCycleForOrg(ctx context.Context, orgID string) (sent, errored int) {
	lock := distlock.NewLock(s.redis, s.db, "sequencer:"+orgID, s.lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Printf("Sequencer: Lock error for org %s: %v", orgID, err)
		return 0, 0
	}
	if !acquired {
		// Another instance is already sequencing this org
		return 0, 0
	}
	defer lock.Release(ctx)

	settings, err := s.settings.Get(ctx, orgID)
	if err == postgres.ErrSettingsNotFound {
		settings = &domain.OrgMailSettings{OrganizationID: orgID}
		err = nil
	}
	if err != nil {
		log.Printf("Sequencer: Error loading settings for org %s: %v", orgID, err)
		return 0, 0
	}

	if !settings.SendReady() {
		n := s.failUnconfigured(ctx, orgID)
		if n > 0 {
			log.Printf("Sequencer: Org %s has %d due enrollments but sending is not configured", orgID, n)
		}
		return 0, n
	}

	due, err := s.fetchDue(ctx, orgID)
	if err != nil {
		log.Printf("Sequencer: Error fetching due enrollments for org %s: %v", orgID, err)
		return 0, 0
	}

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		if err := s.processEnrollment(ctx, orgID, settings, &due[i]); err != nil {
			atomic.AddInt64(&s.totalErrors, 1)
			errored++
			log.Printf("Sequencer: Error processing enrollment %s: %v", due[i].ID, err)
		} else {
			atomic.AddInt64(&s.totalSent, 1)
			sent++
		}
	}
	return sent, errored
}

func (s *Sequencer) orgsWithDueEnrollments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT e.organization_id
		FROM enrollments e
		JOIN campaigns c ON c.id = e.campaign_id
		WHERE c.is_active = true
		  AND e.status IN ('pending_enrollment', 'active')
		  AND (e.next_email_due_at IS NULL OR e.next_email_due_at <= NOW())
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Sequencer) fetchDue(ctx context.Context, orgID string) ([]dueEnrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.campaign_id, e.current_step_number,
		       l.id, l.email, COALESCE(l.name,''), COALESCE(l.company,''),
		       COALESCE(l.title,''), COALESCE(l.industry,''),
		       c.name, COALESCE(c.target_audience,''), COALESCE(c.offering_summary,'')
		FROM enrollments e
		JOIN campaigns c ON c.id = e.campaign_id
		JOIN leads l ON l.id = e.lead_id
		WHERE e.organization_id = $1
		  AND c.is_active = true
		  AND e.status IN ('pending_enrollment', 'active')
		  AND (e.next_email_due_at IS NULL OR e.next_email_due_at <= NOW())
		ORDER BY e.next_email_due_at ASC NULLS FIRST
		LIMIT $2
	`, orgID, s.batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dueEnrollment
	for rows.Next() {
		var d dueEnrollment
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.CurrentStep,
			&d.LeadID, &d.LeadEmail, &d.LeadName, &d.LeadCompany,
			&d.LeadTitle, &d.LeadIndustry,
			&d.CampaignName, &d.TargetAudience, &d.OfferingSummary); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// failUnconfigured errors out due enrollments for an org whose outbound
// transport is missing, so they surface in the operator's error list
// instead of silently aging. An enrollment with no remaining step has
// nothing left to send; it completes regardless of transport state.
func (s *Sequencer) failUnconfigured(ctx context.Context, orgID string) int {
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrollments e
		SET status = 'completed', next_email_due_at = NULL, updated_at = NOW()
		WHERE e.organization_id = $1
		  AND e.status IN ('pending_enrollment', 'active')
		  AND (e.next_email_due_at IS NULL OR e.next_email_due_at <= NOW())
		  AND NOT EXISTS (
			SELECT 1 FROM campaign_steps cs
			WHERE cs.campaign_id = e.campaign_id
			  AND cs.step_number > e.current_step_number
		  )
	`, orgID)
	if err != nil {
		log.Printf("Sequencer: Error completing exhausted enrollments for org %s: %v", orgID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments e
		SET status = 'error', error_count = error_count + 1,
		    error_message = 'email sending not configured',
		    next_email_due_at = NULL, updated_at = NOW()
		WHERE e.organization_id = $1
		  AND e.status IN ('pending_enrollment', 'active')
		  AND (e.next_email_due_at IS NULL OR e.next_email_due_at <= NOW())
		  AND EXISTS (
			SELECT 1 FROM campaign_steps cs
			WHERE cs.campaign_id = e.campaign_id
			  AND cs.step_number > e.current_step_number
		  )
	`, orgID)
	if err != nil {
		log.Printf("Sequencer: Error marking unconfigured org %s: %v", orgID, err)
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

// processEnrollment performs one send attempt. The transient 'sending'
// claim is written before any network call; the success and failure
// updates are both guarded on it so a lost race changes nothing.
func (s *Sequencer) processEnrollment(ctx context.Context, orgID string, settings *domain.OrgMailSettings, d *dueEnrollment) error {
	step, err := s.nextStep(ctx, d.CampaignID, d.CurrentStep)
	if err == sql.ErrNoRows {
		// Sequence exhausted without a further step on file
		return s.completeEnrollment(ctx, d.ID, d.CurrentStep)
	}
	if err != nil {
		return fmt.Errorf("load next step: %w", err)
	}

	// Claim
	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending_enrollment', 'active')
	`, d.ID)
	if err != nil {
		return fmt.Errorf("claim enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// A reply transition or another worker got here first
		atomic.AddInt64(&s.totalSkipped, 1)
		return nil
	}

	subject, body, err := s.composeEmail(ctx, d, step)
	if err != nil {
		s.failEnrollment(ctx, d.ID, fmt.Sprintf("compose: %v", err))
		return err
	}

	msg := &mailing.OutboundEmail{
		To:        d.LeadEmail,
		Subject:   subject,
		TextBody:  body,
		FromName:  settings.FromName,
		FromEmail: settings.FromEmail,
	}
	result, err := s.senderFor(settings).Send(ctx, settings, msg)
	if err != nil {
		s.failEnrollment(ctx, d.ID, fmt.Sprintf("send: %v", err))
		return err
	}

	return s.recordSend(ctx, orgID, d, step, subject, body, result)
}

func (s *Sequencer) nextStep(ctx context.Context, campaignID string, afterStep int) (*domain.CampaignStep, error) {
	step := &domain.CampaignStep{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, step_number, delay_days,
		       COALESCE(subject_template,''), body_template,
		       COALESCE(follow_up_angle,''), is_ai_crafted
		FROM campaign_steps
		WHERE campaign_id = $1 AND step_number > $2
		ORDER BY step_number ASC
		LIMIT 1
	`, campaignID, afterStep).Scan(
		&step.ID, &step.CampaignID, &step.StepNumber, &step.DelayDays,
		&step.SubjectTemplate, &step.BodyTemplate, &step.FollowUpAngle,
		&step.IsAICrafted)
	if err != nil {
		return nil, err
	}
	return step, nil
}

func (s *Sequencer) composeEmail(ctx context.Context, d *dueEnrollment, step *domain.CampaignStep) (subject, body string, err error) {
	lead := &domain.Lead{
		ID: d.LeadID, Email: d.LeadEmail, Name: d.LeadName,
		Company: d.LeadCompany, Title: d.LeadTitle, Industry: d.LeadIndustry,
	}

	if step.IsAICrafted && s.crafter != nil {
		c := &domain.Campaign{
			ID: d.CampaignID, Name: d.CampaignName,
			TargetAudience: d.TargetAudience, OfferingSummary: d.OfferingSummary,
		}
		return s.crafter.Craft(ctx, c, step, lead)
	}

	subject, body = s.tmpl.RenderStep(step, lead)
	return subject, body, nil
}

// recordSend logs the outgoing message and advances the enrollment,
// scheduling the following step or completing the sequence.
func (s *Sequencer) recordSend(ctx context.Context, orgID string, d *dueEnrollment,
	step *domain.CampaignStep, subject, body string, result *mailing.SendResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outgoing_messages
			(id, organization_id, enrollment_id, step_id, recipient, subject,
			 body, provider_status, message_id_header, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (organization_id, message_id_header) DO NOTHING
	`, uuid.New().String(), orgID, d.ID, step.ID, d.LeadEmail, subject,
		body, result.Provider, result.MessageID, result.SentAt)
	if err != nil {
		// The mail is on the wire; still advance the enrollment
		log.Printf("Sequencer: Error logging outgoing message for %s: %v", d.ID, err)
	}

	following, err := s.nextStep(ctx, d.CampaignID, step.StepNumber)
	if err == sql.ErrNoRows {
		_, err = s.db.ExecContext(ctx, `
			UPDATE enrollments
			SET status = 'completed', current_step_number = $2,
			    last_email_sent_at = $3, next_email_due_at = NULL,
			    error_count = 0, error_message = NULL, updated_at = NOW()
			WHERE id = $1 AND status = 'sending'
		`, d.ID, step.StepNumber, result.SentAt)
		return err
	}
	if err != nil {
		return fmt.Errorf("load following step: %w", err)
	}

	dueAt := result.SentAt.Add(time.Duration(following.DelayDays) * 24 * time.Hour)
	_, err = s.db.ExecContext(ctx, `
		UPDATE enrollments
		SET status = 'active', current_step_number = $2,
		    last_email_sent_at = $3, next_email_due_at = $4,
		    error_count = 0, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'sending'
	`, d.ID, step.StepNumber, result.SentAt, dueAt)
	return err
}

func (s *Sequencer) completeEnrollment(ctx context.Context, id string, currentStep int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrollments
		SET status = 'completed', next_email_due_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending_enrollment', 'active')
	`, id)
	return err
}

// failEnrollment records a failed attempt without advancing the step.
func (s *Sequencer) failEnrollment(ctx context.Context, id, msg string) {
	if len(msg) > 500 {
		msg = msg[:500]
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrollments
		SET status = 'error', error_count = error_count + 1, error_message = $2,
		    next_email_due_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'sending'
	`, id, msg)
	if err != nil {
		log.Printf("Sequencer: Error recording failure for %s: %v", id, err)
	}
}

func (s *Sequencer) registerWorker() {
	s.db.Exec(`
		INSERT INTO workers (id, worker_type, hostname, status, started_at, last_heartbeat_at)
		VALUES ($1, 'sequencer', $2, 'running', NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = 'running',
			started_at = NOW(),
			last_heartbeat_at = NOW()
	`, s.workerID, getHostname())
}

func (s *Sequencer) deregisterWorker() {
	s.db.Exec(`UPDATE workers SET status = 'stopped' WHERE id = $1`, s.workerID)
}

func (s *Sequencer) heartbeatLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.db.Exec(`
				UPDATE workers
				SET last_heartbeat_at = NOW(), total_processed = $2, total_errors = $3
				WHERE id = $1
			`, s.workerID, atomic.LoadInt64(&s.totalSent), atomic.LoadInt64(&s.totalErrors))
		}
	}
}
