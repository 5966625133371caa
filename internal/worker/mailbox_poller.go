package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/salestroopz/outreach-engine/internal/classify"
	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/mailbox"
	"github.com/salestroopz/outreach-engine/internal/pkg/distlock"
	"github.com/salestroopz/outreach-engine/internal/pkg/logger"
	"github.com/salestroopz/outreach-engine/internal/repository/postgres"
)

// MailboxPoller ingests inbound mail for every organization with reply
// detection enabled: fetch past the UID cursor, correlate to outgoing
// messages, classify, store, and apply the enrollment transition.
type MailboxPoller struct {
	db         *sql.DB
	redis      *redis.Client
	settings   *postgres.SettingsRepo
	dialer     mailbox.Dialer
	classifier *classify.Classifier

	workerID     string
	pollInterval time.Duration
	fetchLimit   int
	lockTTL      time.Duration

	// Stats
	totalIngested int64
	totalSkipped  int64
	totalErrors   int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewMailboxPoller creates a mailbox poller worker.
func NewMailboxPoller(db *sql.DB, redisClient *redis.Client, settings *postgres.SettingsRepo,
	dialer mailbox.Dialer, classifier *classify.Classifier) *MailboxPoller {
	return &MailboxPoller{
		db:           db,
		redis:        redisClient,
		settings:     settings,
		dialer:       dialer,
		classifier:   classifier,
		workerID:     fmt.Sprintf("mailbox-%s", uuid.New().String()[:8]),
		pollInterval: 3 * time.Minute,
		fetchLimit:   100,
		lockTTL:      10 * time.Minute,
	}
}

// SetPollInterval overrides the cycle interval (config wiring).
func (p *MailboxPoller) SetPollInterval(d time.Duration) { p.pollInterval = d }

// SetFetchLimit overrides the per-cycle message cap.
func (p *MailboxPoller) SetFetchLimit(n int) { p.fetchLimit = n }

// SetLockTTL overrides the per-org lock TTL.
func (p *MailboxPoller) SetLockTTL(d time.Duration) { p.lockTTL = d }

// Start begins the poller loop.
func (p *MailboxPoller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	log.Printf("MailboxPoller: Starting worker %s", p.workerID)

	p.registerWorker()

	p.wg.Add(1)
	go p.runLoop()

	p.wg.Add(1)
	go p.heartbeatLoop()
}

// Stop gracefully stops the poller with a timeout.
func (p *MailboxPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	log.Println("MailboxPoller: Stopping...")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("MailboxPoller: All goroutines stopped cleanly")
	case <-time.After(30 * time.Second):
		log.Println("MailboxPoller: Shutdown timeout - forcing stop")
	}

	p.deregisterWorker()

	log.Printf("MailboxPoller: Stopped. Ingested: %d, Skipped: %d, Errors: %d",
		atomic.LoadInt64(&p.totalIngested), atomic.LoadInt64(&p.totalSkipped),
		atomic.LoadInt64(&p.totalErrors))
}

func (p *MailboxPoller) runLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.RunCycle(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.RunCycle(p.ctx)
		}
	}
}

// RunCycle polls every organization with reply detection enabled.
func (p *MailboxPoller) RunCycle(ctx context.Context) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT organization_id FROM org_mail_settings
		WHERE enable_reply_detection = true AND imap_host != ''
	`)
	if err != nil {
		log.Printf("MailboxPoller: Error listing pollable organizations: %v", err)
		return
	}
	var orgIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			orgIDs = append(orgIDs, id)
		}
	}
	rows.Close()

	for _, orgID := range orgIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.PollOrg(ctx, orgID)
	}
}

// PollOrg runs one ingestion cycle for one organization under its lock.
// Returns the number of replies stored.
func (p *MailboxPoller) PollOrg(ctx context.Context, orgID string) int {
	lock := distlock.NewLock(p.redis, p.db, "mailbox:"+orgID, p.lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Printf("MailboxPoller: Lock error for org %s: %v", orgID, err)
		return 0
	}
	if !acquired {
		return 0
	}
	defer lock.Release(ctx)

	settings, err := p.settings.Get(ctx, orgID)
	if err != nil {
		log.Printf("MailboxPoller: Error loading settings for org %s: %v", orgID, err)
		return 0
	}
	if !settings.PollReady() {
		return 0
	}

	session, err := p.dialer.Dial(ctx, settings)
	if err != nil {
		log.Printf("MailboxPoller: Error connecting mailbox for org %s: %v", orgID, err)
		return 0
	}
	defer session.Close()

	msgs, err := session.FetchSince(ctx, settings.LastIMAPPollUID, p.fetchLimit)
	if err != nil {
		log.Printf("MailboxPoller: Error fetching messages for org %s: %v", orgID, err)
		return 0
	}
	if len(msgs) == 0 {
		return 0
	}

	stored := 0
	maxUID := settings.LastIMAPPollUID
	var processed []uint32
	for i := range msgs {
		msg := &msgs[i]
		if msg.UID > maxUID {
			maxUID = msg.UID
		}
		// Every fetched message is marked seen, including ones that
		// fail classification, so the mailbox never wedges on one mail.
		processed = append(processed, msg.UID)

		ok, err := p.processMessage(ctx, orgID, msg)
		if err != nil {
			atomic.AddInt64(&p.totalErrors, 1)
			log.Printf("MailboxPoller: Error processing message uid=%d for org %s: %v", msg.UID, orgID, err)
			continue
		}
		if ok {
			atomic.AddInt64(&p.totalIngested, 1)
			stored++
		} else {
			atomic.AddInt64(&p.totalSkipped, 1)
		}
	}

	if err := session.MarkSeen(ctx, processed); err != nil {
		log.Printf("MailboxPoller: Error marking messages seen for org %s: %v", orgID, err)
	}

	// Cursor moves only after the whole batch was handled
	if err := p.settings.AdvancePollCursor(ctx, orgID, maxUID); err != nil {
		log.Printf("MailboxPoller: Error advancing cursor for org %s: %v", orgID, err)
	}
	return stored
}

// processMessage ingests one message. Returns true when a reply record
// was stored, false when the message was skipped (duplicate, not a
// campaign reply, or unclassifiable).
func (p *MailboxPoller) processMessage(ctx context.Context, orgID string, msg *mailbox.Message) (bool, error) {
	if msg.From == "" && msg.MessageID == "" {
		// UID-only placeholder for a message the fetch could not parse;
		// nothing to correlate, but the seen flag and cursor still apply.
		return false, nil
	}

	msgUID := strconv.FormatUint(uint64(msg.UID), 10)

	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM inbound_replies WHERE organization_id = $1 AND message_uid = $2)
	`, orgID, msgUID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if exists {
		return false, nil
	}

	enrollmentID, outgoingID, err := p.correlate(ctx, orgID, msg)
	if err != nil {
		return false, fmt.Errorf("correlate: %w", err)
	}
	if enrollmentID == "" {
		// Not a reply to anything we sent
		return false, nil
	}

	result := p.classifier.Classify(ctx, msg.Subject, msg.Body)
	if result == nil {
		// Classification unavailable; leave the message unrecorded so a
		// later manual pass can pick it up. It is still marked seen.
		return false, fmt.Errorf("classification unavailable")
	}

	if err := p.storeReply(ctx, orgID, enrollmentID, outgoingID, msgUID, msg, result); err != nil {
		return false, err
	}

	p.applyTransition(ctx, orgID, enrollmentID, result.Category)

	logger.Info("reply ingested",
		"enrollment_id", enrollmentID,
		"sender", msg.From,
		"classification", string(result.Category))
	return true, nil
}

// correlate resolves which enrollment a message replies to: first by the
// In-Reply-To / References headers against logged Message-IDs, then by
// the sender address against the most recent send to that lead.
func (p *MailboxPoller) correlate(ctx context.Context, orgID string, msg *mailbox.Message) (enrollmentID, outgoingID string, err error) {
	var candidates []string
	for _, id := range append(append([]string{}, msg.InReplyTo...), msg.References...) {
		id = strings.Trim(id, "<>")
		if id != "" {
			candidates = append(candidates, id)
		}
	}

	for _, id := range candidates {
		err := p.db.QueryRowContext(ctx, `
			SELECT id, enrollment_id FROM outgoing_messages
			WHERE organization_id = $1 AND message_id_header = $2
		`, orgID, id).Scan(&outgoingID, &enrollmentID)
		if err == nil {
			return enrollmentID, outgoingID, nil
		}
		if err != sql.ErrNoRows {
			return "", "", err
		}
	}

	if msg.From == "" {
		return "", "", nil
	}
	err = p.db.QueryRowContext(ctx, `
		SELECT id, enrollment_id FROM outgoing_messages
		WHERE organization_id = $1 AND LOWER(recipient) = $2
		ORDER BY sent_at DESC
		LIMIT 1
	`, orgID, msg.From).Scan(&outgoingID, &enrollmentID)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return enrollmentID, outgoingID, nil
}

func (p *MailboxPoller) storeReply(ctx context.Context, orgID, enrollmentID, outgoingID, msgUID string,
	msg *mailbox.Message, result *classify.Result) error {
	var meetingInterest *bool
	if v, ok := result.ExtractedInfo["meeting_interest"]; ok {
		b := v == "true" || strings.EqualFold(v, "yes")
		meetingInterest = &b
	}
	requestedTime := extractedField(result, "requested_time")
	questions := extractedField(result, "questions")
	objections := extractedField(result, "objections")

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO inbound_replies
			(id, organization_id, enrollment_id, outgoing_message_id, message_uid,
			 sender, subject, cleaned_body, ai_classification, ai_summary,
			 extracted_meeting_interest, extracted_requested_time,
			 extracted_questions, extracted_objections,
			 is_actioned_by_user, received_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, false, $15, NOW())
		ON CONFLICT (organization_id, message_uid) DO NOTHING
	`, uuid.New().String(), orgID, enrollmentID, nullIfEmpty(outgoingID), msgUID,
		msg.From, msg.Subject, msg.Body, result.Category, result.Summary,
		meetingInterest, requestedTime, questions, objections, msg.Date)
	if err != nil {
		return fmt.Errorf("store reply: %w", err)
	}
	return nil
}

// applyTransition moves the enrollment to the status the category
// forces. Out-of-office and neutral replies record the response but
// leave the sequence running; an unsubscribed enrollment never leaves
// that state.
func (p *MailboxPoller) applyTransition(ctx context.Context, orgID, enrollmentID string, cat domain.ReplyCategory) {
	status, changes := domain.TransitionFor(cat)
	var err error
	if changes {
		_, err = p.db.ExecContext(ctx, `
			UPDATE enrollments
			SET status = $1, last_response_type = $2, last_response_at = NOW(),
			    next_email_due_at = NULL, updated_at = NOW()
			WHERE id = $3 AND organization_id = $4 AND status != 'unsubscribed_ai_flagged'
		`, status, string(cat), enrollmentID, orgID)
	} else {
		_, err = p.db.ExecContext(ctx, `
			UPDATE enrollments
			SET last_response_type = $1, last_response_at = NOW(), updated_at = NOW()
			WHERE id = $2 AND organization_id = $3
		`, string(cat), enrollmentID, orgID)
	}
	if err != nil {
		log.Printf("MailboxPoller: Error applying transition for enrollment %s: %v", enrollmentID, err)
	}
}

func extractedField(result *classify.Result, key string) *string {
	if v, ok := result.ExtractedInfo[key]; ok && v != "" {
		return &v
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (p *MailboxPoller) registerWorker() {
	p.db.Exec(`
		INSERT INTO workers (id, worker_type, hostname, status, started_at, last_heartbeat_at)
		VALUES ($1, 'mailbox_poller', $2, 'running', NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = 'running',
			started_at = NOW(),
			last_heartbeat_at = NOW()
	`, p.workerID, getHostname())
}

func (p *MailboxPoller) deregisterWorker() {
	p.db.Exec(`UPDATE workers SET status = 'stopped' WHERE id = $1`, p.workerID)
}

func (p *MailboxPoller) heartbeatLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.db.Exec(`
				UPDATE workers
				SET last_heartbeat_at = NOW(), total_processed = $2, total_errors = $3
				WHERE id = $1
			`, p.workerID, atomic.LoadInt64(&p.totalIngested), atomic.LoadInt64(&p.totalErrors))
		}
	}
}
