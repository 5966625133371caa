package worker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/mailing"
)

func setupSequencerTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

type fakeSender struct {
	result *mailing.SendResult
	err    error
	calls  int
	last   *mailing.OutboundEmail
}

func (f *fakeSender) Send(_ context.Context, _ *domain.OrgMailSettings, msg *mailing.OutboundEmail) (*mailing.SendResult, error) {
	f.calls++
	f.last = msg
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func setupTestSequencer(t *testing.T, sender *fakeSender) (*Sequencer, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, cleanup := setupSequencerTestDB(t)

	seq := NewSequencer(db, nil, nil, mailing.NewTemplateService(), nil, nil, nil)
	seq.senderFor = func(_ *domain.OrgMailSettings) mailing.Sender { return sender }

	return seq, mock, cleanup
}

func testSettings() *domain.OrgMailSettings {
	return &domain.OrgMailSettings{
		OrganizationID: "org-1",
		Provider:       "smtp",
		SMTPHost:       "smtp.example.com",
		SMTPPort:       587,
		FromEmail:      "sam@vendor.com",
		FromName:       "Sam Seller",
		IsConfigured:   true,
	}
}

func stepCols() []string {
	return []string{"id", "campaign_id", "step_number", "delay_days",
		"subject_template", "body_template", "follow_up_angle", "is_ai_crafted"}
}

func testDue() *dueEnrollment {
	return &dueEnrollment{
		ID:          "enr-1",
		CampaignID:  "camp-1",
		CurrentStep: 0,
		LeadID:      "lead-1",
		LeadEmail:   "jane@example.com",
		LeadName:    "Jane Smith",
		LeadCompany: "Acme",
	}
}

func TestProcessEnrollment_SendsAndSchedulesNext(t *testing.T) {
	sentAt := time.Now().UTC()
	sender := &fakeSender{result: &mailing.SendResult{
		Success: true, MessageID: "abc123@vendor.com", Provider: "smtp", SentAt: sentAt,
	}}
	seq, mock, cleanup := setupTestSequencer(t, sender)
	defer cleanup()

	// Next step to send
	mock.ExpectQuery("SELECT (.+) FROM campaign_steps").
		WithArgs("camp-1", 0).
		WillReturnRows(sqlmock.NewRows(stepCols()).
			AddRow("step-1", "camp-1", 1, 0, "Hi {company}", "Hello {first_name}", "intro", false))

	// Claim
	mock.ExpectExec("UPDATE enrollments SET status = 'sending'").
		WithArgs("enr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Outgoing message log
	mock.ExpectExec("INSERT INTO outgoing_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Following step exists with delay 3
	mock.ExpectQuery("SELECT (.+) FROM campaign_steps").
		WithArgs("camp-1", 1).
		WillReturnRows(sqlmock.NewRows(stepCols()).
			AddRow("step-2", "camp-1", 2, 3, "Re: Hi", "Bumping", "value", false))

	// Advance with computed due time
	mock.ExpectExec("UPDATE enrollments").
		WithArgs("enr-1", 1, sentAt, sentAt.Add(3*24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := seq.processEnrollment(context.Background(), "org-1", testSettings(), testDue())
	if err != nil {
		t.Fatalf("processEnrollment: %v", err)
	}
	if sender.calls != 1 {
		t.Errorf("sender called %d times, want 1", sender.calls)
	}
	if sender.last.To != "jane@example.com" {
		t.Errorf("sent to %q", sender.last.To)
	}
	if sender.last.Subject != "Hi Acme" {
		t.Errorf("subject = %q, tokens should be rendered", sender.last.Subject)
	}
	if sender.last.TextBody != "Hello Jane" {
		t.Errorf("body = %q", sender.last.TextBody)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestProcessEnrollment_LastStepCompletes(t *testing.T) {
	sentAt := time.Now().UTC()
	sender := &fakeSender{result: &mailing.SendResult{
		Success: true, MessageID: "xyz@vendor.com", Provider: "smtp", SentAt: sentAt,
	}}
	seq, mock, cleanup := setupTestSequencer(t, sender)
	defer cleanup()

	d := testDue()
	d.CurrentStep = 3

	mock.ExpectQuery("SELECT (.+) FROM campaign_steps").
		WithArgs("camp-1", 3).
		WillReturnRows(sqlmock.NewRows(stepCols()).
			AddRow("step-4", "camp-1", 4, 2, "Last try", "Breakup email", "breakup", false))

	mock.ExpectExec("UPDATE enrollments SET status = 'sending'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("INSERT INTO outgoing_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// No step after 4: sequence completed
	mock.ExpectQuery("SELECT (.+) FROM campaign_steps").
		WithArgs("camp-1", 4).
		WillReturnRows(sqlmock.NewRows(stepCols()))

	mock.ExpectExec("UPDATE enrollments").
		WithArgs("enr-1", 4, sentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := seq.processEnrollment(context.Background(), "org-1", testSettings(), d); err != nil {
		t.Fatalf("processEnrollment: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestProcessEnrollment_SkipsLostClaim(t *testing.T) {
	sender := &fakeSender{result: &mailing.SendResult{Success: true}}
	seq, mock, cleanup := setupTestSequencer(t, sender)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM campaign_steps").
		WillReturnRows(sqlmock.NewRows(stepCols()).
			AddRow("step-1", "camp-1", 1, 0, "Hi", "Hello", "intro", false))

	// A reply transition won the race: zero rows claimed
	mock.ExpectExec("UPDATE enrollments SET status = 'sending'").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := seq.processEnrollment(context.Background(), "org-1", testSettings(), testDue()); err != nil {
		t.Fatalf("processEnrollment: %v", err)
	}
	if sender.calls != 0 {
		t.Errorf("sender called %d times after lost claim, want 0", sender.calls)
	}
}

func TestProcessEnrollment_SendFailureKeepsStep(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	seq, mock, cleanup := setupTestSequencer(t, sender)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM campaign_steps").
		WillReturnRows(sqlmock.NewRows(stepCols()).
			AddRow("step-1", "camp-1", 1, 0, "Hi", "Hello", "intro", false))

	mock.ExpectExec("UPDATE enrollments SET status = 'sending'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Error recorded without advancing current_step_number
	mock.ExpectExec("UPDATE enrollments").
		WithArgs("enr-1", "send: connection refused").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := seq.processEnrollment(context.Background(), "org-1", testSettings(), testDue())
	if err == nil {
		t.Fatal("expected send error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestProcessEnrollment_NoStepsCompletes(t *testing.T) {
	sender := &fakeSender{result: &mailing.SendResult{Success: true}}
	seq, mock, cleanup := setupTestSequencer(t, sender)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM campaign_steps").
		WillReturnRows(sqlmock.NewRows(stepCols()))

	mock.ExpectExec("UPDATE enrollments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := seq.processEnrollment(context.Background(), "org-1", testSettings(), testDue()); err != nil {
		t.Fatalf("processEnrollment: %v", err)
	}
	if sender.calls != 0 {
		t.Errorf("sender called %d times for stepless campaign, want 0", sender.calls)
	}
}

func TestFailUnconfigured(t *testing.T) {
	seq, mock, cleanup := setupTestSequencer(t, &fakeSender{})
	defer cleanup()

	// Enrollments whose sequence is exhausted complete; only ones with a
	// step left to send become errors, and only those are counted.
	mock.ExpectExec("SET status = 'completed'").
		WithArgs("org-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("SET status = 'error'").
		WithArgs("org-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	if n := seq.failUnconfigured(context.Background(), "org-1"); n != 4 {
		t.Errorf("failUnconfigured = %d, want 4", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSequencerStartStop(t *testing.T) {
	db, mock, cleanup := setupSequencerTestDB(t)
	defer cleanup()

	seq := NewSequencer(db, nil, nil, mailing.NewTemplateService(), nil, nil, nil)
	seq.pollInterval = time.Hour // keep the loop idle during the test

	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec("INSERT INTO workers").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Startup cycle queries due orgs once
	mock.ExpectQuery("SELECT DISTINCT e.organization_id").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}))
	mock.ExpectExec("UPDATE workers SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))

	seq.Start()

	seq.mu.RLock()
	running := seq.running
	seq.mu.RUnlock()
	if !running {
		t.Error("sequencer should be running after Start()")
	}

	// Double start is a no-op
	seq.Start()

	seq.Stop()

	seq.mu.RLock()
	running = seq.running
	seq.mu.RUnlock()
	if running {
		t.Error("sequencer should not be running after Stop()")
	}

	// Double stop is a no-op
	seq.Stop()
}
