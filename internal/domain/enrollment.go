package domain

import "time"

// EnrollmentStatus enumerates the lifecycle states of an enrollment.
// "sending" is a transient claim written just before a network send so a
// crash mid-send leaves a detectable in-flight record.
type EnrollmentStatus string

const (
	EnrollmentPending             EnrollmentStatus = "pending_enrollment"
	EnrollmentActive              EnrollmentStatus = "active"
	EnrollmentSending             EnrollmentStatus = "sending"
	EnrollmentError               EnrollmentStatus = "error"
	EnrollmentCompleted           EnrollmentStatus = "completed"
	EnrollmentPositiveReply       EnrollmentStatus = "positive_reply_ai_flagged"
	EnrollmentNegativeReply       EnrollmentStatus = "negative_reply_ai_flagged"
	EnrollmentUnsubscribed        EnrollmentStatus = "unsubscribed_ai_flagged"
	EnrollmentNeedsManualFollowup EnrollmentStatus = "needs_manual_followup"
)

// Enrollment is the central entity: one lead's progress through one
// campaign's step sequence. It is mutated by exactly two components, the
// sequencer (send attempts) and the mailbox poller (reply transitions),
// both through guarded per-row updates.
type Enrollment struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	CampaignID     string           `json:"campaign_id" db:"campaign_id"`
	LeadID         string           `json:"lead_id" db:"lead_id"`
	Status         EnrollmentStatus `json:"status" db:"status"`

	// CurrentStepNumber is the last successfully sent step; 0 means none.
	// Monotonically non-decreasing for the lifetime of the enrollment.
	CurrentStepNumber int        `json:"current_step_number" db:"current_step_number"`
	LastEmailSentAt   *time.Time `json:"last_email_sent_at" db:"last_email_sent_at"`
	NextEmailDueAt    *time.Time `json:"next_email_due_at" db:"next_email_due_at"`

	LastResponseType *string    `json:"last_response_type" db:"last_response_type"`
	LastResponseAt   *time.Time `json:"last_response_at" db:"last_response_at"`

	ErrorCount   int     `json:"error_count" db:"error_count"`
	ErrorMessage *string `json:"error_message" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the enrollment can never be sent to again.
// Terminal enrollments are not reused; re-enrollment creates a new record.
func (e *Enrollment) IsTerminal() bool {
	return e.Status == EnrollmentCompleted || e.Status == EnrollmentUnsubscribed
}

// Sendable reports whether the sequencer may consider this enrollment.
func (e *Enrollment) Sendable() bool {
	return e.Status == EnrollmentActive
}

// DueTime computes when the given next step becomes eligible. A never-sent
// enrollment is due immediately. A step sent at T with delay_days=3 makes
// the successor eligible at exactly T+3d (boundary inclusive).
func (e *Enrollment) DueTime(nextStep *CampaignStep) time.Time {
	if e.LastEmailSentAt == nil {
		return time.Time{}
	}
	return e.LastEmailSentAt.Add(time.Duration(nextStep.DelayDays) * 24 * time.Hour)
}
