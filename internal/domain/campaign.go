package domain

import (
	"time"
)

// AIStatus tracks the step-generation pipeline state of a campaign.
// It is mutated only by the sequence generator.
type AIStatus string

const (
	AIStatusPending          AIStatus = "pending"
	AIStatusGenerating       AIStatus = "generating"
	AIStatusCompleted        AIStatus = "completed"
	AIStatusCompletedPartial AIStatus = "completed_partial"
	AIStatusFailed           AIStatus = "failed"
	AIStatusFailedConfig     AIStatus = "failed_config"
	AIStatusFailedLLMEmpty   AIStatus = "failed_llm_empty"
)

// Campaign represents one outreach campaign: a target profile and offering
// plus the generated step sequence that leads are enrolled into.
type Campaign struct {
	ID              string   `json:"id" db:"id"`
	OrganizationID  string   `json:"organization_id" db:"organization_id"`
	Name            string   `json:"name" db:"name"`
	Description     string   `json:"description" db:"description"`
	TargetProfileID *string  `json:"target_profile_id" db:"target_profile_id"`
	OfferingID      *string  `json:"offering_id" db:"offering_id"`
	TargetAudience  string   `json:"target_audience" db:"target_audience"`
	OfferingSummary string   `json:"offering_summary" db:"offering_summary"`
	AIStatus        AIStatus `json:"ai_status" db:"ai_status"`
	IsActive        bool     `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// GenerationInFlight reports whether a step-generation run is underway.
// A campaign in this state must reject a second generation trigger.
func (c *Campaign) GenerationInFlight() bool {
	return c.AIStatus == AIStatusGenerating
}

// CampaignStep is one templated email in a campaign's ordered sequence.
// Steps are keyed by step_number (1-based, unique per campaign); the
// sequencer defines "next step" as the smallest step_number strictly
// greater than an enrollment's current_step_number.
type CampaignStep struct {
	ID             string    `json:"id" db:"id"`
	CampaignID     string    `json:"campaign_id" db:"campaign_id"`
	StepNumber     int       `json:"step_number" db:"step_number"`
	DelayDays      int       `json:"delay_days" db:"delay_days"`
	SubjectTemplate string   `json:"subject_template" db:"subject_template"`
	BodyTemplate   string    `json:"body_template" db:"body_template"`
	FollowUpAngle  string    `json:"follow_up_angle" db:"follow_up_angle"`
	IsAICrafted    bool      `json:"is_ai_crafted" db:"is_ai_crafted"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
