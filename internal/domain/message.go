package domain

import "time"

// OutgoingMessage is one append-only record of a successful send. The
// message_id_header is unique per organization and is what inbound replies
// thread against via In-Reply-To / References.
type OutgoingMessage struct {
	ID              string    `json:"id" db:"id"`
	OrganizationID  string    `json:"organization_id" db:"organization_id"`
	EnrollmentID    string    `json:"enrollment_id" db:"enrollment_id"`
	StepID          string    `json:"step_id" db:"step_id"`
	Recipient       string    `json:"recipient" db:"recipient"`
	Subject         string    `json:"subject" db:"subject"`
	Body            string    `json:"body" db:"body"`
	ProviderStatus  string    `json:"provider_status" db:"provider_status"`
	MessageIDHeader string    `json:"message_id_header" db:"message_id_header"`
	SentAt          time.Time `json:"sent_at" db:"sent_at"`
}

// ReplyCategory is the closed intent set produced by the reply classifier.
// An unknown value returned by the model is stored as-is rather than
// coerced, so downstream consumers must treat the set as open.
type ReplyCategory string

const (
	ReplyPositiveMeetingInterest ReplyCategory = "POSITIVE_MEETING_INTEREST"
	ReplyPositiveGeneralInterest ReplyCategory = "POSITIVE_GENERAL_INTEREST"
	ReplyNegativeNotInterested   ReplyCategory = "NEGATIVE_NOT_INTERESTED"
	ReplyNegativeUnsubscribe     ReplyCategory = "NEGATIVE_UNSUBSCRIBE"
	ReplyNegativeWrongPerson     ReplyCategory = "NEGATIVE_WRONG_PERSON"
	ReplyQuestionProductService  ReplyCategory = "QUESTION_PRODUCT_SERVICE"
	ReplyQuestionObjection       ReplyCategory = "QUESTION_OBJECTION"
	ReplyOutOfOffice             ReplyCategory = "OUT_OF_OFFICE_AUTO_REPLY"
	ReplyNeutralAcknowledgement  ReplyCategory = "NEUTRAL_ACKNOWLEDGEMENT"
	ReplyNeutralAutoReplyOther   ReplyCategory = "NEUTRAL_AUTO_REPLY_OTHER"
	ReplyCannotClassify          ReplyCategory = "CANNOT_CLASSIFY_GIBBERISH"
)

// TransitionFor maps a reply category to the enrollment status it forces.
// The second return is false when the category leaves the enrollment
// untouched (out-of-office and neutral replies keep the sequence going).
func TransitionFor(cat ReplyCategory) (EnrollmentStatus, bool) {
	switch cat {
	case ReplyPositiveMeetingInterest, ReplyPositiveGeneralInterest,
		ReplyQuestionProductService, ReplyQuestionObjection:
		return EnrollmentPositiveReply, true
	case ReplyNegativeUnsubscribe:
		return EnrollmentUnsubscribed, true
	case ReplyNegativeNotInterested, ReplyNegativeWrongPerson:
		return EnrollmentNegativeReply, true
	default:
		return "", false
	}
}

// InboundReply is one ingested mailbox message. MessageUID (the mailbox
// message identifier) is the dedup key: one record per identifier ever
// seen, however many times a poll cycle refetches it.
type InboundReply struct {
	ID             string  `json:"id" db:"id"`
	OrganizationID string  `json:"organization_id" db:"organization_id"`
	EnrollmentID   *string `json:"enrollment_id" db:"enrollment_id"`
	OutgoingID     *string `json:"outgoing_message_id" db:"outgoing_message_id"`
	MessageUID     string  `json:"message_uid" db:"message_uid"`
	Sender         string  `json:"sender" db:"sender"`
	Subject        string  `json:"subject" db:"subject"`
	CleanedBody    string  `json:"cleaned_body" db:"cleaned_body"`

	Category ReplyCategory `json:"ai_classification" db:"ai_classification"`
	Summary  string        `json:"ai_summary" db:"ai_summary"`

	// Flattened extracted entities from the classifier.
	MeetingInterest  *bool   `json:"extracted_meeting_interest" db:"extracted_meeting_interest"`
	RequestedTime    *string `json:"extracted_requested_time" db:"extracted_requested_time"`
	Questions        *string `json:"extracted_questions" db:"extracted_questions"`
	Objections       *string `json:"extracted_objections" db:"extracted_objections"`
	IsActionedByUser bool    `json:"is_actioned_by_user" db:"is_actioned_by_user"`

	ReceivedAt time.Time `json:"received_at" db:"received_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Actionable reports whether the reply should appear in the operator's
// work queue.
func (r *InboundReply) Actionable() bool {
	if r.IsActionedByUser {
		return false
	}
	_, changes := TransitionFor(r.Category)
	return changes
}
