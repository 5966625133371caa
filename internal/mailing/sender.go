package mailing

import (
	"context"
	"time"

	"github.com/salestroopz/outreach-engine/internal/domain"
)

// OutboundEmail is one message to deliver.
type OutboundEmail struct {
	To        string
	Subject   string
	HTMLBody  string
	TextBody  string
	FromName  string
	FromEmail string
	Headers   map[string]string
}

// SendResult reports the outcome of a delivery attempt. MessageID is the
// Message-ID header value (without angle brackets) that was put on the
// wire; the sequencer logs it so inbound replies can thread against it.
type SendResult struct {
	Success   bool
	MessageID string
	Provider  string
	SentAt    time.Time
}

// Sender delivers one email synchronously. Implementations: SMTPSender
// (per-organization SMTP credentials) and SESSender (shared AWS SES).
// No partial success: an error means nothing was accepted for delivery.
type Sender interface {
	Send(ctx context.Context, settings *domain.OrgMailSettings, msg *OutboundEmail) (*SendResult, error)
}

// SenderFor routes to the transport matching the organization's provider
// setting, falling back to SMTP.
func SenderFor(settings *domain.OrgMailSettings, smtp *SMTPSender, ses *SESSender) Sender {
	if settings.Provider == "ses" && ses != nil {
		return ses
	}
	return smtp
}
