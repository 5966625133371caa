package domain

import "time"

// OrgMailSettings holds one organization's outbound SMTP transport and
// inbound IMAP mailbox configuration. Passwords are stored encrypted and
// decrypted by the settings repository on read; the *Password fields here
// always carry plaintext inside the process.
type OrgMailSettings struct {
	OrganizationID string `json:"organization_id" db:"organization_id"`

	Provider     string `json:"provider" db:"provider"` // smtp or ses
	SMTPHost     string `json:"smtp_host" db:"smtp_host"`
	SMTPPort     int    `json:"smtp_port" db:"smtp_port"`
	SMTPUsername string `json:"smtp_username" db:"smtp_username"`
	SMTPPassword string `json:"-" db:"-"`
	FromEmail    string `json:"from_email" db:"from_email"`
	FromName     string `json:"from_name" db:"from_name"`
	IsConfigured bool   `json:"is_configured" db:"is_configured"`

	IMAPHost             string `json:"imap_host" db:"imap_host"`
	IMAPPort             int    `json:"imap_port" db:"imap_port"`
	IMAPUsername         string `json:"imap_username" db:"imap_username"`
	IMAPPassword         string `json:"-" db:"-"`
	IMAPUseSSL           bool   `json:"imap_use_ssl" db:"imap_use_ssl"`
	EnableReplyDetection bool   `json:"enable_reply_detection" db:"enable_reply_detection"`

	// Poll cursor: highest mailbox UID fully processed, advanced
	// monotonically after each completed batch.
	LastIMAPPollUID uint32     `json:"last_imap_poll_uid" db:"last_imap_poll_uid"`
	LastIMAPPollAt  *time.Time `json:"last_imap_poll_at" db:"last_imap_poll_at"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SendReady reports whether the outbound transport is usable. The
// sequencer turns a false here into a "sending not configured" error
// status on the enrollment rather than attempting a send.
func (s *OrgMailSettings) SendReady() bool {
	if !s.IsConfigured || s.FromEmail == "" {
		return false
	}
	if s.Provider == "ses" {
		return true
	}
	return s.SMTPHost != "" && s.SMTPPort > 0
}

// PollReady reports whether the inbound mailbox can be polled.
func (s *OrgMailSettings) PollReady() bool {
	return s.EnableReplyDetection && s.IMAPHost != "" && s.IMAPPort > 0 && s.IMAPUsername != ""
}
