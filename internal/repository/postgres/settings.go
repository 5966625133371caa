package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/secrets"
)

// ErrSettingsNotFound is returned when an org has no mail settings row.
var ErrSettingsNotFound = errors.New("mail settings not found")

// SettingsRepo stores per-organization mail settings. Credentials are
// sealed on write and opened on read so plaintext never reaches the table.
type SettingsRepo struct {
	db  *sql.DB
	box *secrets.Box
}

// NewSettingsRepo creates a Postgres-backed mail settings repository.
func NewSettingsRepo(db *sql.DB, box *secrets.Box) *SettingsRepo {
	return &SettingsRepo{db: db, box: box}
}

func (r *SettingsRepo) Get(ctx context.Context, orgID string) (*domain.OrgMailSettings, error) {
	s := &domain.OrgMailSettings{}
	var smtpPass, imapPass string
	err := r.db.QueryRowContext(ctx, `
		SELECT organization_id, provider, COALESCE(smtp_host,''), COALESCE(smtp_port,0),
		       COALESCE(smtp_username,''), COALESCE(smtp_password_enc,''),
		       COALESCE(from_email,''), COALESCE(from_name,''), is_configured,
		       COALESCE(imap_host,''), COALESCE(imap_port,0),
		       COALESCE(imap_username,''), COALESCE(imap_password_enc,''),
		       imap_use_ssl, enable_reply_detection,
		       last_imap_poll_uid, last_imap_poll_at, updated_at
		FROM org_mail_settings
		WHERE organization_id = $1
	`, orgID).Scan(
		&s.OrganizationID, &s.Provider, &s.SMTPHost, &s.SMTPPort,
		&s.SMTPUsername, &smtpPass,
		&s.FromEmail, &s.FromName, &s.IsConfigured,
		&s.IMAPHost, &s.IMAPPort,
		&s.IMAPUsername, &imapPass,
		&s.IMAPUseSSL, &s.EnableReplyDetection,
		&s.LastIMAPPollUID, &s.LastIMAPPollAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mail settings: %w", err)
	}

	if s.SMTPPassword, err = r.box.Open(smtpPass); err != nil {
		return nil, fmt.Errorf("open smtp credential: %w", err)
	}
	if s.IMAPPassword, err = r.box.Open(imapPass); err != nil {
		return nil, fmt.Errorf("open imap credential: %w", err)
	}
	return s, nil
}

// Upsert writes the org's mail settings. An empty password keeps the
// previously stored credential so operators can update hosts without
// re-entering secrets.
func (r *SettingsRepo) Upsert(ctx context.Context, s *domain.OrgMailSettings) error {
	smtpPass, err := r.box.Seal(s.SMTPPassword)
	if err != nil {
		return fmt.Errorf("seal smtp credential: %w", err)
	}
	imapPass, err := r.box.Seal(s.IMAPPassword)
	if err != nil {
		return fmt.Errorf("seal imap credential: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO org_mail_settings
			(organization_id, provider, smtp_host, smtp_port, smtp_username,
			 smtp_password_enc, from_email, from_name, is_configured,
			 imap_host, imap_port, imap_username, imap_password_enc,
			 imap_use_ssl, enable_reply_detection, last_imap_poll_uid, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 0, NOW())
		ON CONFLICT (organization_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			smtp_host = EXCLUDED.smtp_host,
			smtp_port = EXCLUDED.smtp_port,
			smtp_username = EXCLUDED.smtp_username,
			smtp_password_enc = COALESCE(NULLIF(EXCLUDED.smtp_password_enc, ''), org_mail_settings.smtp_password_enc),
			from_email = EXCLUDED.from_email,
			from_name = EXCLUDED.from_name,
			is_configured = EXCLUDED.is_configured,
			imap_host = EXCLUDED.imap_host,
			imap_port = EXCLUDED.imap_port,
			imap_username = EXCLUDED.imap_username,
			imap_password_enc = COALESCE(NULLIF(EXCLUDED.imap_password_enc, ''), org_mail_settings.imap_password_enc),
			imap_use_ssl = EXCLUDED.imap_use_ssl,
			enable_reply_detection = EXCLUDED.enable_reply_detection,
			updated_at = NOW()
	`, s.OrganizationID, s.Provider, s.SMTPHost, s.SMTPPort, s.SMTPUsername,
		smtpPass, s.FromEmail, s.FromName, s.IsConfigured,
		s.IMAPHost, s.IMAPPort, s.IMAPUsername, imapPass,
		s.IMAPUseSSL, s.EnableReplyDetection)
	if err != nil {
		return fmt.Errorf("upsert mail settings: %w", err)
	}
	return nil
}

// AdvancePollCursor records the highest fully processed mailbox UID.
// The GREATEST guard keeps the cursor monotonic even if cycles race.
func (r *SettingsRepo) AdvancePollCursor(ctx context.Context, orgID string, uid uint32) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE org_mail_settings
		SET last_imap_poll_uid = GREATEST(last_imap_poll_uid, $1),
		    last_imap_poll_at = NOW()
		WHERE organization_id = $2
	`, uid, orgID)
	if err != nil {
		return fmt.Errorf("advance poll cursor: %w", err)
	}
	return nil
}
