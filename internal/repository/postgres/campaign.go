package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, COALESCE(description,''),
		       target_profile_id, offering_id,
		       COALESCE(target_audience,''), COALESCE(offering_summary,''),
		       ai_status, is_active, created_at, updated_at
		FROM campaigns
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Description,
		&c.TargetProfileID, &c.OfferingID,
		&c.TargetAudience, &c.OfferingSummary,
		&c.AIStatus, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "organization_id = $1"
	args := []interface{}{orgID}
	idx := 2
	if f.AIStatus != "" {
		where += fmt.Sprintf(" AND ai_status = $%d", idx)
		args = append(args, f.AIStatus)
		idx++
	}
	if f.Active != nil {
		where += fmt.Sprintf(" AND is_active = $%d", idx)
		args = append(args, *f.Active)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM campaigns WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT id, name, COALESCE(description,''), ai_status, is_active, created_at, updated_at
		FROM campaigns
		WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.AIStatus,
			&c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		c.OrganizationID = orgID
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, organization_id, name, description, target_profile_id, offering_id,
			 target_audience, offering_summary, ai_status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, c.ID, c.OrganizationID, c.Name, c.Description, c.TargetProfileID, c.OfferingID,
		c.TargetAudience, c.OfferingSummary, c.AIStatus, c.IsActive)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Update(ctx context.Context, orgID, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.TargetAudience != nil {
		add("target_audience", *u.TargetAudience)
	}
	if u.OfferingSummary != nil {
		add("offering_summary", *u.OfferingSummary)
	}
	if u.IsActive != nil {
		add("is_active", *u.IsActive)
	}

	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf("UPDATE campaigns SET %s, updated_at = NOW() WHERE id = $%d AND organization_id = $%d",
		joinComma(sets), idx, idx+1)
	args = append(args, id, orgID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// BeginGeneration claims the campaign for step generation. The guard in
// the WHERE clause makes a second concurrent trigger lose the race and
// observe ErrAlreadyGenerating instead of starting a duplicate run.
func (r *CampaignRepo) BeginGeneration(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET ai_status = 'generating', updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND ai_status != 'generating'
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("begin generation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	// Distinguish "already generating" from "no such campaign"
	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1 AND organization_id = $2)
	`, id, orgID).Scan(&exists); err != nil {
		return fmt.Errorf("begin generation: %w", err)
	}
	if !exists {
		return campaign.ErrNotFound
	}
	return campaign.ErrAlreadyGenerating
}

func (r *CampaignRepo) FinishGeneration(ctx context.Context, orgID, id string, status domain.AIStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET ai_status = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3
	`, status, id, orgID)
	if err != nil {
		return fmt.Errorf("finish generation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) ListSteps(ctx context.Context, campaignID string) ([]domain.CampaignStep, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, step_number, delay_days,
		       COALESCE(subject_template,''), body_template,
		       COALESCE(follow_up_angle,''), is_ai_crafted, created_at
		FROM campaign_steps
		WHERE campaign_id = $1
		ORDER BY step_number ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignStep
	for rows.Next() {
		var s domain.CampaignStep
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.StepNumber, &s.DelayDays,
			&s.SubjectTemplate, &s.BodyTemplate, &s.FollowUpAngle,
			&s.IsAICrafted, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) NextStep(ctx context.Context, campaignID string, afterStep int) (*domain.CampaignStep, error) {
	s := &domain.CampaignStep{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, step_number, delay_days,
		       COALESCE(subject_template,''), body_template,
		       COALESCE(follow_up_angle,''), is_ai_crafted, created_at
		FROM campaign_steps
		WHERE campaign_id = $1 AND step_number > $2
		ORDER BY step_number ASC
		LIMIT 1
	`, campaignID, afterStep).Scan(
		&s.ID, &s.CampaignID, &s.StepNumber, &s.DelayDays,
		&s.SubjectTemplate, &s.BodyTemplate, &s.FollowUpAngle,
		&s.IsAICrafted, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNoSteps
	}
	if err != nil {
		return nil, fmt.Errorf("next step: %w", err)
	}
	return s, nil
}

// ReplaceSteps swaps the campaign's step batch in one transaction so a
// failed regeneration never leaves a half-written sequence behind.
func (r *CampaignRepo) ReplaceSteps(ctx context.Context, campaignID string, steps []domain.CampaignStep) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM campaign_steps WHERE campaign_id = $1`, campaignID); err != nil {
		return 0, fmt.Errorf("delete steps: %w", err)
	}

	for i := range steps {
		s := &steps[i]
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO campaign_steps
				(id, campaign_id, step_number, delay_days, subject_template,
				 body_template, follow_up_angle, is_ai_crafted, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`, s.ID, campaignID, s.StepNumber, s.DelayDays, s.SubjectTemplate,
			s.BodyTemplate, s.FollowUpAngle, s.IsAICrafted); err != nil {
			return 0, fmt.Errorf("insert step %d: %w", s.StepNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit steps: %w", err)
	}
	return len(steps), nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
