package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/service/enrollment"
)

// EnrollmentRepo implements enrollment.Repository against PostgreSQL.
type EnrollmentRepo struct{ db *sql.DB }

// NewEnrollmentRepo creates a Postgres-backed enrollment repository.
func NewEnrollmentRepo(db *sql.DB) *EnrollmentRepo { return &EnrollmentRepo{db: db} }

const enrollmentCols = `
	id, organization_id, campaign_id, lead_id, status,
	current_step_number, last_email_sent_at, next_email_due_at,
	last_response_type, last_response_at,
	error_count, error_message, created_at, updated_at`

func scanEnrollment(row interface{ Scan(...interface{}) error }) (*domain.Enrollment, error) {
	e := &domain.Enrollment{}
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.CampaignID, &e.LeadID, &e.Status,
		&e.CurrentStepNumber, &e.LastEmailSentAt, &e.NextEmailDueAt,
		&e.LastResponseType, &e.LastResponseAt,
		&e.ErrorCount, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (r *EnrollmentRepo) Get(ctx context.Context, orgID, id string) (*domain.Enrollment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE id = $1 AND organization_id = $2`,
		id, orgID)
	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, enrollment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

func (r *EnrollmentRepo) List(ctx context.Context, orgID string, f enrollment.ListFilter) ([]domain.Enrollment, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "organization_id = $1"
	args := []interface{}{orgID}
	idx := 2
	if f.CampaignID != "" {
		where += fmt.Sprintf(" AND campaign_id = $%d", idx)
		args = append(args, f.CampaignID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM enrollments WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM enrollments WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, enrollmentCols, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

// CreateBatch inserts enrollments, skipping leads already enrolled in the
// same campaign via the unique (campaign_id, lead_id) constraint.
func (r *EnrollmentRepo) CreateBatch(ctx context.Context, enrollments []domain.Enrollment) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var ids []string
	for i := range enrollments {
		e := &enrollments[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		var id string
		err := tx.QueryRowContext(ctx, `
			INSERT INTO enrollments
				(id, organization_id, campaign_id, lead_id, status,
				 current_step_number, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW())
			ON CONFLICT (campaign_id, lead_id) DO NOTHING
			RETURNING id
		`, e.ID, e.OrganizationID, e.CampaignID, e.LeadID, e.Status).Scan(&id)
		if err == sql.ErrNoRows {
			continue // already enrolled
		}
		if err != nil {
			return nil, fmt.Errorf("insert enrollment: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollments: %w", err)
	}
	return ids, nil
}

// Reactivate moves an error enrollment back to active and clears its
// error state. The cleared next_email_due_at makes it due on the next
// sequencer cycle.
func (r *EnrollmentRepo) Reactivate(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE enrollments
		SET status = 'active', error_count = 0, error_message = NULL,
		    next_email_due_at = NULL, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = 'error'
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("reactivate enrollment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM enrollments WHERE id = $1 AND organization_id = $2)
	`, id, orgID).Scan(&exists); err != nil {
		return fmt.Errorf("reactivate enrollment: %w", err)
	}
	if !exists {
		return enrollment.ErrNotFound
	}
	return enrollment.ErrNotReactivatable
}

func (r *EnrollmentRepo) UpsertLeads(ctx context.Context, orgID string, leads []domain.Lead) ([]domain.Lead, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range leads {
		l := &leads[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO leads
				(id, organization_id, email, name, company, title, website,
				 location, industry, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			ON CONFLICT (organization_id, email) DO UPDATE SET
				name = COALESCE(NULLIF(EXCLUDED.name, ''), leads.name),
				company = COALESCE(NULLIF(EXCLUDED.company, ''), leads.company),
				title = COALESCE(NULLIF(EXCLUDED.title, ''), leads.title),
				updated_at = NOW()
			RETURNING id
		`, l.ID, orgID, l.Email, l.Name, l.Company, l.Title, l.Website,
			l.Location, l.Industry).Scan(&l.ID)
		if err != nil {
			return nil, fmt.Errorf("upsert lead %s: %w", l.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit leads: %w", err)
	}
	return leads, nil
}
