package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/service/reply"
)

// ReplyRepo implements reply.Repository against PostgreSQL.
type ReplyRepo struct{ db *sql.DB }

// NewReplyRepo creates a Postgres-backed reply repository.
func NewReplyRepo(db *sql.DB) *ReplyRepo { return &ReplyRepo{db: db} }

const replyCols = `
	r.id, r.organization_id, r.enrollment_id, r.outgoing_message_id,
	r.message_uid, r.sender, COALESCE(r.subject,''), COALESCE(r.cleaned_body,''),
	r.ai_classification, COALESCE(r.ai_summary,''),
	r.extracted_meeting_interest, r.extracted_requested_time,
	r.extracted_questions, r.extracted_objections,
	r.is_actioned_by_user, r.received_at, r.created_at`

func scanReply(row interface{ Scan(...interface{}) error }) (*domain.InboundReply, error) {
	rp := &domain.InboundReply{}
	err := row.Scan(
		&rp.ID, &rp.OrganizationID, &rp.EnrollmentID, &rp.OutgoingID,
		&rp.MessageUID, &rp.Sender, &rp.Subject, &rp.CleanedBody,
		&rp.Category, &rp.Summary,
		&rp.MeetingInterest, &rp.RequestedTime,
		&rp.Questions, &rp.Objections,
		&rp.IsActionedByUser, &rp.ReceivedAt, &rp.CreatedAt,
	)
	return rp, err
}

func (r *ReplyRepo) Get(ctx context.Context, orgID, id string) (*domain.InboundReply, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+replyCols+` FROM inbound_replies r WHERE r.id = $1 AND r.organization_id = $2`,
		id, orgID)
	rp, err := scanReply(row)
	if err == sql.ErrNoRows {
		return nil, reply.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reply: %w", err)
	}
	return rp, nil
}

func (r *ReplyRepo) List(ctx context.Context, orgID string, f reply.ListFilter) ([]domain.InboundReply, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	from := "inbound_replies r"
	where := "r.organization_id = $1"
	args := []interface{}{orgID}
	idx := 2
	if f.CampaignID != "" {
		// Campaign is reachable only through the enrollment
		from += " JOIN enrollments e ON e.id = r.enrollment_id"
		where += fmt.Sprintf(" AND e.campaign_id = $%d", idx)
		args = append(args, f.CampaignID)
		idx++
	}
	if f.Category != "" {
		where += fmt.Sprintf(" AND r.ai_classification = $%d", idx)
		args = append(args, f.Category)
		idx++
	}
	if f.Actionable {
		where += ` AND r.is_actioned_by_user = false AND r.ai_classification IN (
			'POSITIVE_MEETING_INTEREST', 'POSITIVE_GENERAL_INTEREST',
			'NEGATIVE_NOT_INTERESTED', 'NEGATIVE_UNSUBSCRIBE', 'NEGATIVE_WRONG_PERSON',
			'QUESTION_PRODUCT_SERVICE', 'QUESTION_OBJECTION')`
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", from, where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count replies: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s
		ORDER BY r.received_at DESC LIMIT $%d OFFSET $%d`, replyCols, from, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	var out []domain.InboundReply
	for rows.Next() {
		rp, err := scanReply(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan reply: %w", err)
		}
		out = append(out, *rp)
	}
	return out, total, rows.Err()
}

func (r *ReplyRepo) MarkActioned(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE inbound_replies SET is_actioned_by_user = true
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("mark reply actioned: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reply.ErrNotFound
	}
	return nil
}
