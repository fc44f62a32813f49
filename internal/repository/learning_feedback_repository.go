package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// LearningFeedbackRepository stores immutable human review decisions.
type LearningFeedbackRepository interface {
	Create(ctx context.Context, feedback *domain.LearningFeedback) error
	// ListRecentEligible returns the newest feedback rows usable as
	// in-context examples: approvals, and rejections carrying notes.
	ListRecentEligible(ctx context.Context, organizationID string, limit int) ([]domain.LearningFeedback, error)
}

type learningFeedbackRepository struct {
	pool *pgxpool.Pool
}

// NewLearningFeedbackRepository builds repository.
func NewLearningFeedbackRepository(pool *pgxpool.Pool) LearningFeedbackRepository {
	return &learningFeedbackRepository{pool: pool}
}

func (r *learningFeedbackRepository) Create(ctx context.Context, feedback *domain.LearningFeedback) error {
	const query = `
        INSERT INTO learning_feedback (action_id, agent_id, feedback_type, action_type, original_action, feedback_notes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		feedback.ActionID,
		feedback.AgentID,
		feedback.FeedbackType,
		feedback.ActionType,
		json.RawMessage(feedback.OriginalAction),
		feedback.FeedbackNotes,
	).Scan(&feedback.ID, &feedback.CreatedAt)
}

func (r *learningFeedbackRepository) ListRecentEligible(ctx context.Context, organizationID string, limit int) ([]domain.LearningFeedback, error) {
	if limit <= 0 {
		limit = 5
	}
	// Silent rejections carry no reusable signal and are excluded.
	const query = `
        SELECT lf.id, lf.action_id, lf.agent_id, lf.feedback_type, lf.action_type, lf.original_action, lf.feedback_notes, lf.created_at
        FROM learning_feedback lf
        JOIN agent_actions aa ON aa.id = lf.action_id
        JOIN tickets t ON t.id = aa.ticket_id
        WHERE t.organization_id = $1
          AND (lf.feedback_type = $2 OR lf.feedback_notes IS NOT NULL)
        ORDER BY lf.created_at DESC
        LIMIT $3`
	rows, err := r.pool.Query(ctx, query, organizationID, domain.FeedbackApproval, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LearningFeedback
	for rows.Next() {
		var (
			feedback domain.LearningFeedback
			raw      json.RawMessage
		)
		if err := rows.Scan(
			&feedback.ID,
			&feedback.ActionID,
			&feedback.AgentID,
			&feedback.FeedbackType,
			&feedback.ActionType,
			&raw,
			&feedback.FeedbackNotes,
			&feedback.CreatedAt,
		); err != nil {
			return nil, err
		}
		feedback.OriginalAction = raw
		result = append(result, feedback)
	}
	return result, rows.Err()
}
