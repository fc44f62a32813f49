package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AgentActionRepository stores pipeline-proposed actions. Inserts are
// append-only; concurrent runs produce multiple candidates rather than
// overwriting each other.
type AgentActionRepository interface {
	Create(ctx context.Context, action *domain.AgentAction) error
	GetByID(ctx context.Context, id string) (*domain.AgentAction, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AgentAction, error)
	// TransitionStatus moves an action out of pending exactly once. Returns
	// pgx.ErrNoRows when the action was not pending anymore.
	TransitionStatus(ctx context.Context, id string, from, to domain.ActionStatus, executedAt *time.Time) error
	// CountExecutedSince counts executed actions for a ticket in a trailing
	// window, computed at decision time.
	CountExecutedSince(ctx context.Context, ticketID string, since time.Time) (int, error)
}

type agentActionRepository struct {
	pool *pgxpool.Pool
}

// NewAgentActionRepository builds repository.
func NewAgentActionRepository(pool *pgxpool.Pool) AgentActionRepository {
	return &agentActionRepository{pool: pool}
}

func (r *agentActionRepository) Create(ctx context.Context, action *domain.AgentAction) error {
	payload, err := domain.EncodeActionData(action.ActionData)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO agent_actions (ticket_id, agent_type, action_type, action_data, confidence_score, status, reasoning)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		action.TicketID,
		action.AgentType,
		action.ActionType,
		payload,
		action.ConfidenceScore,
		action.Status,
		action.Reasoning,
	).Scan(&action.ID, &action.CreatedAt)
}

func (r *agentActionRepository) GetByID(ctx context.Context, id string) (*domain.AgentAction, error) {
	const query = `
        SELECT id, ticket_id, agent_type, action_type, action_data, confidence_score, status, reasoning, created_at, executed_at
        FROM agent_actions WHERE id=$1`
	return scanAgentAction(r.pool.QueryRow(ctx, query, id))
}

func (r *agentActionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AgentAction, error) {
	const query = `
        SELECT id, ticket_id, agent_type, action_type, action_data, confidence_score, status, reasoning, created_at, executed_at
        FROM agent_actions WHERE ticket_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AgentAction
	for rows.Next() {
		action, err := scanAgentAction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *action)
	}
	return result, rows.Err()
}

func (r *agentActionRepository) TransitionStatus(ctx context.Context, id string, from, to domain.ActionStatus, executedAt *time.Time) error {
	const query = `
        UPDATE agent_actions SET status=$1, executed_at=COALESCE($2, executed_at)
        WHERE id=$3 AND status=$4`
	cmd, err := r.pool.Exec(ctx, query, to, executedAt, id, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentActionRepository) CountExecutedSince(ctx context.Context, ticketID string, since time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM agent_actions
        WHERE ticket_id=$1 AND status=$2 AND executed_at >= $3`
	var count int
	err := r.pool.QueryRow(ctx, query, ticketID, domain.ActionStatusExecuted, since).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgentAction(row rowScanner) (*domain.AgentAction, error) {
	var (
		action domain.AgentAction
		raw    json.RawMessage
	)
	if err := row.Scan(
		&action.ID,
		&action.TicketID,
		&action.AgentType,
		&action.ActionType,
		&raw,
		&action.ConfidenceScore,
		&action.Status,
		&action.Reasoning,
		&action.CreatedAt,
		&action.ExecutedAt,
	); err != nil {
		return nil, err
	}
	data, err := domain.DecodeActionData(action.ActionType, raw)
	if err != nil {
		return nil, err
	}
	action.ActionData = data
	return &action, nil
}
