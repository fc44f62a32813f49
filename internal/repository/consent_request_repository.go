package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConsentRequestStatus tracks the lifecycle of a suspended AI invocation.
type ConsentRequestStatus string

const (
	ConsentRequestPending   ConsentRequestStatus = "pending"
	ConsentRequestResolved  ConsentRequestStatus = "resolved"
	ConsentRequestCancelled ConsentRequestStatus = "cancelled"
)

// ConsentRequest is the persisted half of a suspended AI call: the row
// survives restarts even when the in-memory continuation does not.
type ConsentRequest struct {
	ID             string
	TicketID       string
	OrganizationID string
	Feature        string
	RequestedBy    string
	Status         ConsentRequestStatus
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// ConsentRequestRepository manages pending consent requests. At most one
// pending row exists per ticket (enforced by a partial unique index).
type ConsentRequestRepository interface {
	Create(ctx context.Context, request *ConsentRequest) error
	GetPendingByTicket(ctx context.Context, ticketID string) (*ConsentRequest, error)
	Resolve(ctx context.Context, id string, status ConsentRequestStatus) error
}

type consentRequestRepository struct {
	pool *pgxpool.Pool
}

// NewConsentRequestRepository builds repository.
func NewConsentRequestRepository(pool *pgxpool.Pool) ConsentRequestRepository {
	return &consentRequestRepository{pool: pool}
}

func (r *consentRequestRepository) Create(ctx context.Context, request *ConsentRequest) error {
	const query = `
        INSERT INTO consent_requests (ticket_id, organization_id, feature, requested_by, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		request.TicketID,
		request.OrganizationID,
		request.Feature,
		request.RequestedBy,
		request.Status,
	).Scan(&request.ID, &request.CreatedAt)
}

func (r *consentRequestRepository) GetPendingByTicket(ctx context.Context, ticketID string) (*ConsentRequest, error) {
	const query = `
        SELECT id, ticket_id, organization_id, feature, requested_by, status, created_at, resolved_at
        FROM consent_requests WHERE ticket_id=$1 AND status=$2`
	var request ConsentRequest
	if err := r.pool.QueryRow(ctx, query, ticketID, ConsentRequestPending).Scan(
		&request.ID,
		&request.TicketID,
		&request.OrganizationID,
		&request.Feature,
		&request.RequestedBy,
		&request.Status,
		&request.CreatedAt,
		&request.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *consentRequestRepository) Resolve(ctx context.Context, id string, status ConsentRequestStatus) error {
	const query = `
        UPDATE consent_requests SET status=$1, resolved_at=NOW()
        WHERE id=$2 AND status=$3`
	cmd, err := r.pool.Exec(ctx, query, status, id, ConsentRequestPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
