package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// FeedbackService handles human review of pending agent actions: an
// approval executes the action, a rejection discards it, and both are
// snapshotted for future learning context.
type FeedbackService struct {
	actions    repository.AgentActionRepository
	tickets    repository.TicketRepository
	feedback   repository.LearningFeedbackRepository
	executor   *ExecutorService
	audit      *AuditService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewFeedbackService constructs the service.
func NewFeedbackService(
	actions repository.AgentActionRepository,
	tickets repository.TicketRepository,
	feedback repository.LearningFeedbackRepository,
	executor *ExecutorService,
	audit *AuditService,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *FeedbackService {
	return &FeedbackService{
		actions:    actions,
		tickets:    tickets,
		feedback:   feedback,
		executor:   executor,
		audit:      audit,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Record stores the reviewer's verdict on a pending action. Approval
// executes the action immediately; rejection is terminal and leaves the
// ticket untouched. The feedback row snapshots the action payload so the
// example survives later edits to the ticket.
func (s *FeedbackService) Record(ctx context.Context, actionID string, reviewer *domain.Agent, feedbackType domain.FeedbackType, notes *string) (*domain.LearningFeedback, error) {
	switch feedbackType {
	case domain.FeedbackApproval, domain.FeedbackRejection:
	default:
		return nil, apperrors.NewValidationError("unknown feedback type", map[string]any{"feedback_type": feedbackType})
	}

	action, err := s.actions.GetByID(ctx, actionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent action", map[string]any{"action_id": actionID})
		}
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, action.TicketID)
	if err != nil {
		return nil, err
	}
	if ticket.OrganizationID != reviewer.OrganizationID {
		return nil, apperrors.NewForbidden("action belongs to another organization")
	}
	if action.Status != domain.ActionStatusPending {
		return nil, apperrors.NewConflict("action already reviewed", map[string]any{
			"action_id": actionID,
			"status":    action.Status,
		})
	}

	snapshot, err := domain.EncodeActionData(action.ActionData)
	if err != nil {
		return nil, err
	}

	target := domain.ActionStatusApproved
	if feedbackType == domain.FeedbackRejection {
		target = domain.ActionStatusRejected
	}
	if err := s.actions.TransitionStatus(ctx, actionID, domain.ActionStatusPending, target, nil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("action already reviewed", map[string]any{"action_id": actionID})
		}
		return nil, err
	}
	action.Status = target

	record := &domain.LearningFeedback{
		ActionID:       actionID,
		AgentID:        reviewer.ID,
		FeedbackType:   feedbackType,
		ActionType:     action.ActionType,
		OriginalAction: snapshot,
		FeedbackNotes:  notes,
	}
	if err := s.feedback.Create(ctx, record); err != nil {
		// The review already landed; losing the learning row is not worth
		// failing the request over.
		s.logger.Error("learning feedback persistence failed",
			zap.String("action_id", actionID), zap.Error(err))
	}

	auditAction := "ai_action_approved"
	if feedbackType == domain.FeedbackRejection {
		auditAction = "ai_action_rejected"
	}
	s.audit.LogEvent(ctx, ticket.OrganizationID, &reviewer.ID, auditAction, "ticket", &ticket.ID,
		map[string]any{"action_id": actionID, "action_type": action.ActionType}, domain.SeverityInfo)

	s.publish(ctx, events.Event{
		Type:           events.EventFeedbackRecorded,
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		ActorID:        &reviewer.ID,
		Payload: events.FeedbackRecordedPayload{
			ActionID:     actionID,
			FeedbackType: feedbackType,
			HasNotes:     notes != nil && *notes != "",
		},
	})

	if feedbackType == domain.FeedbackApproval {
		if err := s.executor.Execute(ctx, action, ProvenanceHumanApproved, &reviewer.ID); err != nil {
			// The approval stands; the action stays approved and can be
			// re-executed explicitly.
			s.logger.Error("approved action execution failed",
				zap.String("action_id", actionID), zap.Error(err))
		}
	}
	return record, nil
}

// ExecuteApproved retries execution of an already-approved action, e.g.
// after a transient failure during the approval flow.
func (s *FeedbackService) ExecuteApproved(ctx context.Context, actionID string, reviewer *domain.Agent) (*domain.AgentAction, error) {
	action, err := s.actions.GetByID(ctx, actionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent action", map[string]any{"action_id": actionID})
		}
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, action.TicketID)
	if err != nil {
		return nil, err
	}
	if ticket.OrganizationID != reviewer.OrganizationID {
		return nil, apperrors.NewForbidden("action belongs to another organization")
	}
	if action.Status != domain.ActionStatusApproved {
		return nil, apperrors.NewConflict("action is not approved", map[string]any{
			"action_id": actionID,
			"status":    action.Status,
		})
	}
	if err := s.executor.Execute(ctx, action, ProvenanceHumanApproved, &reviewer.ID); err != nil {
		return nil, err
	}
	return action, nil
}

// ListActions returns a ticket's proposed actions, newest first, scoped
// to the caller's organization.
func (s *FeedbackService) ListActions(ctx context.Context, organizationID, ticketID string) ([]domain.AgentAction, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	if ticket.OrganizationID != organizationID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return s.actions.ListByTicket(ctx, ticketID)
}

func (s *FeedbackService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
