package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Provenance tags who triggered an execution in the audit trail.
type Provenance string

const (
	ProvenanceAuto          Provenance = "auto_executed"
	ProvenanceHumanApproved Provenance = "human_approved"
)

// ExecutorService applies an approved or auto-triggered agent action to
// its ticket and records the audit trail. A payload that does not match
// its action type is a no-op apart from the status-row update.
type ExecutorService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	actions    repository.AgentActionRepository
	audit      *AuditService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewExecutorService constructs the service.
func NewExecutorService(
	tickets repository.TicketRepository,
	messages repository.TicketMessageRepository,
	actions repository.AgentActionRepository,
	audit *AuditService,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *ExecutorService {
	return &ExecutorService{
		tickets:    tickets,
		messages:   messages,
		actions:    actions,
		audit:      audit,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Execute applies the action, writes the audit entry, and marks the
// action executed. The executed transition is terminal.
func (s *ExecutorService) Execute(ctx context.Context, action *domain.AgentAction, provenance Provenance, actorID *string) error {
	ticket, err := s.tickets.GetByID(ctx, action.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket for execution: %w", err)
	}

	if err := s.apply(ctx, ticket, action); err != nil {
		// The action stays reviewable; never mark it executed on a
		// failed apply.
		s.logger.Error("action execution failed",
			zap.String("action_id", action.ID),
			zap.String("action_type", string(action.ActionType)),
			zap.Error(err),
		)
		return err
	}

	now := time.Now()
	if err := s.actions.TransitionStatus(ctx, action.ID, action.Status, domain.ActionStatusExecuted, &now); err != nil {
		return fmt.Errorf("mark action executed: %w", err)
	}
	action.Status = domain.ActionStatusExecuted
	action.ExecutedAt = &now

	details := map[string]any{
		"action_type": action.ActionType,
		"agent_type":  action.AgentType,
		"reasoning":   action.Reasoning,
		"provenance":  provenance,
	}
	if reason := domain.ActionReason(action.ActionData); reason != "" {
		details["reason"] = reason
	}
	auditAction := "ai_action_executed"
	if provenance == ProvenanceAuto {
		auditAction = "ai_action_auto_executed"
	}
	s.audit.LogEvent(ctx, ticket.OrganizationID, actorID, auditAction, "ticket", &ticket.ID, details, domain.SeverityInfo)

	s.publish(ctx, events.Event{
		Type:           events.EventActionExecuted,
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		ActorID:        actorID,
		Payload: events.ActionExecutedPayload{
			ActionID:     action.ID,
			ActionType:   action.ActionType,
			AutoExecuted: provenance == ProvenanceAuto,
		},
	})
	return nil
}

// apply mutates the ticket according to the action payload. The switch is
// exhaustive over the ActionData union.
func (s *ExecutorService) apply(ctx context.Context, ticket *domain.Ticket, action *domain.AgentAction) error {
	switch data := action.ActionData.(type) {
	case domain.AutoResponseData:
		return s.sendCustomerMessage(ctx, ticket, data.Response)
	case domain.CustomerUpdateData:
		return s.sendCustomerMessage(ctx, ticket, data.UpdateMessage)
	case domain.StatusChangeData:
		if !domain.ValidTicketStatus(data.NewStatus) {
			s.logger.Warn("status change without valid new_status; skipping mutation",
				zap.String("action_id", action.ID))
			return nil
		}
		ticket.Status = data.NewStatus
		if data.NewStatus == domain.TicketStatusResolved {
			now := time.Now()
			ticket.ResolvedAt = &now
		}
		return s.tickets.Update(ctx, ticket)
	case domain.PriorityChangeData:
		if !domain.ValidTicketPriority(data.NewPriority) {
			s.logger.Warn("priority change without valid new_priority; skipping mutation",
				zap.String("action_id", action.ID))
			return nil
		}
		ticket.Priority = data.NewPriority
		return s.tickets.Update(ctx, ticket)
	case domain.EscalationData, domain.FollowUpData, domain.RefundRequestData:
		// Log-only actions: the audit entry written by Execute is the
		// whole effect.
		return nil
	case nil:
		return nil
	}
	return fmt.Errorf("unhandled action data type %T", action.ActionData)
}

func (s *ExecutorService) sendCustomerMessage(ctx context.Context, ticket *domain.Ticket, content string) error {
	if content == "" {
		s.logger.Warn("customer message action without content; skipping mutation",
			zap.String("ticket_id", ticket.ID))
		return nil
	}
	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		Content:    content,
		SenderType: domain.SenderTypeSystem,
		SenderName: domain.SystemSenderName,
		IsInternal: false,
	}
	return s.messages.Create(ctx, msg)
}

func (s *ExecutorService) publish(ctx context.Context, event events.Event) {
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
