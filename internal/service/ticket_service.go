package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// TicketService covers the non-AI ticket surface: creation, lookup and
// the conversation thread.
type TicketService struct {
	tickets        repository.TicketRepository
	messages       repository.TicketMessageRepository
	classification *ClassificationService
	logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(
	tickets repository.TicketRepository,
	messages repository.TicketMessageRepository,
	classification *ClassificationService,
	logger *zap.Logger,
) *TicketService {
	return &TicketService{
		tickets:        tickets,
		messages:       messages,
		classification: classification,
		logger:         logger,
	}
}

// CreateTicketInput carries the fields a caller may set on a new ticket.
type CreateTicketInput struct {
	Title         string
	Description   string
	Priority      domain.TicketPriority
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// CreateTicket persists a new ticket and runs the PII scan over its
// initial content. Classification failure never blocks creation.
func (s *TicketService) CreateTicket(ctx context.Context, organizationID string, input CreateTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidTicketPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	ticket := &domain.Ticket{
		OrganizationID: organizationID,
		ExternalKey:    "TCK-" + strings.ToUpper(uuid.NewString()[:8]),
		Title:          input.Title,
		Description:    input.Description,
		Status:         domain.TicketStatusOpen,
		Priority:       priority,
		CustomerName:   input.CustomerName,
		CustomerEmail:  input.CustomerEmail,
		CustomerPhone:  input.CustomerPhone,
		AIStatus:       domain.AIStatusPendingAnalysis,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	text := ticket.Title + "\n" + ticket.Description + "\n" +
		ticket.CustomerName + "\n" + ticket.CustomerEmail + "\n" + ticket.CustomerPhone
	if _, err := s.classification.ClassifyAndStore(ctx, ticket.ID, text, organizationID); err != nil {
		s.logger.Warn("initial PII scan failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return ticket, nil
}

// GetTicket returns a ticket with its conversation, scoped to the
// caller's organization.
func (s *TicketService) GetTicket(ctx context.Context, organizationID, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, err
	}
	if ticket.OrganizationID != organizationID {
		return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	messages, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, messages, nil
}

// ListTickets pages through an organization's tickets, newest update
// first.
func (s *TicketService) ListTickets(ctx context.Context, organizationID string, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.ListByOrganization(ctx, organizationID, limit, offset)
}

// AddMessage appends an agent or customer message to the thread and
// re-scans the ticket for PII so later AI invocations see new content.
func (s *TicketService) AddMessage(ctx context.Context, organizationID, ticketID string, message *domain.TicketMessage) (*domain.TicketMessage, error) {
	if strings.TrimSpace(message.Content) == "" {
		return nil, apperrors.NewValidationError("content is required", nil)
	}
	switch message.SenderType {
	case domain.SenderTypeCustomer, domain.SenderTypeAgent:
	default:
		return nil, apperrors.NewValidationError("unknown sender type", map[string]any{"sender_type": message.SenderType})
	}

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

	message.TicketID = ticketID
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}

	// The classification row is a whole-ticket verdict, so the rescan
	// covers the full thread, not just the new message.
	if message.SenderType == domain.SenderTypeCustomer {
		var text strings.Builder
		text.WriteString(ticket.Title)
		text.WriteByte('\n')
		text.WriteString(ticket.Description)
		if thread, err := s.messages.ListByTicket(ctx, ticketID); err == nil {
			for _, m := range thread {
				text.WriteByte('\n')
				text.WriteString(m.Content)
			}
		} else {
			text.WriteByte('\n')
			text.WriteString(message.Content)
		}
		if _, err := s.classification.ClassifyAndStore(ctx, ticketID, text.String(), organizationID); err != nil {
			s.logger.Warn("PII rescan failed",
				zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}
	return message, nil
}
