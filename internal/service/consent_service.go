package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// ConsentDecision is a human operator's answer to a consent request.
type ConsentDecision string

const (
	DecisionWithAnonymization    ConsentDecision = "with_anonymization"
	DecisionWithoutAnonymization ConsentDecision = "without_anonymization"
	DecisionCancel               ConsentDecision = "cancel"
)

// Continuation resumes a suspended AI invocation once consent is settled.
// The anonymize flag carries the operator's choice.
type Continuation func(ctx context.Context, anonymize bool) error

// Authorization is the outcome of running an AI invocation through the
// consent gate.
type Authorization struct {
	Proceed   bool
	Anonymize bool
	RequestID string
}

// ConsentService gates AI invocations on a one-time per-ticket human
// decision when the ticket carries PII. Consent and its anonymization
// choice are sticky: once recorded, later invocations reuse them.
type ConsentService struct {
	classifications repository.PIIClassificationRepository
	settings        repository.OrganizationSettingsRepository
	requests        repository.ConsentRequestRepository
	audit           *AuditService
	dispatcher      events.Dispatcher
	logger          *zap.Logger

	mu            sync.Mutex
	continuations map[string]Continuation
}

// NewConsentService constructs the service.
func NewConsentService(
	classifications repository.PIIClassificationRepository,
	settings repository.OrganizationSettingsRepository,
	requests repository.ConsentRequestRepository,
	audit *AuditService,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *ConsentService {
	return &ConsentService{
		classifications: classifications,
		settings:        settings,
		requests:        requests,
		audit:           audit,
		dispatcher:      dispatcher,
		logger:          logger,
		continuations:   make(map[string]Continuation),
	}
}

// Authorize decides whether the invocation may proceed now, and with what
// anonymization. When a human decision is needed the continuation is
// parked and the returned Authorization carries the pending request id.
func (s *ConsentService) Authorize(ctx context.Context, ticket *domain.Ticket, feature, requestedBy string, cont Continuation) (*Authorization, error) {
	settings, err := s.settings.GetByOrganization(ctx, ticket.OrganizationID)
	if err != nil {
		return nil, err
	}

	classification, err := s.classifications.GetByTicket(ctx, ticket.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		// Never classified: nothing known to protect.
		return &Authorization{Proceed: true}, nil
	}

	if !classification.ContainsPII {
		return &Authorization{Proceed: true}, nil
	}

	if !settings.RequireConsentForPII {
		// PII present but the org waived the consent step; the
		// auto-anonymize flag still applies.
		return &Authorization{Proceed: true, Anonymize: settings.AutoAnonymize}, nil
	}

	if classification.AIUsageConsent {
		return &Authorization{Proceed: true, Anonymize: classification.DataAnonymized}, nil
	}

	// Suspend: park the continuation behind a persisted request row.
	request, err := s.requests.GetPendingByTicket(ctx, ticket.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		request = &repository.ConsentRequest{
			TicketID:       ticket.ID,
			OrganizationID: ticket.OrganizationID,
			Feature:        feature,
			RequestedBy:    requestedBy,
			Status:         repository.ConsentRequestPending,
		}
		if err := s.requests.Create(ctx, request); err != nil {
			return nil, err
		}
		s.audit.LogEvent(ctx, ticket.OrganizationID, &requestedBy, "ai_consent_requested", "ticket", &ticket.ID,
			map[string]any{"feature": feature, "request_id": request.ID}, domain.SeverityInfo)
		s.publish(ctx, events.Event{
			Type:           events.EventConsentRequested,
			TicketID:       ticket.ID,
			OrganizationID: ticket.OrganizationID,
			ActorID:        &requestedBy,
			Payload:        events.ConsentRequestedPayload{RequestID: request.ID, Feature: feature},
		})
	}

	if cont != nil {
		s.mu.Lock()
		s.continuations[request.ID] = cont
		s.mu.Unlock()
	}
	return &Authorization{Proceed: false, RequestID: request.ID}, nil
}

// SubmitDecision records the operator's choice and resumes or discards the
// parked invocation. One decision per ticket; later AI calls reuse it.
func (s *ConsentService) SubmitDecision(ctx context.Context, ticketID string, decidedBy *domain.Agent, decision ConsentDecision) error {
	switch decision {
	case DecisionWithAnonymization, DecisionWithoutAnonymization, DecisionCancel:
	default:
		return apperrors.NewValidationError("unknown consent decision", map[string]any{"decision": decision})
	}

	request, err := s.requests.GetPendingByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("pending consent request", map[string]any{"ticket_id": ticketID})
		}
		return err
	}

	cont := s.popContinuation(request.ID)

	if decision == DecisionCancel {
		if err := s.requests.Resolve(ctx, request.ID, repository.ConsentRequestCancelled); err != nil {
			return err
		}
		s.audit.LogEvent(ctx, request.OrganizationID, &decidedBy.ID, "ai_consent_cancelled", "ticket", &ticketID,
			map[string]any{"feature": request.Feature, "request_id": request.ID}, domain.SeverityInfo)
		return nil
	}

	anonymize := decision == DecisionWithAnonymization
	if err := s.classifications.RecordConsent(ctx, ticketID, decidedBy.ID, anonymize); err != nil {
		return err
	}
	if err := s.requests.Resolve(ctx, request.ID, repository.ConsentRequestResolved); err != nil {
		return err
	}

	s.audit.LogEvent(ctx, request.OrganizationID, &decidedBy.ID, "ai_consent_recorded", "ticket", &ticketID,
		map[string]any{"feature": request.Feature, "request_id": request.ID, "anonymized": anonymize}, domain.SeverityInfo)
	s.publish(ctx, events.Event{
		Type:           events.EventConsentRecorded,
		TicketID:       ticketID,
		OrganizationID: request.OrganizationID,
		ActorID:        &decidedBy.ID,
		Payload:        events.ConsentRecordedPayload{RequestID: request.ID, Decision: string(decision), Anonymized: anonymize},
	})

	if cont != nil {
		if err := cont(ctx, anonymize); err != nil {
			s.logger.Warn("resumed AI invocation failed",
				zap.String("ticket_id", ticketID),
				zap.String("feature", request.Feature),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *ConsentService) popContinuation(requestID string) Continuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	cont := s.continuations[requestID]
	delete(s.continuations, requestID)
	return cont
}

func (s *ConsentService) publish(ctx context.Context, event events.Event) {
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
