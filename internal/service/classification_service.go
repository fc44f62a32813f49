package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/pii"
	"github.com/spec-kit/support-desk/internal/repository"
)

// ClassificationService scans ticket content for PII and maintains the
// single per-ticket classification record.
type ClassificationService struct {
	classifications repository.PIIClassificationRepository
	settings        repository.OrganizationSettingsRepository
	dispatcher      events.Dispatcher
	logger          *zap.Logger
}

// NewClassificationService constructs the service.
func NewClassificationService(
	classifications repository.PIIClassificationRepository,
	settings repository.OrganizationSettingsRepository,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *ClassificationService {
	return &ClassificationService{
		classifications: classifications,
		settings:        settings,
		dispatcher:      dispatcher,
		logger:          logger,
	}
}

// ClassifyAndStore scans text and upserts the ticket's classification row.
// Returns a clean result when PII detection is disabled for the org. The
// detection result is returned even if persistence fails, since the
// detection itself succeeded.
func (s *ClassificationService) ClassifyAndStore(ctx context.Context, ticketID, text, organizationID string) (*pii.Result, error) {
	settings, err := s.settings.GetByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if !settings.AIEnabled || !settings.PIIDetectionEnabled {
		return &pii.Result{ContainsPII: false, SensitivityLevel: domain.SensitivityLow}, nil
	}

	result := pii.Classify(text)

	record := &domain.PIIClassification{
		TicketID:         ticketID,
		OrganizationID:   organizationID,
		ContainsPII:      result.ContainsPII,
		PIITypes:         result.PIITypes,
		SensitivityLevel: result.SensitivityLevel,
		GDPRRelevant:     result.GDPRRelevant,
		LastAnalyzedAt:   time.Now(),
	}
	if err := s.classifications.Upsert(ctx, record); err != nil {
		s.logger.Warn("classification persistence failed",
			zap.String("ticket_id", ticketID),
			zap.Error(err),
		)
	} else {
		s.publish(ctx, events.Event{
			Type:           events.EventTicketClassified,
			TicketID:       ticketID,
			OrganizationID: organizationID,
			Payload: events.TicketClassifiedPayload{
				ContainsPII:      result.ContainsPII,
				PIITypes:         result.PIITypes,
				SensitivityLevel: result.SensitivityLevel,
				GDPRRelevant:     result.GDPRRelevant,
			},
		})
	}

	return &result, nil
}

func (s *ClassificationService) publish(ctx context.Context, event events.Event) {
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
