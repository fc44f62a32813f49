package worker

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/service"
)

// StartAuditWorker subscribes the audit trail to domain events that are
// not already logged at their call site, so the activity log carries the
// full AI timeline.
func StartAuditWorker(dispatcher events.Dispatcher, audit *service.AuditService) {
	if dispatcher == nil || audit == nil {
		return
	}

	dispatcher.Subscribe(events.EventTicketClassified, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketClassifiedPayload)
		if !ok {
			return nil
		}
		severity := domain.SeverityInfo
		if payload.GDPRRelevant || payload.SensitivityLevel == domain.SensitivityCritical {
			severity = domain.SeverityWarning
		}
		audit.LogEvent(ctx, event.OrganizationID, event.ActorID, "ticket_pii_classified", "ticket", &event.TicketID,
			map[string]any{
				"contains_pii":      payload.ContainsPII,
				"pii_types":         payload.PIITypes,
				"sensitivity_level": payload.SensitivityLevel,
				"gdpr_relevant":     payload.GDPRRelevant,
			}, severity)
		return nil
	})

	dispatcher.Subscribe(events.EventPipelineCompleted, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.PipelineCompletedPayload)
		if !ok {
			return nil
		}
		audit.LogEvent(ctx, event.OrganizationID, event.ActorID, "ai_pipeline_completed", "ticket", &event.TicketID,
			map[string]any{
				"ai_status":        payload.AIStatus,
				"final_confidence": payload.FinalConfidence,
				"stages_run":       payload.StagesRun,
				"auto_executed":    payload.AutoExecuted,
			}, domain.SeverityInfo)
		return nil
	})
}
