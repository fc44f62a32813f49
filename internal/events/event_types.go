package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketClassified  EventType = "ticket.ai.classified"
	EventConsentRequested  EventType = "ticket.ai.consent_requested"
	EventConsentRecorded   EventType = "ticket.ai.consent_recorded"
	EventPipelineCompleted EventType = "ticket.ai.pipeline_completed"
	EventActionExecuted    EventType = "ticket.ai.action_executed"
	EventFeedbackRecorded  EventType = "ticket.ai.feedback_recorded"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	TicketID       string      `json:"ticket_id"`
	OrganizationID string      `json:"organization_id"`
	ActorID        *string     `json:"actor_id,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// TicketClassifiedPayload payload.
type TicketClassifiedPayload struct {
	ContainsPII      bool                    `json:"contains_pii"`
	PIITypes         []domain.PIICategory    `json:"pii_types"`
	SensitivityLevel domain.SensitivityLevel `json:"sensitivity_level"`
	GDPRRelevant     bool                    `json:"gdpr_relevant"`
}

// ConsentRequestedPayload payload.
type ConsentRequestedPayload struct {
	RequestID string `json:"request_id"`
	Feature   string `json:"feature"`
}

// ConsentRecordedPayload payload.
type ConsentRecordedPayload struct {
	RequestID  string `json:"request_id"`
	Decision   string `json:"decision"`
	Anonymized bool   `json:"anonymized"`
}

// PipelineCompletedPayload payload.
type PipelineCompletedPayload struct {
	AIStatus        domain.TicketAIStatus `json:"ai_status"`
	FinalConfidence int                   `json:"final_confidence"`
	StagesRun       []domain.AgentType    `json:"stages_run"`
	AutoExecuted    bool                  `json:"auto_executed"`
}

// ActionExecutedPayload payload.
type ActionExecutedPayload struct {
	ActionID     string            `json:"action_id"`
	ActionType   domain.ActionType `json:"action_type"`
	AutoExecuted bool              `json:"auto_executed"`
}

// FeedbackRecordedPayload payload.
type FeedbackRecordedPayload struct {
	ActionID     string              `json:"action_id"`
	FeedbackType domain.FeedbackType `json:"feedback_type"`
	HasNotes     bool                `json:"has_notes"`
}
