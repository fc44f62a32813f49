package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ClassificationResponse reports the PII scan verdict.
type ClassificationResponse struct {
	ContainsPII      bool                    `json:"contains_pii"`
	PIITypes         []domain.PIICategory    `json:"pii_types"`
	SensitivityLevel domain.SensitivityLevel `json:"sensitivity_level"`
	GDPRRelevant     bool                    `json:"gdpr_relevant"`
}

// AgentActionResponse is the public shape of a pipeline proposal.
type AgentActionResponse struct {
	ID              string              `json:"id"`
	TicketID        string              `json:"ticket_id"`
	AgentType       domain.AgentType    `json:"agent_type"`
	ActionType      domain.ActionType   `json:"action_type"`
	ActionData      json.RawMessage     `json:"action_data"`
	ConfidenceScore int                 `json:"confidence_score"`
	Status          domain.ActionStatus `json:"status"`
	Reasoning       string              `json:"reasoning"`
	CreatedAt       time.Time           `json:"created_at"`
	ExecutedAt      *time.Time          `json:"executed_at"`
}

// PipelineResponse summarizes one pipeline run.
type PipelineResponse struct {
	TicketID         string                `json:"ticket_id"`
	AIStatus         domain.TicketAIStatus `json:"ai_status,omitempty"`
	FinalConfidence  int                   `json:"final_confidence"`
	Triage           *AgentActionResponse  `json:"triage,omitempty"`
	Resolution       *AgentActionResponse  `json:"resolution,omitempty"`
	Quality          *AgentActionResponse  `json:"quality,omitempty"`
	AutoExecuted     bool                  `json:"auto_executed"`
	ConsentPending   bool                  `json:"consent_pending"`
	ConsentRequestID string                `json:"consent_request_id,omitempty"`
}

// ConsentDecisionRequest payload.
type ConsentDecisionRequest struct {
	Decision string `json:"decision"`
}

// FeedbackRequest payload.
type FeedbackRequest struct {
	FeedbackType domain.FeedbackType `json:"feedback_type"`
	Notes        *string             `json:"notes"`
}

// FeedbackResponse returns the stored review.
type FeedbackResponse struct {
	ID           string              `json:"id"`
	ActionID     string              `json:"action_id"`
	FeedbackType domain.FeedbackType `json:"feedback_type"`
	Notes        *string             `json:"notes,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// SentimentResponse reports the conversation sentiment read.
type SentimentResponse struct {
	TicketID         string  `json:"ticket_id"`
	Sentiment        string  `json:"sentiment,omitempty"`
	Score            float64 `json:"score"`
	EscalationRisk   bool    `json:"escalation_risk"`
	Summary          string  `json:"summary,omitempty"`
	ConsentPending   bool    `json:"consent_pending"`
	ConsentRequestID string  `json:"consent_request_id,omitempty"`
}
