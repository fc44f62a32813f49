package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Priority      domain.TicketPriority `json:"priority"`
	CustomerName  string                `json:"customer_name"`
	CustomerEmail string                `json:"customer_email"`
	CustomerPhone string                `json:"customer_phone"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	ExternalKey  string                `json:"external_key"`
	Title        string                `json:"title"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	AIStatus     domain.TicketAIStatus `json:"ai_status"`
	AIConfidence int                   `json:"ai_confidence"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID                      string                  `json:"id"`
	ExternalKey             string                  `json:"external_key"`
	Title                   string                  `json:"title"`
	Description             string                  `json:"description"`
	Status                  domain.TicketStatus     `json:"status"`
	Priority                domain.TicketPriority   `json:"priority"`
	CustomerName            string                  `json:"customer_name"`
	CustomerEmail           string                  `json:"customer_email"`
	CustomerPhone           string                  `json:"customer_phone,omitempty"`
	AIStatus                domain.TicketAIStatus   `json:"ai_status"`
	AIConfidence            int                     `json:"ai_confidence"`
	AILastActionAt          *time.Time              `json:"ai_last_action_at"`
	AutoResolutionAttempted bool                    `json:"auto_resolution_attempted"`
	ResolvedAt              *time.Time              `json:"resolved_at"`
	CreatedAt               time.Time               `json:"created_at"`
	UpdatedAt               time.Time               `json:"updated_at"`
	Messages                []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID         string                   `json:"id"`
	SenderType domain.MessageSenderType `json:"sender_type"`
	SenderName string                   `json:"sender_name"`
	SenderID   *string                  `json:"sender_id,omitempty"`
	Content    string                   `json:"content"`
	IsInternal bool                     `json:"is_internal"`
	CreatedAt  time.Time                `json:"created_at"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content    string                   `json:"content"`
	SenderType domain.MessageSenderType `json:"sender_type"`
	SenderName string                   `json:"sender_name"`
	IsInternal bool                     `json:"is_internal"`
}
