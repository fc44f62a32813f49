package domain

import "time"

// MessageSenderType indicates who authored a message.
type MessageSenderType string

const (
	SenderTypeCustomer MessageSenderType = "customer"
	SenderTypeAgent    MessageSenderType = "agent"
	SenderTypeSystem   MessageSenderType = "system"
)

// SystemSenderName is the fixed sender recorded on AI-generated replies.
const SystemSenderName = "AI Assistant"

// TicketMessage captures one entry in a ticket conversation. Messages are
// append-only and ordered by CreatedAt ascending for thread reconstruction.
type TicketMessage struct {
	ID         string
	TicketID   string
	Content    string
	SenderType MessageSenderType
	SenderName string
	SenderID   *string
	IsInternal bool
	CreatedAt  time.Time
}
