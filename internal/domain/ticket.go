package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketAIStatus tracks where the autonomous pipeline left a ticket.
type TicketAIStatus string

const (
	AIStatusPendingAnalysis TicketAIStatus = "pending_analysis"
	AIStatusInProgress      TicketAIStatus = "in_progress"
	AIStatusResolved        TicketAIStatus = "resolved"
	AIStatusHumanRequired   TicketAIStatus = "human_required"
)

// Ticket is the aggregate for support requests. It is mutated by human
// agents and by the action executor, never deleted by the AI subsystem.
type Ticket struct {
	ID                      string
	OrganizationID          string
	ExternalKey             string
	Title                   string
	Description             string
	Status                  TicketStatus
	Priority                TicketPriority
	CustomerName            string
	CustomerEmail           string
	CustomerPhone           string
	AIStatus                TicketAIStatus
	AIConfidence            int
	AILastActionAt          *time.Time
	AutoResolutionAttempted bool
	ResolvedAt              *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ValidTicketStatus reports whether s is one of the four ticket statuses.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ValidTicketPriority reports whether p is one of the four priorities.
func ValidTicketPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}
