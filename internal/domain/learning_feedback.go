package domain

import "time"

// FeedbackType classifies a human review decision.
type FeedbackType string

const (
	FeedbackApproval  FeedbackType = "approval"
	FeedbackRejection FeedbackType = "rejection"
)

// LearningFeedback records a human approve/reject decision on an agent
// action. Immutable once created; replayed as in-context examples for
// future pipeline runs. OriginalAction is a snapshot of the action payload
// at feedback time.
type LearningFeedback struct {
	ID             string
	ActionID       string
	AgentID        string
	FeedbackType   FeedbackType
	ActionType     ActionType
	OriginalAction []byte
	FeedbackNotes  *string
	CreatedAt      time.Time
}
