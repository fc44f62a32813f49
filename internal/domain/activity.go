package domain

import "time"

// ActivitySeverity grades audit entries.
type ActivitySeverity string

const (
	SeverityInfo     ActivitySeverity = "info"
	SeverityWarning  ActivitySeverity = "warning"
	SeverityCritical ActivitySeverity = "critical"
)

// ActivityEntry is an immutable audit record. ActorID is nil for actions
// taken autonomously by the AI subsystem.
type ActivityEntry struct {
	ID             string
	OrganizationID string
	ActorID        *string
	Action         string
	ResourceType   string
	ResourceID     *string
	Details        map[string]any
	Severity       ActivitySeverity
	CreatedAt      time.Time
}
