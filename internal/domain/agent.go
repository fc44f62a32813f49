package domain

import "time"

// AgentRole enumerates operator roles.
type AgentRole string

const (
	AgentRoleAgent AgentRole = "AGENT"
	AgentRoleAdmin AgentRole = "ADMIN"
)

// Agent models a human support operator. Supplies the "current user /
// current organization" identity for consent decisions and feedback.
type Agent struct {
	ID             string
	OrganizationID string
	Name           string
	Email          string
	PasswordHash   string
	Role           AgentRole
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
