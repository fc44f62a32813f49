package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AgentType identifies which pipeline stage produced an action.
type AgentType string

const (
	AgentTypeTriage     AgentType = "triage"
	AgentTypeResolution AgentType = "resolution"
	AgentTypeQuality    AgentType = "quality"
)

// ActionType enumerates the kinds of actions an agent can propose.
type ActionType string

const (
	ActionAutoResponse   ActionType = "auto_response"
	ActionStatusChange   ActionType = "status_change"
	ActionPriorityChange ActionType = "priority_change"
	ActionEscalation     ActionType = "escalation"
	ActionCustomerUpdate ActionType = "customer_update"
	ActionFollowUp       ActionType = "follow_up"
	ActionRefundRequest  ActionType = "refund_request"
)

// ActionStatus tracks the review lifecycle of a proposed action.
// Transitions out of pending happen exactly once.
type ActionStatus string

const (
	ActionStatusPending  ActionStatus = "pending"
	ActionStatusApproved ActionStatus = "approved"
	ActionStatusRejected ActionStatus = "rejected"
	ActionStatusExecuted ActionStatus = "executed"
)

// ActionData is the payload attached to an agent action. Exactly one
// concrete type exists per ActionType; the executor switches over them
// exhaustively.
type ActionData interface {
	Kind() ActionType
}

// AutoResponseData carries a customer-facing reply.
type AutoResponseData struct {
	Response string `json:"response"`
	Reason   string `json:"reason,omitempty"`
}

func (AutoResponseData) Kind() ActionType { return ActionAutoResponse }

// CustomerUpdateData carries a progress update for the customer.
type CustomerUpdateData struct {
	UpdateMessage string `json:"update_message"`
	Reason        string `json:"reason,omitempty"`
}

func (CustomerUpdateData) Kind() ActionType { return ActionCustomerUpdate }

// StatusChangeData moves the ticket to a new status.
type StatusChangeData struct {
	NewStatus TicketStatus `json:"new_status"`
	Reason    string       `json:"reason,omitempty"`
}

func (StatusChangeData) Kind() ActionType { return ActionStatusChange }

// PriorityChangeData moves the ticket to a new priority.
type PriorityChangeData struct {
	NewPriority TicketPriority `json:"new_priority"`
	Reason      string         `json:"reason,omitempty"`
}

func (PriorityChangeData) Kind() ActionType { return ActionPriorityChange }

// EscalationData records a hand-off to a named queue or person. Log-only.
type EscalationData struct {
	EscalateTo string `json:"escalate_to"`
	Reason     string `json:"reason,omitempty"`
}

func (EscalationData) Kind() ActionType { return ActionEscalation }

// FollowUpData schedules a future check. Log-only.
type FollowUpData struct {
	FollowUpAction string `json:"follow_up_action"`
	Timeline       string `json:"timeline"`
	Reason         string `json:"reason,omitempty"`
}

func (FollowUpData) Kind() ActionType { return ActionFollowUp }

// RefundRequestData flags a ticket for a refund review. Log-only.
type RefundRequestData struct {
	Amount string `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (RefundRequestData) Kind() ActionType { return ActionRefundRequest }

// AgentAction is one proposal produced by a pipeline stage.
// ConfidenceScore is always normalized to 0-100.
type AgentAction struct {
	ID              string
	TicketID        string
	AgentType       AgentType
	ActionType      ActionType
	ActionData      ActionData
	ConfidenceScore int
	Status          ActionStatus
	Reasoning       string
	CreatedAt       time.Time
	ExecutedAt      *time.Time
}

// DecodeActionData unmarshals a raw action payload into the concrete type
// for the given action type. Missing fields are tolerated; the executor
// treats incomplete payloads as no-ops.
func DecodeActionData(actionType ActionType, raw []byte) (ActionData, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	var (
		data ActionData
		err  error
	)
	switch actionType {
	case ActionAutoResponse:
		var d AutoResponseData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActionCustomerUpdate:
		var d CustomerUpdateData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActionStatusChange:
		var d StatusChangeData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActionPriorityChange:
		var d PriorityChangeData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActionEscalation:
		var d EscalationData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActionFollowUp:
		var d FollowUpData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActionRefundRequest:
		var d RefundRequestData
		err = json.Unmarshal(raw, &d)
		data = d
	default:
		return nil, fmt.Errorf("unknown action type %q", actionType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode action data for %s: %w", actionType, err)
	}
	return data, nil
}

// EncodeActionData marshals an action payload for storage.
func EncodeActionData(data ActionData) ([]byte, error) {
	if data == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(data)
}

// ActionReason extracts the optional reason carried by any payload,
// used when rendering activity entries.
func ActionReason(data ActionData) string {
	switch d := data.(type) {
	case AutoResponseData:
		return d.Reason
	case CustomerUpdateData:
		return d.Reason
	case StatusChangeData:
		return d.Reason
	case PriorityChangeData:
		return d.Reason
	case EscalationData:
		return d.Reason
	case FollowUpData:
		return d.Reason
	case RefundRequestData:
		return d.Reason
	}
	return ""
}
