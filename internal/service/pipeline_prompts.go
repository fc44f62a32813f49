package service

import (
	"fmt"
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/llm"
)

// proposeActionTool is the structured-output contract shared by all three
// pipeline stages.
var proposeActionTool = llm.Tool{
	Name:        "propose_action",
	Description: "Propose the next action to take on the support ticket.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action_type": map[string]any{
				"type": "string",
				"enum": []string{
					string(domain.ActionAutoResponse),
					string(domain.ActionStatusChange),
					string(domain.ActionPriorityChange),
					string(domain.ActionEscalation),
					string(domain.ActionCustomerUpdate),
					string(domain.ActionFollowUp),
					string(domain.ActionRefundRequest),
				},
			},
			"action_data": map[string]any{
				"type":        "object",
				"description": "Payload for the chosen action type, e.g. response, new_status, new_priority, escalate_to, follow_up_action, timeline, reason.",
			},
			"confidence_score": map[string]any{
				"type":        "number",
				"description": "Confidence in this action, 0-100.",
			},
			"reasoning": map[string]any{
				"type": "string",
			},
		},
		"required": []string{"action_type", "action_data", "confidence_score", "reasoning"},
	},
}

const triageSystemPrompt = `You are the triage agent of an autonomous customer support pipeline.
Assess the ticket: categorize the problem, judge urgency, and propose the
single most useful next action. Prefer priority_change or escalation when
the ticket is mis-prioritized, follow_up when information is missing.
Report your confidence honestly on a 0-100 scale.`

const resolutionSystemPrompt = `You are the resolution agent of an autonomous customer support pipeline.
The triage assessment is provided. Read the full conversation and propose
the concrete resolving action: an auto_response answering the customer, a
status_change when the issue is settled, or an escalation when a human
must take over. Report your confidence honestly on a 0-100 scale.`

const qualitySystemPrompt = `You are the quality agent of an autonomous customer support pipeline.
Review the proposed resolution for correctness, tone and completeness.
Re-propose the action (amended if needed) and report the final confidence
that it is safe to apply without human review, on a 0-100 scale.`

func formatTicket(ticket *domain.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s\n", ticket.ExternalKey)
	fmt.Fprintf(&b, "Title: %s\n", ticket.Title)
	fmt.Fprintf(&b, "Status: %s | Priority: %s\n", ticket.Status, ticket.Priority)
	fmt.Fprintf(&b, "Customer: %s <%s>\n", ticket.CustomerName, ticket.CustomerEmail)
	fmt.Fprintf(&b, "Description:\n%s\n", ticket.Description)
	return b.String()
}

func formatConversation(messages []domain.TicketMessage) string {
	if len(messages) == 0 {
		return "No messages yet.\n"
	}
	var b strings.Builder
	b.WriteString("Conversation (oldest first):\n")
	for _, msg := range messages {
		if msg.IsInternal {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.SenderType, msg.SenderName, msg.Content)
	}
	return b.String()
}

// formatLearningExamples renders past human review decisions as in-context
// examples.
func formatLearningExamples(feedback []domain.LearningFeedback) string {
	if len(feedback) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent human review decisions on past AI actions:\n")
	for _, f := range feedback {
		verdict := "approved"
		if f.FeedbackType == domain.FeedbackRejection {
			verdict = "rejected"
		}
		fmt.Fprintf(&b, "- %s action %s: %s", verdict, f.ActionType, string(f.OriginalAction))
		if f.FeedbackNotes != nil && *f.FeedbackNotes != "" {
			fmt.Fprintf(&b, " (notes: %s)", *f.FeedbackNotes)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func triagePrompt(ticket *domain.Ticket, learning []domain.LearningFeedback) string {
	var b strings.Builder
	b.WriteString(formatTicket(ticket))
	if examples := formatLearningExamples(learning); examples != "" {
		b.WriteByte('\n')
		b.WriteString(examples)
	}
	b.WriteString("\nAssess this ticket and propose the next action.")
	return b.String()
}

func resolutionPrompt(ticket *domain.Ticket, messages []domain.TicketMessage, triage *domain.AgentAction, learning []domain.LearningFeedback) string {
	var b strings.Builder
	b.WriteString(formatTicket(ticket))
	b.WriteByte('\n')
	b.WriteString(formatConversation(messages))
	fmt.Fprintf(&b, "\nTriage assessment (confidence %d): %s\n", triage.ConfidenceScore, triage.Reasoning)
	if examples := formatLearningExamples(learning); examples != "" {
		b.WriteByte('\n')
		b.WriteString(examples)
	}
	b.WriteString("\nPropose the resolving action.")
	return b.String()
}

func qualityPrompt(ticket *domain.Ticket, resolution *domain.AgentAction, learning []domain.LearningFeedback) string {
	var b strings.Builder
	b.WriteString(formatTicket(ticket))
	payload, _ := domain.EncodeActionData(resolution.ActionData)
	fmt.Fprintf(&b, "\nProposed resolution: %s %s (confidence %d)\nReasoning: %s\n",
		resolution.ActionType, string(payload), resolution.ConfidenceScore, resolution.Reasoning)
	if examples := formatLearningExamples(learning); examples != "" {
		b.WriteByte('\n')
		b.WriteString(examples)
	}
	b.WriteString("\nReview the resolution and report the final confidence.")
	return b.String()
}
