package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/pii"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// SentimentResult is the model's read of the customer's mood across the
// conversation.
type SentimentResult struct {
	TicketID         string  `json:"ticket_id"`
	Sentiment        string  `json:"sentiment"`
	Score            float64 `json:"score"`
	EscalationRisk   bool    `json:"escalation_risk"`
	Summary          string  `json:"summary"`
	ConsentPending   bool    `json:"-"`
	ConsentRequestID string  `json:"-"`
}

var reportSentimentTool = llm.Tool{
	Name:        "report_sentiment",
	Description: "Report the customer's sentiment for this support conversation.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sentiment": map[string]any{
				"type": "string",
				"enum": []string{"positive", "neutral", "negative", "frustrated", "angry"},
			},
			"score": map[string]any{
				"type":        "number",
				"description": "Sentiment intensity from -1 (hostile) to 1 (delighted).",
			},
			"escalation_risk": map[string]any{
				"type":        "boolean",
				"description": "Whether the customer is likely to escalate or churn.",
			},
			"summary": map[string]any{
				"type": "string",
			},
		},
		"required": []string{"sentiment", "score", "escalation_risk", "summary"},
	},
}

const sentimentSystemPrompt = `You analyze the emotional tone of customer support conversations.
Read the ticket and conversation and report the customer's current
sentiment via the report_sentiment tool. Weigh the latest customer
messages more heavily than older ones.`

// SentimentService runs the supplementary sentiment read over a ticket's
// conversation. Goes through the same consent gate as the pipeline since
// it feeds the same model provider.
type SentimentService struct {
	tickets         repository.TicketRepository
	messages        repository.TicketMessageRepository
	settings        repository.OrganizationSettingsRepository
	classifications repository.PIIClassificationRepository
	consent         *ConsentService
	model           llm.Client
	logger          *zap.Logger
}

// NewSentimentService constructs the service.
func NewSentimentService(
	tickets repository.TicketRepository,
	messages repository.TicketMessageRepository,
	settings repository.OrganizationSettingsRepository,
	classifications repository.PIIClassificationRepository,
	consent *ConsentService,
	model llm.Client,
	logger *zap.Logger,
) *SentimentService {
	return &SentimentService{
		tickets:         tickets,
		messages:        messages,
		settings:        settings,
		classifications: classifications,
		consent:         consent,
		model:           model,
		logger:          logger,
	}
}

// Analyze reports sentiment for a ticket's conversation, suspending on the
// consent gate when the ticket carries unconsented PII.
func (s *SentimentService) Analyze(ctx context.Context, ticketID, requestedBy string) (*SentimentResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetByOrganization(ctx, ticket.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !settings.AIEnabled || !settings.SentimentEnabled {
		return nil, apperrors.NewAIDisabled("sentiment analysis")
	}

	authorization, err := s.consent.Authorize(ctx, ticket, "sentiment_analysis", requestedBy,
		func(ctx context.Context, anonymize bool) error {
			_, err := s.analyze(ctx, ticketID, anonymize)
			return err
		})
	if err != nil {
		return nil, err
	}
	if !authorization.Proceed {
		return &SentimentResult{
			TicketID:         ticketID,
			ConsentPending:   true,
			ConsentRequestID: authorization.RequestID,
		}, nil
	}
	return s.analyze(ctx, ticketID, authorization.Anonymize)
}

func (s *SentimentService) analyze(ctx context.Context, ticketID string, anonymize bool) (*SentimentResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	promptTicket := ticket
	if anonymize {
		types := s.redactionTypes(ctx, ticket, messages)
		redacted := pii.AnonymizeTicket(*ticket, types)
		promptTicket = &redacted
		messages = pii.AnonymizeMessages(messages, types)
	}

	var b strings.Builder
	b.WriteString(formatTicket(promptTicket))
	b.WriteByte('\n')
	b.WriteString(formatConversation(messages))
	b.WriteString("\nReport the customer's sentiment.")

	reply, err := s.model.Complete(ctx, llm.Request{
		System: sentimentSystemPrompt,
		User:   b.String(),
		Tools:  []llm.Tool{reportSentimentTool},
	})
	if err != nil {
		return nil, err
	}

	raw := reply.ToolInput
	if raw == nil {
		raw = json.RawMessage(reply.Text)
	}
	result := &SentimentResult{TicketID: ticketID}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, &llm.MalformedOutputError{Detail: "sentiment reply is not valid JSON", Err: err}
	}
	result.TicketID = ticketID
	if result.Sentiment == "" {
		return nil, &llm.MalformedOutputError{Detail: "sentiment reply missing sentiment"}
	}
	s.logger.Info("sentiment analyzed",
		zap.String("ticket_id", ticketID),
		zap.String("sentiment", result.Sentiment),
		zap.Float64("score", result.Score),
		zap.Bool("escalation_risk", result.EscalationRisk),
	)
	return result, nil
}

// redactionTypes returns the categories to redact before prompting. The
// stored classification is the whole-thread verdict, so it wins; a fresh
// scan over the full thread covers the rare case where the row is gone by
// the time a resumed call runs.
func (s *SentimentService) redactionTypes(ctx context.Context, ticket *domain.Ticket, messages []domain.TicketMessage) []domain.PIICategory {
	if classification, err := s.classifications.GetByTicket(ctx, ticket.ID); err == nil {
		return classification.PIITypes
	}
	var b strings.Builder
	b.WriteString(ticket.Title)
	b.WriteByte('\n')
	b.WriteString(ticket.Description)
	for _, msg := range messages {
		b.WriteByte('\n')
		b.WriteString(msg.Content)
	}
	return pii.Classify(b.String()).PIITypes
}
