package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/pii"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// Stage gating thresholds: resolution needs triage strictly above 50,
// quality needs resolution strictly above 60.
const (
	resolutionGateConfidence = 50
	qualityGateConfidence    = 60
	humanRequiredBelow       = 60
)

// Auto-execution rate limit: at most this many executed actions per
// ticket within the trailing window.
const (
	autoExecMaxPerWindow = 5
	autoExecWindow       = 60 * time.Minute
)

const learningContextSize = 5

// PipelineResult is the outcome of one pipeline run.
type PipelineResult struct {
	TicketID         string
	AIStatus         domain.TicketAIStatus
	FinalConfidence  int
	Triage           *domain.AgentAction
	Resolution       *domain.AgentAction
	Quality          *domain.AgentAction
	AutoExecuted     bool
	ConsentPending   bool
	ConsentRequestID string
}

// PipelineService orchestrates the three sequential agents over a ticket
// and decides on autonomous execution.
type PipelineService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	actions    repository.AgentActionRepository
	settings   repository.OrganizationSettingsRepository
	learning   repository.LearningFeedbackRepository
	classified repository.PIIClassificationRepository
	consent    *ConsentService
	executor   *ExecutorService
	model      llm.Client
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// PipelineDependencies bundles collaborators for the pipeline service.
type PipelineDependencies struct {
	TicketRepo         repository.TicketRepository
	MessageRepo        repository.TicketMessageRepository
	ActionRepo         repository.AgentActionRepository
	SettingsRepo       repository.OrganizationSettingsRepository
	LearningRepo       repository.LearningFeedbackRepository
	ClassificationRepo repository.PIIClassificationRepository
	Consent            *ConsentService
	Executor           *ExecutorService
	Model              llm.Client
	Dispatcher         events.Dispatcher
	Metrics            *observability.Metrics
	Logger             *zap.Logger
}

// NewPipelineService constructs the service.
func NewPipelineService(deps PipelineDependencies) *PipelineService {
	return &PipelineService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		actions:    deps.ActionRepo,
		settings:   deps.SettingsRepo,
		learning:   deps.LearningRepo,
		classified: deps.ClassificationRepo,
		consent:    deps.Consent,
		executor:   deps.Executor,
		model:      deps.Model,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Run executes the pipeline for a ticket, first passing through the
// consent gate. When consent is outstanding the run is parked and the
// result reports the pending request.
func (s *PipelineService) Run(ctx context.Context, ticketID, requestedBy string) (*PipelineResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetByOrganization(ctx, ticket.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !settings.AIEnabled {
		return nil, apperrors.NewAIDisabled("autonomous resolution")
	}

	authorization, err := s.consent.Authorize(ctx, ticket, "auto_resolution", requestedBy,
		func(ctx context.Context, anonymize bool) error {
			_, err := s.run(ctx, ticketID, anonymize)
			return err
		})
	if err != nil {
		return nil, err
	}
	if !authorization.Proceed {
		return &PipelineResult{
			TicketID:         ticketID,
			ConsentPending:   true,
			ConsentRequestID: authorization.RequestID,
		}, nil
	}
	return s.run(ctx, ticketID, authorization.Anonymize)
}

func (s *PipelineService) run(ctx context.Context, ticketID string, anonymize bool) (*PipelineResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetByOrganization(ctx, ticket.OrganizationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	promptTicket := ticket
	if anonymize {
		if classification, err := s.classified.GetByTicket(ctx, ticketID); err == nil {
			redacted := pii.AnonymizeTicket(*ticket, classification.PIITypes)
			promptTicket = &redacted
			messages = pii.AnonymizeMessages(messages, classification.PIITypes)
		} else {
			s.logger.Warn("anonymization requested but classification unavailable", zap.Error(err))
		}
	}

	learning, err := s.learning.ListRecentEligible(ctx, ticket.OrganizationID, learningContextSize)
	if err != nil {
		s.logger.Warn("learning context unavailable", zap.Error(err))
		learning = nil
	}

	result := &PipelineResult{TicketID: ticketID}
	var stagesRun []domain.AgentType

	// Triage always runs first.
	triage, err := s.runStage(ctx, domain.AgentTypeTriage, triageSystemPrompt,
		triagePrompt(promptTicket, learning), ticketID)
	if err != nil {
		return nil, err
	}
	if triage != nil {
		result.Triage = triage
		stagesRun = append(stagesRun, domain.AgentTypeTriage)
	}

	// Resolution runs only above the triage gate, strictly.
	if triage != nil && triage.ConfidenceScore > resolutionGateConfidence {
		resolution, err := s.runStage(ctx, domain.AgentTypeResolution, resolutionSystemPrompt,
			resolutionPrompt(promptTicket, messages, triage, learning), ticketID)
		if err != nil {
			return nil, err
		}
		if resolution != nil {
			result.Resolution = resolution
			stagesRun = append(stagesRun, domain.AgentTypeResolution)
		}

		// Quality runs only above the resolution gate, strictly.
		if resolution != nil && resolution.ConfidenceScore > qualityGateConfidence {
			quality, err := s.runStage(ctx, domain.AgentTypeQuality, qualitySystemPrompt,
				qualityPrompt(promptTicket, resolution, learning), ticketID)
			if err != nil {
				return nil, err
			}
			if quality != nil {
				result.Quality = quality
				stagesRun = append(stagesRun, domain.AgentTypeQuality)
			}
		}
	}

	result.FinalConfidence = finalConfidence(result)
	result.AIStatus = deriveAIStatus(result.FinalConfidence, settings.AutoExecutionThreshold)

	now := time.Now()
	ticket.AIStatus = result.AIStatus
	ticket.AIConfidence = result.FinalConfidence
	ticket.AILastActionAt = &now
	ticket.AutoResolutionAttempted = true
	if err := s.tickets.UpdateAIState(ctx, ticket); err != nil {
		s.logger.Error("persist ai state failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}

	result.AutoExecuted = s.maybeAutoExecute(ctx, ticket, settings, result)

	s.publish(ctx, events.Event{
		Type:           events.EventPipelineCompleted,
		TicketID:       ticketID,
		OrganizationID: ticket.OrganizationID,
		Payload: events.PipelineCompletedPayload{
			AIStatus:        result.AIStatus,
			FinalConfidence: result.FinalConfidence,
			StagesRun:       stagesRun,
			AutoExecuted:    result.AutoExecuted,
		},
	})
	return result, nil
}

// runStage calls the model for one agent, parses the structured proposal
// and persists it as a pending action. A malformed model reply aborts
// only this stage: it returns (nil, nil) so the pipeline continues with
// partial results. Provider errors (rate limit, billing) propagate.
func (s *PipelineService) runStage(ctx context.Context, agentType domain.AgentType, system, user, ticketID string) (*domain.AgentAction, error) {
	reply, err := s.model.Complete(ctx, llm.Request{
		System: system,
		User:   user,
		Tools:  []llm.Tool{proposeActionTool},
	})
	if err != nil {
		if llm.IsMalformedOutput(err) {
			s.metrics.RecordModelCall(string(agentType), "malformed")
			s.logger.Warn("stage aborted on malformed model output",
				zap.String("agent_type", string(agentType)),
				zap.String("ticket_id", ticketID),
				zap.Error(err),
			)
			return nil, nil
		}
		s.metrics.RecordModelCall(string(agentType), "error")
		return nil, err
	}

	action, err := parseProposal(agentType, ticketID, reply)
	if err != nil {
		s.metrics.RecordModelCall(string(agentType), "malformed")
		s.logger.Warn("stage aborted on unparseable proposal",
			zap.String("agent_type", string(agentType)),
			zap.String("ticket_id", ticketID),
			zap.Error(err),
		)
		return nil, nil
	}
	s.metrics.RecordModelCall(string(agentType), "ok")

	if err := s.actions.Create(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// maybeAutoExecute applies the resolution action when every gate holds.
// Any unmet condition silently skips execution; the action stays pending
// for human review.
func (s *PipelineService) maybeAutoExecute(ctx context.Context, ticket *domain.Ticket, settings *domain.OrganizationAISettings, result *PipelineResult) bool {
	if !settings.AutoExecutionEnabled {
		return false
	}
	if result.FinalConfidence < settings.AutoExecutionThreshold {
		return false
	}
	if result.Resolution == nil {
		s.logger.Info("auto-execution skipped: no resolution action", zap.String("ticket_id", ticket.ID))
		return false
	}

	executed, err := s.actions.CountExecutedSince(ctx, ticket.ID, time.Now().Add(-autoExecWindow))
	if err != nil {
		s.logger.Warn("rate limit check failed; skipping auto-execution",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	if executed >= autoExecMaxPerWindow {
		s.logger.Info("auto-execution skipped: rate limit reached",
			zap.String("ticket_id", ticket.ID),
			zap.Int("executed_last_hour", executed),
		)
		return false
	}

	if err := s.executor.Execute(ctx, result.Resolution, ProvenanceAuto, nil); err != nil {
		s.logger.Error("auto-execution failed; action left pending",
			zap.String("action_id", result.Resolution.ID), zap.Error(err))
		return false
	}
	return true
}

// stageProposal is the wire shape of a propose_action tool reply.
type stageProposal struct {
	ActionType      string          `json:"action_type"`
	ActionData      json.RawMessage `json:"action_data"`
	ConfidenceScore json.Number     `json:"confidence_score"`
	Reasoning       string          `json:"reasoning"`
}

func parseProposal(agentType domain.AgentType, ticketID string, reply *llm.Result) (*domain.AgentAction, error) {
	raw := reply.ToolInput
	if raw == nil {
		// Some models answer in plain text; accept a bare JSON body.
		raw = json.RawMessage(reply.Text)
	}
	var proposal stageProposal
	if err := json.Unmarshal(raw, &proposal); err != nil {
		return nil, &llm.MalformedOutputError{Detail: "proposal is not valid JSON", Err: err}
	}
	if proposal.ActionType == "" {
		return nil, &llm.MalformedOutputError{Detail: "proposal missing action_type"}
	}
	confidence, err := proposal.ConfidenceScore.Float64()
	if err != nil {
		return nil, &llm.MalformedOutputError{Detail: "proposal confidence is not numeric", Err: err}
	}
	data, err := domain.DecodeActionData(domain.ActionType(proposal.ActionType), proposal.ActionData)
	if err != nil {
		return nil, &llm.MalformedOutputError{Detail: "proposal action_data mismatch", Err: err}
	}
	return &domain.AgentAction{
		TicketID:        ticketID,
		AgentType:       agentType,
		ActionType:      domain.ActionType(proposal.ActionType),
		ActionData:      data,
		ConfidenceScore: normalizeConfidence(confidence),
		Status:          domain.ActionStatusPending,
		Reasoning:       proposal.Reasoning,
	}, nil
}

// normalizeConfidence converts a raw model score to the 0-100 integer
// scale at the boundary. Scores at or below 1.0 are read as fractions;
// a literal 1.0 therefore means 100, not 1%.
func normalizeConfidence(raw float64) int {
	if raw <= 1.0 {
		raw *= 100
	}
	score := int(math.Round(raw))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// finalConfidence picks the deepest completed stage's score.
func finalConfidence(result *PipelineResult) int {
	switch {
	case result.Quality != nil:
		return result.Quality.ConfidenceScore
	case result.Resolution != nil:
		return result.Resolution.ConfidenceScore
	case result.Triage != nil:
		return result.Triage.ConfidenceScore
	}
	return 0
}

// deriveAIStatus maps the final confidence onto the ticket's AI status
// relative to the organization's auto-execution threshold.
func deriveAIStatus(confidence, threshold int) domain.TicketAIStatus {
	switch {
	case confidence >= threshold:
		return domain.AIStatusResolved
	case confidence >= humanRequiredBelow:
		return domain.AIStatusInProgress
	default:
		return domain.AIStatusHumanRequired
	}
}

func (s *PipelineService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
