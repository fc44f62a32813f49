package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/observability"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

type pipelineEnv struct {
	tickets         *fakeTicketRepo
	messages        *fakeMessageRepo
	actions         *fakeActionRepo
	settings        *fakeSettingsRepo
	learning        *fakeLearningRepo
	classifications *fakeClassificationRepo
	consents        *fakeConsentRequestRepo
	activity        *fakeActivityRepo
	dispatcher      *recordingDispatcher
	model           *scriptedModel

	consent  *ConsentService
	executor *ExecutorService
	pipeline *PipelineService

	ticket *domain.Ticket
}

func newPipelineEnv(t *testing.T, settings *domain.OrganizationAISettings) *pipelineEnv {
	t.Helper()
	logger := zap.NewNop()

	env := &pipelineEnv{
		tickets:         newFakeTicketRepo(),
		messages:        &fakeMessageRepo{},
		actions:         newFakeActionRepo(),
		settings:        newFakeSettingsRepo(),
		learning:        &fakeLearningRepo{},
		classifications: newFakeClassificationRepo(),
		consents:        newFakeConsentRequestRepo(),
		activity:        &fakeActivityRepo{},
		dispatcher:      &recordingDispatcher{},
		model:           &scriptedModel{},
	}
	env.settings.put(settings)

	audit := NewAuditService(env.activity, logger)
	env.consent = NewConsentService(env.classifications, env.settings, env.consents, audit, env.dispatcher, logger)
	env.executor = NewExecutorService(env.tickets, env.messages, env.actions, audit, env.dispatcher, logger)
	env.pipeline = NewPipelineService(PipelineDependencies{
		TicketRepo:         env.tickets,
		MessageRepo:        env.messages,
		ActionRepo:         env.actions,
		SettingsRepo:       env.settings,
		LearningRepo:       env.learning,
		ClassificationRepo: env.classifications,
		Consent:            env.consent,
		Executor:           env.executor,
		Model:              env.model,
		Dispatcher:         env.dispatcher,
		Metrics:            observability.NewMetrics(),
		Logger:             logger,
	})

	env.ticket = &domain.Ticket{
		OrganizationID: settings.OrganizationID,
		ExternalKey:    "TCK-TEST1",
		Title:          "Cannot log in",
		Description:    "The login page rejects my credentials email me at bob@example.com",
		Status:         domain.TicketStatusOpen,
		Priority:       domain.TicketPriorityMedium,
		CustomerName:   "Bob",
		CustomerEmail:  "bob@example.com",
		AIStatus:       domain.AIStatusPendingAnalysis,
	}
	require.NoError(t, env.tickets.Create(context.Background(), env.ticket))
	return env
}

func defaultSettings() *domain.OrganizationAISettings {
	return &domain.OrganizationAISettings{
		OrganizationID:         "org-1",
		AIEnabled:              true,
		PIIDetectionEnabled:    true,
		SentimentEnabled:       true,
		AutoExecutionEnabled:   false,
		AutoExecutionThreshold: 85,
		RequireConsentForPII:   true,
	}
}

func TestPipelineRunsAllStages(t *testing.T) {
	env := newPipelineEnv(t, defaultSettings())
	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionPriorityChange, `{"new_priority":"high","reason":"login outage"}`, "80"),
		proposalReply(domain.ActionAutoResponse, `{"response":"Please reset your password."}`, "90"),
		proposalReply(domain.ActionAutoResponse, `{"response":"Please reset your password."}`, "95"),
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)

	require.NotNil(t, result.Triage)
	require.NotNil(t, result.Resolution)
	require.NotNil(t, result.Quality)
	assert.Equal(t, 95, result.FinalConfidence)
	assert.Equal(t, domain.AIStatusResolved, result.AIStatus)
	assert.Len(t, env.model.calls, 3)

	stored, err := env.tickets.GetByID(context.Background(), env.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AIStatusResolved, stored.AIStatus)
	assert.Equal(t, 95, stored.AIConfidence)
	assert.True(t, stored.AutoResolutionAttempted)
	assert.NotNil(t, stored.AILastActionAt)

	assert.Contains(t, env.dispatcher.types(), events.EventPipelineCompleted)
}

func TestPipelineTriageGateIsStrict(t *testing.T) {
	env := newPipelineEnv(t, defaultSettings())
	// Exactly 50 must not unlock the resolution stage.
	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"ask for logs","timeline":"1d"}`, "50"),
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)

	assert.Len(t, env.model.calls, 1)
	assert.Nil(t, result.Resolution)
	assert.Equal(t, 50, result.FinalConfidence)
	assert.Equal(t, domain.AIStatusHumanRequired, result.AIStatus)
}

func TestPipelineTriageGateOpensAboveFifty(t *testing.T) {
	env := newPipelineEnv(t, defaultSettings())
	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"ask for logs","timeline":"1d"}`, "51"),
		proposalReply(domain.ActionAutoResponse, `{"response":"Try again."}`, "60"),
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)

	// Resolution ran, but exactly 60 must not unlock quality.
	assert.Len(t, env.model.calls, 2)
	require.NotNil(t, result.Resolution)
	assert.Nil(t, result.Quality)
	assert.Equal(t, 60, result.FinalConfidence)
	assert.Equal(t, domain.AIStatusInProgress, result.AIStatus)
}

func TestPipelineQualityGateOpensAboveSixty(t *testing.T) {
	env := newPipelineEnv(t, defaultSettings())
	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"check status page","timeline":"1h"}`, "70"),
		proposalReply(domain.ActionAutoResponse, `{"response":"Fixed."}`, "61"),
		proposalReply(domain.ActionAutoResponse, `{"response":"Fixed."}`, "55"),
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)

	assert.Len(t, env.model.calls, 3)
	require.NotNil(t, result.Quality)
	// The deepest completed stage wins even when it scores lower.
	assert.Equal(t, 55, result.FinalConfidence)
	assert.Equal(t, domain.AIStatusHumanRequired, result.AIStatus)
}

func TestPipelineNormalizesFractionalConfidence(t *testing.T) {
	env := newPipelineEnv(t, defaultSettings())
	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"triage","timeline":"1d"}`, "0.85"),
		proposalReply(domain.ActionAutoResponse, `{"response":"ok"}`, "0.3"),
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)

	require.NotNil(t, result.Triage)
	assert.Equal(t, 85, result.Triage.ConfidenceScore)
	require.NotNil(t, result.Resolution)
	assert.Equal(t, 30, result.Resolution.ConfidenceScore)
}

func TestNormalizeConfidence(t *testing.T) {
	assert.Equal(t, 85, normalizeConfidence(0.85))
	assert.Equal(t, 85, normalizeConfidence(85))
	// A literal 1.0 reads as a fraction, not as 1 percent.
	assert.Equal(t, 100, normalizeConfidence(1.0))
	assert.Equal(t, 0, normalizeConfidence(-3))
	assert.Equal(t, 100, normalizeConfidence(250))
}

func TestPipelineMalformedStageYieldsPartialResults(t *testing.T) {
	env := newPipelineEnv(t, defaultSettings())
	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"investigate","timeline":"1d"}`, "80"),
		{result: &llm.Result{Text: "I think you should escalate this one."}},
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)

	require.NotNil(t, result.Triage)
	assert.Nil(t, result.Resolution)
	assert.Equal(t, 80, result.FinalConfidence)
	assert.Equal(t, domain.AIStatusInProgress, result.AIStatus)
}

func TestPipelineRateLimitPropagates(t *testing.T) {
	env := newPipelineEnv(t, defaultSettings())
	env.model.replies = []scriptedReply{{err: llm.ErrRateLimited}}

	_, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	assert.ErrorIs(t, err, llm.ErrRateLimited)

	stored, getErr := env.tickets.GetByID(context.Background(), env.ticket.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.AIStatusPendingAnalysis, stored.AIStatus)
}

func TestPipelineAIDisabled(t *testing.T) {
	settings := defaultSettings()
	settings.AIEnabled = false
	env := newPipelineEnv(t, settings)

	_, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.Error(t, err)
	assert.Equal(t, "AI_DISABLED", apperrors.ToDomainError(err).Code)
	assert.Empty(t, env.model.calls)
}

func TestPipelineAutoExecutesResolutionAction(t *testing.T) {
	settings := defaultSettings()
	settings.AutoExecutionEnabled = true
	settings.AutoExecutionThreshold = 80
	env := newPipelineEnv(t, settings)
	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"triage","timeline":"1d"}`, "81"),
		proposalReply(domain.ActionAutoResponse, `{"response":"Your password has been reset."}`, "90"),
		proposalReply(domain.ActionAutoResponse, `{"response":"Your password has been reset."}`, "85"),
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)
	assert.True(t, result.AutoExecuted)

	executed, err := env.actions.GetByID(context.Background(), result.Resolution.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusExecuted, executed.Status)
	require.NotNil(t, executed.ExecutedAt)

	thread, err := env.messages.ListByTicket(context.Background(), env.ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, domain.SenderTypeSystem, thread[0].SenderType)
	assert.Equal(t, domain.SystemSenderName, thread[0].SenderName)
	assert.False(t, thread[0].IsInternal)
	assert.Equal(t, "Your password has been reset.", thread[0].Content)

	assert.Contains(t, env.activity.actions(), "ai_action_auto_executed")
}

func TestPipelineAutoExecutionBelowThresholdSkips(t *testing.T) {
	settings := defaultSettings()
	settings.AutoExecutionEnabled = true
	settings.AutoExecutionThreshold = 90
	env := newPipelineEnv(t, settings)
	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"triage","timeline":"1d"}`, "81"),
		proposalReply(domain.ActionAutoResponse, `{"response":"done"}`, "89"),
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)

	assert.False(t, result.AutoExecuted)
	stored, err := env.actions.GetByID(context.Background(), result.Resolution.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusPending, stored.Status)
}

func TestPipelineAutoExecutionRateLimit(t *testing.T) {
	settings := defaultSettings()
	settings.AutoExecutionEnabled = true
	settings.AutoExecutionThreshold = 80
	env := newPipelineEnv(t, settings)

	// The window already holds the maximum number of executed actions.
	now := time.Now()
	for i := 0; i < autoExecMaxPerWindow; i++ {
		executedAt := now.Add(-time.Duration(i) * time.Minute)
		require.NoError(t, env.actions.Create(context.Background(), &domain.AgentAction{
			TicketID:   env.ticket.ID,
			AgentType:  domain.AgentTypeResolution,
			ActionType: domain.ActionAutoResponse,
			ActionData: domain.AutoResponseData{Response: "old"},
			Status:     domain.ActionStatusExecuted,
			ExecutedAt: &executedAt,
		}))
	}

	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"triage","timeline":"1d"}`, "81"),
		proposalReply(domain.ActionAutoResponse, `{"response":"again"}`, "90"),
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)

	assert.False(t, result.AutoExecuted)
	stored, err := env.actions.GetByID(context.Background(), result.Resolution.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusPending, stored.Status)
}

func TestPipelineAutoExecutionCountsOnlyWindow(t *testing.T) {
	settings := defaultSettings()
	settings.AutoExecutionEnabled = true
	settings.AutoExecutionThreshold = 80
	env := newPipelineEnv(t, settings)

	// Four recent plus one stale execution: still under the limit.
	now := time.Now()
	for i := 0; i < autoExecMaxPerWindow-1; i++ {
		executedAt := now.Add(-time.Duration(i) * time.Minute)
		require.NoError(t, env.actions.Create(context.Background(), &domain.AgentAction{
			TicketID:   env.ticket.ID,
			ActionType: domain.ActionAutoResponse,
			ActionData: domain.AutoResponseData{Response: "old"},
			Status:     domain.ActionStatusExecuted,
			ExecutedAt: &executedAt,
		}))
	}
	stale := now.Add(-2 * time.Hour)
	require.NoError(t, env.actions.Create(context.Background(), &domain.AgentAction{
		TicketID:   env.ticket.ID,
		ActionType: domain.ActionAutoResponse,
		ActionData: domain.AutoResponseData{Response: "ancient"},
		Status:     domain.ActionStatusExecuted,
		ExecutedAt: &stale,
	}))

	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"triage","timeline":"1d"}`, "81"),
		proposalReply(domain.ActionAutoResponse, `{"response":"fresh"}`, "90"),
	}

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)
	assert.True(t, result.AutoExecuted)
}

func TestPipelineSuspendsOnConsentAndResumes(t *testing.T) {
	env := newPipelineEnv(t, defaultSettings())
	require.NoError(t, env.classifications.Upsert(context.Background(), &domain.PIIClassification{
		TicketID:         env.ticket.ID,
		OrganizationID:   env.ticket.OrganizationID,
		ContainsPII:      true,
		PIITypes:         []domain.PIICategory{domain.PIIEmail},
		SensitivityLevel: domain.SensitivityLow,
		LastAnalyzedAt:   time.Now(),
	}))

	result, err := env.pipeline.Run(context.Background(), env.ticket.ID, "agent-1")
	require.NoError(t, err)
	assert.True(t, result.ConsentPending)
	assert.NotEmpty(t, result.ConsentRequestID)
	assert.Empty(t, env.model.calls)

	// The operator grants consent with anonymization; the parked run
	// resumes and the model sees redacted content.
	env.model.replies = []scriptedReply{
		proposalReply(domain.ActionFollowUp, `{"follow_up_action":"triage","timeline":"1d"}`, "40"),
	}
	reviewer := &domain.Agent{ID: "agent-2", OrganizationID: env.ticket.OrganizationID}
	require.NoError(t, env.consent.SubmitDecision(context.Background(), env.ticket.ID, reviewer, DecisionWithAnonymization))

	require.Len(t, env.model.calls, 1)
	assert.Contains(t, env.model.calls[0].User, "[EMAIL REDACTED]")
	assert.NotContains(t, env.model.calls[0].User, "bob@example.com")

	actions, err := env.actions.ListByTicket(context.Background(), env.ticket.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}
