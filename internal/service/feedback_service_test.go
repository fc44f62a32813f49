package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

type feedbackEnv struct {
	tickets    *fakeTicketRepo
	messages   *fakeMessageRepo
	actions    *fakeActionRepo
	learning   *fakeLearningRepo
	activity   *fakeActivityRepo
	dispatcher *recordingDispatcher
	feedback   *FeedbackService
	ticket     *domain.Ticket
	reviewer   *domain.Agent
}

func newFeedbackEnv(t *testing.T) *feedbackEnv {
	t.Helper()
	logger := zap.NewNop()
	env := &feedbackEnv{
		tickets:    newFakeTicketRepo(),
		messages:   &fakeMessageRepo{},
		actions:    newFakeActionRepo(),
		learning:   &fakeLearningRepo{},
		activity:   &fakeActivityRepo{},
		dispatcher: &recordingDispatcher{},
	}
	audit := NewAuditService(env.activity, logger)
	executor := NewExecutorService(env.tickets, env.messages, env.actions, audit, env.dispatcher, logger)
	env.feedback = NewFeedbackService(env.actions, env.tickets, env.learning, executor, audit, env.dispatcher, logger)

	env.ticket = &domain.Ticket{
		OrganizationID: "org-1",
		ExternalKey:    "TCK-FB1",
		Title:          "Wrong invoice",
		Status:         domain.TicketStatusOpen,
		Priority:       domain.TicketPriorityMedium,
	}
	require.NoError(t, env.tickets.Create(context.Background(), env.ticket))
	env.reviewer = &domain.Agent{ID: "agent-1", OrganizationID: "org-1", Name: "Sam"}
	return env
}

func (e *feedbackEnv) pendingAction(t *testing.T) *domain.AgentAction {
	t.Helper()
	action := &domain.AgentAction{
		TicketID:        e.ticket.ID,
		AgentType:       domain.AgentTypeResolution,
		ActionType:      domain.ActionAutoResponse,
		ActionData:      domain.AutoResponseData{Response: "Corrected invoice attached."},
		ConfidenceScore: 75,
		Status:          domain.ActionStatusPending,
		Reasoning:       "invoice regenerated",
	}
	require.NoError(t, e.actions.Create(context.Background(), action))
	return action
}

func TestRecordApprovalExecutesAction(t *testing.T) {
	env := newFeedbackEnv(t)
	action := env.pendingAction(t)

	record, err := env.feedback.Record(context.Background(), action.ID, env.reviewer, domain.FeedbackApproval, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.FeedbackApproval, record.FeedbackType)
	assert.Equal(t, domain.ActionAutoResponse, record.ActionType)
	assert.JSONEq(t, `{"response":"Corrected invoice attached."}`, string(record.OriginalAction))

	stored, err := env.actions.GetByID(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusExecuted, stored.Status)

	thread, err := env.messages.ListByTicket(context.Background(), env.ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, "Corrected invoice attached.", thread[0].Content)

	assert.Contains(t, env.dispatcher.types(), events.EventFeedbackRecorded)
	assert.Contains(t, env.activity.actions(), "ai_action_approved")
}

func TestRecordRejectionIsTerminal(t *testing.T) {
	env := newFeedbackEnv(t)
	action := env.pendingAction(t)
	notes := "tone is wrong for this customer"

	_, err := env.feedback.Record(context.Background(), action.ID, env.reviewer, domain.FeedbackRejection, &notes)
	require.NoError(t, err)

	stored, err := env.actions.GetByID(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusRejected, stored.Status)

	// Nothing was applied.
	thread, err := env.messages.ListByTicket(context.Background(), env.ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, thread)

	// A rejected action cannot be reviewed again.
	_, err = env.feedback.Record(context.Background(), action.ID, env.reviewer, domain.FeedbackApproval, nil)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestRecordRejectsUnknownFeedbackType(t *testing.T) {
	env := newFeedbackEnv(t)
	action := env.pendingAction(t)

	_, err := env.feedback.Record(context.Background(), action.ID, env.reviewer, domain.FeedbackType("meh"), nil)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestRecordScopesToOrganization(t *testing.T) {
	env := newFeedbackEnv(t)
	action := env.pendingAction(t)
	outsider := &domain.Agent{ID: "agent-9", OrganizationID: "org-2"}

	_, err := env.feedback.Record(context.Background(), action.ID, outsider, domain.FeedbackApproval, nil)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestSilentRejectionExcludedFromLearningContext(t *testing.T) {
	env := newFeedbackEnv(t)

	silent := env.pendingAction(t)
	_, err := env.feedback.Record(context.Background(), silent.ID, env.reviewer, domain.FeedbackRejection, nil)
	require.NoError(t, err)

	notes := "refund instead of reply"
	noted := env.pendingAction(t)
	_, err = env.feedback.Record(context.Background(), noted.ID, env.reviewer, domain.FeedbackRejection, &notes)
	require.NoError(t, err)

	approved := env.pendingAction(t)
	_, err = env.feedback.Record(context.Background(), approved.ID, env.reviewer, domain.FeedbackApproval, nil)
	require.NoError(t, err)

	eligible, err := env.learning.ListRecentEligible(context.Background(), "org-1", 5)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	for _, record := range eligible {
		assert.NotEqual(t, silent.ID, record.ActionID)
	}
}

func TestExecuteApprovedRequiresApprovedStatus(t *testing.T) {
	env := newFeedbackEnv(t)
	action := env.pendingAction(t)

	_, err := env.feedback.ExecuteApproved(context.Background(), action.ID, env.reviewer)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestExecuteApprovedRunsApprovedAction(t *testing.T) {
	env := newFeedbackEnv(t)
	action := env.pendingAction(t)
	require.NoError(t, env.actions.TransitionStatus(context.Background(), action.ID,
		domain.ActionStatusPending, domain.ActionStatusApproved, nil))

	executed, err := env.feedback.ExecuteApproved(context.Background(), action.ID, env.reviewer)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusExecuted, executed.Status)

	stored, err := env.actions.GetByID(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusExecuted, stored.Status)
}
