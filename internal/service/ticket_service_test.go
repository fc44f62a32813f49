package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

type ticketEnv struct {
	tickets         *fakeTicketRepo
	messages        *fakeMessageRepo
	classifications *fakeClassificationRepo
	service         *TicketService
}

func newTicketEnv(t *testing.T) *ticketEnv {
	t.Helper()
	logger := zap.NewNop()
	env := &ticketEnv{
		tickets:         newFakeTicketRepo(),
		messages:        &fakeMessageRepo{},
		classifications: newFakeClassificationRepo(),
	}
	settingsRepo := newFakeSettingsRepo()
	settingsRepo.put(defaultSettings())
	classification := NewClassificationService(env.classifications, settingsRepo, &recordingDispatcher{}, logger)
	env.service = NewTicketService(env.tickets, env.messages, classification, logger)
	return env
}

func TestCreateTicketDefaultsAndScan(t *testing.T) {
	env := newTicketEnv(t)

	ticket, err := env.service.CreateTicket(context.Background(), "org-1", CreateTicketInput{
		Title:         "Can't log in",
		Description:   "Password reset loops forever",
		CustomerName:  "Jo",
		CustomerEmail: "jo@example.com",
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^TCK-[0-9A-F-]{8}$`), ticket.ExternalKey)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, domain.AIStatusPendingAnalysis, ticket.AIStatus)

	// The customer email in the intake triggers the initial scan.
	stored, err := env.classifications.GetByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.ContainsPII)
	assert.Contains(t, stored.PIITypes, domain.PIIEmail)
}

func TestCreateTicketValidation(t *testing.T) {
	env := newTicketEnv(t)

	_, err := env.service.CreateTicket(context.Background(), "org-1", CreateTicketInput{Title: "  "})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = env.service.CreateTicket(context.Background(), "org-1", CreateTicketInput{
		Title:    "ok",
		Priority: domain.TicketPriority("whenever"),
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestGetTicketScopesToOrganization(t *testing.T) {
	env := newTicketEnv(t)
	ticket, err := env.service.CreateTicket(context.Background(), "org-1", CreateTicketInput{Title: "hi"})
	require.NoError(t, err)

	_, _, err = env.service.GetTicket(context.Background(), "org-2", ticket.ID)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)

	got, _, err := env.service.GetTicket(context.Background(), "org-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
}

func TestAddMessageCustomerRescansThread(t *testing.T) {
	env := newTicketEnv(t)
	ticket, err := env.service.CreateTicket(context.Background(), "org-1", CreateTicketInput{
		Title:       "Billing question",
		Description: "No sensitive content here",
	})
	require.NoError(t, err)

	_, err = env.service.AddMessage(context.Background(), "org-1", ticket.ID, &domain.TicketMessage{
		SenderType: domain.SenderTypeCustomer,
		SenderName: "Jo",
		Content:    "My card is 4111 1111 1111 1111",
	})
	require.NoError(t, err)

	stored, err := env.classifications.GetByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.ContainsPII)
	assert.Contains(t, stored.PIITypes, domain.PIICreditCard)
}

func TestAddMessageAgentSkipsRescan(t *testing.T) {
	env := newTicketEnv(t)
	ticket, err := env.service.CreateTicket(context.Background(), "org-1", CreateTicketInput{
		Title:       "Billing question",
		Description: "Nothing sensitive",
	})
	require.NoError(t, err)

	_, err = env.service.AddMessage(context.Background(), "org-1", ticket.ID, &domain.TicketMessage{
		SenderType: domain.SenderTypeAgent,
		SenderName: "Sam",
		Content:    "internal note: card ending 4111 1111 1111 1111",
	})
	require.NoError(t, err)

	stored, err := env.classifications.GetByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.False(t, stored.ContainsPII)
}

func TestAddMessageRejectsSystemSender(t *testing.T) {
	env := newTicketEnv(t)
	ticket, err := env.service.CreateTicket(context.Background(), "org-1", CreateTicketInput{Title: "hi"})
	require.NoError(t, err)

	_, err = env.service.AddMessage(context.Background(), "org-1", ticket.ID, &domain.TicketMessage{
		SenderType: domain.SenderTypeSystem,
		Content:    "should not be accepted over the API",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}
