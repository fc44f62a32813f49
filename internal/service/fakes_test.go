package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/repository"
)

// In-memory repository fakes. They mirror the Postgres repositories'
// contracts, including pgx.ErrNoRows on missing rows and guarded status
// transitions.

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *ticket
	copied.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) UpdateAIState(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.AIStatus = ticket.AIStatus
	stored.AIConfidence = ticket.AIConfidence
	stored.AILastActionAt = ticket.AILastActionAt
	stored.AutoResolutionAttempted = ticket.AutoResolutionAttempted
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeTicketRepo) ListByOrganization(_ context.Context, organizationID string, _, _ int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, t := range r.tickets {
		if t.OrganizationID == organizationID {
			result = append(result, *t)
		}
	}
	return result, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.TicketMessage
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketMessage
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	return result, nil
}

type fakeActionRepo struct {
	mu      sync.Mutex
	actions map[string]*domain.AgentAction
}

func newFakeActionRepo() *fakeActionRepo {
	return &fakeActionRepo{actions: make(map[string]*domain.AgentAction)}
}

func (r *fakeActionRepo) Create(_ context.Context, action *domain.AgentAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	action.CreatedAt = time.Now()
	copied := *action
	r.actions[action.ID] = &copied
	return nil
}

func (r *fakeActionRepo) GetByID(_ context.Context, id string) (*domain.AgentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.actions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeActionRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.AgentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AgentAction
	for _, action := range r.actions {
		if action.TicketID == ticketID {
			result = append(result, *action)
		}
	}
	return result, nil
}

func (r *fakeActionRepo) TransitionStatus(_ context.Context, id string, from, to domain.ActionStatus, executedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.actions[id]
	if !ok || stored.Status != from {
		return pgx.ErrNoRows
	}
	stored.Status = to
	if executedAt != nil {
		stored.ExecutedAt = executedAt
	}
	return nil
}

func (r *fakeActionRepo) CountExecutedSince(_ context.Context, ticketID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, action := range r.actions {
		if action.TicketID == ticketID && action.Status == domain.ActionStatusExecuted &&
			action.ExecutedAt != nil && !action.ExecutedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]*domain.OrganizationAISettings
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: make(map[string]*domain.OrganizationAISettings)}
}

func (r *fakeSettingsRepo) put(s *domain.OrganizationAISettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[s.OrganizationID] = s
}

func (r *fakeSettingsRepo) GetByOrganization(_ context.Context, organizationID string) (*domain.OrganizationAISettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.settings[organizationID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

type fakeLearningRepo struct {
	mu      sync.Mutex
	records []domain.LearningFeedback
}

func (r *fakeLearningRepo) Create(_ context.Context, feedback *domain.LearningFeedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	feedback.CreatedAt = time.Now()
	r.records = append(r.records, *feedback)
	return nil
}

func (r *fakeLearningRepo) ListRecentEligible(_ context.Context, _ string, limit int) ([]domain.LearningFeedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 5
	}
	var result []domain.LearningFeedback
	for i := len(r.records) - 1; i >= 0 && len(result) < limit; i-- {
		record := r.records[i]
		if record.FeedbackType == domain.FeedbackApproval || record.FeedbackNotes != nil {
			result = append(result, record)
		}
	}
	return result, nil
}

type fakeClassificationRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.PIIClassification
}

func newFakeClassificationRepo() *fakeClassificationRepo {
	return &fakeClassificationRepo{rows: make(map[string]*domain.PIIClassification)}
}

func (r *fakeClassificationRepo) Upsert(_ context.Context, c *domain.PIIClassification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[c.TicketID]
	if ok {
		existing.ContainsPII = c.ContainsPII
		existing.PIITypes = c.PIITypes
		existing.SensitivityLevel = c.SensitivityLevel
		existing.GDPRRelevant = c.GDPRRelevant
		existing.LastAnalyzedAt = c.LastAnalyzedAt
		return nil
	}
	copied := *c
	r.rows[c.TicketID] = &copied
	return nil
}

func (r *fakeClassificationRepo) GetByTicket(_ context.Context, ticketID string) (*domain.PIIClassification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeClassificationRepo) RecordConsent(_ context.Context, ticketID, decidedBy string, anonymize bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	stored.AIUsageConsent = true
	stored.ConsentGivenAt = &now
	stored.ConsentGivenBy = &decidedBy
	stored.DataAnonymized = anonymize
	return nil
}

type fakeConsentRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*repository.ConsentRequest
}

func newFakeConsentRequestRepo() *fakeConsentRequestRepo {
	return &fakeConsentRequestRepo{requests: make(map[string]*repository.ConsentRequest)}
}

func (r *fakeConsentRequestRepo) Create(_ context.Context, request *repository.ConsentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.CreatedAt = time.Now()
	copied := *request
	r.requests[request.ID] = &copied
	return nil
}

func (r *fakeConsentRequestRepo) GetPendingByTicket(_ context.Context, ticketID string) (*repository.ConsentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, request := range r.requests {
		if request.TicketID == ticketID && request.Status == repository.ConsentRequestPending {
			copied := *request
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeConsentRequestRepo) Resolve(_ context.Context, id string, status repository.ConsentRequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[id]
	if !ok || stored.Status != repository.ConsentRequestPending {
		return pgx.ErrNoRows
	}
	stored.Status = status
	now := time.Now()
	stored.ResolvedAt = &now
	return nil
}

type fakeActivityRepo struct {
	mu      sync.Mutex
	entries []domain.ActivityEntry
}

func (r *fakeActivityRepo) Create(_ context.Context, entry *domain.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeActivityRepo) ListByResource(_ context.Context, resourceType, resourceID string, _ int) ([]domain.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.ActivityEntry
	for _, entry := range r.entries {
		if entry.ResourceType == resourceType && entry.ResourceID != nil && *entry.ResourceID == resourceID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *fakeActivityRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Action)
	}
	return out
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, event := range d.events {
		out = append(out, event.Type)
	}
	return out
}

// scriptedModel replays canned replies in order. An entry may carry an
// error instead of a result.
type scriptedModel struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   []llm.Request
}

type scriptedReply struct {
	result *llm.Result
	err    error
}

func (m *scriptedModel) Provider() string { return "scripted" }

func (m *scriptedModel) Complete(_ context.Context, req llm.Request) (*llm.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if len(m.replies) == 0 {
		return nil, &llm.MalformedOutputError{Detail: "no scripted reply"}
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	if reply.err != nil {
		return nil, reply.err
	}
	return reply.result, nil
}

func proposalReply(actionType domain.ActionType, data, confidence string) scriptedReply {
	input := `{"action_type":"` + string(actionType) + `","action_data":` + data +
		`,"confidence_score":` + confidence + `,"reasoning":"scripted"}`
	return scriptedReply{result: &llm.Result{
		ToolName:  "propose_action",
		ToolInput: []byte(input),
	}}
}
