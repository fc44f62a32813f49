package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// AIHandler exposes the AI subsystem: classification, the pipeline,
// consent decisions, action review and sentiment.
type AIHandler struct {
	tickets        *service.TicketService
	classification *service.ClassificationService
	pipeline       *service.PipelineService
	consent        *service.ConsentService
	feedback       *service.FeedbackService
	sentiment      *service.SentimentService
}

// NewAIHandler constructs handler.
func NewAIHandler(
	tickets *service.TicketService,
	classification *service.ClassificationService,
	pipeline *service.PipelineService,
	consent *service.ConsentService,
	feedback *service.FeedbackService,
	sentiment *service.SentimentService,
) *AIHandler {
	return &AIHandler{
		tickets:        tickets,
		classification: classification,
		pipeline:       pipeline,
		consent:        consent,
		feedback:       feedback,
		sentiment:      sentiment,
	}
}

// Classify POST /tickets/:id/ai/classify.
func (h *AIHandler) Classify(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	ticket, messages, err := h.tickets.GetTicket(c.Context(), principal.OrganizationID, c.Params("id"))
	if err != nil {
		return err
	}

	text := ticket.Title + "\n" + ticket.Description + "\n" +
		ticket.CustomerName + "\n" + ticket.CustomerEmail + "\n" + ticket.CustomerPhone
	for _, msg := range messages {
		text += "\n" + msg.Content
	}
	result, err := h.classification.ClassifyAndStore(c.Context(), ticket.ID, text, principal.OrganizationID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ClassificationResponse{
		ContainsPII:      result.ContainsPII,
		PIITypes:         result.PIITypes,
		SensitivityLevel: result.SensitivityLevel,
		GDPRRelevant:     result.GDPRRelevant,
	}})
}

// RunPipeline POST /tickets/:id/ai/pipeline.
func (h *AIHandler) RunPipeline(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	ticket, _, err := h.tickets.GetTicket(c.Context(), principal.OrganizationID, c.Params("id"))
	if err != nil {
		return err
	}

	result, err := h.pipeline.Run(c.Context(), ticket.ID, principal.Agent.ID)
	if err != nil {
		return mapModelError(err)
	}
	status := http.StatusOK
	if result.ConsentPending {
		status = http.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{"data": pipelineResponse(result)})
}

// SubmitConsent POST /tickets/:id/ai/consent.
func (h *AIHandler) SubmitConsent(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	ticket, _, err := h.tickets.GetTicket(c.Context(), principal.OrganizationID, c.Params("id"))
	if err != nil {
		return err
	}
	var req dto.ConsentDecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.consent.SubmitDecision(c.Context(), ticket.ID, principal.Agent, service.ConsentDecision(req.Decision)); err != nil {
		return mapModelError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ticket_id": ticket.ID, "decision": req.Decision}})
}

// AnalyzeSentiment POST /tickets/:id/ai/sentiment.
func (h *AIHandler) AnalyzeSentiment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	ticket, _, err := h.tickets.GetTicket(c.Context(), principal.OrganizationID, c.Params("id"))
	if err != nil {
		return err
	}

	result, err := h.sentiment.Analyze(c.Context(), ticket.ID, principal.Agent.ID)
	if err != nil {
		return mapModelError(err)
	}
	status := http.StatusOK
	if result.ConsentPending {
		status = http.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.SentimentResponse{
		TicketID:         result.TicketID,
		Sentiment:        result.Sentiment,
		Score:            result.Score,
		EscalationRisk:   result.EscalationRisk,
		Summary:          result.Summary,
		ConsentPending:   result.ConsentPending,
		ConsentRequestID: result.ConsentRequestID,
	}})
}

// ListActions GET /tickets/:id/ai/actions.
func (h *AIHandler) ListActions(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	actions, err := h.feedback.ListActions(c.Context(), principal.OrganizationID, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AgentActionResponse, 0, len(actions))
	for i := range actions {
		items = append(items, actionResponse(&actions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// SubmitFeedback POST /ai/actions/:id/feedback.
func (h *AIHandler) SubmitFeedback(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	record, err := h.feedback.Record(c.Context(), c.Params("id"), principal.Agent, req.FeedbackType, req.Notes)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FeedbackResponse{
		ID:           record.ID,
		ActionID:     record.ActionID,
		FeedbackType: record.FeedbackType,
		Notes:        record.FeedbackNotes,
		CreatedAt:    record.CreatedAt,
	}})
}

// ExecuteAction POST /ai/actions/:id/execute.
func (h *AIHandler) ExecuteAction(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	action, err := h.feedback.ExecuteApproved(c.Context(), c.Params("id"), principal.Agent)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": actionResponse(action)})
}

func pipelineResponse(result *service.PipelineResult) dto.PipelineResponse {
	resp := dto.PipelineResponse{
		TicketID:         result.TicketID,
		FinalConfidence:  result.FinalConfidence,
		AutoExecuted:     result.AutoExecuted,
		ConsentPending:   result.ConsentPending,
		ConsentRequestID: result.ConsentRequestID,
	}
	if !result.ConsentPending {
		resp.AIStatus = result.AIStatus
	}
	if result.Triage != nil {
		r := actionResponse(result.Triage)
		resp.Triage = &r
	}
	if result.Resolution != nil {
		r := actionResponse(result.Resolution)
		resp.Resolution = &r
	}
	if result.Quality != nil {
		r := actionResponse(result.Quality)
		resp.Quality = &r
	}
	return resp
}

func actionResponse(action *domain.AgentAction) dto.AgentActionResponse {
	payload, _ := domain.EncodeActionData(action.ActionData)
	return dto.AgentActionResponse{
		ID:              action.ID,
		TicketID:        action.TicketID,
		AgentType:       action.AgentType,
		ActionType:      action.ActionType,
		ActionData:      payload,
		ConfidenceScore: action.ConfidenceScore,
		Status:          action.Status,
		Reasoning:       action.Reasoning,
		CreatedAt:       action.CreatedAt,
		ExecutedAt:      action.ExecutedAt,
	}
}

// mapModelError translates provider failures into the HTTP error
// taxonomy; everything else passes through untouched.
func mapModelError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, llm.ErrRateLimited):
		return apperrors.NewAIRateLimited()
	case errors.Is(err, llm.ErrPaymentRequired):
		return apperrors.NewAIPaymentRequired()
	case llm.IsMalformedOutput(err):
		return apperrors.NewDomainError("AI_MALFORMED_OUTPUT", "model returned unusable output", http.StatusBadGateway, nil)
	}
	return err
}
