package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Agents         *handlers.AgentsHandler
	Tickets        *handlers.TicketsHandler
	AI             *handlers.AIHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/agents/login", cfg.Agents.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)

	tickets.Post("/:id/ai/classify", cfg.AI.Classify)
	tickets.Post("/:id/ai/pipeline", cfg.AI.RunPipeline)
	tickets.Post("/:id/ai/consent", cfg.AI.SubmitConsent)
	tickets.Post("/:id/ai/sentiment", cfg.AI.AnalyzeSentiment)
	tickets.Get("/:id/ai/actions", cfg.AI.ListActions)

	actions := app.Group("/ai/actions", cfg.AuthMiddleware.Handle)
	actions.Post("/:id/feedback", cfg.AI.SubmitFeedback)
	actions.Post("/:id/execute", cfg.AI.ExecuteAction)
}
