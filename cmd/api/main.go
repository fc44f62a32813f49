package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/llm"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	model, err := buildModelClient(cfg.AI)
	if err != nil {
		logger.Fatal("failed to init model client", zap.Error(err))
	}
	logger.Info("model provider selected", zap.String("provider", model.Provider()))

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	actionRepo := repository.NewAgentActionRepository(pool)
	classificationRepo := repository.NewPIIClassificationRepository(pool)
	learningRepo := repository.NewLearningFeedbackRepository(pool)
	consentRepo := repository.NewConsentRequestRepository(pool)
	activityRepo := repository.NewActivityLogRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	settingsRepo := repository.NewCachedOrganizationSettingsRepository(
		repository.NewOrganizationSettingsRepository(pool), redis.Client, logger)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	auditService := service.NewAuditService(activityRepo, logger)
	classificationService := service.NewClassificationService(classificationRepo, settingsRepo, dispatcher, logger)
	consentService := service.NewConsentService(classificationRepo, settingsRepo, consentRepo, auditService, dispatcher, logger)
	executorService := service.NewExecutorService(ticketRepo, messageRepo, actionRepo, auditService, dispatcher, logger)
	pipelineService := service.NewPipelineService(service.PipelineDependencies{
		TicketRepo:         ticketRepo,
		MessageRepo:        messageRepo,
		ActionRepo:         actionRepo,
		SettingsRepo:       settingsRepo,
		LearningRepo:       learningRepo,
		ClassificationRepo: classificationRepo,
		Consent:            consentService,
		Executor:           executorService,
		Model:              model,
		Dispatcher:         dispatcher,
		Metrics:            metrics,
		Logger:             logger,
	})
	feedbackService := service.NewFeedbackService(actionRepo, ticketRepo, learningRepo, executorService, auditService, dispatcher, logger)
	sentimentService := service.NewSentimentService(ticketRepo, messageRepo, settingsRepo, classificationRepo, consentService, model, logger)
	ticketService := service.NewTicketService(ticketRepo, messageRepo, classificationService, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(agentRepo, tokenManager, logger)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, agentRepo)

	worker.StartAuditWorker(dispatcher, auditService)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Agents:         handlers.NewAgentsHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AI:             handlers.NewAIHandler(ticketService, classificationService, pipelineService, consentService, feedbackService, sentimentService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func buildModelClient(cfg config.AIConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.RequestTimeout(),
		})
	default:
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.AnthropicModel,
			BaseURL:   cfg.AnthropicBaseURL,
			Timeout:   cfg.RequestTimeout(),
			MaxTokens: cfg.MaxTokens,
		})
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
