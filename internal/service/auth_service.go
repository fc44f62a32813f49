package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// AuthService authenticates support agents and issues tokens.
type AuthService struct {
	agents repository.AgentRepository
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(agents repository.AgentRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	return &AuthService{agents: agents, tokens: tokens, logger: logger}
}

// LoginAgent verifies credentials and returns the agent with a signed
// token. Unknown email and wrong password are indistinguishable to the
// caller.
func (s *AuthService) LoginAgent(ctx context.Context, email, password string) (*domain.Agent, string, time.Time, error) {
	agent, err := s.agents.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if !agent.Active {
		return nil, "", time.Time{}, apperrors.NewForbidden("agent deactivated")
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(agent)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	s.logger.Info("agent logged in", zap.String("agent_id", agent.ID))
	return agent, token, expiresAt, nil
}
