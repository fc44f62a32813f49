package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

// OrganizationSettingsRepository reads the externally managed per-org AI
// configuration.
type OrganizationSettingsRepository interface {
	GetByOrganization(ctx context.Context, organizationID string) (*domain.OrganizationAISettings, error)
}

type orgSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationSettingsRepository builds the Postgres-backed repository.
func NewOrganizationSettingsRepository(pool *pgxpool.Pool) OrganizationSettingsRepository {
	return &orgSettingsRepository{pool: pool}
}

func (r *orgSettingsRepository) GetByOrganization(ctx context.Context, organizationID string) (*domain.OrganizationAISettings, error) {
	const query = `
        SELECT organization_id, ai_enabled, ai_pii_detection_enabled, ai_sentiment_enabled,
               ai_suggestions_enabled, ai_translation_enabled, ai_summarization_enabled,
               ai_auto_execution_enabled, ai_auto_execution_threshold,
               ai_require_consent_for_pii, ai_auto_anonymize, updated_at
        FROM organization_ai_settings WHERE organization_id=$1`
	var s domain.OrganizationAISettings
	if err := r.pool.QueryRow(ctx, query, organizationID).Scan(
		&s.OrganizationID,
		&s.AIEnabled,
		&s.PIIDetectionEnabled,
		&s.SentimentEnabled,
		&s.SuggestionsEnabled,
		&s.TranslationEnabled,
		&s.SummarizationEnabled,
		&s.AutoExecutionEnabled,
		&s.AutoExecutionThreshold,
		&s.RequireConsentForPII,
		&s.AutoAnonymize,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

const settingsCacheTTL = 30 * time.Second

type cachedOrgSettingsRepository struct {
	inner  OrganizationSettingsRepository
	client *redis.Client
	logger *zap.Logger
}

// NewCachedOrganizationSettingsRepository wraps a settings repository with
// a short-TTL Redis read-through cache. Settings are read on every AI
// invocation, so the cache keeps hot tickets from hammering the table.
func NewCachedOrganizationSettingsRepository(inner OrganizationSettingsRepository, client *redis.Client, logger *zap.Logger) OrganizationSettingsRepository {
	return &cachedOrgSettingsRepository{inner: inner, client: client, logger: logger}
}

func (r *cachedOrgSettingsRepository) GetByOrganization(ctx context.Context, organizationID string) (*domain.OrganizationAISettings, error) {
	key := "ai_settings:" + organizationID

	if r.client != nil {
		if cached, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var s domain.OrganizationAISettings
			if err := json.Unmarshal(cached, &s); err == nil {
				return &s, nil
			}
		}
	}

	settings, err := r.inner.GetByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	if r.client != nil {
		if payload, err := json.Marshal(settings); err == nil {
			if err := r.client.Set(ctx, key, payload, settingsCacheTTL).Err(); err != nil {
				r.logger.Debug("settings cache write failed", zap.Error(err))
			}
		}
	}
	return settings, nil
}
