package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// PIIClassificationRepository keeps exactly one classification row per
// ticket. Upsert re-runs overwrite the prior classification.
type PIIClassificationRepository interface {
	Upsert(ctx context.Context, classification *domain.PIIClassification) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.PIIClassification, error)
	RecordConsent(ctx context.Context, ticketID, decidedBy string, anonymize bool) error
}

type piiClassificationRepository struct {
	pool *pgxpool.Pool
}

// NewPIIClassificationRepository builds repository.
func NewPIIClassificationRepository(pool *pgxpool.Pool) PIIClassificationRepository {
	return &piiClassificationRepository{pool: pool}
}

func (r *piiClassificationRepository) Upsert(ctx context.Context, c *domain.PIIClassification) error {
	const query = `
        INSERT INTO pii_classifications
            (ticket_id, organization_id, contains_pii, pii_types, sensitivity_level, gdpr_relevant, last_analyzed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (ticket_id) DO UPDATE SET
            contains_pii=EXCLUDED.contains_pii,
            pii_types=EXCLUDED.pii_types,
            sensitivity_level=EXCLUDED.sensitivity_level,
            gdpr_relevant=EXCLUDED.gdpr_relevant,
            last_analyzed_at=EXCLUDED.last_analyzed_at`
	types := make([]string, len(c.PIITypes))
	for i, t := range c.PIITypes {
		types[i] = string(t)
	}
	_, err := r.pool.Exec(ctx, query,
		c.TicketID,
		c.OrganizationID,
		c.ContainsPII,
		types,
		c.SensitivityLevel,
		c.GDPRRelevant,
		c.LastAnalyzedAt,
	)
	return err
}

func (r *piiClassificationRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.PIIClassification, error) {
	const query = `
        SELECT ticket_id, organization_id, contains_pii, pii_types, sensitivity_level, gdpr_relevant,
               ai_usage_consent, consent_given_at, consent_given_by, data_anonymized, last_analyzed_at
        FROM pii_classifications WHERE ticket_id=$1`
	var (
		c     domain.PIIClassification
		types []string
	)
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&c.TicketID,
		&c.OrganizationID,
		&c.ContainsPII,
		&types,
		&c.SensitivityLevel,
		&c.GDPRRelevant,
		&c.AIUsageConsent,
		&c.ConsentGivenAt,
		&c.ConsentGivenBy,
		&c.DataAnonymized,
		&c.LastAnalyzedAt,
	); err != nil {
		return nil, err
	}
	c.PIITypes = make([]domain.PIICategory, len(types))
	for i, t := range types {
		c.PIITypes[i] = domain.PIICategory(t)
	}
	return &c, nil
}

// RecordConsent marks consent as granted with the chosen anonymization
// preference. The choice is sticky per ticket.
func (r *piiClassificationRepository) RecordConsent(ctx context.Context, ticketID, decidedBy string, anonymize bool) error {
	const query = `
        UPDATE pii_classifications
        SET ai_usage_consent=TRUE, consent_given_at=$1, consent_given_by=$2, data_anonymized=$3
        WHERE ticket_id=$4`
	cmd, err := r.pool.Exec(ctx, query, time.Now(), decidedBy, anonymize, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
