package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// AuditService is the audit log sink. Write failures are logged, never
// propagated: losing an audit row must not fail the action it describes.
type AuditService struct {
	activity repository.ActivityLogRepository
	logger   *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(activity repository.ActivityLogRepository, logger *zap.Logger) *AuditService {
	return &AuditService{activity: activity, logger: logger}
}

// LogEvent appends one audit entry.
func (s *AuditService) LogEvent(ctx context.Context, organizationID string, actorID *string, action, resourceType string, resourceID *string, details map[string]any, severity domain.ActivitySeverity) {
	if s == nil || s.activity == nil {
		return
	}
	entry := &domain.ActivityEntry{
		OrganizationID: organizationID,
		ActorID:        actorID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Details:        details,
		Severity:       severity,
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.Error(err),
		)
	}
}
