package storage

import (
	"context"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

// Store defines the interface for persistent storage
type Store interface {
	SaveHealthChecks(ctx context.Context, checks []models.HealthCheck) error
	ListHealthChecks(ctx context.Context, appUID string, limit int) ([]models.HealthCheck, error)

	LogDecision(ctx context.Context, decision *models.Decision) error
	ListDecisions(ctx context.Context, proposalID int64) ([]*models.Decision, error)

	Ping(ctx context.Context) error
	Close() error
}

// DefaultHistoryLimit bounds ListHealthChecks when no limit is given
const DefaultHistoryLimit = 50
