package datasource

import (
	"context"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

// HealthSource produces health checks from an observability backend. The
// meaning of target depends on the source: a Prometheus job, a Kubernetes
// namespace.
type HealthSource interface {
	Checks(ctx context.Context, target string) ([]models.HealthCheck, error)
	IsAvailable(ctx context.Context) bool
	Name() string
}
