package models

import "github.com/agent-matrix/matrix-system/pkg/validation"

// ServiceStatus as reported by Matrix-Hub
type ServiceStatus string

const (
	ServiceOnline   ServiceStatus = "ONLINE"
	ServiceDegraded ServiceStatus = "DEGRADED"
	ServiceOffline  ServiceStatus = "OFFLINE"
)

// Service is a component registered with Matrix-Hub
type Service struct {
	ID      string        `json:"id" validate:"required"`
	Name    string        `json:"name" validate:"required"`
	Version string        `json:"version,omitempty"`
	Uptime  string        `json:"uptime,omitempty"`
	Status  ServiceStatus `json:"status"`
	Latency int           `json:"latency" validate:"gte=0"`
	Type    string        `json:"type,omitempty"`
}

func (s Service) Validate() error {
	return validation.Struct("service", s)
}

// HealthStatus maps the service status onto the health scale.
func (s Service) HealthStatus() HealthStatus {
	switch s.Status {
	case ServiceOnline:
		return HealthHealthy
	case ServiceDegraded:
		return HealthDegraded
	case ServiceOffline:
		return HealthUnhealthy
	default:
		return HealthUnknown
	}
}
