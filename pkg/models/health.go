package models

import (
	"math"
	"time"

	"github.com/agent-matrix/matrix-system/pkg/validation"
)

// HealthStatus represents the health of a monitored entity
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// Score boundaries used when a status has to be derived from a score
const (
	HealthyScoreThreshold  = 80.0
	DegradedScoreThreshold = 50.0
)

// IsKnown reports whether the status is one this client understands.
func (s HealthStatus) IsKnown() bool {
	switch s {
	case HealthHealthy, HealthDegraded, HealthUnhealthy, HealthUnknown:
		return true
	}
	return false
}

// StatusForScore maps a 0..100 score onto a status.
func StatusForScore(score float64) HealthStatus {
	switch {
	case score >= HealthyScoreThreshold:
		return HealthHealthy
	case score >= DegradedScoreThreshold:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}

// HealthCheck is the result of one probe against one entity
type HealthCheck struct {
	AppUID      string                 `json:"app_uid" validate:"required,max=255"`
	CheckType   string                 `json:"check_type" validate:"required"`
	Result      string                 `json:"result" validate:"required"`
	Status      HealthStatus           `json:"status"`
	Score       float64                `json:"score" validate:"percent"`
	LatencyMS   float64                `json:"latency_ms" validate:"gte=0"`
	Reasons     map[string]interface{} `json:"reasons,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	LastChecked *time.Time             `json:"last_checked,omitempty"`
}

// NewHealthCheck applies defaults to h, normalizes the score and validates it.
func NewHealthCheck(h HealthCheck) (*HealthCheck, error) {
	h.SetDefaults()
	if err := h.Validate(); err != nil {
		return nil, err
	}
	h.Score = round2(h.Score)
	return &h, nil
}

// SetDefaults marks a check without status as unknown and stamps it with the
// current time.
func (h *HealthCheck) SetDefaults() {
	if h.Status == "" {
		h.Status = HealthUnknown
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now().UTC()
	}
}

// Validate checks field types and ranges.
func (h HealthCheck) Validate() error {
	return validation.Struct("health check", h)
}

func (h HealthCheck) IsHealthy() bool {
	return h.Status == HealthHealthy
}

func (h HealthCheck) IsDegraded() bool {
	return h.Status == HealthDegraded
}

// IsUnhealthy is true for every status that is neither healthy nor degraded,
// including unknown and unrecognized values.
func (h HealthCheck) IsUnhealthy() bool {
	return !h.IsHealthy() && !h.IsDegraded()
}

// HealthSummary aggregates health across a population of entities
type HealthSummary struct {
	TotalEntities  int       `json:"total_entities" validate:"gte=0"`
	HealthyCount   int       `json:"healthy_count" validate:"gte=0"`
	DegradedCount  int       `json:"degraded_count" validate:"gte=0"`
	UnhealthyCount int       `json:"unhealthy_count" validate:"gte=0"`
	UnknownCount   int       `json:"unknown_count" validate:"gte=0"`
	AverageScore   float64   `json:"average_score" validate:"percent"`
	LastUpdated    time.Time `json:"last_updated"`
}

// NewHealthSummary validates s and stamps LastUpdated when missing.
func NewHealthSummary(s HealthSummary) (*HealthSummary, error) {
	if s.LastUpdated.IsZero() {
		s.LastUpdated = time.Now().UTC()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ranges and that the per-status counts add up to the total.
func (s HealthSummary) Validate() error {
	if err := validation.Struct("health summary", s); err != nil {
		return err
	}
	sum := s.HealthyCount + s.DegradedCount + s.UnhealthyCount + s.UnknownCount
	if sum != s.TotalEntities {
		return validation.Fail("health summary", "total_entities",
			"must equal healthy+degraded+unhealthy+unknown counts", s.TotalEntities)
	}
	return nil
}

// HealthPercentage returns the share of healthy entities (0-100).
func (s HealthSummary) HealthPercentage() float64 {
	if s.TotalEntities == 0 {
		return 0
	}
	return round2(float64(s.HealthyCount) / float64(s.TotalEntities) * 100)
}

// Summarize aggregates a set of checks. Each check counts as one entity.
func Summarize(checks []HealthCheck) HealthSummary {
	summary := HealthSummary{
		TotalEntities: len(checks),
		LastUpdated:   time.Now().UTC(),
	}
	if len(checks) == 0 {
		return summary
	}

	var total float64
	for _, c := range checks {
		total += c.Score
		switch c.Status {
		case HealthHealthy:
			summary.HealthyCount++
		case HealthDegraded:
			summary.DegradedCount++
		case HealthUnhealthy:
			summary.UnhealthyCount++
		default:
			summary.UnknownCount++
		}
	}
	summary.AverageScore = round2(total / float64(len(checks)))
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
