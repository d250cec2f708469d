package models

import "github.com/agent-matrix/matrix-system/pkg/validation"

// Plan is a remediation plan produced by Matrix-AI
type Plan struct {
	Summary       string                   `json:"summary" validate:"required"`
	Steps         []map[string]interface{} `json:"steps"`
	RiskScore     float64                  `json:"risk_score" validate:"percent"`
	EstimatedTime string                   `json:"estimated_time,omitempty"`
}

func (p Plan) Validate() error {
	return validation.Struct("plan", p)
}

// RiskLevel uses the same thresholds as proposals.
func (p Plan) RiskLevel() RiskLevel {
	return RiskLevelFor(p.RiskScore)
}
