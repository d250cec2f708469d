package models

import (
	"time"

	"github.com/agent-matrix/matrix-system/pkg/validation"
)

// ProposalState is the review state of a proposal, owned by the server
type ProposalState string

const (
	ProposalPending   ProposalState = "pending"
	ProposalApproved  ProposalState = "approved"
	ProposalRejected  ProposalState = "rejected"
	ProposalExecuting ProposalState = "executing"
	ProposalCompleted ProposalState = "completed"
	ProposalFailed    ProposalState = "failed"
	ProposalCancelled ProposalState = "cancelled"
)

func (s ProposalState) IsKnown() bool {
	switch s {
	case ProposalPending, ProposalApproved, ProposalRejected, ProposalExecuting,
		ProposalCompleted, ProposalFailed, ProposalCancelled:
		return true
	}
	return false
}

// ProposalType represents the kind of remediation proposed
type ProposalType string

const (
	ProposalLKGPin          ProposalType = "lkg_pin"
	ProposalVersionRollback ProposalType = "version_rollback"
	ProposalCacheWarmup     ProposalType = "cache_warmup"
	ProposalMetadataFix     ProposalType = "metadata_fix"
	ProposalBundleMirror    ProposalType = "bundle_mirror"
	ProposalScale           ProposalType = "scale"
	ProposalCustom          ProposalType = "custom"
)

func (t ProposalType) IsKnown() bool {
	switch t {
	case ProposalLKGPin, ProposalVersionRollback, ProposalCacheWarmup, ProposalMetadataFix,
		ProposalBundleMirror, ProposalScale, ProposalCustom:
		return true
	}
	return false
}

// RiskLevel represents the risk of applying a proposal
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Risk score boundaries. Scores below LowRiskThreshold are low, scores above
// HighRiskThreshold are high, everything in between is medium.
const (
	LowRiskThreshold  = 30.0
	HighRiskThreshold = 70.0
)

// RiskLevelFor classifies a 0..100 risk score.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score < LowRiskThreshold:
		return RiskLow
	case score > HighRiskThreshold:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// DefaultProposer is recorded when a proposal does not name its author
const DefaultProposer = "matrix-ai"

// Proposal is an AI generated remediation awaiting review
type Proposal struct {
	ID           int64                  `json:"id,omitempty"`
	AppUID       string                 `json:"app_uid" validate:"required,max=255"`
	ProposalType ProposalType           `json:"proposal_type" validate:"required"`
	State        ProposalState          `json:"state"`
	Diff         map[string]interface{} `json:"diff"`
	Rationale    string                 `json:"rationale" validate:"required"`
	RiskScore    float64                `json:"risk_score" validate:"percent"`
	ProposedBy   string                 `json:"proposed_by" validate:"max=255"`
	ApprovedBy   string                 `json:"approved_by,omitempty" validate:"max=255"`
	RejectedBy   string                 `json:"rejected_by,omitempty" validate:"max=255"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	ExecutedAt   *time.Time             `json:"executed_at,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewProposal fills in defaults and validates p.
func NewProposal(p Proposal) (*Proposal, error) {
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetDefaults fills the fields the server may omit: state pending, proposer
// "matrix-ai", an empty diff and creation timestamps.
func (p *Proposal) SetDefaults() {
	if p.State == "" {
		p.State = ProposalPending
	}
	if p.ProposedBy == "" {
		p.ProposedBy = DefaultProposer
	}
	if p.Diff == nil {
		p.Diff = map[string]interface{}{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
}

func (p Proposal) Validate() error {
	return validation.Struct("proposal", p)
}

func (p Proposal) RiskLevel() RiskLevel {
	return RiskLevelFor(p.RiskScore)
}

func (p Proposal) IsLowRisk() bool {
	return p.RiskLevel() == RiskLow
}

func (p Proposal) IsHighRisk() bool {
	return p.RiskLevel() == RiskHigh
}

func (p Proposal) IsPending() bool   { return p.State == ProposalPending }
func (p Proposal) IsApproved() bool  { return p.State == ProposalApproved }
func (p Proposal) IsRejected() bool  { return p.State == ProposalRejected }
func (p Proposal) IsCompleted() bool { return p.State == ProposalCompleted }

// IsTerminal reports whether no further transition is expected.
func (p Proposal) IsTerminal() bool {
	switch p.State {
	case ProposalRejected, ProposalCompleted, ProposalFailed, ProposalCancelled:
		return true
	}
	return false
}
