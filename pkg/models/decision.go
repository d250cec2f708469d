package models

import "time"

// DecisionAction is the operator action taken on a proposal
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// DecisionOutcome reports what the server did with a decision
type DecisionOutcome string

const (
	// OutcomeApplied means the server accepted the transition
	OutcomeApplied DecisionOutcome = "APPLIED"
	// OutcomeAlreadyDecided means the proposal had already left the pending state
	OutcomeAlreadyDecided DecisionOutcome = "ALREADY_DECIDED"
)

// Decision records an approve/reject issued through this client
type Decision struct {
	ID         string
	ProposalID int64
	AppUID     string
	Action     DecisionAction
	Actor      string
	Reason     string
	Outcome    DecisionOutcome
	FinalState ProposalState
	DecidedAt  time.Time
}
