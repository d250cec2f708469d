package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agent-matrix/matrix-system/pkg/client"
	"github.com/agent-matrix/matrix-system/pkg/models"
)

func (a *app) proposalsCmd() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "List remediation proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.services()
			if err != nil {
				return err
			}
			proposals, err := set.Hub.ListProposals(cmd.Context(), models.ProposalState(state))
			if err != nil {
				return err
			}
			return a.out.DisplayProposals(proposals)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Only proposals in this state (e.g. pending)")
	return cmd
}

func (a *app) proposalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proposal <id>",
		Short: "Show a single proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			set, err := a.services()
			if err != nil {
				return err
			}
			proposal, err := set.Hub.GetProposal(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.out.DisplayProposal(proposal)
		},
	}
}

var decideShort = map[string]string{
	"approve": "Approve a pending proposal",
	"reject":  "Reject a pending proposal",
}

// decideCmd builds the approve and reject commands.
func (a *app) decideCmd(action string) *cobra.Command {
	var actor, reason string

	cmd := &cobra.Command{
		Use:   action + " <id>",
		Short: decideShort[action],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			set, err := a.services()
			if err != nil {
				return err
			}

			req := client.DecisionRequest{Actor: actor, Reason: reason}
			var result *client.DecisionResult
			switch models.DecisionAction(action) {
			case models.ActionApprove:
				result, err = set.Hub.ApproveProposal(cmd.Context(), id, req)
			default:
				result, err = set.Hub.RejectProposal(cmd.Context(), id, req)
			}
			if err != nil {
				return err
			}

			decision := &models.Decision{
				ID:         uuid.NewString(),
				ProposalID: id,
				Action:     models.DecisionAction(action),
				Actor:      actor,
				Reason:     reason,
				Outcome:    result.Outcome,
				DecidedAt:  time.Now().UTC(),
			}
			if result.Proposal != nil {
				decision.AppUID = result.Proposal.AppUID
				decision.FinalState = result.Proposal.State
			}

			a.recordDecision(cmd, decision)
			return a.out.DisplayDecision(decision)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", defaultActor(), "Operator recorded as the decision maker")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the decision")
	return cmd
}

// recordDecision stores the decision locally when storage is enabled. The
// server side transition already happened, so failures only warn.
func (a *app) recordDecision(cmd *cobra.Command, decision *models.Decision) {
	if !a.cfg.StorageEnabled {
		return
	}
	store, err := a.openStore()
	if err == nil {
		err = store.LogDecision(cmd.Context(), decision)
	}
	if err != nil {
		a.log.WithError(err).WithField("proposal_id", decision.ProposalID).Warn("failed to record decision")
	}
}

func (a *app) planCmd() *cobra.Command {
	var appUID, goal string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Ask Matrix-AI for a remediation plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.services()
			if err != nil {
				return err
			}
			plan, err := set.AI.Plan(cmd.Context(), client.PlanRequest{AppUID: appUID, Goal: goal})
			if err != nil {
				return err
			}
			return a.out.DisplayPlan(plan)
		},
	}

	cmd.Flags().StringVar(&appUID, "app", "", "App UID to plan for")
	cmd.Flags().StringVar(&goal, "goal", "", "What the plan should achieve")
	_ = cmd.MarkFlagRequired("app")
	return cmd
}

func (a *app) decisionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decisions <proposal-id>",
		Short: "Show locally recorded decisions for a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			decisions, err := store.ListDecisions(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.out.DisplayDecisions(decisions)
		},
	}
}

func parseProposalID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid proposal id %q: must be a positive integer", s)
	}
	return id, nil
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

