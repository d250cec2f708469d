package output

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONHandler writes indented JSON documents, one per call
type JSONHandler struct {
	out io.Writer
}

func NewJSONHandler(out io.Writer) *JSONHandler {
	return &JSONHandler{out: out}
}

func (h *JSONHandler) write(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = h.out.Write(data)
	return err
}

func (h *JSONHandler) DisplayHealth(service string, payload map[string]interface{}) error {
	return h.write(map[string]interface{}{"service": service, "health": payload})
}

// DisplayChecks includes the aggregated summary next to the checks.
func (h *JSONHandler) DisplayChecks(checks []models.HealthCheck) error {
	summary := models.Summarize(checks)
	return h.write(map[string]interface{}{
		"summary":           summary,
		"health_percentage": summary.HealthPercentage(),
		"checks":            nonNilChecks(checks),
	})
}

func (h *JSONHandler) DisplayServices(services []models.Service) error {
	if services == nil {
		services = []models.Service{}
	}
	return h.write(services)
}

type proposalView struct {
	models.Proposal
	RiskLevel models.RiskLevel `json:"risk_level"`
}

func (h *JSONHandler) DisplayProposals(proposals []models.Proposal) error {
	views := make([]proposalView, 0, len(proposals))
	for _, p := range proposals {
		views = append(views, proposalView{Proposal: p, RiskLevel: p.RiskLevel()})
	}
	return h.write(views)
}

func (h *JSONHandler) DisplayProposal(p *models.Proposal) error {
	return h.write(proposalView{Proposal: *p, RiskLevel: p.RiskLevel()})
}

type decisionView struct {
	ID         string `json:"id,omitempty"`
	ProposalID int64  `json:"proposal_id"`
	AppUID     string `json:"app_uid,omitempty"`
	Action     string `json:"action"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason,omitempty"`
	Outcome    string `json:"outcome"`
	FinalState string `json:"final_state"`
	DecidedAt  string `json:"decided_at"`
}

func newDecisionView(d *models.Decision) decisionView {
	return decisionView{
		ID:         d.ID,
		ProposalID: d.ProposalID,
		AppUID:     d.AppUID,
		Action:     string(d.Action),
		Actor:      d.Actor,
		Reason:     d.Reason,
		Outcome:    string(d.Outcome),
		FinalState: string(d.FinalState),
		DecidedAt:  d.DecidedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func (h *JSONHandler) DisplayDecision(d *models.Decision) error {
	return h.write(newDecisionView(d))
}

func (h *JSONHandler) DisplayDecisions(decisions []*models.Decision) error {
	views := make([]decisionView, 0, len(decisions))
	for _, d := range decisions {
		views = append(views, newDecisionView(d))
	}
	return h.write(views)
}

type eventView struct {
	models.Event
	Critical bool `json:"critical"`
	Success  bool `json:"success"`
}

func (h *JSONHandler) DisplayEvents(events []models.Event) error {
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{Event: e, Critical: e.IsCritical(), Success: e.IsSuccess()})
	}
	return h.write(views)
}

func (h *JSONHandler) DisplayPlan(plan *models.Plan) error {
	return h.write(map[string]interface{}{"plan": plan, "risk_level": plan.RiskLevel()})
}

func (h *JSONHandler) DisplayMap(title string, values map[string]interface{}) error {
	return h.write(values)
}

func (h *JSONHandler) Format() string {
	return FormatJSON
}

func nonNilChecks(checks []models.HealthCheck) []models.HealthCheck {
	if checks == nil {
		return []models.HealthCheck{}
	}
	return checks
}
