package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

const timeLayout = "2006-01-02 15:04:05"

// TableHandler renders aligned, colored tables for terminals
type TableHandler struct {
	out     io.Writer
	noColor bool
}

func NewTableHandler(out io.Writer) *TableHandler {
	return &TableHandler{out: out, noColor: color.NoColor}
}

// WithoutColor disables ANSI colors regardless of the terminal.
func (h *TableHandler) WithoutColor() *TableHandler {
	h.noColor = true
	return h
}

func (h *TableHandler) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if h.noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.Sprint(s)
}

func (h *TableHandler) newTable() *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	return table
}

func (h *TableHandler) print(table *uitable.Table) error {
	_, err := fmt.Fprintln(h.out, table)
	return err
}

func (h *TableHandler) status(s models.HealthStatus) string {
	switch s {
	case models.HealthHealthy:
		return h.paint(color.FgGreen, string(s))
	case models.HealthDegraded:
		return h.paint(color.FgYellow, string(s))
	case models.HealthUnhealthy:
		return h.paint(color.FgRed, string(s))
	default:
		return h.paint(color.FgHiBlack, orDash(string(s)))
	}
}

func (h *TableHandler) risk(level models.RiskLevel) string {
	switch level {
	case models.RiskLow:
		return h.paint(color.FgGreen, string(level))
	case models.RiskMedium:
		return h.paint(color.FgYellow, string(level))
	default:
		return h.paint(color.FgRed, string(level))
	}
}

// DisplayHealth prints a health payload as key/value rows. The payload is
// shown as received.
func (h *TableHandler) DisplayHealth(service string, payload map[string]interface{}) error {
	status := fmt.Sprint(payload["status"])
	attr := color.FgGreen
	switch strings.ToLower(status) {
	case "healthy", "ok", "online", "up":
	case "degraded", "warning":
		attr = color.FgYellow
	default:
		attr = color.FgRed
	}
	fmt.Fprintf(h.out, "%s %s\n", h.paint(color.Bold, service), h.paint(attr, status))
	return h.DisplayMap("", payload)
}

func (h *TableHandler) DisplayChecks(checks []models.HealthCheck) error {
	table := h.newTable()
	table.AddRow("APP", "TYPE", "RESULT", "STATUS", "SCORE", "LATENCY(ms)")
	for _, c := range checks {
		table.AddRow(c.AppUID, c.CheckType, c.Result, h.status(c.Status),
			fmt.Sprintf("%.2f", c.Score), fmt.Sprintf("%.1f", c.LatencyMS))
	}
	if err := h.print(table); err != nil {
		return err
	}

	s := models.Summarize(checks)
	fmt.Fprintf(h.out, "\n%d entities: %s healthy, %s degraded, %s unhealthy, %d unknown (%.2f%% healthy, avg score %.2f)\n",
		s.TotalEntities,
		h.paint(color.FgGreen, fmt.Sprint(s.HealthyCount)),
		h.paint(color.FgYellow, fmt.Sprint(s.DegradedCount)),
		h.paint(color.FgRed, fmt.Sprint(s.UnhealthyCount)),
		s.UnknownCount, s.HealthPercentage(), s.AverageScore)
	return nil
}

func (h *TableHandler) DisplayServices(services []models.Service) error {
	table := h.newTable()
	table.AddRow("ID", "NAME", "VERSION", "STATUS", "LATENCY(ms)", "UPTIME")
	for _, s := range services {
		table.AddRow(s.ID, s.Name, orDash(s.Version), h.status(s.HealthStatus()), s.Latency, orDash(s.Uptime))
	}
	return h.print(table)
}

func (h *TableHandler) DisplayProposals(proposals []models.Proposal) error {
	if len(proposals) == 0 {
		_, err := fmt.Fprintln(h.out, "No proposals found")
		return err
	}
	table := h.newTable()
	table.AddRow("ID", "APP", "TYPE", "STATE", "RISK", "SCORE", "CREATED")
	for _, p := range proposals {
		table.AddRow(p.ID, p.AppUID, p.ProposalType, p.State, h.risk(p.RiskLevel()),
			fmt.Sprintf("%.2f", p.RiskScore), formatTime(p.CreatedAt.IsZero(), p.CreatedAt.Format(timeLayout)))
	}
	return h.print(table)
}

func (h *TableHandler) DisplayProposal(p *models.Proposal) error {
	table := h.newTable()
	table.AddRow("ID:", p.ID)
	table.AddRow("App:", p.AppUID)
	table.AddRow("Type:", p.ProposalType)
	table.AddRow("State:", p.State)
	table.AddRow("Risk:", fmt.Sprintf("%s (%.2f)", h.risk(p.RiskLevel()), p.RiskScore))
	table.AddRow("Proposed by:", orDash(p.ProposedBy))
	if p.ApprovedBy != "" {
		table.AddRow("Approved by:", p.ApprovedBy)
	}
	if p.RejectedBy != "" {
		table.AddRow("Rejected by:", p.RejectedBy)
	}
	table.AddRow("Rationale:", p.Rationale)
	if len(p.Diff) > 0 {
		diff, err := json.MarshalIndent(p.Diff, "", "  ")
		if err != nil {
			return err
		}
		table.AddRow("Diff:", string(diff))
	}
	return h.print(table)
}

func (h *TableHandler) DisplayDecision(d *models.Decision) error {
	var msg string
	switch d.Outcome {
	case models.OutcomeAlreadyDecided:
		msg = h.paint(color.FgYellow, fmt.Sprintf("Proposal %d was already decided (state: %s)", d.ProposalID, d.FinalState))
	default:
		msg = h.paint(color.FgGreen, fmt.Sprintf("Proposal %d: %s applied (state: %s)", d.ProposalID, d.Action, d.FinalState))
	}
	_, err := fmt.Fprintln(h.out, msg)
	return err
}

func (h *TableHandler) DisplayDecisions(decisions []*models.Decision) error {
	table := h.newTable()
	table.AddRow("DECIDED", "ACTION", "ACTOR", "OUTCOME", "STATE", "REASON")
	for _, d := range decisions {
		table.AddRow(d.DecidedAt.Format(timeLayout), d.Action, d.Actor, d.Outcome, d.FinalState, orDash(d.Reason))
	}
	return h.print(table)
}

func (h *TableHandler) DisplayEvents(events []models.Event) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(h.out, "No events found")
		return err
	}
	table := h.newTable()
	table.AddRow("TIME", "TYPE", "APP", "ACTOR")
	for _, e := range events {
		eventType := string(e.EventType)
		switch {
		case e.IsCritical():
			eventType = h.paint(color.FgRed, eventType)
		case e.IsSuccess():
			eventType = h.paint(color.FgGreen, eventType)
		}
		table.AddRow(formatTime(e.Timestamp.IsZero(), e.Timestamp.Format(timeLayout)), eventType, orDash(e.AppUID), e.Actor)
	}
	return h.print(table)
}

func (h *TableHandler) DisplayPlan(plan *models.Plan) error {
	table := h.newTable()
	table.AddRow("Summary:", plan.Summary)
	table.AddRow("Risk:", fmt.Sprintf("%s (%.2f)", h.risk(plan.RiskLevel()), plan.RiskScore))
	table.AddRow("Estimated time:", orDash(plan.EstimatedTime))
	for i, step := range plan.Steps {
		data, err := json.Marshal(step)
		if err != nil {
			return err
		}
		table.AddRow(fmt.Sprintf("Step %d:", i+1), string(data))
	}
	return h.print(table)
}

// DisplayMap prints values sorted by key. Nested values are shown as JSON.
func (h *TableHandler) DisplayMap(title string, values map[string]interface{}) error {
	if title != "" {
		fmt.Fprintln(h.out, h.paint(color.Bold, title))
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := h.newTable()
	for _, k := range keys {
		v := values[k]
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			v = string(data)
		}
		table.AddRow(k+":", v)
	}
	return h.print(table)
}

func (h *TableHandler) Format() string {
	return FormatText
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(zero bool, formatted string) string {
	if zero {
		return "-"
	}
	return formatted
}
