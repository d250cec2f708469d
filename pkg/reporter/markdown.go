package reporter

import (
	"fmt"
	"io"
	"strings"
)

// GenerateMarkdown creates a Markdown report
func GenerateMarkdown(report *Report, writer io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Matrix System Health Report\n\n")
	fmt.Fprintf(&b, "- **Source**: %s\n", orDash(report.Source))
	fmt.Fprintf(&b, "- **Target**: %s\n", orDash(report.Target))
	fmt.Fprintf(&b, "- **Generated**: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	s := report.Summary
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total entities | %d |\n", s.TotalEntities)
	fmt.Fprintf(&b, "| Healthy | %d |\n", s.HealthyCount)
	fmt.Fprintf(&b, "| Degraded | %d |\n", s.DegradedCount)
	fmt.Fprintf(&b, "| Unhealthy | %d |\n", s.UnhealthyCount)
	fmt.Fprintf(&b, "| Unknown | %d |\n", s.UnknownCount)
	fmt.Fprintf(&b, "| Average score | %.2f |\n", s.AverageScore)
	fmt.Fprintf(&b, "| Health percentage | %.2f%% |\n\n", s.HealthPercentage())

	if len(report.CheckTypeStats) > 0 {
		b.WriteString("## By Check Type\n\n")
		b.WriteString("| Check type | Checks | Healthy | Avg score | Health rate |\n|---|---|---|---|---|\n")
		for _, stat := range report.sortedCheckTypes() {
			fmt.Fprintf(&b, "| %s | %d | %d | %.2f | %.2f%% |\n",
				stat.CheckType, stat.Count, stat.Healthy, stat.AvgScore, stat.HealthRate)
		}
		b.WriteString("\n")
	}

	if len(report.Checks) > 0 {
		b.WriteString("## Checks\n\n")
		b.WriteString("| App | Type | Result | Status | Score | Latency (ms) |\n|---|---|---|---|---|---|\n")
		for _, c := range report.Checks {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %.2f | %.1f |\n",
				escape(c.AppUID), c.CheckType, c.Result, c.Status, c.Score, c.LatencyMS)
		}
		b.WriteString("\n")
	}

	if len(report.Proposals) > 0 {
		fmt.Fprintf(&b, "## Proposals (%d pending)\n\n", report.PendingCount)
		b.WriteString("| Risk | Proposals | Pending | Avg risk score |\n|---|---|---|---|\n")
		for _, level := range riskOrder {
			if stat, ok := report.RiskStats[level]; ok {
				fmt.Fprintf(&b, "| %s | %d | %d | %.2f |\n", level, stat.Count, stat.Pending, stat.AvgRiskScore)
			}
		}
		b.WriteString("\n| ID | App | Type | State | Risk score | Rationale |\n|---|---|---|---|---|---|\n")
		for _, p := range report.Proposals {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %.2f (%s) | %s |\n",
				p.ID, escape(p.AppUID), p.ProposalType, p.State, p.RiskScore, p.RiskLevel(), escape(p.Rationale))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(writer, b.String())
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// escape keeps table cells on one line and out of the column separators.
func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
