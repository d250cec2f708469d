package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

// GenerateCSV creates a CSV report
func GenerateCSV(report *Report, writer io.Writer) error {
	w := csv.NewWriter(writer)

	header := []string{
		"App UID",
		"Check Type",
		"Result",
		"Status",
		"Score",
		"Latency (ms)",
		"Checked At",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, c := range report.Checks {
		row := []string{
			c.AppUID,
			c.CheckType,
			c.Result,
			string(c.Status),
			fmt.Sprintf("%.2f", c.Score),
			fmt.Sprintf("%.1f", c.LatencyMS),
			c.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	s := report.Summary
	rows := [][]string{
		{},
		{"SUMMARY"},
		{"Total Entities", fmt.Sprintf("%d", s.TotalEntities)},
		{"Healthy", fmt.Sprintf("%d", s.HealthyCount)},
		{"Degraded", fmt.Sprintf("%d", s.DegradedCount)},
		{"Unhealthy", fmt.Sprintf("%d", s.UnhealthyCount)},
		{"Unknown", fmt.Sprintf("%d", s.UnknownCount)},
		{"Average Score", fmt.Sprintf("%.2f", s.AverageScore)},
		{"Health Percentage", fmt.Sprintf("%.2f%%", s.HealthPercentage())},
	}

	if len(report.Proposals) > 0 {
		rows = append(rows,
			[]string{},
			[]string{"PROPOSALS"},
			[]string{"ID", "App UID", "Type", "State", "Risk Score", "Risk"},
		)
		for _, p := range report.Proposals {
			rows = append(rows, []string{
				fmt.Sprintf("%d", p.ID),
				p.AppUID,
				string(p.ProposalType),
				string(p.State),
				fmt.Sprintf("%.2f", p.RiskScore),
				string(p.RiskLevel()),
			})
		}

		rows = append(rows,
			[]string{},
			[]string{"RISK BREAKDOWN"},
			[]string{"Risk", "Proposals", "Pending", "Avg Risk Score"},
		)
		for _, level := range riskOrder {
			stat, ok := report.RiskStats[level]
			if !ok {
				continue
			}
			rows = append(rows, []string{
				string(level),
				fmt.Sprintf("%d", stat.Count),
				fmt.Sprintf("%d", stat.Pending),
				fmt.Sprintf("%.2f", stat.AvgRiskScore),
			})
		}
	}

	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV summary: %w", err)
	}
	return nil
}
