package reporter

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

// ReportFormat represents the output format
type ReportFormat string

const (
	FormatMarkdown ReportFormat = "markdown"
	FormatCSV      ReportFormat = "csv"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (ReportFormat, error) {
	switch ReportFormat(s) {
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported report format %q (want csv or markdown)", s)
	}
}

// Report contains all data for generating reports
type Report struct {
	Source         string
	Target         string
	GeneratedAt    time.Time
	Checks         []models.HealthCheck
	Summary        models.HealthSummary
	Proposals      []models.Proposal
	PendingCount   int
	RiskStats      map[models.RiskLevel]*RiskStats
	CheckTypeStats map[string]*CheckTypeStats
}

// RiskStats holds proposal statistics per risk level
type RiskStats struct {
	Level        models.RiskLevel
	Count        int
	Pending      int
	AvgRiskScore float64
}

// CheckTypeStats holds health statistics per check type
type CheckTypeStats struct {
	CheckType  string
	Count      int
	Healthy    int
	AvgScore   float64
	HealthRate float64 // percentage of healthy checks
}

// Reporter generates health and remediation reports
type Reporter struct {
	format ReportFormat
}

// New creates a new reporter
func New(format ReportFormat) *Reporter {
	return &Reporter{
		format: format,
	}
}

func (r *Reporter) Format() ReportFormat {
	return r.format
}

// Generate builds a report from health checks and proposals.
func (r *Reporter) Generate(checks []models.HealthCheck, proposals []models.Proposal, source, target string) (*Report, error) {
	report := &Report{
		Source:         source,
		Target:         target,
		GeneratedAt:    time.Now().UTC(),
		Checks:         checks,
		Proposals:      proposals,
		Summary:        models.Summarize(checks),
		RiskStats:      make(map[models.RiskLevel]*RiskStats),
		CheckTypeStats: make(map[string]*CheckTypeStats),
	}
	if err := report.Summary.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent health summary: %w", err)
	}

	r.calculateStats(report)

	return report, nil
}

// Write renders report in the reporter's format.
func (r *Reporter) Write(report *Report, w io.Writer) error {
	switch r.format {
	case FormatCSV:
		return GenerateCSV(report, w)
	case FormatMarkdown:
		return GenerateMarkdown(report, w)
	default:
		return fmt.Errorf("unsupported report format %q", r.format)
	}
}

// calculateStats computes all statistics for the report
func (r *Reporter) calculateStats(report *Report) {
	for _, c := range report.Checks {
		stat, exists := report.CheckTypeStats[c.CheckType]
		if !exists {
			stat = &CheckTypeStats{CheckType: c.CheckType}
			report.CheckTypeStats[c.CheckType] = stat
		}
		stat.Count++
		stat.AvgScore += c.Score
		if c.IsHealthy() {
			stat.Healthy++
		}
	}
	for _, stat := range report.CheckTypeStats {
		stat.AvgScore = round2(stat.AvgScore / float64(stat.Count))
		stat.HealthRate = round2(float64(stat.Healthy) / float64(stat.Count) * 100)
	}

	for _, p := range report.Proposals {
		level := p.RiskLevel()
		stat, exists := report.RiskStats[level]
		if !exists {
			stat = &RiskStats{Level: level}
			report.RiskStats[level] = stat
		}
		stat.Count++
		stat.AvgRiskScore += p.RiskScore
		if p.IsPending() {
			stat.Pending++
			report.PendingCount++
		}
	}
	for _, stat := range report.RiskStats {
		stat.AvgRiskScore = round2(stat.AvgRiskScore / float64(stat.Count))
	}
}

// riskOrder lists risk levels from most to least severe.
var riskOrder = []models.RiskLevel{models.RiskHigh, models.RiskMedium, models.RiskLow}

func (r *Report) sortedCheckTypes() []*CheckTypeStats {
	stats := make([]*CheckTypeStats, 0, len(r.CheckTypeStats))
	for _, s := range r.CheckTypeStats {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].CheckType < stats[j].CheckType })
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
