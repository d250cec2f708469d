package analyzer

import (
	"fmt"
	"sort"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

// AnalyzeHistory computes score and latency statistics, stability and trend
// for the stored checks of one app. Checks may come in any order.
func AnalyzeHistory(appUID string, checks []models.HealthCheck) (*HistoryAnalysis, error) {
	if len(checks) == 0 {
		return nil, fmt.Errorf("no health checks recorded for %s", appUID)
	}

	sorted := make([]models.HealthCheck, len(checks))
	copy(sorted, checks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	scores := make([]Sample, len(sorted))
	latencies := make([]Sample, len(sorted))
	healthy := 0
	for i, c := range sorted {
		scores[i] = Sample{Timestamp: c.Timestamp, Value: c.Score}
		latencies[i] = Sample{Timestamp: c.Timestamp, Value: c.LatencyMS}
		if c.IsHealthy() {
			healthy++
		}
	}

	scorePct, err := CalculatePercentiles(scores)
	if err != nil {
		return nil, err
	}
	latencyPct, err := CalculatePercentiles(latencies)
	if err != nil {
		return nil, err
	}

	// A short series still gets statistics, only the trend stays unknown.
	trend, _ := CalculateTrend(scores)

	from, to := timespan(scores)
	return &HistoryAnalysis{
		AppUID:       appUID,
		SampleCount:  len(sorted),
		From:         from,
		To:           to,
		Availability: round2(float64(healthy) / float64(len(sorted)) * 100),
		Score:        *scorePct,
		Latency:      *latencyPct,
		Stability:    AnalyzeStability(scores),
		Trend:        *trend,
	}, nil
}

// Fields flattens the analysis for key/value display.
func (a *HistoryAnalysis) Fields() map[string]interface{} {
	return map[string]interface{}{
		"app_uid":          a.AppUID,
		"samples":          a.SampleCount,
		"from":             a.From.UTC().Format("2006-01-02 15:04:05"),
		"to":               a.To.UTC().Format("2006-01-02 15:04:05"),
		"availability_pct": a.Availability,
		"score_avg":        a.Score.Average,
		"score_p50":        a.Score.P50,
		"score_min":        a.Score.Min,
		"latency_p95_ms":   a.Latency.P95,
		"latency_peak_ms":  a.Latency.Peak,
		"stability":        a.Stability.Type,
		"trend":            a.Trend.Direction,
		"trend_per_day":    a.Trend.PointsPerDay,
		"trend_confidence": a.Trend.Confidence,
		"predicted_24h":    a.Trend.Predicted24h,
	}
}
