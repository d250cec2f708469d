package analyzer

import (
	"testing"
	"time"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

func TestAnalyzeHistory(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	check := func(hour int, status models.HealthStatus, score, latency float64) models.HealthCheck {
		return models.HealthCheck{
			AppUID:    "billing",
			CheckType: "http",
			Result:    "pass",
			Status:    status,
			Score:     score,
			LatencyMS: latency,
			Timestamp: start.Add(time.Duration(hour) * time.Hour),
		}
	}

	// Newest first, as the store returns them
	checks := []models.HealthCheck{
		check(3, models.HealthUnhealthy, 40, 900),
		check(2, models.HealthDegraded, 60, 400),
		check(1, models.HealthHealthy, 80, 200),
		check(0, models.HealthHealthy, 100, 100),
	}

	analysis, err := AnalyzeHistory("billing", checks)
	if err != nil {
		t.Fatalf("AnalyzeHistory failed: %v", err)
	}

	if analysis.SampleCount != 4 {
		t.Errorf("Expected 4 samples, got %d", analysis.SampleCount)
	}
	if !analysis.From.Equal(start) || !analysis.To.Equal(start.Add(3*time.Hour)) {
		t.Errorf("Unexpected time span %v..%v", analysis.From, analysis.To)
	}
	if analysis.Availability != 50 {
		t.Errorf("Expected 50%% availability, got %.2f", analysis.Availability)
	}
	if analysis.Score.Average != 70 {
		t.Errorf("Expected average score 70, got %.2f", analysis.Score.Average)
	}
	if analysis.Latency.Peak != 900 {
		t.Errorf("Expected latency peak 900, got %.2f", analysis.Latency.Peak)
	}
	if analysis.Trend.Direction != TrendDeclining {
		t.Errorf("Expected %s, got %s", TrendDeclining, analysis.Trend.Direction)
	}
	if analysis.Trend.PointsPerDay != -480 {
		t.Errorf("Expected -480 points/day, got %.2f", analysis.Trend.PointsPerDay)
	}

	// Input order is left alone
	if checks[0].Score != 40 {
		t.Error("AnalyzeHistory reordered its input")
	}

	fields := analysis.Fields()
	if fields["trend"] != TrendDeclining || fields["samples"] != 4 {
		t.Errorf("Unexpected fields %v", fields)
	}
}

func TestAnalyzeHistory_Empty(t *testing.T) {
	if _, err := AnalyzeHistory("billing", nil); err == nil {
		t.Error("Expected error without checks")
	}
}
