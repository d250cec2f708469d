package models

import (
	"errors"
	"testing"

	"github.com/agent-matrix/matrix-system/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCheck() HealthCheck {
	return HealthCheck{
		AppUID:    "test-app",
		CheckType: "http",
		Result:    "pass",
		Status:    HealthHealthy,
		Score:     95.5,
		LatencyMS: 45.2,
	}
}

func TestNewHealthCheck(t *testing.T) {
	check, err := NewHealthCheck(validCheck())
	require.NoError(t, err)

	assert.Equal(t, "test-app", check.AppUID)
	assert.Equal(t, 95.5, check.Score)
	assert.False(t, check.Timestamp.IsZero(), "timestamp should default to creation time")
}

func TestHealthCheckDefaults(t *testing.T) {
	check, err := NewHealthCheck(HealthCheck{AppUID: "test-app", CheckType: "http", Result: "pass"})
	require.NoError(t, err)

	assert.Equal(t, HealthUnknown, check.Status)
	assert.Equal(t, 0.0, check.Score)
	assert.True(t, check.IsUnhealthy())
}

func TestHealthCheckSetDefaultsKeepsValues(t *testing.T) {
	var empty HealthCheck
	empty.SetDefaults()
	assert.Equal(t, HealthUnknown, empty.Status)
	assert.False(t, empty.Timestamp.IsZero())

	check := validCheck()
	check.SetDefaults()
	assert.Equal(t, HealthHealthy, check.Status)
}

func TestHealthCheckScoreRange(t *testing.T) {
	for _, score := range []float64{0, 0.01, 50, 99.99, 100} {
		h := validCheck()
		h.Score = score
		_, err := NewHealthCheck(h)
		assert.NoError(t, err, "score %v should be accepted", score)
	}

	for _, score := range []float64{-0.01, -5, 100.01, 142} {
		h := validCheck()
		h.Score = score
		_, err := NewHealthCheck(h)

		var verr *validation.Error
		require.True(t, errors.As(err, &verr), "score %v should be rejected", score)
		assert.Equal(t, "score", verr.Field)
	}
}

func TestHealthCheckScoreMessage(t *testing.T) {
	h := validCheck()
	h.Score = 142
	_, err := NewHealthCheck(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score must be within 0..100, got 142")
}

func TestHealthCheckScoreRounded(t *testing.T) {
	h := validCheck()
	h.Score = 95.555
	check, err := NewHealthCheck(h)
	require.NoError(t, err)
	assert.InDelta(t, 95.56, check.Score, 0.0001)
}

func TestHealthCheckRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*HealthCheck)
		field string
	}{
		{"empty app uid", func(h *HealthCheck) { h.AppUID = "" }, "app_uid"},
		{"empty check type", func(h *HealthCheck) { h.CheckType = "" }, "check_type"},
		{"empty result", func(h *HealthCheck) { h.Result = "" }, "result"},
		{"negative latency", func(h *HealthCheck) { h.LatencyMS = -1 }, "latency_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := validCheck()
			tt.mut(&h)
			_, err := NewHealthCheck(h)

			var verr *validation.Error
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestHealthCheckClassification(t *testing.T) {
	tests := []struct {
		status    HealthStatus
		healthy   bool
		degraded  bool
		unhealthy bool
	}{
		{HealthHealthy, true, false, false},
		{HealthDegraded, false, true, false},
		{HealthUnhealthy, false, false, true},
		{HealthUnknown, false, false, true},
		{HealthStatus("flapping"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := HealthCheck{Status: tt.status}
			assert.Equal(t, tt.healthy, h.IsHealthy())
			assert.Equal(t, tt.degraded, h.IsDegraded())
			assert.Equal(t, tt.unhealthy, h.IsUnhealthy())

			n := 0
			for _, b := range []bool{h.IsHealthy(), h.IsDegraded(), h.IsUnhealthy()} {
				if b {
					n++
				}
			}
			assert.Equal(t, 1, n, "exactly one predicate must hold")
		})
	}
}

func TestStatusForScore(t *testing.T) {
	assert.Equal(t, HealthHealthy, StatusForScore(100))
	assert.Equal(t, HealthHealthy, StatusForScore(80))
	assert.Equal(t, HealthDegraded, StatusForScore(79.99))
	assert.Equal(t, HealthDegraded, StatusForScore(50))
	assert.Equal(t, HealthUnhealthy, StatusForScore(49.99))
	assert.Equal(t, HealthUnhealthy, StatusForScore(0))
}

func TestHealthPercentage(t *testing.T) {
	summary := HealthSummary{TotalEntities: 100, HealthyCount: 95, UnhealthyCount: 5}
	assert.Equal(t, 95.0, summary.HealthPercentage())

	summary = HealthSummary{TotalEntities: 10, HealthyCount: 8, DegradedCount: 1, UnhealthyCount: 1}
	assert.Equal(t, 80.0, summary.HealthPercentage())
}

func TestHealthPercentageZeroEntities(t *testing.T) {
	summary := HealthSummary{}
	assert.Equal(t, 0.0, summary.HealthPercentage())
}

func TestHealthSummaryValidation(t *testing.T) {
	_, err := NewHealthSummary(HealthSummary{
		TotalEntities: 10, HealthyCount: 8, DegradedCount: 1, UnhealthyCount: 1, AverageScore: 85.5,
	})
	assert.NoError(t, err)

	_, err = NewHealthSummary(HealthSummary{TotalEntities: 10, HealthyCount: 8})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "total_entities", verr.Field)

	_, err = NewHealthSummary(HealthSummary{TotalEntities: 1, HealthyCount: 1, AverageScore: 101})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "average_score", verr.Field)

	_, err = NewHealthSummary(HealthSummary{TotalEntities: -1, UnknownCount: -1})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "total_entities", verr.Field)
}

func TestSummarize(t *testing.T) {
	checks := []HealthCheck{
		{Status: HealthHealthy, Score: 100},
		{Status: HealthHealthy, Score: 90},
		{Status: HealthDegraded, Score: 60},
		{Status: HealthUnhealthy, Score: 10},
		{Status: HealthUnknown, Score: 0},
	}

	summary := Summarize(checks)
	assert.Equal(t, 5, summary.TotalEntities)
	assert.Equal(t, 2, summary.HealthyCount)
	assert.Equal(t, 1, summary.DegradedCount)
	assert.Equal(t, 1, summary.UnhealthyCount)
	assert.Equal(t, 1, summary.UnknownCount)
	assert.Equal(t, 52.0, summary.AverageScore)
	assert.Equal(t, 40.0, summary.HealthPercentage())
	assert.NoError(t, summary.Validate())

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.TotalEntities)
	assert.NoError(t, empty.Validate())
}
