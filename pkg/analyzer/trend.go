package analyzer

import (
	"fmt"
	"time"
)

// MinTrendSamples is the shortest series CalculateTrend fits a line to
const MinTrendSamples = 3

// SteadyThreshold is the score change per day below which a trend is steady
const SteadyThreshold = 2.0

// CalculateTrend fits a line through the score series. Samples must be in
// chronological order.
func CalculateTrend(samples []Sample) (*Trend, error) {
	if len(samples) < MinTrendSamples {
		return &Trend{Direction: TrendUnknown},
			fmt.Errorf("insufficient data for trend analysis (need %d+ samples, got %d)", MinTrendSamples, len(samples))
	}

	// Hours since the first sample
	start := samples[0].Timestamp
	x := make([]float64, len(samples))
	y := make([]float64, len(samples))
	for i, sample := range samples {
		x[i] = sample.Timestamp.Sub(start).Hours()
		y[i] = sample.Value
	}

	slope, intercept, r2 := linearRegression(x, y)
	perDay := slope * 24

	predicted := slope*(x[len(x)-1]+24) + intercept
	switch {
	case predicted < 0:
		predicted = 0
	case predicted > 100:
		predicted = 100
	}

	direction := TrendSteady
	switch {
	case perDay >= SteadyThreshold:
		direction = TrendImproving
	case perDay <= -SteadyThreshold:
		direction = TrendDeclining
	}

	return &Trend{
		Direction:    direction,
		PointsPerDay: round2(perDay),
		Confidence:   round2(r2),
		Predicted24h: round2(predicted),
	}, nil
}

// linearRegression performs simple linear regression
// Returns: slope, intercept, R² (coefficient of determination)
func linearRegression(x, y []float64) (slope, intercept, r2 float64) {
	if len(x) == 0 {
		return 0, 0, 0
	}

	meanX := calculateAverage(x)
	meanY := calculateAverage(y)

	numerator := 0.0
	denominator := 0.0
	for i := 0; i < len(x); i++ {
		numerator += (x[i] - meanX) * (y[i] - meanY)
		denominator += (x[i] - meanX) * (x[i] - meanX)
	}

	if denominator == 0 {
		return 0, meanY, 0
	}

	slope = numerator / denominator
	intercept = meanY - slope*meanX

	ssTotal := 0.0
	ssRes := 0.0
	for i := 0; i < len(x); i++ {
		predicted := slope*x[i] + intercept
		ssRes += (y[i] - predicted) * (y[i] - predicted)
		ssTotal += (y[i] - meanY) * (y[i] - meanY)
	}

	if ssTotal == 0 {
		r2 = 0
	} else {
		r2 = 1.0 - (ssRes / ssTotal)
	}

	// Clamp R² between 0 and 1
	if r2 < 0 {
		r2 = 0
	} else if r2 > 1 {
		r2 = 1
	}

	return slope, intercept, r2
}

// timespan returns the first and last timestamp of samples.
func timespan(samples []Sample) (time.Time, time.Time) {
	if len(samples) == 0 {
		return time.Time{}, time.Time{}
	}
	return samples[0].Timestamp, samples[len(samples)-1].Timestamp
}
