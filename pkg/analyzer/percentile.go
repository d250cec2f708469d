package analyzer

import (
	"fmt"
	"math"
	"sort"
)

// CalculatePercentiles computes P50, P90, P95, P99, and peak from samples
func CalculatePercentiles(samples []Sample) (*Percentiles, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	values := make([]float64, len(samples))
	for i, sample := range samples {
		values[i] = sample.Value
	}
	sort.Float64s(values)

	return &Percentiles{
		Average: round2(calculateAverage(values)),
		P50:     round2(calculatePercentile(values, 50)),
		P90:     round2(calculatePercentile(values, 90)),
		P95:     round2(calculatePercentile(values, 95)),
		P99:     round2(calculatePercentile(values, 99)),
		Peak:    values[len(values)-1],
		Min:     values[0],
	}, nil
}

// calculatePercentile computes the Nth percentile using linear interpolation
func calculatePercentile(sortedValues []float64, percentile float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if len(sortedValues) == 1 {
		return sortedValues[0]
	}

	n := float64(len(sortedValues))
	rank := (percentile / 100.0) * (n - 1)

	lowerIndex := int(math.Floor(rank))
	upperIndex := int(math.Ceil(rank))
	if lowerIndex == upperIndex {
		return sortedValues[lowerIndex]
	}

	lowerValue := sortedValues[lowerIndex]
	upperValue := sortedValues[upperIndex]
	fraction := rank - float64(lowerIndex)

	return lowerValue + (upperValue-lowerValue)*fraction
}

func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// CalculateCoefficientOfVariation measures the relative variability.
// A score series flapping between healthy and failing has a high CV.
func CalculateCoefficientOfVariation(samples []Sample) float64 {
	values := make([]float64, len(samples))
	for i, sample := range samples {
		values[i] = sample.Value
	}
	return coefficientOfVariation(values)
}

func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := calculateAverage(values)
	if mean == 0 {
		return 0
	}

	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	variance := sumSquaredDiff / float64(len(values))
	return math.Sqrt(variance) / mean
}

// MinStabilitySamples is the shortest series AnalyzeStability classifies
const MinStabilitySamples = 5

// AnalyzeStability determines whether a score series is steady or flapping
func AnalyzeStability(samples []Sample) Stability {
	if len(samples) < MinStabilitySamples {
		return Stability{Type: "unknown"}
	}

	cv := CalculateCoefficientOfVariation(samples)

	var stability Stability
	switch {
	case cv < 0.05:
		stability = Stability{Type: "steady", Confidence: 0.95}
	case cv < 0.20:
		stability = Stability{Type: "moderate", Confidence: 0.85}
	case cv < 0.50:
		stability = Stability{Type: "flapping", Confidence: 0.80}
	default:
		stability = Stability{Type: "erratic", Confidence: 0.75}
	}
	stability.Variation = round2(cv)
	return stability
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
