package analyzer

import "time"

// Sample is a single point of a health history series
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Percentiles contains statistical percentiles
type Percentiles struct {
	Average float64 `json:"average"`
	P50     float64 `json:"p50"`
	P90     float64 `json:"p90"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
	Peak    float64 `json:"peak"`
	Min     float64 `json:"min"`
}

// Stability classifies how much a series varies
type Stability struct {
	Type       string  `json:"type"`      // "steady", "moderate", "flapping", "erratic", "unknown"
	Variation  float64 `json:"variation"` // coefficient of variation
	Confidence float64 `json:"confidence"`
}

// Trend directions
const (
	TrendImproving = "improving"
	TrendSteady    = "steady"
	TrendDeclining = "declining"
	TrendUnknown   = "unknown"
)

// Trend describes where the health score is heading
type Trend struct {
	Direction    string  `json:"direction"`
	PointsPerDay float64 `json:"points_per_day"`
	Confidence   float64 `json:"confidence"` // R² of the fit
	Predicted24h float64 `json:"predicted_24h"`
}

// HistoryAnalysis summarizes the stored checks of one app
type HistoryAnalysis struct {
	AppUID       string      `json:"app_uid"`
	SampleCount  int         `json:"sample_count"`
	From         time.Time   `json:"from"`
	To           time.Time   `json:"to"`
	Availability float64     `json:"availability"` // percentage of healthy checks
	Score        Percentiles `json:"score"`
	Latency      Percentiles `json:"latency_ms"`
	Stability    Stability   `json:"stability"`
	Trend        Trend       `json:"trend"`
}
