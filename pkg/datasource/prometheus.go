package datasource

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/sirupsen/logrus"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

// CheckTypePrometheus marks checks derived from blackbox probe metrics
const CheckTypePrometheus = "prometheus"

// PrometheusSource derives health from blackbox exporter metrics
// (probe_success, probe_duration_seconds).
type PrometheusSource struct {
	client v1.API
	url    string
	window time.Duration
	log    logrus.FieldLogger
}

func NewPrometheusSource(url string, window time.Duration, log logrus.FieldLogger) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &PrometheusSource{
		client: v1.NewAPI(client),
		url:    url,
		window: window,
		log:    log.WithField("source", "prometheus"),
	}, nil
}

// Checks returns one health check per probed instance of job. The score is
// the probe success ratio over the window scaled to 0..100. An empty job
// selects every probe.
func (p *PrometheusSource) Checks(ctx context.Context, job string) ([]models.HealthCheck, error) {
	selector := ""
	if job != "" {
		selector = fmt.Sprintf(`{job=%q}`, job)
	}
	window := model.Duration(p.window).String()

	success, err := p.queryVector(ctx, fmt.Sprintf("avg_over_time(probe_success%s[%s])", selector, window))
	if err != nil {
		return nil, fmt.Errorf("probe_success query failed: %w", err)
	}

	// Latency is optional, a missing series leaves it at zero
	latency := map[string]float64{}
	durations, err := p.queryVector(ctx, fmt.Sprintf("avg_over_time(probe_duration_seconds%s[%s])", selector, window))
	if err != nil {
		p.log.WithError(err).Warn("probe duration unavailable")
	}
	for _, s := range durations {
		latency[seriesKey(s.Metric, job)] = float64(s.Value) * 1000
	}

	now := time.Now().UTC()
	checks := make([]models.HealthCheck, 0, len(success))
	for _, s := range success {
		key := seriesKey(s.Metric, job)
		ratio := float64(s.Value)
		score := ratio * 100

		check, err := models.NewHealthCheck(models.HealthCheck{
			AppUID:    key,
			CheckType: CheckTypePrometheus,
			Result:    probeResult(ratio),
			Status:    models.StatusForScore(score),
			Score:     score,
			LatencyMS: latency[key],
			Reasons: map[string]interface{}{
				"job":           string(s.Metric["job"]),
				"window":        window,
				"success_ratio": ratio,
			},
			Timestamp: now,
		})
		if err != nil {
			p.log.WithError(err).WithField("instance", key).Warn("skipping invalid probe sample")
			continue
		}
		checks = append(checks, *check)
	}

	sort.Slice(checks, func(i, j int) bool { return checks[i].AppUID < checks[j].AppUID })
	return checks, nil
}

func (p *PrometheusSource) queryVector(ctx context.Context, query string) (model.Vector, error) {
	result, warnings, err := p.client.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	if len(warnings) > 0 {
		p.log.Warnf("Prometheus: %v", warnings)
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %s for query: %s", result.Type(), query)
	}
	return vector, nil
}

func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusSource) Name() string {
	return "Prometheus"
}

// seriesKey names the probed entity. Without a job selector the same
// instance can be probed by several jobs, so the job becomes part of the key.
func seriesKey(m model.Metric, job string) string {
	instance := string(m["instance"])
	if instance == "" {
		return m.String()
	}
	if j := string(m["job"]); job == "" && j != "" {
		return j + "/" + instance
	}
	return instance
}

func probeResult(ratio float64) string {
	switch {
	case ratio >= 1:
		return "pass"
	case ratio <= 0:
		return "fail"
	default:
		return "warning"
	}
}
