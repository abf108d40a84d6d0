// Package metrics counts what a run did and optionally pushes the counts to a
// Prometheus Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Prometheus metric names.
const (
	MetricRecordsScanned      = "carbontoken_records_scanned_total"
	MetricKeysSkipped         = "carbontoken_keys_skipped_total"
	MetricActivitiesSubmitted = "carbontoken_activities_submitted_total"
	MetricResults             = "carbontoken_results_total"
	MetricTokensResolved      = "carbontoken_tokens_resolved_total"
	MetricRunDuration         = "carbontoken_run_duration_seconds"
	MetricLastSuccess         = "carbontoken_last_success_timestamp_seconds"
)

// Skip reasons.
const (
	SkipEmpty      = "empty"
	SkipMalformed  = "malformed"
	SkipTokenized  = "tokenized"
	SkipFailed     = "failed"
	SkipNoTracking = "no_tracking"
	SkipDuplicate  = "duplicate"
)

// Recorder holds the counters of one run in its own registry, so repeated
// runs in one process never share state.
type Recorder struct {
	registry *prometheus.Registry

	recordsScanned      prometheus.Counter
	keysSkipped         *prometheus.CounterVec
	activitiesSubmitted prometheus.Counter
	results             *prometheus.CounterVec
	tokensResolved      prometheus.Counter
	runDuration         prometheus.Gauge
	lastSuccess         prometheus.Gauge
}

// New creates a Recorder with every metric registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		recordsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsScanned,
			Help: "Source records read by the issue workflow.",
		}),
		keysSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricKeysSkipped,
			Help: "Tracking keys not submitted, by reason.",
		}, []string{"reason"}),
		activitiesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricActivitiesSubmitted,
			Help: "Activity documents sent to the provider.",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricResults,
			Help: "Reconciled provider results, by ledger status.",
		}, []string{"status"}),
		tokensResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricTokensResolved,
			Help: "Queued ledger rows resolved to success by the status poller.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRunDuration,
			Help: "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastSuccess,
			Help: "Unix time the last run completed without a run error.",
		}),
	}
	r.registry.MustRegister(
		r.recordsScanned,
		r.keysSkipped,
		r.activitiesSubmitted,
		r.results,
		r.tokensResolved,
		r.runDuration,
		r.lastSuccess,
	)
	return r
}

// Registry exposes the underlying registry for gathering and tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordsScanned adds n scanned source records.
func (r *Recorder) RecordsScanned(n int) {
	r.recordsScanned.Add(float64(n))
}

// KeySkipped counts one tracking key skipped for reason.
func (r *Recorder) KeySkipped(reason string) {
	r.keysSkipped.WithLabelValues(reason).Inc()
}

// ActivitiesSubmitted adds n submitted activities.
func (r *Recorder) ActivitiesSubmitted(n int) {
	r.activitiesSubmitted.Add(float64(n))
}

// Result counts one reconciled result with the given ledger status.
func (r *Recorder) Result(status string) {
	r.results.WithLabelValues(status).Inc()
}

// TokenResolved counts one queued row moved to success.
func (r *Recorder) TokenResolved() {
	r.tokensResolved.Inc()
}

// RunFinished records the run duration and, when ok, the completion time.
func (r *Recorder) RunFinished(d time.Duration, ok bool, now time.Time) {
	r.runDuration.Set(d.Seconds())
	if ok {
		r.lastSuccess.Set(float64(now.Unix()))
	}
}

// Push sends every metric to the Pushgateway at url under job, grouped by
// the given label pairs. It replaces the group's previous values.
func (r *Recorder) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	p := push.New(url, job).Gatherer(r.registry)
	for name, value := range grouping {
		p = p.Grouping(name, value)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
