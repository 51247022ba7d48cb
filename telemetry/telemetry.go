// Package telemetry holds the Prometheus counters shared by the enrichment
// and evaluation runs.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ragbench"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	RemoteCalls     *prometheus.CounterVec
	Retries         *prometheus.CounterVec
	KeysResolved    *prometheus.CounterVec
	CheckpointSaves prometheus.Counter
	Cases           *prometheus.CounterVec
	MetricFailures  *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RemoteCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote calls made, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retries scheduled after a failed attempt, by operation.",
		}, []string{"operation"}),
		KeysResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_keys_total",
			Help:      "Unique product keys processed, by outcome.",
		}, []string{"outcome"}),
		CheckpointSaves: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_saves_total",
			Help:      "Checkpoint writes.",
		}),
		Cases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_cases_total",
			Help:      "Evaluation cases finished, by status.",
		}, []string{"status"}),
		MetricFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_metric_failures_total",
			Help:      "Metric computations that produced no score, by metric and variant.",
		}, []string{"metric", "variant"}),
		CallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of remote calls, by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"operation"}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveCall(operation string, err error, seconds float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RemoteCalls.WithLabelValues(operation, outcome).Inc()
	m.CallDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) IncRetry(operation string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncKey(resolved bool) {
	if m == nil {
		return
	}
	outcome := "resolved"
	if !resolved {
		outcome = "unresolved"
	}
	m.KeysResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCheckpointSave() {
	if m == nil {
		return
	}
	m.CheckpointSaves.Inc()
}

func (m *Metrics) IncCase(status string) {
	if m == nil {
		return
	}
	m.Cases.WithLabelValues(status).Inc()
}

func (m *Metrics) IncMetricFailure(metric, variant string) {
	if m == nil {
		return
	}
	m.MetricFailures.WithLabelValues(metric, variant).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
