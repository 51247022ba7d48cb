package telemetry_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/telemetry"
)

func TestMetrics_Counters(t *testing.T) {
	m := telemetry.New(prometheus.NewRegistry())

	m.ObserveCall("lambda", nil, 0.2)
	m.ObserveCall("lambda", errors.New("x"), 0.1)
	m.IncRetry("lambda")
	m.IncKey(true)
	m.IncKey(false)
	m.IncKey(false)
	m.IncCheckpointSave()
	m.IncCase("SUCCESS")
	m.IncMetricFailure("faithfulness", "with_pipeline")

	assert.InDelta(t, 1, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("lambda", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("lambda", "error")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.KeysResolved.WithLabelValues("unresolved")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CheckpointSaves), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Cases.WithLabelValues("SUCCESS")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MetricFailures.WithLabelValues("faithfulness", "with_pipeline")), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	assert.NotPanics(t, func() {
		m.ObserveCall("x", nil, 1)
		m.IncRetry("x")
		m.IncKey(true)
		m.IncCheckpointSave()
		m.IncCase("FAILED")
		m.IncMetricFailure("a", "b")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := telemetry.New(prometheus.NewRegistry())
	m.IncCase("SKIPPED")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ragbench_evaluation_cases_total{status="SKIPPED"} 1`)
}
