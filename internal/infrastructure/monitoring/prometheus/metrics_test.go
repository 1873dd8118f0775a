package prometheus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, MetricsCollector) {
	c := newTestCollector(t)
	m := NewMetrics(c)
	return m, c
}

func TestNewMetrics_AllFieldsRegistered(t *testing.T) {
	m, _ := newTestMetrics(t)
	require.NotNil(t, m)

	assert.NotNil(t, m.StageLatency)
	assert.NotNil(t, m.StageErrorsTotal)
	assert.NotNil(t, m.WalkDeadlineAbortsTotal)
	assert.NotNil(t, m.WalkCandidatesTotal)
	assert.NotNil(t, m.EngramCacheHitsTotal)
	assert.NotNil(t, m.EngramCacheMissesTotal)
	assert.NotNil(t, m.DeduplicatedTotal)
	assert.NotNil(t, m.InflationsTotal)
	assert.NotNil(t, m.BudgetUtilizationRatio)
	assert.NotNil(t, m.RequestsTotal)
}

func TestObserveStage_RecordsLatencyOnly(t *testing.T) {
	m, c := newTestMetrics(t)

	m.ObserveStage("parse", 0.01, "")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_stage_latency_seconds_count{stage="parse"} 1`)
	assert.NotContains(t, output, "stage_errors_total")
}

func TestObserveStage_RecordsErrorOnCode(t *testing.T) {
	m, c := newTestMetrics(t)

	m.ObserveStage("anchor_search", 0.02, "STORE_QUERY_FAILED")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_stage_latency_seconds_count{stage="anchor_search"} 1`)
	assert.Contains(t, output, `test_unit_stage_errors_total{code="STORE_QUERY_FAILED",stage="anchor_search"} 1`)
}

func TestWalkDeadlineAbortsTotal_Increments(t *testing.T) {
	m, c := newTestMetrics(t)

	m.WalkDeadlineAbortsTotal.Inc()
	m.WalkDeadlineAbortsTotal.Inc()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_walk_deadline_aborts_total 2`)
}

func TestEngramCacheHitsAndMisses(t *testing.T) {
	m, c := newTestMetrics(t)

	m.EngramCacheHitsTotal.Inc()
	m.EngramCacheHitsTotal.Inc()
	m.EngramCacheMissesTotal.Inc()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_engram_cache_hits_total 2`)
	assert.Contains(t, output, `test_unit_engram_cache_misses_total 1`)
}

func TestInflationsTotal_LabelsBySource(t *testing.T) {
	m, c := newTestMetrics(t)

	m.InflationsTotal.WithLabelValues("notebook_root").Inc()
	m.InflationsTotal.WithLabelValues("mirror_root").Inc()
	m.InflationsTotal.WithLabelValues("mirror_root").Inc()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_inflations_total{source="notebook_root"} 1`)
	assert.Contains(t, output, `test_unit_inflations_total{source="mirror_root"} 2`)
}

func TestBudgetUtilizationRatio_Observes(t *testing.T) {
	m, c := newTestMetrics(t)

	m.BudgetUtilizationRatio.Observe(0.92)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "test_unit_budget_utilization_ratio_count 1")
}

func TestRequestsTotal_LabelsByOutcome(t *testing.T) {
	m, c := newTestMetrics(t)

	m.RequestsTotal.WithLabelValues("ok").Inc()
	m.RequestsTotal.WithLabelValues("partial").Inc()
	m.RequestsTotal.WithLabelValues("ok").Inc()

	output := scrapeMetrics(t, c)
	lines := strings.Split(output, "\n")
	var okLine string
	for _, l := range lines {
		if strings.Contains(l, `test_unit_requests_total{outcome="ok"}`) {
			okLine = l
		}
	}
	assert.Contains(t, okLine, "2")
}

func TestConcurrentMetricRecording(t *testing.T) {
	m, _ := newTestMetrics(t)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				m.ObserveStage("parse", 0.001, "")
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
