package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a point-in-time snapshot of the aggregated counters.
type Stats struct {
	TotalRuns   int64
	FailedRuns  int64
	TotalTokens int64
	StageCalls  map[string]int64
}

// Metrics aggregates run and stage counters for the process and exposes
// them on a dedicated prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
	stageCalls  *prometheus.CounterVec
	tokensTotal prometheus.Counter

	mu          sync.RWMutex
	totalRuns   int64
	failedRuns  int64
	totalTokens int64
	stageCounts map[string]int64
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "litreview_runs_total",
			Help: "Completed review runs by status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "litreview_run_duration_seconds",
			Help:    "Wall-clock duration of review runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		stageCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "litreview_stage_calls_total",
			Help: "Stage invocations by stage and status.",
		}, []string{"stage", "status"}),
		tokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "litreview_tokens_estimated_total",
			Help: "Estimated tokens exchanged with the LLM backend.",
		}),
		stageCounts: make(map[string]int64),
	}
	m.registry.MustRegister(m.runsTotal, m.runDuration, m.stageCalls, m.tokensTotal)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordRun records one completed top-level invocation.
func (m *Metrics) RecordRun(duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRuns++
	if err != nil {
		m.failedRuns++
	}
}

// RecordStage records one stage invocation and its estimated token usage.
func (m *Metrics) RecordStage(stage string, promptChars, outputChars int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stageCalls.WithLabelValues(stage, status).Inc()
	tokens := EstimateTokens(promptChars) + EstimateTokens(outputChars)
	m.tokensTotal.Add(float64(tokens))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageCounts[stage]++
	m.totalTokens += tokens
}

// Snapshot returns a copy of the aggregated counters.
func (m *Metrics) Snapshot() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stages := make(map[string]int64, len(m.stageCounts))
	for k, v := range m.stageCounts {
		stages[k] = v
	}
	return Stats{
		TotalRuns:   m.totalRuns,
		FailedRuns:  m.failedRuns,
		TotalTokens: m.totalTokens,
		StageCalls:  stages,
	}
}

// EstimateTokens approximates token usage from character count. The
// Generate contract does not surface usage data, so four characters per
// token is used as a rough estimate.
func EstimateTokens(chars int) int64 {
	return int64(chars / 4)
}
