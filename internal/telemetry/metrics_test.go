package telemetry

import (
	"fmt"
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRun(2*time.Second, nil)
	m.RecordRun(time.Second, fmt.Errorf("boom"))
	m.RecordStage("search", 400, 800, nil)
	m.RecordStage("search", 100, 100, nil)
	m.RecordStage("synthesize", 4000, 4000, fmt.Errorf("boom"))

	s := m.Snapshot()
	if s.TotalRuns != 2 || s.FailedRuns != 1 {
		t.Fatalf("unexpected run counters: %+v", s)
	}
	if s.StageCalls["search"] != 2 || s.StageCalls["synthesize"] != 1 {
		t.Fatalf("unexpected stage counters: %+v", s.StageCalls)
	}
	want := EstimateTokens(400) + EstimateTokens(800) + EstimateTokens(100)*2 + EstimateTokens(4000)*2
	if s.TotalTokens != want {
		t.Fatalf("token total = %d, want %d", s.TotalTokens, want)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(400); got != 100 {
		t.Fatalf("EstimateTokens(400) = %d, want 100", got)
	}
	if got := EstimateTokens(3); got != 0 {
		t.Fatalf("EstimateTokens(3) = %d, want 0", got)
	}
}

func TestMetricsRegistryGathers(t *testing.T) {
	m := NewMetrics()
	m.RecordRun(time.Second, nil)
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "litreview_runs_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("litreview_runs_total not exported")
	}
}
