package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mohammad-safakhou/litreview/config"
	"github.com/mohammad-safakhou/litreview/provider"
	"github.com/mohammad-safakhou/litreview/repository"
	"github.com/mohammad-safakhou/litreview/tools/papersearch/models"
)

type fakeSearcher struct {
	mu      sync.Mutex
	records []models.Record
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, topic string, k int) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, topic)
	return f.records, f.err
}

type memArchive struct {
	mu   sync.Mutex
	runs map[string]repository.RunRecord
}

func newMemArchive() *memArchive {
	return &memArchive{runs: make(map[string]repository.RunRecord)}
}

func (m *memArchive) SaveRun(ctx context.Context, run repository.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *memArchive) GetRun(ctx context.Context, id string) (repository.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return repository.RunRecord{}, fmt.Errorf("run %s not found", id)
	}
	return run, nil
}

func (m *memArchive) ListRuns(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	return ids, nil
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Provider: "gemini",
			APIKey:   "test-key",
			Model:    "test-model",
			Retry:    config.RetryConfig{Attempts: 1},
		},
		Search: config.SearchConfig{MaxResults: 20},
		Pipeline: config.PipelineConfig{
			MaxIterations:       2,
			AcceptanceThreshold: 8,
			SelectCount:         5,
			StageAttempts:       2,
			MinReportChars:      50,
			MaxConcurrentRuns:   4,
		},
	}
}

// mockRecords returns 8 papers: 4 with known years 2019-2023 and 4 with
// year unknown.
func mockRecords() []models.Record {
	years := []int{2023, 2022, 2021, 2019, 0, 0, 0, 0}
	records := make([]models.Record, 0, len(years))
	for i, y := range years {
		records = append(records, models.Record{
			Title:    fmt.Sprintf("Mock Paper %d", i+1),
			URL:      fmt.Sprintf("https://example.org/mock/%d", i+1),
			Abstract: "A study of the field.",
			Authors:  fmt.Sprintf("Mock%d M.", i+1),
			Year:     y,
			Source:   models.SourceArxiv,
		})
	}
	return records
}

func TestRunReviewEndToEnd(t *testing.T) {
	archive := newMemArchive()
	c, err := NewCoordinator(testConfig(), &fakeSearcher{records: mockRecords()}, archive, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	client := &autoClient{scores: []int{6, 9}}
	c.newClient = func() (provider.Client, error) { return client, nil }

	topic := "graph neural networks for recommendation"
	report, err := c.RunReview(context.Background(), topic)
	if err != nil {
		t.Fatalf("RunReview: %v", err)
	}
	if report.Incomplete {
		t.Fatalf("unexpected incomplete report, warnings: %v", report.Warnings)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("expected a structurally clean report, got warnings %v", report.Warnings)
	}
	if !strings.Contains(report.Text, topic) {
		t.Fatalf("report must cover the requested topic")
	}
	if got := client.callCount("Academic Writer"); got != 2 {
		t.Fatalf("scores 6 then 9 must produce exactly 2 producer calls, got %d", got)
	}
	if got := client.callCount("Reviewer"); got != 2 {
		t.Fatalf("scores 6 then 9 must produce exactly 2 critic calls, got %d", got)
	}

	ids, _ := archive.ListRuns(context.Background())
	if len(ids) != 1 {
		t.Fatalf("expected 1 archived run, got %d", len(ids))
	}
	run, _ := archive.GetRun(context.Background(), ids[0])
	wantStages := []string{StageSearch, StageSelect, StageExtract, StageSynthesize, StageEvaluate, StageSynthesize, StageEvaluate}
	if len(run.Events) != len(wantStages) {
		t.Fatalf("expected %d events, got %d", len(wantStages), len(run.Events))
	}
	for i, ev := range run.Events {
		if ev.Stage != wantStages[i] {
			t.Fatalf("event %d: stage %s, want %s", i, ev.Stage, wantStages[i])
		}
	}

	// The selection must hold 5 papers, known years first, newest first.
	var selected []PaperRecord
	if err := json.Unmarshal([]byte(extractFirstJSONArray(run.Events[1].Text)), &selected); err != nil {
		t.Fatalf("select event payload: %v", err)
	}
	if len(selected) != 5 {
		t.Fatalf("expected 5 selected papers, got %d", len(selected))
	}
	wantYears := []Year{2023, 2022, 2021, 2019, 0}
	for i, p := range selected {
		if p.Year != wantYears[i] {
			t.Fatalf("selected paper %d has year %d, want %d", i, p.Year, wantYears[i])
		}
	}
}

func TestRunReviewConcurrentIsolation(t *testing.T) {
	archive := newMemArchive()
	c, err := NewCoordinator(testConfig(), &fakeSearcher{records: mockRecords()}, archive, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	c.newClient = func() (provider.Client, error) { return &autoClient{}, nil }

	topics := []string{"federated learning privacy", "protein structure prediction"}
	reports := make([]FinalReport, len(topics))
	errs := make([]error, len(topics))
	var wg sync.WaitGroup
	for i, topic := range topics {
		wg.Add(1)
		go func(i int, topic string) {
			defer wg.Done()
			reports[i], errs[i] = c.RunReview(context.Background(), topic)
		}(i, topic)
	}
	wg.Wait()

	for i, topic := range topics {
		if errs[i] != nil {
			t.Fatalf("run %d failed: %v", i, errs[i])
		}
		if !strings.Contains(reports[i].Text, topic) {
			t.Fatalf("run %d must see its own topic", i)
		}
		other := topics[1-i]
		if strings.Contains(reports[i].Text, other) {
			t.Fatalf("run %d leaked the other run's topic", i)
		}
	}

	ids, _ := archive.ListRuns(context.Background())
	if len(ids) != 2 {
		t.Fatalf("expected 2 archived runs with distinct IDs, got %d", len(ids))
	}
	for _, id := range ids {
		run, _ := archive.GetRun(context.Background(), id)
		other := topics[0]
		if run.Topic == topics[0] {
			other = topics[1]
		}
		for _, ev := range run.Events {
			if ev.Stage != StageSynthesize && ev.Stage != StageEvaluate {
				continue
			}
			if strings.Contains(ev.Text, other) {
				t.Fatalf("run %s event log interleaved with the other run", id)
			}
		}
	}
}

func TestNewCoordinatorRequiresCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = ""
	_, err := NewCoordinator(cfg, &fakeSearcher{}, nil, nil, nil, nil)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError for missing credentials, got %v", err)
	}
}

func TestRunReviewRejectsEmptyTopic(t *testing.T) {
	c, err := NewCoordinator(testConfig(), &fakeSearcher{records: mockRecords()}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	client := &fakeClient{}
	c.newClient = func() (provider.Client, error) { return client, nil }

	_, err = c.RunReview(context.Background(), "   ")
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("empty topic must not reach the backend")
	}
}

func TestRunReviewSurfacesPipelineError(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("all sources offline")}
	c, err := NewCoordinator(testConfig(), searcher, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	c.newClient = func() (provider.Client, error) { return &autoClient{}, nil }

	_, err = c.RunReview(context.Background(), "anything")
	var perr *PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if perr.Stage != StageSearch {
		t.Fatalf("expected failure at the search stage, got %s", perr.Stage)
	}
}
