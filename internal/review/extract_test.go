package review

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func extractEvents(report string, papers int) []RunEvent {
	enriched := samplePapers(papers, papers)
	for i := range enriched {
		enriched[i].KeyFindings = "findings"
	}
	data, _ := json.Marshal(enriched)
	now := time.Now()
	return []RunEvent{
		{Stage: StageSearch, Text: "[]", Timestamp: now},
		{Stage: StageExtract, Text: string(data), Timestamp: now},
		{Stage: StageSynthesize, Text: report, Timestamp: now},
		{Stage: StageEvaluate, Text: evalOutput(9, "good", report), Timestamp: now},
	}
}

func TestExtractorReturnsPlaceholderOnEmptyLog(t *testing.T) {
	e := NewExtractor(StageEvaluate, 50, nil)
	report := e.Extract(nil)
	if !report.Incomplete {
		t.Fatalf("empty log must yield the incomplete placeholder")
	}
	if report.Text == "" {
		t.Fatalf("placeholder must carry guidance text")
	}
}

func TestExtractorSelectsNewestFinalStageEvent(t *testing.T) {
	draft := draftFor("extraction", 5)
	e := NewExtractor(StageEvaluate, 50, nil)
	report := e.Extract(extractEvents(draft, 5))
	if report.Incomplete {
		t.Fatalf("unexpected incomplete flag, warnings: %v", report.Warnings)
	}
	if report.Text != draft {
		t.Fatalf("expected the echoed draft stripped of the critic header, got %q", report.Text)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("structurally valid report must carry no warnings, got %v", report.Warnings)
	}
}

func TestExtractorSkipsDebugEvents(t *testing.T) {
	draft := draftFor("debug skip", 5)
	events := extractEvents(draft, 5)
	events = append(events, RunEvent{Stage: StageEvaluate, Text: "Model: gemini-2.5-flash-lite usage dump", Timestamp: time.Now()})
	e := NewExtractor(StageEvaluate, 50, nil)
	report := e.Extract(events)
	if report.Incomplete || report.Text != draft {
		t.Fatalf("debug-prefixed event must be skipped in favor of the real one")
	}
}

func TestExtractorFallsBackOnShortText(t *testing.T) {
	events := []RunEvent{{Stage: StageEvaluate, Text: "Score: 9\nFeedback: ok\n\ntiny", Timestamp: time.Now()}}
	e := NewExtractor(StageEvaluate, 50, nil)
	report := e.Extract(events)
	if !report.Incomplete {
		t.Fatalf("report shorter than the minimum must fall back to the placeholder")
	}
}

func TestExtractorWarnsOnParagraphCountMismatch(t *testing.T) {
	draft := draftFor("short report", 4) // references list 4 entries
	e := NewExtractor(StageEvaluate, 50, nil)
	report := e.Extract(extractEvents(draft, 5)) // 5 papers expected
	if report.Incomplete {
		t.Fatalf("structural violations degrade to warnings, not incompleteness")
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "expected 5 paragraphs") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a paragraph-count warning, got %v", report.Warnings)
	}
}

func TestExtractorWarnsOnBrokenCitationSequence(t *testing.T) {
	draft := strings.Replace(draftFor("bad markers", 5), "[2]", "[7]", 1)
	e := NewExtractor(StageEvaluate, 50, nil)
	report := e.Extract(extractEvents(draft, 5))
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "cites marker") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a citation-sequence warning, got %v", report.Warnings)
	}
}

func TestExtractorWarnsOnMissingReferences(t *testing.T) {
	draft := draftFor("no refs", 5)
	draft = draft[:strings.Index(draft, "### References")]
	e := NewExtractor(StageEvaluate, 50, nil)
	report := e.Extract(extractEvents(strings.TrimSpace(draft), 5))
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "references") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a missing-references warning, got %v", report.Warnings)
	}
}
