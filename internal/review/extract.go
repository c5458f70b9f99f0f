package review

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
)

const placeholderText = "The review run completed but no report text could be recovered from its " +
	"event log. Try running the review again; if the problem persists, check the " +
	"backend configuration or lower the acceptance threshold."

// Extractor deterministically selects the user-facing report from a run's
// event log: the newest event of the designated final stage whose text is
// non-empty and not a debug line. Anomalies degrade to warnings or the
// incomplete placeholder, never to an error.
type Extractor struct {
	FinalStage    string
	MinChars      int
	DebugPrefixes []string
	logger        *log.Logger
}

func NewExtractor(finalStage string, minChars int, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	}
	return &Extractor{
		FinalStage:    finalStage,
		MinChars:      minChars,
		DebugPrefixes: []string{"Model:"},
		logger:        logger,
	}
}

func (e *Extractor) Extract(events []RunEvent) FinalReport {
	candidate := ""
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Stage != e.FinalStage {
			continue
		}
		text := strings.TrimSpace(ev.Text)
		if text == "" || e.isDebug(text) {
			continue
		}
		// Critic events carry a score/feedback header before the echoed
		// report; the body is the report itself.
		if body := ParseEvaluation(text).Body; body != "" {
			candidate = body
		} else {
			candidate = text
		}
		break
	}
	if len(candidate) < e.MinChars {
		e.logger.Printf("no usable report in %d events, returning placeholder", len(events))
		return FinalReport{
			Text:       placeholderText,
			Warnings:   []string{"no usable report found in event log"},
			Incomplete: true,
		}
	}
	return FinalReport{
		Text:     candidate,
		Warnings: e.validate(candidate, expectedPapers(events)),
	}
}

func (e *Extractor) isDebug(text string) bool {
	for _, prefix := range e.DebugPrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// expectedPapers recovers the paper count the report should cover from the
// newest extraction-stage event. Zero when it cannot be determined.
func expectedPapers(events []RunEvent) int {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Stage != StageExtract {
			continue
		}
		jsonText := extractFirstJSONArray(events[i].Text)
		if jsonText == "" {
			return 0
		}
		var papers []PaperRecord
		if err := json.Unmarshal([]byte(jsonText), &papers); err != nil {
			return 0
		}
		return len(papers)
	}
	return 0
}

var (
	referencesPattern = regexp.MustCompile(`(?i)#+\s*references`)
	trailingMarker    = regexp.MustCompile(`\[(\d+)\]\s*$`)
	referenceEntry    = regexp.MustCompile(`(?m)^\s*\[(\d+)\]`)
	paragraphSplit    = regexp.MustCompile(`\n\s*\n`)
)

// validate runs the best-effort structural checks: paragraph count equals
// the selected paper count, citation markers run 1..N in order, and the
// references section lists one entry per marker.
func (e *Extractor) validate(text string, expected int) []string {
	var warnings []string

	main := text
	refs := ""
	if loc := referencesPattern.FindStringIndex(text); loc != nil {
		main = text[:loc[0]]
		refs = text[loc[1]:]
	} else {
		warnings = append(warnings, "missing references section")
	}

	var paragraphs []string
	for _, block := range paragraphSplit.Split(main, -1) {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, "#") {
			continue
		}
		paragraphs = append(paragraphs, block)
	}
	if expected > 0 && len(paragraphs) != expected {
		warnings = append(warnings, fmt.Sprintf("expected %d paragraphs, found %d", expected, len(paragraphs)))
	}
	for i, p := range paragraphs {
		m := trailingMarker.FindStringSubmatch(p)
		if m == nil {
			warnings = append(warnings, fmt.Sprintf("paragraph %d does not end with a citation marker", i+1))
			break
		}
		if n, _ := strconv.Atoi(m[1]); n != i+1 {
			warnings = append(warnings, fmt.Sprintf("paragraph %d cites marker [%s], expected [%d]", i+1, m[1], i+1))
			break
		}
	}
	if refs != "" && expected > 0 {
		if entries := referenceEntry.FindAllString(refs, -1); len(entries) != expected {
			warnings = append(warnings, fmt.Sprintf("expected %d reference entries, found %d", expected, len(entries)))
		}
	}
	return warnings
}
