package review

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/litreview/provider"
)

// fakeClient replays a fixed queue of responses.
type fakeClient struct {
	mu        sync.Mutex
	responses []string
	calls     []string
	inputs    []string
	failWith  error
}

func (f *fakeClient) Generate(ctx context.Context, instruction, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.calls = append(f.calls, instruction)
	f.inputs = append(f.inputs, input)
	if len(f.responses) == 0 {
		return "", fmt.Errorf("fake client: out of responses")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

func (f *fakeClient) callCount(marker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c, marker) {
			n++
		}
	}
	return n
}

// autoClient answers every stage plausibly based on its instruction, so
// full pipeline runs can be driven without scripting each response. The
// evaluate scores are consumed in order; when exhausted it scores 9.
type autoClient struct {
	mu     sync.Mutex
	topic  string
	calls  []string
	scores []int
}

func (c *autoClient) Generate(ctx context.Context, instruction, input string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, instruction)
	switch {
	case strings.Contains(instruction, "Research Librarian"):
		c.topic = strings.TrimSpace(strings.SplitN(input, "\n", 2)[0])
		return extractFirstJSONArray(input), nil
	case strings.Contains(instruction, "Senior Editor"):
		var papers []PaperRecord
		if err := json.Unmarshal([]byte(extractFirstJSONArray(input)), &papers); err != nil {
			return "", err
		}
		data, err := json.Marshal(selectTop(papers, 5))
		return string(data), err
	case strings.Contains(instruction, "Research Analyst"):
		var papers []PaperRecord
		if err := json.Unmarshal([]byte(extractFirstJSONArray(input)), &papers); err != nil {
			return "", err
		}
		for i := range papers {
			papers[i].KeyFindings = "findings for " + papers[i].Title
			papers[i].Methodology = "methodology for " + papers[i].Title
			papers[i].Relevance = "relevance for " + papers[i].Title
		}
		data, err := json.Marshal(papers)
		return string(data), err
	case strings.Contains(instruction, "Academic Writer"):
		return draftFor(c.topic, 5), nil
	case strings.Contains(instruction, "Reviewer"):
		score := 9
		if len(c.scores) > 0 {
			score = c.scores[0]
			c.scores = c.scores[1:]
		}
		return evalOutput(score, "tighten paragraph 2", input), nil
	}
	return "", fmt.Errorf("auto client: unrecognized instruction")
}

func (c *autoClient) callCount(marker string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if strings.Contains(call, marker) {
			n++
		}
	}
	return n
}

// selectTop applies the selection contract: known-year papers first,
// newest first, truncated to n.
func selectTop(papers []PaperRecord, n int) []PaperRecord {
	sorted := make([]PaperRecord, len(papers))
	copy(sorted, papers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if (sorted[i].Year == 0) != (sorted[j].Year == 0) {
			return sorted[j].Year == 0
		}
		return sorted[i].Year > sorted[j].Year
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func samplePapers(n int, knownYears int) []PaperRecord {
	papers := make([]PaperRecord, 0, n)
	for i := 1; i <= n; i++ {
		p := PaperRecord{
			Title:    fmt.Sprintf("Paper %d", i),
			URL:      fmt.Sprintf("https://example.org/%d", i),
			Abstract: fmt.Sprintf("Abstract of paper %d.", i),
			Authors:  fmt.Sprintf("Author%d A., Author%d B.", i, i),
			Source:   "ArXiv",
		}
		if i <= knownYears {
			p.Year = Year(2018 + i)
		}
		papers = append(papers, p)
	}
	return papers
}

// draftFor produces a structurally valid n-paragraph review mentioning
// topic, with sequential markers and a references section.
func draftFor(topic string, n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "Author%d et al. investigate %s and report measurable gains over prior baselines. [%d]\n\n", i, topic, i)
	}
	sb.WriteString("### References\n\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "[%d] Paper %d, Author%d A., 202%d, https://example.org/%d\n\n", i, i, i, i%10, i)
	}
	return strings.TrimSpace(sb.String())
}

func evalOutput(score int, feedback, draft string) string {
	return fmt.Sprintf("Score: %d\nFeedback: %s\n\n%s", score, feedback, draft)
}

func newTestRC(client provider.Client) *RunContext {
	return NewRunContext(context.Background(), client, nil)
}
