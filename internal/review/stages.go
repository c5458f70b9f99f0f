package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/litreview/config"
	"github.com/mohammad-safakhou/litreview/tools/papersearch"
)

// Stage names. The evaluate stage is the designated final stage of a run:
// the result extractor scans for its events.
const (
	StageSearch     = "search"
	StageSelect     = "select"
	StageExtract    = "extract"
	StageSynthesize = "synthesize"
	StageEvaluate   = "evaluate"
)

const searchInstruction = `You are a Research Librarian.
Your goal is to find a broad list of research papers for a given query.
The TOOL RESULT block contains the raw papers found for the query.

Output: Return the raw JSON list of papers found.`

func selectInstruction(count int) string {
	return fmt.Sprintf(`You are a Senior Editor.
Input: The list of research papers provided by the previous stage.
Task: Select the top %d most relevant and high-quality papers.

Sorting Logic:
- Prioritize papers with a known Year.
- Sort the final %d papers by Year (Descending/Newest First).
- The JSON array MUST be ordered such that index 0 is the newest paper.

Output: Return the SORTED JSON list of %d papers.`, count, count, count)
}

const extractInstruction = `You are a Research Analyst.
Input: The list of selected papers provided by the previous stage.
Task: For each paper, extract:
- key_findings
- methodology
- relevance

Output: Return the enriched JSON list with these details added.`

func synthesizeInstruction(count int) string {
	return fmt.Sprintf(`You are an Academic Writer.
Input:
- First run: a list of %d analyzed papers.
- Subsequent runs: your previous draft AND the reviewer's feedback.

Task: Write (or rewrite) a comprehensive literature review report.

If you receive feedback, use it to IMPROVE your draft. Fix any issues mentioned.

CRITICAL OUTPUT FORMAT:
- Write EXACTLY %d paragraphs, one for each paper.
- ORDER: Discuss papers in the exact order provided (which is sorted by date).
- PARAGRAPH START: Start EACH paragraph with the first author's name and "et al." (e.g., "Pan et al. ...").
- CITATION: End each paragraph with a sequential citation marker: [1], [2], ... [%d].

- REFERENCES SECTION:
  Add a "### References" section at the end, formatted as a list.
  CRITICAL: Put a BLANK LINE (double newline) between each reference.

  Example format:
  [1] Title, Authors, Year, URL

  [2] Title, Authors, Year, URL

Output: Return the full literature review text.`, count, count, count)
}

const evaluateInstruction = `You are a Reviewer.
Input: The literature review report provided by the previous stage.
Task: Evaluate if it follows the required paragraph format and has correct citations.

OUTPUT FORMAT (exactly):
Score: <1-10>
Feedback: <brief feedback>

<the ORIGINAL literature review text exactly as received>

If the score is low (< 8), be very specific about what needs to be fixed in your feedback.

IMPORTANT: You are the final step of the loop. Return the full review text after a blank line.`

// searchTool binds the paper search capability to the search stage.
type searchTool struct {
	searcher papersearch.Searcher
	max      int
}

func (t searchTool) Name() string { return "search_papers" }

func (t searchTool) Invoke(ctx context.Context, topic string) (string, error) {
	records, err := t.searcher.Search(ctx, topic, t.max)
	if err != nil {
		return "", err
	}
	papers := make([]PaperRecord, 0, len(records))
	for _, r := range records {
		papers = append(papers, PaperRecord{
			Title:    r.Title,
			URL:      r.URL,
			Abstract: r.Abstract,
			Authors:  r.Authors,
			Year:     Year(r.Year),
			Source:   r.Source,
		})
	}
	data, err := json.Marshal(papers)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Stages bundles the five invokers of a review run.
type Stages struct {
	Search     *StageInvoker
	Select     *StageInvoker
	Extract    *StageInvoker
	Synthesize *StageInvoker
	Evaluate   *StageInvoker
}

// BuildStages wires the stage set for one pipeline according to the
// pipeline configuration. searchMax caps results per search sub-source.
func BuildStages(searcher papersearch.Searcher, searchMax int, p config.PipelineConfig, logger *log.Logger) Stages {
	count := p.SelectCount
	return Stages{
		Search: NewStageInvoker(StageSpec{
			Name:        StageSearch,
			Instruction: searchInstruction,
			Input:       PayloadText,
			Output:      PayloadPapers,
			Tool:        searchTool{searcher: searcher, max: searchMax},
			Attempts:    p.StageAttempts,
			Timeout:     p.StageTimeout,
		}, logger),
		Select: NewStageInvoker(StageSpec{
			Name:        StageSelect,
			Instruction: selectInstruction(count),
			Input:       PayloadPapers,
			Output:      PayloadPapers,
			Attempts:    p.StageAttempts,
			Timeout:     p.StageTimeout,
			Check: func(out StagePayload) error {
				if len(out.Papers) != count {
					return fmt.Errorf("expected %d papers, got %d", count, len(out.Papers))
				}
				return nil
			},
		}, logger),
		Extract: NewStageInvoker(StageSpec{
			Name:        StageExtract,
			Instruction: extractInstruction,
			Input:       PayloadPapers,
			Output:      PayloadPapers,
			Attempts:    p.StageAttempts,
			Timeout:     p.StageTimeout,
		}, logger),
		Synthesize: NewStageInvoker(StageSpec{
			Name:        StageSynthesize,
			Instruction: synthesizeInstruction(count),
			Input:       PayloadAny,
			Output:      PayloadText,
			Attempts:    p.StageAttempts,
			Timeout:     p.StageTimeout,
		}, logger),
		Evaluate: NewStageInvoker(StageSpec{
			Name:        StageEvaluate,
			Instruction: evaluateInstruction,
			Input:       PayloadText,
			Output:      PayloadText,
			Attempts:    p.StageAttempts,
			Timeout:     p.StageTimeout,
		}, logger),
	}
}
