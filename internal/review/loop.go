package review

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// LoopState is the bookkeeping the loop carries between iterations. It is
// owned exclusively by the loop and discarded when the loop exits.
type LoopState struct {
	Iteration    int
	LastDraft    string
	LastFeedback string
	LastScore    int
}

// RefinementLoop alternates a producer stage and a critic stage, feeding
// the critic's feedback back to the producer, until the critic's score
// reaches the acceptance threshold or the iteration cap is hit. The
// producer and the critic each run at most maxIterations times.
type RefinementLoop struct {
	name          string
	producer      Stage
	critic        Stage
	maxIterations int
	threshold     int
	logger        *log.Logger
}

func NewRefinementLoop(producer, critic Stage, maxIterations, threshold int, logger *log.Logger) *RefinementLoop {
	if maxIterations < 1 {
		maxIterations = 1
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[REFINE] ", log.LstdFlags)
	}
	return &RefinementLoop{
		name:          "refine",
		producer:      producer,
		critic:        critic,
		maxIterations: maxIterations,
		threshold:     threshold,
		logger:        logger,
	}
}

func (l *RefinementLoop) Name() string { return l.name }

// Run drives the Draft/Evaluate cycle. The loop output is the draft most
// recently evaluated, never a re-run.
func (l *RefinementLoop) Run(ctx context.Context, rc *RunContext, in StagePayload) (StagePayload, error) {
	var state LoopState
	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		input := in
		if iteration > 1 {
			input = TextPayload(fmt.Sprintf("PREVIOUS DRAFT:\n%s\n\nREVIEWER FEEDBACK:\n%s",
				state.LastDraft, state.LastFeedback))
		}

		draftOut, err := l.producer.Run(ctx, rc, input)
		if err != nil {
			return StagePayload{}, err
		}
		state.LastDraft = draftOut.Text

		evalOut, err := l.critic.Run(ctx, rc, TextPayload(state.LastDraft))
		if err != nil {
			return StagePayload{}, err
		}

		eval := ParseEvaluation(evalOut.Text)
		if !eval.Scored {
			l.logger.Printf("iteration %d: no parseable score in critic output, treating as 0", iteration)
		}
		if strings.TrimSpace(state.LastDraft) == "" && eval.Body != "" {
			// Recover the draft from the critic's echo.
			state.LastDraft = eval.Body
		}
		state.Iteration = iteration
		state.LastScore = eval.Score
		state.LastFeedback = eval.Feedback
		l.logger.Printf("iteration %d/%d: score %d (threshold %d)", iteration, l.maxIterations, eval.Score, l.threshold)

		if eval.Score >= l.threshold {
			break
		}
	}
	return TextPayload(state.LastDraft), nil
}
