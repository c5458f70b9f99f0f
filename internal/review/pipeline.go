package review

import (
	"context"
	"errors"
	"log"
)

// Pipeline executes its stages strictly in order: stage n+1 never starts
// before stage n's output is produced and type-checked. It holds no
// business data of its own.
type Pipeline struct {
	stages []Stage
	logger *log.Logger
}

func NewPipeline(logger *log.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Run threads the payload through every stage. Any stage failure aborts
// the run immediately and comes back wrapped in a PipelineError; no stage
// is skipped or substituted with a default.
func (p *Pipeline) Run(ctx context.Context, rc *RunContext, initial StagePayload) (StagePayload, error) {
	current := initial
	for _, stage := range p.stages {
		out, err := stage.Run(ctx, rc, current)
		if err != nil {
			return StagePayload{}, p.wrap(stage, err)
		}
		p.logger.Printf("stage %s completed", stage.Name())
		current = out
	}
	return current, nil
}

func (p *Pipeline) wrap(stage Stage, err error) error {
	perr := &PipelineError{Stage: stage.Name(), Attempts: 1, Err: err}
	var ferr *OutputFormatError
	if errors.As(err, &ferr) {
		perr.Stage = ferr.Stage
		perr.LastRaw = ferr.Raw
	}
	var serr *SchemaError
	if errors.As(err, &serr) {
		perr.Stage = serr.Stage
	}
	if a, ok := stage.(interface{ Attempts() int }); ok {
		perr.Attempts = a.Attempts()
	}
	return perr
}
