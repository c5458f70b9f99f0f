package review

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/litreview/provider"
)

// RunContext is the isolated execution scope of one pipeline invocation:
// its own cancellation scope, its own backend client and its own event
// log. Nothing in it is shared across concurrent runs.
type RunContext struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	llm       provider.Client
	logger    *log.Logger
	createdAt time.Time

	mu     sync.Mutex
	events []RunEvent
}

// NewRunContext derives a run scope from parent with a dedicated backend
// client. Close must be called on every exit path.
func NewRunContext(parent context.Context, llm provider.Client, logger *log.Logger) *RunContext {
	ctx, cancel := context.WithCancel(parent)
	if logger == nil {
		logger = log.Default()
	}
	return &RunContext{
		id:        uuid.New().String(),
		ctx:       ctx,
		cancel:    cancel,
		llm:       llm,
		logger:    logger,
		createdAt: time.Now(),
	}
}

func (rc *RunContext) ID() string { return rc.id }

func (rc *RunContext) Context() context.Context { return rc.ctx }

func (rc *RunContext) LLM() provider.Client { return rc.llm }

func (rc *RunContext) Logger() *log.Logger { return rc.logger }

func (rc *RunContext) CreatedAt() time.Time { return rc.createdAt }

// AppendEvent records one stage output in the run's event log.
func (rc *RunContext) AppendEvent(stage, text string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.events = append(rc.events, RunEvent{Stage: stage, Text: text, Timestamp: time.Now()})
}

// Events returns a copy of the event log in append order.
func (rc *RunContext) Events() []RunEvent {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]RunEvent, len(rc.events))
	copy(out, rc.events)
	return out
}

// Close cancels the run scope and releases its resources.
func (rc *RunContext) Close() {
	rc.cancel()
}
