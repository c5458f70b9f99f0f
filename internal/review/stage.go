package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// Stage is one step of the pipeline: it consumes the previous stage's
// payload and produces the next one.
type Stage interface {
	Name() string
	Run(ctx context.Context, rc *RunContext, in StagePayload) (StagePayload, error)
}

// Tool gives a stage access to a non-LLM capability. Its textual output is
// folded into the backend request, so the model and the event log both see
// one logical invocation.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, input string) (string, error)
}

// StageSpec declares a single LLM-backed stage.
type StageSpec struct {
	Name        string
	Instruction string
	Input       PayloadKind
	Output      PayloadKind
	Tool        Tool
	Attempts    int           // re-generation attempts on unparseable output
	Timeout     time.Duration // per-attempt wall-clock budget, 0 = none
	Check       func(StagePayload) error
}

// StageInvoker executes one stage: it renders the instruction and input
// into a single backend request, parses the output into the declared
// shape, and appends exactly one RunEvent per completed invocation.
type StageInvoker struct {
	spec   StageSpec
	logger *log.Logger
}

func NewStageInvoker(spec StageSpec, logger *log.Logger) *StageInvoker {
	if spec.Attempts < 1 {
		spec.Attempts = 1
	}
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[STAGE:%s] ", strings.ToUpper(spec.Name)), log.LstdFlags)
	}
	return &StageInvoker{spec: spec, logger: logger}
}

func (s *StageInvoker) Name() string { return s.spec.Name }

func (s *StageInvoker) Run(ctx context.Context, rc *RunContext, in StagePayload) (StagePayload, error) {
	if err := s.checkInput(in); err != nil {
		return StagePayload{}, err
	}

	input := in.Render()
	if s.spec.Tool != nil {
		toolOut, err := s.spec.Tool.Invoke(ctx, in.Text)
		if err != nil {
			return StagePayload{}, fmt.Errorf("stage %s: tool %s: %w", s.spec.Name, s.spec.Tool.Name(), err)
		}
		input = fmt.Sprintf("%s\n\nTOOL RESULT (%s):\n%s", input, s.spec.Tool.Name(), toolOut)
	}

	var lastErr error
	for attempt := 1; attempt <= s.spec.Attempts; attempt++ {
		raw, err := s.generate(ctx, rc, input)
		if err != nil {
			// Backend faults have already been through the provider's own
			// retry envelope; nothing left to do here.
			return StagePayload{}, err
		}
		out, err := s.parse(raw)
		if err == nil {
			rc.AppendEvent(s.spec.Name, raw)
			return out, nil
		}
		lastErr = err
		s.logger.Printf("attempt %d/%d failed: %v", attempt, s.spec.Attempts, err)
	}
	return StagePayload{}, lastErr
}

// Attempts exposes the configured attempt cap for error reporting.
func (s *StageInvoker) Attempts() int { return s.spec.Attempts }

func (s *StageInvoker) checkInput(in StagePayload) error {
	if s.spec.Input == PayloadAny {
		return nil
	}
	if in.Kind != s.spec.Input {
		return &SchemaError{
			Stage:  s.spec.Name,
			Reason: fmt.Sprintf("expected %s payload, got %s", s.spec.Input, in.Kind),
		}
	}
	switch s.spec.Input {
	case PayloadPapers:
		if len(in.Papers) == 0 {
			return &SchemaError{Stage: s.spec.Name, Reason: "empty paper list"}
		}
	case PayloadText:
		if strings.TrimSpace(in.Text) == "" {
			return &SchemaError{Stage: s.spec.Name, Reason: "empty text"}
		}
	}
	return nil
}

func (s *StageInvoker) generate(ctx context.Context, rc *RunContext, input string) (string, error) {
	if s.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.spec.Timeout)
		defer cancel()
	}
	return rc.LLM().Generate(ctx, s.spec.Instruction, input)
}

func (s *StageInvoker) parse(raw string) (StagePayload, error) {
	var out StagePayload
	switch s.spec.Output {
	case PayloadPapers:
		jsonText := extractFirstJSONArray(raw)
		if jsonText == "" {
			return StagePayload{}, &OutputFormatError{Stage: s.spec.Name, Reason: "no JSON array found", Raw: raw}
		}
		var papers []PaperRecord
		if err := json.Unmarshal([]byte(jsonText), &papers); err != nil {
			return StagePayload{}, &OutputFormatError{Stage: s.spec.Name, Reason: err.Error(), Raw: raw}
		}
		if len(papers) == 0 {
			return StagePayload{}, &OutputFormatError{Stage: s.spec.Name, Reason: "empty paper list", Raw: raw}
		}
		out = PapersPayload(papers)
	default:
		text := strings.TrimSpace(raw)
		if text == "" {
			return StagePayload{}, &OutputFormatError{Stage: s.spec.Name, Reason: "empty output", Raw: raw}
		}
		out = TextPayload(text)
	}
	if s.spec.Check != nil {
		if err := s.spec.Check(out); err != nil {
			return StagePayload{}, &OutputFormatError{Stage: s.spec.Name, Reason: err.Error(), Raw: raw}
		}
	}
	return out, nil
}

// extractFirstJSONArray returns the first balanced JSON array in s,
// skipping fenced-code noise and string contents. Empty when none found.
func extractFirstJSONArray(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, ch := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '[':
			if depth == 0 {
				start = i
			}
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
