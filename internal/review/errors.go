package review

import "fmt"

// SchemaError reports stage input that violates the stage's declared
// shape. Fatal to the run, never retried.
type SchemaError struct {
	Stage  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("stage %s: invalid input: %s", e.Stage, e.Reason)
}

// OutputFormatError reports backend output that could not be parsed into
// the stage's declared output shape. Retried at the invoker level up to
// the attempt cap; Raw carries the offending text for diagnosis.
type OutputFormatError struct {
	Stage  string
	Reason string
	Raw    string
}

func (e *OutputFormatError) Error() string {
	return fmt.Sprintf("stage %s: unparseable output: %s", e.Stage, e.Reason)
}

// PipelineError wraps a fatal stage failure with its position in the run.
type PipelineError struct {
	Stage    string
	Attempts int
	LastRaw  string
	Err      error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at stage %s after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// ConfigurationError reports a fault detected before the pipeline starts,
// such as missing credentials. No backend call is attempted.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}
