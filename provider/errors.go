package provider

import "fmt"

// Error is a failure reported by an LLM backend. Status carries the HTTP
// status code when the backend answered at all; zero means a
// transport-level failure.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider: status %d: %s", e.Status, e.Message)
	}
	return "provider: " + e.Message
}
