package repository

import (
	"context"
	"time"
)

// StoredEvent is one event-log entry in archived form.
type StoredEvent struct {
	Stage     string    `json:"stage"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RunRecord is the archived form of one completed review run.
type RunRecord struct {
	ID         string        `json:"id"`
	Topic      string        `json:"topic"`
	Report     string        `json:"report"`
	Warnings   []string      `json:"warnings,omitempty"`
	Incomplete bool          `json:"incomplete"`
	Events     []StoredEvent `json:"events,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RunArchive persists completed runs. Archiving is best-effort: callers
// log failures and keep going.
type RunArchive interface {
	SaveRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	ListRuns(ctx context.Context) ([]string, error)
}
