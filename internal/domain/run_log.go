package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the outcome of a snapshot run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusDryRun    RunStatus = "dry_run"
)

// RunLogEntry captures the outcome of one snapshot run.
type RunLogEntry struct {
	ID                   uuid.UUID `json:"id"`
	ClassificationSystem string    `json:"classification_system"`
	Status               RunStatus `json:"status"`
	Stage                Stage     `json:"stage,omitempty"`
	ErrorKind            ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	Elements             int       `json:"elements"`
	Classified           int       `json:"classified"`
	Unclassified         int       `json:"unclassified"`
	Unresolved           int       `json:"unresolved"`
	TaxonomyItems        int       `json:"taxonomy_items"`
	RowsWritten          int64     `json:"rows_written"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
}

// Duration returns how long the run took.
func (e RunLogEntry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}
