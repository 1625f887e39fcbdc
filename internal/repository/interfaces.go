package repository

import (
	"context"

	"github.com/rpattn/classcheck/internal/domain"
)

// SnapshotRepository stores the classification snapshot of the current model.
type SnapshotRepository interface {
	// Replace clears the stored snapshot and writes the given one in a single transaction.
	// It returns the number of element rows written.
	Replace(ctx context.Context, snapshot domain.Snapshot) (int64, error)
	List(ctx context.Context) ([]domain.Element, error)
	ListItems(ctx context.Context) ([]domain.ClassificationItem, error)
}

// RunLogRepository records one entry per snapshot run.
type RunLogRepository interface {
	Record(ctx context.Context, entry domain.RunLogEntry) error
	List(ctx context.Context, limit int) ([]domain.RunLogEntry, error)
}
