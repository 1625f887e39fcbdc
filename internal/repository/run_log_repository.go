package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/classcheck/internal/domain"
)

type runLogRepository struct {
	pool *pgxpool.Pool
}

// NewRunLogRepository wires a repository backed by pgxpool.
func NewRunLogRepository(pool *pgxpool.Pool) RunLogRepository {
	return &runLogRepository{pool: pool}
}

func (r *runLogRepository) Record(ctx context.Context, entry domain.RunLogEntry) error {
	if r.pool == nil {
		return fmt.Errorf("run log repository not initialized")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO snapshot_runs (
			id, classification_system, status, stage, error_kind, error_message,
			elements, classified, unclassified, unresolved, taxonomy_items, rows_written,
			started_at, finished_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		entry.ID,
		entry.ClassificationSystem,
		string(entry.Status),
		string(entry.Stage),
		string(entry.ErrorKind),
		entry.ErrorMessage,
		entry.Elements,
		entry.Classified,
		entry.Unclassified,
		entry.Unresolved,
		entry.TaxonomyItems,
		entry.RowsWritten,
		entry.StartedAt,
		entry.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run log: %w", err)
	}

	return nil
}

func (r *runLogRepository) List(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("run log repository not initialized")
	}

	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, classification_system, status, stage, error_kind, error_message,
		        elements, classified, unclassified, unresolved, taxonomy_items, rows_written,
		        started_at, finished_at
		 FROM snapshot_runs
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	defer rows.Close()

	entries := []domain.RunLogEntry{}
	for rows.Next() {
		var (
			entry                    domain.RunLogEntry
			status, stage, errorKind string
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.ClassificationSystem,
			&status,
			&stage,
			&errorKind,
			&entry.ErrorMessage,
			&entry.Elements,
			&entry.Classified,
			&entry.Unclassified,
			&entry.Unresolved,
			&entry.TaxonomyItems,
			&entry.RowsWritten,
			&entry.StartedAt,
			&entry.FinishedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", scanErr)
		}
		entry.Status = domain.RunStatus(status)
		entry.Stage = domain.Stage(stage)
		entry.ErrorKind = domain.ErrorKind(errorKind)
		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate run logs: %w", rowsErr)
	}

	return entries, nil
}
