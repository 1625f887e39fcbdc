package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/classcheck/internal/db"
	"github.com/rpattn/classcheck/internal/domain"
)

const (
	elementTable = "ac_classification_check"
	itemTable    = "ac_classification_items"
)

var (
	elementColumns = []string{"elemGUID", "elemID", "elemType", "classGUID", "classType", "classSysGUID"}
	itemColumns    = []string{"guid", "code", "name", "description", "parent_guid", "depth", "position"}
)

type snapshotRepository struct {
	conn *db.Connection
}

// NewSnapshotRepository wires a repository backed by the given connection.
func NewSnapshotRepository(conn *db.Connection) SnapshotRepository {
	return &snapshotRepository{conn: conn}
}

func (r *snapshotRepository) Replace(ctx context.Context, snapshot domain.Snapshot) (int64, error) {
	if r.conn == nil || r.conn.Pool == nil {
		return 0, fmt.Errorf("snapshot repository not initialized")
	}

	var written int64
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+elementTable+", "+itemTable); err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{elementTable}, elementColumns, pgx.CopyFromRows(elementRows(snapshot.Elements)))
		if err != nil {
			return fmt.Errorf("failed to copy elements: %w", err)
		}
		if n != int64(len(snapshot.Elements)) {
			return fmt.Errorf("copied %d of %d elements", n, len(snapshot.Elements))
		}

		if len(snapshot.Items) > 0 {
			if _, err := tx.CopyFrom(ctx, pgx.Identifier{itemTable}, itemColumns, pgx.CopyFromRows(itemRows(snapshot.Items))); err != nil {
				return fmt.Errorf("failed to copy classification items: %w", err)
			}
		}

		written = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (r *snapshotRepository) List(ctx context.Context) ([]domain.Element, error) {
	if r.conn == nil || r.conn.Pool == nil {
		return nil, fmt.Errorf("snapshot repository not initialized")
	}

	rows, err := r.conn.Pool.Query(ctx,
		`SELECT "elemGUID", "elemID", "elemType", "classGUID", "classType", "classSysGUID"
		 FROM ac_classification_check
		 ORDER BY "elemGUID"`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot: %w", err)
	}
	defer rows.Close()

	elements := []domain.Element{}
	for rows.Next() {
		var (
			element    domain.Element
			classGUID  pgtype.UUID
			systemGUID pgtype.UUID
		)
		if scanErr := rows.Scan(
			&element.GUID,
			&element.ID,
			&element.Type,
			&classGUID,
			&element.ClassificationLabel,
			&systemGUID,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", scanErr)
		}
		element.ClassificationGUID = fromPgUUID(classGUID)
		element.ClassificationSystemGUID = fromPgUUID(systemGUID)
		elements = append(elements, element)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate snapshot: %w", rowsErr)
	}
	return elements, nil
}

func (r *snapshotRepository) ListItems(ctx context.Context) ([]domain.ClassificationItem, error) {
	if r.conn == nil || r.conn.Pool == nil {
		return nil, fmt.Errorf("snapshot repository not initialized")
	}

	rows, err := r.conn.Pool.Query(ctx,
		`SELECT guid, code, name, description, parent_guid, depth, position
		 FROM ac_classification_items
		 ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list classification items: %w", err)
	}
	defer rows.Close()

	items := []domain.ClassificationItem{}
	for rows.Next() {
		var (
			item   domain.ClassificationItem
			parent pgtype.UUID
		)
		if scanErr := rows.Scan(
			&item.GUID,
			&item.ID,
			&item.Name,
			&item.Description,
			&parent,
			&item.Depth,
			&item.Position,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan classification item: %w", scanErr)
		}
		item.ParentGUID = fromPgUUID(parent)
		items = append(items, item)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate classification items: %w", rowsErr)
	}
	return items, nil
}

// elementRows lays out elements in elementColumns order.
func elementRows(elements []domain.Element) [][]any {
	rows := make([][]any, len(elements))
	for i, e := range elements {
		rows[i] = []any{
			e.GUID,
			e.ID,
			e.Type,
			toPgUUID(e.ClassificationGUID),
			e.ClassificationLabel,
			toPgUUID(e.ClassificationSystemGUID),
		}
	}
	return rows
}

// itemRows lays out classification items in itemColumns order.
func itemRows(items []domain.ClassificationItem) [][]any {
	rows := make([][]any, len(items))
	for i, item := range items {
		rows[i] = []any{
			item.GUID,
			item.ID,
			item.Name,
			item.Description,
			toPgUUID(item.ParentGUID),
			int32(item.Depth),
			int32(item.Position),
		}
	}
	return rows
}

func toPgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func fromPgUUID(id pgtype.UUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	value := uuid.UUID(id.Bytes)
	return &value
}
