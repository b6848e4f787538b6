package reference

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
)

var _ Repository[models.Company] = (*SQLiteRepository[models.Company])(nil)

type SQLiteRepository[T models.Reference] struct {
	db    dbx.DBTX
	table string
}

// NewSQLiteRepository binds a repository to one of the Table* collections.
func NewSQLiteRepository[T models.Reference](db dbx.DBTX, table string) *SQLiteRepository[T] {
	return &SQLiteRepository[T]{db: db, table: table}
}

// ReplaceAll drops the collection and writes items in its place. Run it inside
// a transaction so readers never see a half-written snapshot.
func (r *SQLiteRepository[T]) ReplaceAll(ctx context.Context, items []T) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.table, err)
	}

	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode %s item %d: %w", r.table, item.Key(), err)
		}
		if _, err := r.db.ExecContext(ctx, `INSERT INTO `+r.table+` (id, data) VALUES (?, ?)`, item.Key(), string(data)); err != nil {
			return fmt.Errorf("failed to insert %s item %d: %w", r.table, item.Key(), err)
		}
	}
	return nil
}

// Get returns the item or common.ErrNotFound.
func (r *SQLiteRepository[T]) Get(ctx context.Context, id int64) (T, error) {
	var zero T
	var data string

	err := r.db.QueryRowContext(ctx, `SELECT data FROM `+r.table+` WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, common.ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to get %s item %d: %w", r.table, id, err)
	}

	var item T
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return zero, fmt.Errorf("failed to decode %s item %d: %w", r.table, id, err)
	}
	return item, nil
}

func (r *SQLiteRepository[T]) List(ctx context.Context) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM `+r.table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table, err)
	}
	defer rows.Close()

	result := make([]T, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.table, err)
		}
		var item T
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", r.table, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", r.table, err)
	}
	return result, nil
}
