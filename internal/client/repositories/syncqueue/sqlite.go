package syncqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
)

const columns = `client_id, operation, status, attempts, attempt_limit, revision,
	last_attempt_at, last_error, enqueued_at, next_attempt_at`

var _ Repository = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert writes the entry. The client id is unique, so a second entry for the
// same evaluation replaces the first.
func (r *SQLiteRepository) Upsert(ctx context.Context, q *models.SyncQueueEntry) error {
	var lastAttempt sql.NullInt64
	if !q.LastAttemptAt.IsZero() {
		lastAttempt = sql.NullInt64{Int64: q.LastAttemptAt.UnixMilli(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO sync_queue (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			operation = excluded.operation,
			status = excluded.status,
			attempts = excluded.attempts,
			attempt_limit = excluded.attempt_limit,
			revision = excluded.revision,
			last_attempt_at = excluded.last_attempt_at,
			last_error = excluded.last_error,
			enqueued_at = excluded.enqueued_at,
			next_attempt_at = excluded.next_attempt_at`,
		q.ClientID, string(q.Operation), string(q.Status), q.Attempts, q.AttemptLimit, q.Revision,
		lastAttempt, q.LastError, q.EnqueuedAt.UnixMilli(), q.NextAttemptAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert queue entry %s: %w", q.ClientID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, clientID string) (*models.SyncQueueEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM sync_queue WHERE client_id = ?`, clientID)
	q, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry %s: %w", clientID, err)
	}
	return q, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, clientID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE client_id = ?`, clientID); err != nil {
		return fmt.Errorf("failed to delete queue entry %s: %w", clientID, err)
	}
	return nil
}

// DeleteIfRevision removes the entry only if no edit happened since revision
// was read. It reports whether a row was removed.
func (r *SQLiteRepository) DeleteIfRevision(ctx context.Context, clientID string, revision int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE client_id = ? AND revision = ?`, clientID, revision)
	if err != nil {
		return false, fmt.Errorf("failed to delete queue entry %s: %w", clientID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// Ordered streams every entry, oldest enqueued first.
func (r *SQLiteRepository) Ordered(ctx context.Context) iter.Seq2[*models.SyncQueueEntry, error] {
	return r.query(ctx, `SELECT `+columns+` FROM sync_queue ORDER BY enqueued_at, client_id`)
}

// Eligible returns pending entries whose backoff has elapsed, oldest first.
func (r *SQLiteRepository) Eligible(ctx context.Context, now time.Time) ([]*models.SyncQueueEntry, error) {
	var result []*models.SyncQueueEntry
	seq := r.query(ctx, `SELECT `+columns+` FROM sync_queue
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY enqueued_at, client_id`, string(models.QueueStatusPending), now.UnixMilli())
	for q, err := range seq {
		if err != nil {
			return nil, err
		}
		result = append(result, q)
	}
	return result, nil
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[models.QueueStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue entries: %w", err)
	}
	defer rows.Close()

	result := make(map[models.QueueStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan queue count: %w", err)
		}
		result[models.QueueStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue counts: %w", err)
	}
	return result, nil
}

// NextAttemptAt returns the earliest time a pending entry becomes eligible.
func (r *SQLiteRepository) NextAttemptAt(ctx context.Context) (time.Time, bool, error) {
	var next sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MIN(next_attempt_at) FROM sync_queue WHERE status = ?`,
		string(models.QueueStatusPending)).Scan(&next)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read next attempt time: %w", err)
	}
	if !next.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(next.Int64).UTC(), true, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) iter.Seq2[*models.SyncQueueEntry, error] {
	return func(yield func(*models.SyncQueueEntry, error) bool) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query sync queue: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			q, err := scan(rows)
			if err != nil {
				yield(nil, fmt.Errorf("failed to scan queue entry: %w", err))
				return
			}
			if !yield(q, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to iterate sync queue: %w", err))
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.SyncQueueEntry, error) {
	var (
		q           models.SyncQueueEntry
		op, status  string
		lastAttempt sql.NullInt64
		enqueuedAt  int64
		nextAt      int64
	)
	if err := s.Scan(&q.ClientID, &op, &status, &q.Attempts, &q.AttemptLimit, &q.Revision,
		&lastAttempt, &q.LastError, &enqueuedAt, &nextAt); err != nil {
		return nil, err
	}
	q.Operation = models.OperationKind(op)
	q.Status = models.QueueStatus(status)
	if lastAttempt.Valid {
		q.LastAttemptAt = time.UnixMilli(lastAttempt.Int64).UTC()
	}
	q.EnqueuedAt = time.UnixMilli(enqueuedAt).UTC()
	q.NextAttemptAt = time.UnixMilli(nextAt).UTC()
	return &q, nil
}
