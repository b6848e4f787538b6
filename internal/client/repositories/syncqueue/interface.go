// Package syncqueue persists outbound sync operations, one per evaluation.
package syncqueue

import (
	"context"
	"iter"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

type Repository interface {
	Upsert(ctx context.Context, q *models.SyncQueueEntry) error
	Get(ctx context.Context, clientID string) (*models.SyncQueueEntry, error)
	Delete(ctx context.Context, clientID string) error
	DeleteIfRevision(ctx context.Context, clientID string, revision int64) (bool, error)
	Ordered(ctx context.Context) iter.Seq2[*models.SyncQueueEntry, error]
	Eligible(ctx context.Context, now time.Time) ([]*models.SyncQueueEntry, error)
	CountByStatus(ctx context.Context) (map[models.QueueStatus]int, error)
	NextAttemptAt(ctx context.Context) (time.Time, bool, error)
}
