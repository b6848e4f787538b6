package models

import "time"

type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
)

type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusRejected   QueueStatus = "rejected"
	QueueStatusStaleRetry QueueStatus = "stale_retry"
)

// SyncQueueEntry is the outbound operation for one evaluation. There is at
// most one per ClientID.
type SyncQueueEntry struct {
	ClientID  string
	Operation OperationKind
	Status    QueueStatus

	// Attempts only ever grows. The entry turns stale once it reaches
	// AttemptLimit; reactivation moves the limit, not the counter.
	Attempts     int
	AttemptLimit int

	// Revision changes on every local edit of the evaluation.
	Revision int64

	LastAttemptAt time.Time
	LastError     string
	EnqueuedAt    time.Time
	NextAttemptAt time.Time
}

// Eligible reports whether the engine may send the entry at now.
func (q *SyncQueueEntry) Eligible(now time.Time) bool {
	return q.Status == QueueStatusPending && !q.NextAttemptAt.After(now)
}
