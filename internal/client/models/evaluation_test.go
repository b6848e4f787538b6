package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFromColumns(t *testing.T) {
	tests := []struct {
		name        string
		synced      bool
		serverID    int64
		hasServerID bool
		want        Identity
		wantErr     error
	}{
		{name: "pending", want: Pending{}},
		{name: "pending update", serverID: 7, hasServerID: true, want: PendingUpdate{ServerID: 7}},
		{name: "synced", synced: true, serverID: 7, hasServerID: true, want: Synced{ServerID: 7}},
		{name: "synced without id", synced: true, wantErr: ErrCorruptIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IdentityFromColumns(tt.synced, tt.serverID, tt.hasServerID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			synced, id, has := IdentityColumns(got)
			assert.Equal(t, tt.synced, synced)
			assert.Equal(t, tt.serverID, id)
			assert.Equal(t, tt.hasServerID, has)
		})
	}
}

func TestEvaluation_ServerIDAndSynced(t *testing.T) {
	e := &Evaluation{Identity: Pending{}}
	_, ok := e.ServerID()
	assert.False(t, ok)
	assert.False(t, e.Synced())

	e.Identity = PendingUpdate{ServerID: 3}
	id, ok := e.ServerID()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.False(t, e.Synced())

	e.Identity = Synced{ServerID: 3}
	assert.True(t, e.Synced())
}

func TestSyncQueueEntry_Eligible(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	q := &SyncQueueEntry{Status: QueueStatusPending, NextAttemptAt: now}
	assert.True(t, q.Eligible(now))

	q.NextAttemptAt = now.Add(time.Second)
	assert.False(t, q.Eligible(now))

	q.NextAttemptAt = time.Time{}
	q.Status = QueueStatusRejected
	assert.False(t, q.Eligible(now))

	q.Status = QueueStatusStaleRetry
	assert.False(t, q.Eligible(now))
}

func TestEvaluation_Payload(t *testing.T) {
	e := &Evaluation{
		ClientID:       "c1",
		Identity:       Synced{ServerID: 4},
		LocationID:     1,
		EvaluatorID:    2,
		CompanyID:      3,
		EvaluationDate: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Notes:          "n",
	}
	p := e.Payload()
	assert.Equal(t, "c1", p.ClientID)
	assert.Equal(t, "2024-01-31", p.EvaluationDate)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
}
