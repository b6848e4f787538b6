package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingGauge_RecountsOnlyWhenStale(t *testing.T) {
	calls, n := 0, 2
	g := newPendingGauge(func(context.Context) (int, error) { calls++; return n, nil })
	ctx := context.Background()

	assert.Equal(t, 2, g.value(ctx))
	assert.Equal(t, 2, g.value(ctx))
	assert.Equal(t, 1, calls)

	n = 3
	g.onChange(store.Change{Collections: []store.Collection{store.Companies, store.Auth}})
	assert.Equal(t, 2, g.value(ctx))
	assert.Equal(t, 1, calls)

	g.onChange(store.Change{Collections: []store.Collection{store.SyncQueue}})
	assert.Equal(t, 3, g.value(ctx))
	assert.Equal(t, 2, calls)
}

func TestPendingGauge_KeepsLastValueOnError(t *testing.T) {
	var err error
	g := newPendingGauge(func(context.Context) (int, error) { return 4, err })
	ctx := context.Background()
	require.Equal(t, 4, g.value(ctx))

	err = errors.New("database is locked")
	g.onChange(store.Change{Collections: []store.Collection{store.Evaluations}})
	assert.Equal(t, 4, g.value(ctx))

	err = nil
	assert.Equal(t, 4, g.value(ctx))
	assert.False(t, g.stale.Load())
}
