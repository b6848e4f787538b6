package cli

import (
	"context"
	"sync/atomic"

	"github.com/dmitrijs2005/inspectsync/internal/client/store"
)

// pendingGauge keeps the unsynced count shown in the prompt. Store writes
// only mark it stale; the next read recounts.
type pendingGauge struct {
	count func(ctx context.Context) (int, error)
	stale atomic.Bool
	n     atomic.Int64
}

func newPendingGauge(count func(ctx context.Context) (int, error)) *pendingGauge {
	g := &pendingGauge{count: count}
	g.stale.Store(true)
	return g
}

// onChange is registered with Store.Watch and runs on the writer's goroutine.
func (g *pendingGauge) onChange(ch store.Change) {
	if ch.Has(store.Evaluations) || ch.Has(store.SyncQueue) {
		g.stale.Store(true)
	}
}

// value returns the last known count when the recount fails.
func (g *pendingGauge) value(ctx context.Context) int {
	if g.stale.Swap(false) {
		n, err := g.count(ctx)
		if err != nil {
			g.stale.Store(true)
		} else {
			g.n.Store(int64(n))
		}
	}
	return int(g.n.Load())
}
