// Package syncer drains the sync queue against the server.
//
// One drain runs at a time. Within a drain every queued evaluation is sent at
// most once, and different evaluations are sent in parallel up to
// Config.Concurrency. Outcomes are written back to the store in their own
// transactions, so a drain interrupted at any point leaves a consistent queue.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Concurrency    int
	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

// Connectivity is the part of the connectivity monitor the engine reads.
type Connectivity interface {
	Online() bool
}

// DrainResult summarizes one drain. Pending is what is left eligible or
// waiting for backoff once the drain ends.
type DrainResult struct {
	Succeeded   int
	Failed      int
	Rejected    int
	Stale       int
	Pending     int
	Interrupted bool
	AuthExpired bool
	Err         error
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOnAuthExpired registers the callback run when the server stops
// accepting the token. The engine stays paused until ResumeAfterAuth.
func WithOnAuthExpired(fn func()) Option {
	return func(e *Engine) { e.onAuthExpired = fn }
}

type Engine struct {
	st   *store.Store
	api  client.Client
	conn Connectivity
	cfg  Config
	log  logging.Logger

	now           func() time.Time
	onAuthExpired func()

	trigger chan struct{}
	drainMu sync.Mutex
	paused  atomic.Bool

	subMu sync.Mutex
	subs  []func(DrainResult)
}

func New(st *store.Store, api client.Client, conn Connectivity, cfg Config, log logging.Logger, opts ...Option) *Engine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	e := &Engine{
		st:      st,
		api:     api,
		conn:    conn,
		cfg:     cfg,
		log:     log.With("module", "syncer"),
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Subscribe registers fn to receive every drain result.
func (e *Engine) Subscribe(fn func(DrainResult)) {
	e.subMu.Lock()
	e.subs = append(e.subs, fn)
	e.subMu.Unlock()
}

// Trigger asks Run for a drain. Triggers that arrive while one is pending
// collapse into it.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run drains on every trigger until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.trigger:
			e.SyncNow(ctx)
		}
	}
}

// Paused reports whether the engine waits for re-authentication.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// ResumeAfterAuth lifts the pause set by an expired token and asks for a
// drain.
func (e *Engine) ResumeAfterAuth() {
	if e.paused.CompareAndSwap(true, false) {
		e.log.Info(context.Background(), "resumed after re-authentication")
	}
	e.Trigger()
}

// WakeIfDue triggers a drain when some entry's backoff has run out.
func (e *Engine) WakeIfDue(ctx context.Context) {
	if !e.conn.Online() || e.paused.Load() {
		return
	}
	next, ok, err := e.st.Queue().NextAttemptAt(ctx)
	if err != nil {
		e.log.Warn(ctx, "failed to read next attempt time", "error", err)
		return
	}
	if ok && !next.After(e.now()) {
		e.Trigger()
	}
}

// Retry reactivates a rejected or stale entry with a fresh attempt budget.
func (e *Engine) Retry(ctx context.Context, clientID string) error {
	now := e.now().UTC()
	err := e.st.WithTx(ctx, func(tx *store.Tx) error {
		q, err := tx.Queue().Get(ctx, clientID)
		if err != nil {
			return err
		}
		if q.Status == models.QueueStatusPending {
			q.NextAttemptAt = now
		} else {
			q.Status = models.QueueStatusPending
			q.AttemptLimit = q.Attempts + e.cfg.MaxAttempts
			q.NextAttemptAt = now
		}
		return tx.Queue().Upsert(ctx, q)
	})
	if err != nil {
		return fmt.Errorf("failed to reactivate %s: %w", clientID, err)
	}
	e.log.Info(ctx, "entry reactivated", "client_id", clientID)
	e.Trigger()
	return nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeFailed
	outcomeStale
	outcomeRejected
	outcomeAuthExpired
)

// SyncNow runs one drain and returns its result. It waits for a drain
// already in progress to finish first.
func (e *Engine) SyncNow(ctx context.Context) DrainResult {
	e.drainMu.Lock()
	res := e.drain(ctx)
	e.drainMu.Unlock()

	e.log.Info(ctx, "drain finished",
		"succeeded", res.Succeeded, "failed", res.Failed, "rejected", res.Rejected,
		"stale", res.Stale, "pending", res.Pending,
		"interrupted", res.Interrupted, "auth_expired", res.AuthExpired)

	e.subMu.Lock()
	subs := append([]func(DrainResult){}, e.subs...)
	e.subMu.Unlock()
	for _, fn := range subs {
		fn(res)
	}
	return res
}

func (e *Engine) drain(ctx context.Context) DrainResult {
	var res DrainResult
	defer func() { e.countPending(ctx, &res) }()

	if e.paused.Load() {
		res.AuthExpired = true
		return res
	}
	if !e.conn.Online() {
		res.Interrupted = true
		return res
	}

	entries, err := e.st.Queue().Eligible(ctx, e.now())
	if err != nil {
		res.Err = err
		return res
	}

	var (
		mu          sync.Mutex
		stop        atomic.Bool
		interrupted atomic.Bool
	)
	record := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeSucceeded:
			res.Succeeded++
		case outcomeFailed:
			res.Failed++
		case outcomeStale:
			res.Failed++
			res.Stale++
		case outcomeRejected:
			res.Rejected++
		case outcomeAuthExpired:
			res.AuthExpired = true
		}
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)

	for _, q := range entries {
		if stop.Load() || ctx.Err() != nil {
			break
		}
		if !e.conn.Online() {
			interrupted.Store(true)
			break
		}
		g.Go(func() error {
			// the slot may have freed up long after the loop checked
			if stop.Load() || ctx.Err() != nil {
				return nil
			}
			if !e.conn.Online() {
				interrupted.Store(true)
				return nil
			}
			o := e.process(ctx, q)
			if o == outcomeAuthExpired {
				stop.Store(true)
			}
			record(o)
			return nil
		})
	}
	_ = g.Wait()

	res.Interrupted = interrupted.Load() || ctx.Err() != nil
	if res.AuthExpired && e.paused.CompareAndSwap(false, true) {
		e.log.Warn(ctx, "server refused the token, sync paused")
		if e.onAuthExpired != nil {
			e.onAuthExpired()
		}
	}
	return res
}

func (e *Engine) countPending(ctx context.Context, res *DrainResult) {
	counts, err := e.st.Queue().CountByStatus(context.WithoutCancel(ctx))
	if err != nil {
		if res.Err == nil {
			res.Err = err
		}
		return
	}
	res.Pending = counts[models.QueueStatusPending]
}

// process sends one entry and applies the outcome. The outcome is written
// even if ctx is cancelled meanwhile: the request may have reached the
// server.
func (e *Engine) process(ctx context.Context, q *models.SyncQueueEntry) outcome {
	log := e.log.With("client_id", q.ClientID, "revision", q.Revision)

	ev, err := e.st.Evaluations().Get(ctx, q.ClientID)
	if err != nil {
		log.Error(ctx, "failed to load queued evaluation", "error", err)
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, models.ErrCorruptIdentity) {
			return e.applyRejected(ctx, q, err)
		}
		return outcomeSkipped
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	serverID, err := e.send(rctx, ev)
	cancel()

	applyCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		log.Debug(ctx, "sent", "server_id", serverID)
		return e.applySuccess(applyCtx, q, serverID)
	case errors.Is(err, client.ErrUnauthorized):
		// the queue stays exactly as it was
		return outcomeAuthExpired
	case errors.Is(err, client.ErrRejected):
		log.Warn(ctx, "server rejected evaluation", "error", err)
		return e.applyRejected(applyCtx, q, err)
	default:
		log.Debug(ctx, "send failed", "error", err)
		return e.applyFailure(applyCtx, q, err)
	}
}

func (e *Engine) send(ctx context.Context, ev *models.Evaluation) (int64, error) {
	switch id := ev.Identity.(type) {
	case models.Pending:
		return e.api.CreateEvaluation(ctx, ev.Payload())
	case models.PendingUpdate:
		return id.ServerID, e.api.UpdateEvaluation(ctx, id.ServerID, ev.Payload())
	case models.Synced:
		// nothing to send; the entry is left over from an edit that was
		// already delivered
		return id.ServerID, nil
	default:
		return 0, fmt.Errorf("unexpected identity %T", id)
	}
}

// applySuccess marks the evaluation synced, unless it was edited while the
// request was out. Then the edit still has to travel, as an update of the
// server id just learned.
func (e *Engine) applySuccess(ctx context.Context, q *models.SyncQueueEntry, serverID int64) outcome {
	err := e.st.WithTx(ctx, func(tx *store.Tx) error {
		ev, err := tx.Evaluations().Get(ctx, q.ClientID)
		if err != nil {
			return err
		}

		done, err := tx.Queue().DeleteIfRevision(ctx, q.ClientID, q.Revision)
		if err != nil {
			return err
		}
		if done {
			ev.Identity = models.Synced{ServerID: serverID}
			return tx.Evaluations().Upsert(ctx, ev)
		}

		ev.Identity = models.PendingUpdate{ServerID: serverID}
		if err := tx.Evaluations().Upsert(ctx, ev); err != nil {
			return err
		}
		cur, err := tx.Queue().Get(ctx, q.ClientID)
		if err != nil {
			return err
		}
		cur.Operation = models.OperationUpdate
		return tx.Queue().Upsert(ctx, cur)
	})
	if errors.Is(err, common.ErrNotFound) {
		// wiped while in flight
		return outcomeSucceeded
	}
	if err != nil {
		e.log.Error(ctx, "failed to record successful sync", "client_id", q.ClientID, "error", err)
		return outcomeFailed
	}
	return outcomeSucceeded
}

func (e *Engine) applyFailure(ctx context.Context, q *models.SyncQueueEntry, cause error) outcome {
	now := e.now().UTC()
	o := outcomeFailed

	err := e.updateEntry(ctx, q.ClientID, func(cur *models.SyncQueueEntry) {
		cur.Attempts++
		cur.LastAttemptAt = now
		cur.LastError = cause.Error()
		cur.NextAttemptAt = now.Add(e.backoff(cur.Attempts))
		if cur.Attempts >= cur.AttemptLimit {
			cur.Status = models.QueueStatusStaleRetry
			o = outcomeStale
		}
	})
	if err != nil {
		e.log.Error(ctx, "failed to record sync failure", "client_id", q.ClientID, "error", err)
	}
	return o
}

// applyRejected parks the entry until the user acts. An entry edited while
// its request was out is kept pending: the new content may be acceptable.
func (e *Engine) applyRejected(ctx context.Context, q *models.SyncQueueEntry, cause error) outcome {
	now := e.now().UTC()
	o := outcomeRejected

	err := e.updateEntry(ctx, q.ClientID, func(cur *models.SyncQueueEntry) {
		cur.Attempts++
		cur.LastAttemptAt = now
		cur.LastError = cause.Error()
		if cur.Revision == q.Revision {
			cur.Status = models.QueueStatusRejected
		} else {
			o = outcomeFailed
		}
	})
	if err != nil {
		e.log.Error(ctx, "failed to record rejection", "client_id", q.ClientID, "error", err)
	}
	return o
}

func (e *Engine) updateEntry(ctx context.Context, clientID string, fn func(*models.SyncQueueEntry)) error {
	err := e.st.WithTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.Queue().Get(ctx, clientID)
		if err != nil {
			return err
		}
		fn(cur)
		return tx.Queue().Upsert(ctx, cur)
	})
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	return err
}

// backoff is the delay after the given number of failed attempts.
func (e *Engine) backoff(attempts int) time.Duration {
	b := retry.WithCappedDuration(e.cfg.BackoffMax, retry.NewExponential(e.cfg.BackoffBase))
	var d time.Duration
	for range max(attempts, 1) {
		d, _ = b.Next()
	}
	return d
}
