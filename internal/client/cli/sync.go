package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/backfill"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/syncer"
)

var errAborted = errors.New("aborted")

// Sync drains the queue now instead of waiting for the next trigger.
func (a *App) Sync(ctx context.Context) error {
	res := a.engine.SyncNow(ctx)
	if res.Err != nil {
		return res.Err
	}
	printlnFn(drainSummary(res))
	return nil
}

func drainSummary(r syncer.DrainResult) string {
	switch {
	case r.AuthExpired:
		return fmt.Sprintf("Sync paused: session expired, log in again (%d pending)", r.Pending)
	case r.Interrupted && r.Succeeded+r.Failed+r.Rejected == 0:
		return fmt.Sprintf("Offline: %d pending", r.Pending)
	}
	s := fmt.Sprintf("Sent %d, failed %d, rejected %d, pending %d", r.Succeeded, r.Failed, r.Rejected, r.Pending)
	if r.Stale > 0 {
		s += fmt.Sprintf(", %d out of retries", r.Stale)
	}
	if r.Interrupted {
		s += " (interrupted)"
	}
	return s
}

// Retry puts a rejected or exhausted evaluation back in line.
func (a *App) Retry(ctx context.Context, clientID string) error {
	if err := a.engine.Retry(ctx, clientID); err != nil {
		return err
	}
	printlnFn("Queued again:", clientID)
	return nil
}

// Migrate copies server history for <from> <to> into the local store; a
// trailing "prune" also drops local synced records the server no longer has.
func (a *App) Migrate(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 || (len(args) == 3 && args[2] != "prune") {
		printlnFn("Usage: migrate <from YYYY-MM-DD> <to YYYY-MM-DD> [prune]")
		return nil
	}
	from, err := time.Parse(models.DateLayout, args[0])
	if err != nil {
		return fmt.Errorf("bad from date: %w", err)
	}
	to, err := time.Parse(models.DateLayout, args[1])
	if err != nil {
		return fmt.Errorf("bad to date: %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("to date %s is before from date %s", args[1], args[0])
	}

	res := a.migrator.Migrate(ctx, backfill.Options{
		StartDate: from,
		EndDate:   to,
		BatchSize: backfill.DefaultBatchSize,
		Prune:     len(args) == 3,
		OnProgress: func(p backfill.Progress) {
			printlnFn(fmt.Sprintf("  %d / %d (%.0f%%)", p.Current, p.Total, p.Percent))
		},
	})
	if res.Err != nil {
		return fmt.Errorf("migrated %d of %d before failing: %w", res.Migrated, res.Total, res.Err)
	}

	msg := fmt.Sprintf("Migrated %d of %d", res.Migrated, res.Total)
	if res.Skipped > 0 {
		msg += fmt.Sprintf(", kept %d local edits", res.Skipped)
	}
	if res.Pruned > 0 {
		msg += fmt.Sprintf(", pruned %d", res.Pruned)
	}
	printlnFn(msg)
	return nil
}

// Status prints connectivity and queue counters.
func (a *App) Status(ctx context.Context) error {
	state := "unknown"
	if a.monitor != nil {
		state = string(a.monitor.State())
	}
	printlnFn("Connection:", state)

	if a.user != nil {
		printlnFn(fmt.Sprintf("User:       %s <%s>", a.user.Name, a.user.Email))
	} else {
		printlnFn("User:       not logged in")
	}
	if a.engine != nil && a.engine.Paused() {
		printlnFn("Sync:       paused until next login")
	}

	pending, err := a.recorder.PendingCount(ctx)
	if err != nil {
		return err
	}
	stats, err := a.recorder.QueueStats(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Unsynced:   %d (queued %d, rejected %d, out of retries %d)",
		pending,
		stats[models.QueueStatusPending],
		stats[models.QueueStatusRejected],
		stats[models.QueueStatusStaleRetry]))
	return nil
}

// Queue prints the outbound queue, oldest first.
func (a *App) Queue(ctx context.Context) error {
	entries, err := a.recorder.Queue(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printlnFn("Queue is empty")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOP\tSTATUS\tATTEMPTS\tENQUEUED\tLAST ERROR")
	for _, q := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			q.ClientID, q.Operation, q.Status, q.Attempts, q.AttemptLimit,
			q.EnqueuedAt.Local().Format(time.DateTime), q.LastError)
	}
	return tw.Flush()
}

// Refresh reloads the reference collections from the server.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.refresher.Refresh(ctx); err != nil {
		return err
	}
	printlnFn("Reference data refreshed")
	return nil
}

// Export uploads a snapshot of the local evaluations.
func (a *App) Export(ctx context.Context) error {
	key, n, err := a.exporter.Export(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Exported %d evaluations as %s", n, key))
	return nil
}

// Wipe deletes all local data after confirmation, unsynced records
// included.
func (a *App) Wipe(ctx context.Context) error {
	pending, err := a.recorder.PendingCount(ctx)
	if err != nil {
		return err
	}

	prompt := "Delete all local data? Type 'yes' to confirm"
	if pending > 0 {
		prompt = fmt.Sprintf("%d evaluations are not on the server yet and will be lost. %s", pending, prompt)
	}
	answer, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return err
	}
	if answer != "yes" {
		return errAborted
	}

	if err := a.wiper.Clear(ctx); err != nil {
		return err
	}
	a.user = nil
	printlnFn("Local data wiped")
	return nil
}
