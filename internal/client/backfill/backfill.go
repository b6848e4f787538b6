// Package backfill copies historical evaluations from the server into the
// local store for offline reporting.
//
// This is the server-to-client direction only. Records arrive already synced
// and never enter the sync queue. Each page is written in its own
// transaction, so an interrupted run keeps everything written before the
// failure and a re-run overwrites by server id.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/services"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

const DefaultBatchSize = 500

// ServerClientIDPrefix marks client ids made up for records the server
// holds without one.
const ServerClientIDPrefix = "srv-"

// Options selects the inclusive date range to copy. Zero dates leave that
// side open.
type Options struct {
	StartDate  time.Time
	EndDate    time.Time
	BatchSize  int
	OnProgress func(Progress)

	// Prune deletes local synced evaluations inside the range that the
	// server no longer returns. It runs only after a complete pass.
	Prune bool
}

type Progress struct {
	Current int
	Total   int
	Percent float64
}

// Result reports how far a run got. Err is set when the run stopped early;
// Migrated then counts the records written before that.
type Result struct {
	Migrated int
	Skipped  int
	Pruned   int
	Total    int
	Err      error
}

type Migrator struct {
	st   *store.Store
	api  client.Client
	refs services.ReferenceLookup
	log  logging.Logger
}

func New(st *store.Store, api client.Client, refs services.ReferenceLookup, log logging.Logger) *Migrator {
	return &Migrator{st: st, api: api, refs: refs, log: log.With("module", "backfill")}
}

func (m *Migrator) Migrate(ctx context.Context, opts Options) Result {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > api.MaxPageSize {
		opts.BatchSize = api.MaxPageSize
	}

	var res Result
	seen := make(map[int64]struct{})
	offset := 0

	for {
		page, err := m.api.ListEvaluations(ctx, opts.StartDate, opts.EndDate, offset, opts.BatchSize)
		if err != nil {
			res.Err = fmt.Errorf("failed to fetch page at offset %d: %w", offset, err)
			break
		}
		res.Total = page.Total
		if len(page.Items) == 0 {
			break
		}

		written, skipped, err := m.writeBatch(ctx, page.Items)
		if err != nil {
			res.Err = fmt.Errorf("failed to write page at offset %d: %w", offset, err)
			break
		}
		res.Migrated += written
		res.Skipped += skipped
		for _, item := range page.Items {
			seen[item.ID] = struct{}{}
		}

		offset += len(page.Items)
		m.report(opts, offset, page.Total)

		if offset >= page.Total {
			break
		}
	}

	if res.Err == nil && opts.Prune {
		res.Pruned, res.Err = m.prune(ctx, opts, seen)
	}

	if res.Err != nil {
		m.log.Error(ctx, "migration stopped", "migrated", res.Migrated, "total", res.Total, "error", res.Err)
	} else {
		m.log.Info(ctx, "migration finished", "migrated", res.Migrated, "skipped", res.Skipped, "pruned", res.Pruned)
	}
	return res
}

func (m *Migrator) report(opts Options, current, total int) {
	if opts.OnProgress == nil {
		return
	}
	pct := 100.0
	if total > 0 {
		pct = float64(min(current, total)) * 100 / float64(total)
	}
	opts.OnProgress(Progress{Current: current, Total: total, Percent: pct})
}

// writeBatch stores one page. Enrichment lookups happen before the
// transaction so it stays short.
func (m *Migrator) writeBatch(ctx context.Context, items []api.Evaluation) (written, skipped int, err error) {
	records := make([]*models.Evaluation, 0, len(items))
	for _, item := range items {
		e, err := m.convert(ctx, item)
		if err != nil {
			m.log.Warn(ctx, "skipping malformed server record", "server_id", item.ID, "error", err)
			skipped++
			continue
		}
		records = append(records, e)
	}

	err = m.st.WithTx(ctx, func(tx *store.Tx) error {
		written = 0
		for _, e := range records {
			ok, err := m.put(ctx, tx, e)
			if err != nil {
				return err
			}
			if ok {
				written++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return written, skipped + len(records) - written, nil
}

// put writes e unless a local edit of the same record is still waiting to
// be synced. The local client id wins over the server's.
func (m *Migrator) put(ctx context.Context, tx *store.Tx, e *models.Evaluation) (bool, error) {
	serverID, _ := e.ServerID()

	local, err := tx.Evaluations().GetByServerID(ctx, serverID)
	if errors.Is(err, common.ErrNotFound) {
		local, err = tx.Evaluations().Get(ctx, e.ClientID)
	}
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return false, err
	case !local.Synced():
		return false, nil
	default:
		e.ClientID = local.ClientID
	}

	return true, tx.Evaluations().Upsert(ctx, e)
}

func (m *Migrator) convert(ctx context.Context, item api.Evaluation) (*models.Evaluation, error) {
	date, err := time.Parse(models.DateLayout, item.EvaluationDate)
	if err != nil {
		return nil, fmt.Errorf("bad evaluation date %q: %w", item.EvaluationDate, err)
	}

	clientID := item.ClientID
	if clientID == "" {
		clientID = ServerClientIDPrefix + strconv.FormatInt(item.ID, 10)
	}

	e := &models.Evaluation{
		ClientID:            clientID,
		Identity:            models.Synced{ServerID: item.ID},
		LocationID:          item.LocationID,
		EvaluatorID:         item.EvaluatorID,
		CompanyID:           item.CompanyID,
		ChecklistTemplateID: item.ChecklistTemplateID,
		EvaluationDate:      date,
		Items:               item.Items,
		Notes:               item.Notes,
		CreatedAt:           item.CreatedAt.UTC(),
		UpdatedAt:           item.UpdatedAt.UTC(),
	}
	m.enrich(ctx, e)
	return e, nil
}

// enrich fills display names from the reference cache. Unknown references
// leave the name empty; history may point at records since deleted.
func (m *Migrator) enrich(ctx context.Context, e *models.Evaluation) {
	if loc, err := m.refs.Location(ctx, e.LocationID); err == nil {
		e.LocationName = loc.Name
	}
	if u, err := m.refs.User(ctx, e.EvaluatorID); err == nil {
		e.EvaluatorName = u.Name
	}
	if c, err := m.refs.Company(ctx, e.CompanyID); err == nil {
		e.CompanyName = c.Name
	}
	if e.ChecklistTemplateID != 0 {
		if t, err := m.refs.Template(ctx, e.ChecklistTemplateID); err == nil {
			e.TemplateName = t.Name
		}
	}
}

func (m *Migrator) prune(ctx context.Context, opts Options, seen map[int64]struct{}) (int, error) {
	pruned := 0
	err := m.st.WithTx(ctx, func(tx *store.Tx) error {
		pruned = 0
		local, err := tx.Evaluations().List(ctx, models.EvaluationFilter{
			From:       opts.StartDate,
			To:         opts.EndDate,
			OnlySynced: true,
		})
		if err != nil {
			return err
		}
		for _, e := range local {
			id, _ := e.ServerID()
			if _, ok := seen[id]; ok {
				continue
			}
			if err := tx.Evaluations().Delete(ctx, e.ClientID); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune: %w", err)
	}
	return pruned, nil
}
