// Package services contains the client's application services: the
// evaluation recorder, the auth collaborator and export.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/google/uuid"
)

// RecordInput is what the UI submits. A non-empty ClientID edits that record.
type RecordInput struct {
	ClientID            string
	LocationID          int64
	EvaluatorID         int64
	CompanyID           int64
	ChecklistTemplateID int64
	EvaluationDate      time.Time
	Items               []models.ItemResult
	Notes               string
}

// ReferenceLookup resolves reference ids against local data only.
type ReferenceLookup interface {
	Company(ctx context.Context, id int64) (models.Company, error)
	Location(ctx context.Context, id int64) (models.Location, error)
	User(ctx context.Context, id int64) (models.User, error)
	Template(ctx context.Context, id int64) (models.ChecklistTemplate, error)
}

// Recorder is the only write path for evaluations.
//
// Record never talks to the network: the evaluation and its queue entry are
// written in one local transaction and the sync engine takes it from there.
type Recorder interface {
	Record(ctx context.Context, in RecordInput) (string, error)
	Get(ctx context.Context, clientID string) (*models.Evaluation, *models.SyncQueueEntry, error)
	List(ctx context.Context, f models.EvaluationFilter) ([]*models.Evaluation, error)
	PendingCount(ctx context.Context) (int, error)
	QueueStats(ctx context.Context) (map[models.QueueStatus]int, error)
	Queue(ctx context.Context) ([]*models.SyncQueueEntry, error)
}

type RecorderOption func(*recorder)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *recorder) { r.now = now }
}

// WithIDGenerator replaces the UUIDv7 client id generator.
func WithIDGenerator(gen func() (string, error)) RecorderOption {
	return func(r *recorder) { r.newID = gen }
}

// WithOnRecorded registers a hook run after each committed record.
func WithOnRecorded(fn func(clientID string)) RecorderOption {
	return func(r *recorder) { r.onRecorded = fn }
}

type recorder struct {
	st          *store.Store
	refs        ReferenceLookup
	maxAttempts int
	log         logging.Logger

	now        func() time.Time
	newID      func() (string, error)
	onRecorded func(clientID string)
}

func NewRecorder(st *store.Store, refs ReferenceLookup, maxAttempts int, log logging.Logger, opts ...RecorderOption) Recorder {
	r := &recorder{
		st:          st,
		refs:        refs,
		maxAttempts: maxAttempts,
		log:         log.With("module", "recorder"),
		now:         time.Now,
		newID:       newClientID,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// newClientID returns a UUIDv7: millisecond timestamp plus random bits.
func newClientID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (r *recorder) Record(ctx context.Context, in RecordInput) (string, error) {
	snap, err := r.validate(ctx, in)
	if err != nil {
		return "", err
	}

	now := r.now().UTC()
	var clientID string

	err = r.st.WithTx(ctx, func(tx *store.Tx) error {
		e, err := r.prepare(ctx, tx, in, now)
		if err != nil {
			return err
		}
		snap.apply(e)
		clientID = e.ClientID

		if err := tx.Evaluations().Upsert(ctx, e); err != nil {
			return err
		}
		return r.enqueue(ctx, tx, e, now)
	})
	if err != nil {
		return "", err
	}

	r.log.Info(ctx, "evaluation recorded", "client_id", clientID, "edit", in.ClientID != "")
	if r.onRecorded != nil {
		r.onRecorded(clientID)
	}
	return clientID, nil
}

// prepare returns the record to write: a fresh one, or the stored one with
// the edit applied.
func (r *recorder) prepare(ctx context.Context, tx *store.Tx, in RecordInput, now time.Time) (*models.Evaluation, error) {
	e := &models.Evaluation{}

	if in.ClientID == "" {
		id, err := r.newID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate client id: %w", err)
		}
		e.ClientID = id
		e.Identity = models.Pending{}
		e.CreatedAt = now
	} else {
		existing, err := tx.Evaluations().Get(ctx, in.ClientID)
		if err != nil {
			return nil, err
		}
		e = existing
		switch id := e.Identity.(type) {
		case models.Synced:
			e.Identity = models.PendingUpdate{ServerID: id.ServerID}
		case models.PendingUpdate, models.Pending:
		default:
			return nil, fmt.Errorf("unexpected identity %T", id)
		}
	}

	e.LocationID = in.LocationID
	e.EvaluatorID = in.EvaluatorID
	e.CompanyID = in.CompanyID
	e.ChecklistTemplateID = in.ChecklistTemplateID
	e.EvaluationDate = dateOnly(in.EvaluationDate)
	e.Items = in.Items
	e.Notes = in.Notes
	e.UpdatedAt = now
	return e, nil
}

// enqueue creates the queue entry or folds the edit into the existing one.
func (r *recorder) enqueue(ctx context.Context, tx *store.Tx, e *models.Evaluation, now time.Time) error {
	op := models.OperationCreate
	if _, ok := e.ServerID(); ok {
		op = models.OperationUpdate
	}

	q, err := tx.Queue().Get(ctx, e.ClientID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		q = &models.SyncQueueEntry{
			ClientID:   e.ClientID,
			Revision:   1,
			EnqueuedAt: now,
		}
	case err != nil:
		return err
	default:
		q.Revision++
	}

	q.Operation = op
	q.Status = models.QueueStatusPending
	q.AttemptLimit = q.Attempts + r.maxAttempts
	q.NextAttemptAt = now

	return tx.Queue().Upsert(ctx, q)
}

type snapshot struct {
	location, evaluator, company, template string
}

func (s snapshot) apply(e *models.Evaluation) {
	e.LocationName = s.location
	e.EvaluatorName = s.evaluator
	e.CompanyName = s.company
	e.TemplateName = s.template
}

// validate checks input against the reference cache and the rating scale
// and returns the display names to store with the record.
func (r *recorder) validate(ctx context.Context, in RecordInput) (snapshot, error) {
	var snap snapshot

	if in.EvaluationDate.IsZero() {
		return snap, fmt.Errorf("%w: evaluation date is required", ErrInvalidInput)
	}

	loc, err := r.refs.Location(ctx, in.LocationID)
	if err != nil {
		return snap, referenceError("location", in.LocationID, err)
	}
	user, err := r.refs.User(ctx, in.EvaluatorID)
	if err != nil {
		return snap, referenceError("evaluator", in.EvaluatorID, err)
	}
	company, err := r.refs.Company(ctx, in.CompanyID)
	if err != nil {
		return snap, referenceError("company", in.CompanyID, err)
	}
	if loc.CompanyID != company.ID {
		return snap, fmt.Errorf("%w: location %d does not belong to company %d", ErrUnknownReference, loc.ID, company.ID)
	}
	snap.location, snap.evaluator, snap.company = loc.Name, user.Name, company.Name

	if in.ChecklistTemplateID != 0 {
		tpl, err := r.refs.Template(ctx, in.ChecklistTemplateID)
		if err != nil {
			return snap, referenceError("checklist template", in.ChecklistTemplateID, err)
		}
		snap.template = tpl.Name
	}

	for i, item := range in.Items {
		if !validRating(item.Rating) {
			return snap, fmt.Errorf("%w: item %d (%s/%s) rated %d", ErrInvalidRating, i, item.Category, item.Item, item.Rating)
		}
		for _, sub := range item.SubItems {
			if !validRating(sub.Rating) {
				return snap, fmt.Errorf("%w: sub-item %s of item %d rated %d", ErrInvalidRating, sub.Name, i, sub.Rating)
			}
		}
	}
	return snap, nil
}

func referenceError(kind string, id int64, err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", ErrUnknownReference, kind, id)
	}
	return fmt.Errorf("failed to look up %s %d: %w", kind, id, err)
}

func validRating(v int) bool {
	return v >= models.MinRating && v <= models.MaxRating
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *recorder) Get(ctx context.Context, clientID string) (*models.Evaluation, *models.SyncQueueEntry, error) {
	e, err := r.st.Evaluations().Get(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}
	q, err := r.st.Queue().Get(ctx, clientID)
	if errors.Is(err, common.ErrNotFound) {
		return e, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return e, q, nil
}

func (r *recorder) List(ctx context.Context, f models.EvaluationFilter) ([]*models.Evaluation, error) {
	return r.st.Evaluations().List(ctx, f)
}

// PendingCount is the number of evaluations not yet on the server.
func (r *recorder) PendingCount(ctx context.Context) (int, error) {
	return r.st.Evaluations().Count(ctx, models.EvaluationFilter{OnlyPending: true})
}

func (r *recorder) QueueStats(ctx context.Context) (map[models.QueueStatus]int, error) {
	return r.st.Queue().CountByStatus(ctx)
}

// Queue lists every outbound entry, oldest enqueued first.
func (r *recorder) Queue(ctx context.Context) ([]*models.SyncQueueEntry, error) {
	var out []*models.SyncQueueEntry
	for q, err := range r.st.Queue().Ordered(ctx) {
		if err != nil {
			return nil, fmt.Errorf("reading sync queue: %w", err)
		}
		out = append(out, q)
	}
	return out, nil
}
