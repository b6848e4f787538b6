package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefs struct {
	companies map[int64]models.Company
	locations map[int64]models.Location
	users     map[int64]models.User
	templates map[int64]models.ChecklistTemplate
}

func get[T any](m map[int64]T, id int64) (T, error) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, common.ErrNotFound
	}
	return v, nil
}

func (f *fakeRefs) Company(_ context.Context, id int64) (models.Company, error) {
	return get(f.companies, id)
}

func (f *fakeRefs) Location(_ context.Context, id int64) (models.Location, error) {
	return get(f.locations, id)
}

func (f *fakeRefs) User(_ context.Context, id int64) (models.User, error) {
	return get(f.users, id)
}

func (f *fakeRefs) Template(_ context.Context, id int64) (models.ChecklistTemplate, error) {
	return get(f.templates, id)
}

func newRefs() *fakeRefs {
	return &fakeRefs{
		companies: map[int64]models.Company{100: {ID: 100, Name: "Acme"}},
		locations: map[int64]models.Location{1: {ID: 1, CompanyID: 100, Name: "Depot"}, 2: {ID: 2, CompanyID: 200, Name: "Elsewhere"}},
		users:     map[int64]models.User{10: {ID: 10, CompanyID: 100, Name: "Ann"}},
		templates: map[int64]models.ChecklistTemplate{5: {ID: 5, CompanyID: 100, Name: "Monthly"}},
	}
}

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func openStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.db")
	st, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func newRecorder(t *testing.T, st *store.Store, opts ...RecorderOption) Recorder {
	t.Helper()
	n := 0
	base := []RecorderOption{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() (string, error) { n++; return fmt.Sprintf("c-%d", n), nil }),
	}
	return NewRecorder(st, newRefs(), 5, logging.NewNop(), append(base, opts...)...)
}

func validInput() RecordInput {
	return RecordInput{
		LocationID:          1,
		EvaluatorID:         10,
		CompanyID:           100,
		ChecklistTemplateID: 5,
		EvaluationDate:      time.Date(2024, 5, 1, 15, 30, 0, 0, time.Local),
		Items: []models.ItemResult{
			{Category: "Safety", Item: "Exits", Rating: 5, SubItems: []models.SubItemRating{{Name: "Signage", Rating: 1}}},
			{Category: "Cleanliness", Item: "Floors", Rating: 3, Comment: "dusty"},
		},
		Notes: "first visit",
	}
}

func queueCount(t *testing.T, st *store.Store, clientID string) int {
	t.Helper()
	n := 0
	for q, err := range st.Queue().Ordered(context.Background()) {
		require.NoError(t, err)
		if q.ClientID == clientID {
			n++
		}
	}
	return n
}

func TestRecord_NewEvaluation(t *testing.T) {
	st, _ := openStore(t)
	rec := newRecorder(t, st)
	ctx := context.Background()

	id, err := rec.Record(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, "c-1", id)

	e, q, err := rec.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.Pending{}, e.Identity)
	assert.Equal(t, "Depot", e.LocationName)
	assert.Equal(t, "Ann", e.EvaluatorName)
	assert.Equal(t, "Acme", e.CompanyName)
	assert.Equal(t, "Monthly", e.TemplateName)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), e.EvaluationDate)
	assert.Equal(t, fixedNow, e.CreatedAt)

	require.NotNil(t, q)
	assert.Equal(t, models.OperationCreate, q.Operation)
	assert.Equal(t, models.QueueStatusPending, q.Status)
	assert.Equal(t, int64(1), q.Revision)
	assert.Equal(t, 0, q.Attempts)
	assert.Equal(t, 5, q.AttemptLimit)
	assert.Equal(t, fixedNow, q.EnqueuedAt)

	n, err := rec.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecord_UniqueIDsByDefault(t *testing.T) {
	st, _ := openStore(t)
	rec := NewRecorder(st, newRefs(), 5, logging.NewNop())
	ctx := context.Background()

	a, err := rec.Record(ctx, validInput())
	require.NoError(t, err)
	b, err := rec.Record(ctx, validInput())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestRecord_ValidationRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RecordInput)
		want   error
	}{
		{"unknown location", func(in *RecordInput) { in.LocationID = 99 }, ErrUnknownReference},
		{"unknown evaluator", func(in *RecordInput) { in.EvaluatorID = 99 }, ErrUnknownReference},
		{"unknown company", func(in *RecordInput) { in.CompanyID = 99 }, ErrUnknownReference},
		{"unknown template", func(in *RecordInput) { in.ChecklistTemplateID = 99 }, ErrUnknownReference},
		{"location of other company", func(in *RecordInput) { in.LocationID = 2 }, ErrUnknownReference},
		{"rating too low", func(in *RecordInput) { in.Items[0].Rating = 0 }, ErrInvalidRating},
		{"rating too high", func(in *RecordInput) { in.Items[1].Rating = 6 }, ErrInvalidRating},
		{"sub-item rating", func(in *RecordInput) { in.Items[0].SubItems[0].Rating = 9 }, ErrInvalidRating},
		{"missing date", func(in *RecordInput) { in.EvaluationDate = time.Time{} }, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := openStore(t)
			rec := newRecorder(t, st)
			ctx := context.Background()

			in := validInput()
			tt.mutate(&in)
			_, err := rec.Record(ctx, in)
			require.ErrorIs(t, err, tt.want)

			list, err := rec.List(ctx, models.EvaluationFilter{})
			require.NoError(t, err)
			assert.Empty(t, list)
			stats, err := rec.QueueStats(ctx)
			require.NoError(t, err)
			assert.Empty(t, stats)
		})
	}
}

func TestRecord_RepeatedEditsKeepOneQueueEntry(t *testing.T) {
	st, _ := openStore(t)
	rec := newRecorder(t, st)
	ctx := context.Background()

	id, err := rec.Record(ctx, validInput())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		in := validInput()
		in.ClientID = id
		in.Notes = fmt.Sprintf("edit %d", i)
		got, err := rec.Record(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, id, got)
		assert.Equal(t, 1, queueCount(t, st, id))
	}

	e, q, err := rec.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edit 3", e.Notes)
	assert.Equal(t, models.Pending{}, e.Identity)
	assert.Equal(t, models.OperationCreate, q.Operation)
	assert.Equal(t, int64(5), q.Revision)
	assert.Equal(t, fixedNow, q.EnqueuedAt)
}

// Edit of a synced record while offline.
func TestRecord_EditSyncedBecomesUpdate(t *testing.T) {
	st, _ := openStore(t)
	rec := newRecorder(t, st)
	ctx := context.Background()

	require.NoError(t, st.Evaluations().Upsert(ctx, &models.Evaluation{
		ClientID: "e2", Identity: models.Synced{ServerID: 900},
		LocationID: 1, EvaluatorID: 10, CompanyID: 100,
		EvaluationDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      fixedNow.Add(-time.Hour), UpdatedAt: fixedNow.Add(-time.Hour),
	}))
	require.Equal(t, 0, queueCount(t, st, "e2"))

	in := validInput()
	in.ClientID = "e2"
	_, err := rec.Record(ctx, in)
	require.NoError(t, err)

	e, q, err := rec.Get(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, models.PendingUpdate{ServerID: 900}, e.Identity)
	assert.False(t, e.Synced())
	assert.Equal(t, fixedNow.Add(-time.Hour), e.CreatedAt)
	require.NotNil(t, q)
	assert.Equal(t, models.OperationUpdate, q.Operation)
	assert.Equal(t, 1, queueCount(t, st, "e2"))
}

func TestRecord_EditMissing(t *testing.T) {
	st, _ := openStore(t)
	rec := newRecorder(t, st)

	in := validInput()
	in.ClientID = "ghost"
	_, err := rec.Record(context.Background(), in)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecord_EditReactivatesRejected(t *testing.T) {
	st, _ := openStore(t)
	rec := newRecorder(t, st)
	ctx := context.Background()

	id, err := rec.Record(ctx, validInput())
	require.NoError(t, err)

	_, q, err := rec.Get(ctx, id)
	require.NoError(t, err)
	q.Status = models.QueueStatusRejected
	q.Attempts = 3
	q.LastError = "422"
	q.NextAttemptAt = fixedNow.Add(time.Hour)
	require.NoError(t, st.Queue().Upsert(ctx, q))

	in := validInput()
	in.ClientID = id
	_, err = rec.Record(ctx, in)
	require.NoError(t, err)

	_, q, err = rec.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, q.Status)
	assert.Equal(t, 3, q.Attempts, "attempts never go back")
	assert.Equal(t, 8, q.AttemptLimit)
	assert.Equal(t, fixedNow, q.NextAttemptAt)
}

func TestRecord_FailedTransactionLeavesNothing(t *testing.T) {
	st, path := openStore(t)
	rec := newRecorder(t, st)
	ctx := context.Background()

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`DROP TABLE sync_queue`)
	require.NoError(t, err)

	_, err = rec.Record(ctx, validInput())
	require.Error(t, err)

	_, err = st.Evaluations().Get(ctx, "c-1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecord_OnRecordedHook(t *testing.T) {
	st, _ := openStore(t)
	var got []string
	rec := newRecorder(t, st, WithOnRecorded(func(id string) { got = append(got, id) }))

	_, err := rec.Record(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.LocationID = 99
	_, _ = rec.Record(context.Background(), in)

	assert.Equal(t, []string{"c-1"}, got)
}

func TestRecord_StoreErrorsPropagate(t *testing.T) {
	st, _ := openStore(t)
	rec := newRecorder(t, st)
	require.NoError(t, st.Close())

	_, err := rec.Record(context.Background(), validInput())
	require.Error(t, err)
}

func TestQueue_OldestFirst(t *testing.T) {
	st, _ := openStore(t)
	now := fixedNow
	rec := newRecorder(t, st, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	empty, err := rec.Queue(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	first, err := rec.Record(ctx, validInput())
	require.NoError(t, err)
	now = now.Add(time.Minute)
	second, err := rec.Record(ctx, validInput())
	require.NoError(t, err)

	// An edit bumps the revision but keeps the entry's place.
	now = now.Add(time.Minute)
	in := validInput()
	in.ClientID = first
	_, err = rec.Record(ctx, in)
	require.NoError(t, err)

	got, err := rec.Queue(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0].ClientID)
	assert.Equal(t, int64(2), got[0].Revision)
	assert.Equal(t, second, got[1].ClientID)
}

func TestQueue_StoreErrorsPropagate(t *testing.T) {
	st, _ := openStore(t)
	rec := newRecorder(t, st)
	require.NoError(t, st.Close())

	_, err := rec.Queue(context.Background())
	require.Error(t, err)
}
