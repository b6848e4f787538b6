package evaluations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

var (
	day     = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	stamp   = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	columns = []string{"id", "client_id", "company_id", "location_id", "evaluator_id", "checklist_template_id",
		"evaluation_date", "items", "notes", "created_at", "updated_at"}
)

func sample() *models.Evaluation {
	return &models.Evaluation{
		ClientID: "c-1", CompanyID: 1, LocationID: 2, EvaluatorID: 3,
		EvaluationDate: day,
		Items:          []api.ItemResult{{Category: "Floors", Item: "Clean", Rating: 4}},
		Notes:          "ok",
	}
}

const upsertQuery = `(?s)INSERT INTO evaluations .*\sON CONFLICT \(client_id\)\s+DO UPDATE SET\s.*\sWHERE evaluations\.company_id = EXCLUDED\.company_id\s+RETURNING id, created_at, updated_at, \(xmax = 0\) AS inserted`

func TestUpsert_Inserted(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(upsertQuery).
		WithArgs("c-1", int64(1), int64(2), int64(3), nil, day,
			`[{"category":"Floors","item":"Clean","rating":4}]`, "ok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "inserted"}).
			AddRow(int64(10), stamp, stamp, true))

	e := sample()
	created, err := repo.Upsert(context.Background(), e)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(10), e.ID)
	assert.Equal(t, stamp, e.UpdatedAt)
}

func TestUpsert_ExistingRowWithTemplate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(upsertQuery).
		WithArgs("c-1", int64(1), int64(2), int64(3), int64(5), day, `[]`, "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "inserted"}).
			AddRow(int64(10), stamp, stamp, false))

	e := &models.Evaluation{ClientID: "c-1", CompanyID: 1, LocationID: 2, EvaluatorID: 3, ChecklistTemplateID: 5, EvaluationDate: day}
	created, err := repo.Upsert(context.Background(), e)

	require.NoError(t, err)
	assert.False(t, created)
}

func TestUpsert_ClientIDOfOtherCompany(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(upsertQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "inserted"}))

	_, err := repo.Upsert(context.Background(), sample())

	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(upsertQuery).WillReturnError(errors.New("db down"))

	_, err := repo.Upsert(context.Background(), sample())

	assert.ErrorContains(t, err, "db error: db down")
}

func TestUpdate(t *testing.T) {
	q := `(?s)UPDATE evaluations SET\s.*\sWHERE id = \$1 AND company_id = \$2\s+RETURNING client_id, created_at, updated_at`

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).
			WithArgs(int64(10), int64(1), int64(2), int64(3), nil, day, sqlmock.AnyArg(), "ok").
			WillReturnRows(sqlmock.NewRows([]string{"client_id", "created_at", "updated_at"}).AddRow("c-1", stamp, stamp))

		e := sample()
		e.ID, e.ClientID = 10, "ignored"
		require.NoError(t, repo.Update(context.Background(), e))
		assert.Equal(t, "c-1", e.ClientID)
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows([]string{"client_id", "created_at", "updated_at"}))

		e := sample()
		e.ID = 99
		assert.ErrorIs(t, repo.Update(context.Background(), e), common.ErrNotFound)
	})
}

func TestList_FilterAndPaging(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	to := day.AddDate(0, 0, 30)

	mock.ExpectQuery(`(?s)FROM evaluations WHERE company_id = \$1 AND evaluation_date >= \$2 AND evaluation_date <= \$3\s+ORDER BY evaluation_date, id OFFSET \$4 LIMIT \$5$`).
		WithArgs(int64(1), day, to, 500, 500).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(10), "c-1", int64(1), int64(2), int64(3), nil, day, `[{"category":"A","item":"B","rating":5}]`, "", stamp, stamp).
			AddRow(int64(11), "c-2", int64(1), int64(2), int64(3), int64(5), day, `[]`, "n", stamp, stamp))

	got, err := repo.List(context.Background(), models.EvaluationFilter{CompanyID: 1, From: day, To: to, Offset: 500, Limit: 500})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []api.ItemResult{{Category: "A", Item: "B", Rating: 5}}, got[0].Items)
	assert.Zero(t, got[0].ChecklistTemplateID)
	assert.Equal(t, int64(5), got[1].ChecklistTemplateID)
}

func TestList_OpenRangeNoLimit(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)FROM evaluations WHERE company_id = \$1\s+ORDER BY evaluation_date, id OFFSET \$2$`).
		WithArgs(int64(1), 0).
		WillReturnRows(sqlmock.NewRows(columns))

	got, err := repo.List(context.Background(), models.EvaluationFilter{CompanyID: 1})

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_CorruptItems(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM evaluations`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(10), "c-1", int64(1), int64(2), int64(3), nil, day, `{`, "", stamp, stamp))

	_, err := repo.List(context.Background(), models.EvaluationFilter{CompanyID: 1})

	assert.ErrorContains(t, err, "failed to decode items of evaluation 10")
}

func TestCount(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM evaluations WHERE company_id = \$1 AND evaluation_date >= \$2$`).
		WithArgs(int64(1), day).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1200))

	n, err := repo.Count(context.Background(), models.EvaluationFilter{CompanyID: 1, From: day, Offset: 5, Limit: 7})

	require.NoError(t, err)
	assert.Equal(t, 1200, n)
}
