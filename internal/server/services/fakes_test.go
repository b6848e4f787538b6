package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/evaluations"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/reference"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

type fakeUsers struct {
	byEmail map[string]*models.User
	byID    map[int64]*models.User
	created []*models.User
	err     error
}

func newFakeUsers(list ...*models.User) *fakeUsers {
	f := &fakeUsers{byEmail: map[string]*models.User{}, byID: map[int64]*models.User{}}
	for _, u := range list {
		f.byEmail[u.Email] = u
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u.ID = int64(100 + len(f.created))
	f.created = append(f.created, u)
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Get(_ context.Context, id int64) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) ListByCompany(_ context.Context, companyID int64) ([]*models.User, error) {
	var out []*models.User
	for id := int64(0); id < 1000; id++ {
		if u, ok := f.byID[id]; ok && u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	return out, f.err
}

type fakeEvaluations struct {
	stored    map[string]*models.Evaluation
	nextID    int64
	listed    []*models.Evaluation
	filter    models.EvaluationFilter
	total     int
	upsertErr error
	updateErr error
}

func (f *fakeEvaluations) Upsert(_ context.Context, e *models.Evaluation) (bool, error) {
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	if f.stored == nil {
		f.stored = map[string]*models.Evaluation{}
	}
	if old, ok := f.stored[e.ClientID]; ok {
		e.ID = old.ID
		f.stored[e.ClientID] = e
		return false, nil
	}
	f.nextID++
	e.ID = f.nextID
	f.stored[e.ClientID] = e
	return true, nil
}

func (f *fakeEvaluations) Update(_ context.Context, e *models.Evaluation) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for k, old := range f.stored {
		if old.ID == e.ID && old.CompanyID == e.CompanyID {
			e.ClientID = old.ClientID
			f.stored[k] = e
			return nil
		}
	}
	return common.ErrNotFound
}

func (f *fakeEvaluations) List(_ context.Context, flt models.EvaluationFilter) ([]*models.Evaluation, error) {
	f.filter = flt
	return f.listed, nil
}

func (f *fakeEvaluations) Count(context.Context, models.EvaluationFilter) (int, error) {
	return f.total, nil
}

type fakeReference struct {
	companies map[int64]api.Company
	locations map[int64]api.Location
	templates map[int64]api.ChecklistTemplate
	err       error
}

func (f *fakeReference) Company(_ context.Context, id int64) (api.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return c, common.ErrNotFound
	}
	return c, nil
}

func (f *fakeReference) Location(_ context.Context, id int64) (api.Location, error) {
	if f.err != nil {
		return api.Location{}, f.err
	}
	l, ok := f.locations[id]
	if !ok {
		return l, common.ErrNotFound
	}
	return l, nil
}

func (f *fakeReference) Template(_ context.Context, id int64) (api.ChecklistTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return t, common.ErrNotFound
	}
	return t, nil
}

func (f *fakeReference) Locations(_ context.Context, companyID int64) ([]api.Location, error) {
	out := []api.Location{}
	for id := int64(0); id < 1000; id++ {
		if l, ok := f.locations[id]; ok && l.CompanyID == companyID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeReference) Templates(_ context.Context, companyID int64) ([]api.ChecklistTemplate, error) {
	out := []api.ChecklistTemplate{}
	for id := int64(0); id < 1000; id++ {
		if t, ok := f.templates[id]; ok && t.CompanyID == companyID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	u *fakeUsers
	e *fakeEvaluations
	r *fakeReference
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository { return m.u }
func (m *fakeRepoManager) Evaluations(dbx.DBTX) evaluations.Repository { return m.e }
func (m *fakeRepoManager) Reference(dbx.DBTX) reference.Repository { return m.r }

// newFixture has company 1 with location 10, evaluator 20 and template 30,
// and company 2 with location 11, evaluator 21 and template 31.
func newFixture() *fakeRepoManager {
	return &fakeRepoManager{
		u: newFakeUsers(
			&models.User{ID: 20, CompanyID: 1, Name: "Ann", Email: "ann@example.org", Role: models.RoleEvaluator},
			&models.User{ID: 21, CompanyID: 2, Name: "Bo", Email: "bo@example.org", Role: models.RoleEvaluator},
		),
		e: &fakeEvaluations{},
		r: &fakeReference{
			companies: map[int64]api.Company{1: {ID: 1, Name: "Acme"}, 2: {ID: 2, Name: "Other"}},
			locations: map[int64]api.Location{10: {ID: 10, CompanyID: 1, Name: "Depot"}, 11: {ID: 11, CompanyID: 2, Name: "Far"}},
			templates: map[int64]api.ChecklistTemplate{30: {ID: 30, CompanyID: 1, Name: "Monthly"}, 31: {ID: 31, CompanyID: 2, Name: "Theirs"}},
		},
	}
}
