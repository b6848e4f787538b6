package refcache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	client.Client

	locations []api.Location
	err       error
	calls     int
}

func (f *fakeAPI) Locations(ctx context.Context) ([]api.Location, error) {
	f.calls++
	return f.locations, f.err
}

func (f *fakeAPI) Companies(ctx context.Context) ([]api.Company, error) {
	return []api.Company{{ID: 1, Name: "Acme"}}, f.err
}

func (f *fakeAPI) Users(ctx context.Context) ([]api.User, error) {
	return []api.User{{ID: 2, CompanyID: 1, Name: "Ann"}}, f.err
}

func (f *fakeAPI) ChecklistTemplates(ctx context.Context) ([]api.ChecklistTemplate, error) {
	return []api.ChecklistTemplate{{ID: 3, CompanyID: 1, Name: "Monthly"}}, f.err
}

func setup(t *testing.T) (*Cache, *fakeAPI, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fakeAPI{}
	return New(st, f, logging.NewNop()), f, st
}

func TestList_NetworkFirstReplacesLocal(t *testing.T) {
	c, f, _ := setup(t)
	ctx := context.Background()

	f.locations = []models.Location{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}
	got, err := c.Locations.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	f.locations = []models.Location{{ID: 3, Name: "C"}}
	got, err = c.Locations.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.locations, got)

	local, err := c.Locations.Local(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Location{{ID: 3, Name: "C"}}, local)

	_, err = c.Location(ctx, 1)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_FallsBackWhenUnavailable(t *testing.T) {
	c, f, _ := setup(t)
	ctx := context.Background()

	f.locations = []models.Location{{ID: 1, Name: "A"}}
	_, err := c.Locations.List(ctx)
	require.NoError(t, err)

	f.err = fmt.Errorf("%w: dial tcp: refused", client.ErrUnavailable)
	got, err := c.Locations.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Location{{ID: 1, Name: "A"}}, got)
	assert.Equal(t, 2, f.calls)
}

func TestList_AuthErrorPropagates(t *testing.T) {
	c, f, _ := setup(t)
	f.err = client.ErrUnauthorized

	_, err := c.Locations.List(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestGet_NeverCallsNetwork(t *testing.T) {
	c, f, st := setup(t)
	ctx := context.Background()

	require.NoError(t, st.Locations().ReplaceAll(ctx, []models.Location{{ID: 9, Name: "Stored"}}))
	loc, err := c.Location(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "Stored", loc.Name)
	assert.Zero(t, f.calls)
}

func TestRefresh_AllCollections(t *testing.T) {
	c, f, _ := setup(t)
	ctx := context.Background()
	f.locations = []models.Location{{ID: 1, CompanyID: 1, Name: "Depot"}}

	require.NoError(t, c.Refresh(ctx))

	comp, err := c.Company(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Acme", comp.Name)
	u, err := c.User(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	tpl, err := c.Template(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Monthly", tpl.Name)
}

func TestRefresh_UnavailableKeepsLocal(t *testing.T) {
	c, f, st := setup(t)
	ctx := context.Background()
	require.NoError(t, st.Locations().ReplaceAll(ctx, []models.Location{{ID: 5, Name: "Kept"}}))

	f.err = client.ErrUnavailable
	err := c.Refresh(ctx)
	require.True(t, errors.Is(err, client.ErrUnavailable))

	loc, err := c.Location(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Kept", loc.Name)
}
