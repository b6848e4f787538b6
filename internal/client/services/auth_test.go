package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthClient struct {
	client.Client

	resp *api.LoginResponse
	err  error
}

func (f *fakeAuthClient) Login(ctx context.Context, username, password string) (*api.LoginResponse, error) {
	return f.resp, f.err
}

func TestLogin_StoresMaterialAndResumes(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()
	resumed := 0

	c := &fakeAuthClient{resp: &api.LoginResponse{Token: "jwt-1", User: api.User{ID: 7, Name: "Ann"}}}
	svc := NewAuthService(c, st, logging.NewNop(), func() { resumed++ })

	u, err := svc.Login(ctx, "ann", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, 1, resumed)

	tok, err := StoreTokenSource(st)(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", tok)

	cur, err := svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann", cur.Name)
}

func TestLogin_FailureKeepsOldLogin(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()

	c := &fakeAuthClient{resp: &api.LoginResponse{Token: "jwt-1", User: api.User{ID: 7}}}
	svc := NewAuthService(c, st, logging.NewNop(), nil)
	_, err := svc.Login(ctx, "ann", "pw")
	require.NoError(t, err)

	c.err = client.ErrUnauthorized
	_, err = svc.Login(ctx, "ann", "wrong")
	require.ErrorIs(t, err, client.ErrUnauthorized)

	tok, err := StoreTokenSource(st)(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", tok)
}

func TestLogin_PreferencesFollowUser(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()

	c := &fakeAuthClient{resp: &api.LoginResponse{Token: "a", User: api.User{ID: 1}}}
	svc := NewAuthService(c, st, logging.NewNop(), nil)

	_, err := svc.Login(ctx, "u1", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.SetPreference(ctx, "page_size", []byte("50")))

	_, err = svc.Login(ctx, "u1", "pw")
	require.NoError(t, err)
	p, err := svc.Preference(ctx, "page_size")
	require.NoError(t, err)
	assert.Equal(t, []byte("50"), p)

	c.resp = &api.LoginResponse{Token: "b", User: api.User{ID: 2}}
	_, err = svc.Login(ctx, "u2", "pw")
	require.NoError(t, err)
	p, err = svc.Preference(ctx, "page_size")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLogout(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()

	svc := NewAuthService(&fakeAuthClient{resp: &api.LoginResponse{Token: "a", User: api.User{ID: 1}}}, st, logging.NewNop(), nil)
	_, err := svc.Login(ctx, "u", "p")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx))

	_, err = svc.CurrentUser(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	tok, err := StoreTokenSource(st)(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.ErrorIs(t, svc.SetPreference(ctx, "x", []byte("y")), ErrNotLoggedIn)
}
