package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/authmaterial"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

// AuthService owns the login stored in the auth collection.
//
// Contract:
//   - Login: authenticate against the server and overwrite the stored login.
//   - Logout: forget the stored login. Queued evaluations stay queued.
//   - CurrentUser: the stored user snapshot, ErrNotLoggedIn if none.
//   - SetPreference/Preference: per-user UI blobs kept next to the login.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*models.CurrentUser, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.CurrentUser, error)
	SetPreference(ctx context.Context, name string, value []byte) error
	Preference(ctx context.Context, name string) ([]byte, error)
}

type authService struct {
	client  client.Client
	st      *store.Store
	log     logging.Logger
	onLogin func()
}

// NewAuthService wires the service; onLogin (may be nil) runs after every
// successful login, typically to resume a sync engine paused on an expired
// token.
func NewAuthService(c client.Client, st *store.Store, log logging.Logger, onLogin func()) AuthService {
	return &authService{client: c, st: st, log: log.With("module", "auth"), onLogin: onLogin}
}

// StoreTokenSource reads the bearer token from the store before every call.
func StoreTokenSource(st *store.Store) client.TokenSource {
	return func(ctx context.Context) (string, error) {
		tok, err := st.Auth().Get(ctx, authmaterial.KeyToken)
		if err != nil {
			return "", err
		}
		return string(tok), nil
	}
}

func (a *authService) Login(ctx context.Context, username, password string) (*models.CurrentUser, error) {
	resp, err := a.client.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	m := &models.AuthMaterial{Token: resp.Token, CurrentUser: resp.User}

	err = a.st.WithTx(ctx, func(tx *store.Tx) error {
		// preferences survive a re-login of the same user
		old, err := authmaterial.Load(ctx, tx.Auth())
		if err != nil {
			return err
		}
		if old != nil && old.CurrentUser.ID == resp.User.ID {
			m.Preferences = old.Preferences
		}
		return authmaterial.Save(ctx, tx.Auth(), m)
	})
	if err != nil {
		return nil, err
	}

	a.log.Info(ctx, "logged in", "user_id", resp.User.ID)
	if a.onLogin != nil {
		a.onLogin()
	}
	return &m.CurrentUser, nil
}

func (a *authService) Logout(ctx context.Context) error {
	if err := a.st.Clear(ctx, store.Auth); err != nil {
		return err
	}
	a.log.Info(ctx, "logged out")
	return nil
}

func (a *authService) CurrentUser(ctx context.Context) (*models.CurrentUser, error) {
	m, err := authmaterial.Load(ctx, a.st.Auth())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotLoggedIn
	}
	return &m.CurrentUser, nil
}

func (a *authService) SetPreference(ctx context.Context, name string, value []byte) error {
	return a.st.WithTx(ctx, func(tx *store.Tx) error {
		tok, err := tx.Auth().Get(ctx, authmaterial.KeyToken)
		if err != nil {
			return err
		}
		if tok == nil {
			return ErrNotLoggedIn
		}
		return tx.Auth().Set(ctx, authmaterial.PrefPrefix+name, value)
	})
}

func (a *authService) Preference(ctx context.Context, name string) ([]byte, error) {
	return a.st.Auth().Get(ctx, authmaterial.PrefPrefix+name)
}
