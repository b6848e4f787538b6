package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"github.com/dmitrijs2005/inspectsync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and logs in against the server.
//
// Login needs the server; offline, the login kept from the last session
// stays in effect. The password is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.authService.Login(ctx, userName, string(password))
	switch {
	case errors.Is(err, client.ErrUnavailable):
		if a.isLoggedIn() {
			return fmt.Errorf("server unavailable, still logged in as %s: %w", a.user.Name, err)
		}
		return fmt.Errorf("server unavailable, cannot log in: %w", err)
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, client.ErrRejected):
		return errors.New("wrong email or password")
	case err != nil:
		return err
	}

	a.user = u
	printlnFn(fmt.Sprintf("Logged in as %s", u.Name))

	if err := a.refresher.Refresh(ctx); err != nil {
		a.log.Warn(ctx, "reference refresh after login failed", "error", err)
	}
	return nil
}

// Logout forgets the stored login. Queued evaluations stay queued and are
// sent after the next login.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.user = nil
	printlnFn("Logged out")
	return nil
}
