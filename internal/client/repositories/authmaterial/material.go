package authmaterial

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

const (
	KeyToken       = "token"
	KeyCurrentUser = "current_user"
	PrefPrefix     = "pref:"
)

// Save overwrites the collection with m. Call it on a transactional
// repository so the old login never mixes with the new one.
func Save(ctx context.Context, r Repository, m *models.AuthMaterial) error {
	if err := r.Clear(ctx); err != nil {
		return err
	}

	if err := r.Set(ctx, KeyToken, []byte(m.Token)); err != nil {
		return err
	}

	user, err := json.Marshal(m.CurrentUser)
	if err != nil {
		return fmt.Errorf("failed to encode current user: %w", err)
	}
	if err := r.Set(ctx, KeyCurrentUser, user); err != nil {
		return err
	}

	for name, blob := range m.Preferences {
		if err := r.Set(ctx, PrefPrefix+name, blob); err != nil {
			return err
		}
	}
	return nil
}

// Load returns nil when nobody is logged in.
func Load(ctx context.Context, r Repository) (*models.AuthMaterial, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	token, ok := all[KeyToken]
	if !ok {
		return nil, nil
	}

	m := &models.AuthMaterial{Token: string(token), Preferences: map[string][]byte{}}
	if raw, ok := all[KeyCurrentUser]; ok {
		if err := json.Unmarshal(raw, &m.CurrentUser); err != nil {
			return nil, fmt.Errorf("failed to decode current user: %w", err)
		}
	}
	for k, v := range all {
		if name, ok := strings.CutPrefix(k, PrefPrefix); ok {
			m.Preferences[name] = v
		}
	}
	return m, nil
}
