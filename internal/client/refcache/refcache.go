// Package refcache mirrors the server's reference collections (companies,
// locations, users, checklist templates) in the local store.
//
// Reads through List go to the server first and fall back to the local copy
// when the server is unreachable. Get never touches the network.
package refcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/reference"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

// Collection is one mirrored reference collection.
type Collection[T models.Reference] struct {
	name  string
	st    *store.Store
	fetch func(ctx context.Context) ([]T, error)
	repo  func(store.Repos) reference.Repository[T]
	log   logging.Logger
}

// List returns the server's snapshot, storing it locally, or the local copy
// if the server cannot be reached. Auth and validation errors are returned.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	items, err := c.pull(ctx)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, client.ErrUnavailable) {
		return nil, err
	}

	c.log.Debug(ctx, "server unreachable, serving local copy", "collection", c.name, "error", err)
	return c.Local(ctx)
}

// Local returns the stored copy.
func (c *Collection[T]) Local(ctx context.Context) ([]T, error) {
	return c.repo(c.st).List(ctx)
}

// Get looks id up in the stored copy; common.ErrNotFound if absent.
func (c *Collection[T]) Get(ctx context.Context, id int64) (T, error) {
	return c.repo(c.st).Get(ctx, id)
}

// Refresh pulls the server snapshot without falling back.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	_, err := c.pull(ctx)
	return err
}

func (c *Collection[T]) pull(ctx context.Context) ([]T, error) {
	items, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.name, err)
	}

	err = c.st.WithTx(ctx, func(tx *store.Tx) error {
		return c.repo(tx).ReplaceAll(ctx, items)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

type Cache struct {
	Companies *Collection[models.Company]
	Locations *Collection[models.Location]
	Users     *Collection[models.User]
	Templates *Collection[models.ChecklistTemplate]

	log logging.Logger
}

func New(st *store.Store, api client.Client, log logging.Logger) *Cache {
	log = log.With("module", "refcache")
	return &Cache{
		Companies: &Collection[models.Company]{name: string(store.Companies), st: st, fetch: api.Companies, repo: store.Repos.Companies, log: log},
		Locations: &Collection[models.Location]{name: string(store.Locations), st: st, fetch: api.Locations, repo: store.Repos.Locations, log: log},
		Users:     &Collection[models.User]{name: string(store.Users), st: st, fetch: api.Users, repo: store.Repos.Users, log: log},
		Templates: &Collection[models.ChecklistTemplate]{name: string(store.ChecklistTemplates), st: st, fetch: api.ChecklistTemplates, repo: store.Repos.Templates, log: log},
		log:       log,
	}
}

// Refresh pulls all four collections. Each collection is replaced on its own,
// so one failure does not hold back the others.
func (c *Cache) Refresh(ctx context.Context) error {
	err := errors.Join(
		c.Companies.Refresh(ctx),
		c.Locations.Refresh(ctx),
		c.Users.Refresh(ctx),
		c.Templates.Refresh(ctx),
	)
	if err != nil {
		c.log.Warn(ctx, "reference refresh incomplete", "error", err)
		return err
	}
	c.log.Info(ctx, "reference data refreshed")
	return nil
}

func (c *Cache) Company(ctx context.Context, id int64) (models.Company, error) {
	return c.Companies.Get(ctx, id)
}

func (c *Cache) Location(ctx context.Context, id int64) (models.Location, error) {
	return c.Locations.Get(ctx, id)
}

func (c *Cache) User(ctx context.Context, id int64) (models.User, error) {
	return c.Users.Get(ctx, id)
}

func (c *Cache) Template(ctx context.Context, id int64) (models.ChecklistTemplate, error) {
	return c.Templates.Get(ctx, id)
}
