// Package store is the client's local durable store: one SQLite file holding
// evaluations, the sync queue, reference collections and auth material.
//
// Repositories obtained from *Store run in autocommit mode; those obtained
// from *Tx inside WithTx commit or roll back together.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/inspectsync/internal/client/migrations"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/authmaterial"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/evaluations"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/reference"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/syncqueue"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	_ "modernc.org/sqlite"
)

// Collection names a group of records; it matches the table name.
type Collection string

const (
	Evaluations        Collection = "evaluations"
	SyncQueue          Collection = "sync_queue"
	Companies          Collection = reference.TableCompanies
	Locations          Collection = reference.TableLocations
	Users              Collection = reference.TableUsers
	ChecklistTemplates Collection = reference.TableChecklistTemplates
	Auth               Collection = "auth"
)

// AllCollections lists every collection in wipe order.
var AllCollections = []Collection{SyncQueue, Evaluations, Companies, Locations, Users, ChecklistTemplates, Auth}

// Change is an advisory notification that collections were modified.
type Change struct {
	Collections []Collection
}

// Has reports whether c is part of the change.
func (ch Change) Has(c Collection) bool {
	return slices.Contains(ch.Collections, c)
}

// dsnParams make concurrent writers wait for each other instead of failing,
// and take the write lock at BEGIN so a read-then-write transaction cannot
// deadlock against another one.
const dsnParams = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

type Store struct {
	db *sql.DB
	repos

	mu       sync.Mutex
	watchers map[int]func(Change)
	nextID   int
}

// Open opens (creating if needed) the database at dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	db, err := sql.Open("sqlite", dsn+sep+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to migrate: %w", ErrStorageUnavailable, err)
	}

	s := &Store{db: db, watchers: make(map[int]func(Change))}
	s.repos = newRepos(db, func(c Collection) { s.notify(Change{Collections: []Collection{c}}) })
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn in one transaction. Everything done through tx is applied
// atomically; watchers hear about it only after the commit.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	touched := make(map[Collection]struct{})

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, sqlTx dbx.DBTX) error {
		tx := &Tx{repos: newRepos(sqlTx, func(c Collection) { touched[c] = struct{}{} })}
		return fn(tx)
	})
	if err != nil {
		return mapError(err)
	}

	if len(touched) > 0 {
		ch := Change{}
		for _, c := range AllCollections {
			if _, ok := touched[c]; ok {
				ch.Collections = append(ch.Collections, c)
			}
		}
		s.notify(ch)
	}
	return nil
}

// Clear empties the given collections, or all of them when none is given.
func (s *Store) Clear(ctx context.Context, collections ...Collection) error {
	if len(collections) == 0 {
		collections = AllCollections
	}
	for _, c := range collections {
		if !slices.Contains(AllCollections, c) {
			return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
		}
	}

	return s.WithTx(ctx, func(tx *Tx) error {
		for _, c := range collections {
			if _, err := tx.exec(c).ExecContext(ctx, `DELETE FROM `+string(c)); err != nil {
				return fmt.Errorf("failed to clear %s: %w", c, err)
			}
		}
		return nil
	})
}

// Watch registers fn for change notifications and returns a function that
// unregisters it. fn runs synchronously on the writer's goroutine.
func (s *Store) Watch(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(ch Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}

// Repos is satisfied by both *Store and *Tx, so code that only reads or
// writes one collection can run either way. Callers see the repository
// interfaces only.
type Repos interface {
	Evaluations() evaluations.Repository
	Queue() syncqueue.Repository
	Companies() reference.Repository[models.Company]
	Locations() reference.Repository[models.Location]
	Users() reference.Repository[models.User]
	Templates() reference.Repository[models.ChecklistTemplate]
	Auth() authmaterial.Repository
}

// Tx exposes the repositories bound to one transaction.
type Tx struct {
	repos
}

type repos struct {
	db   dbx.DBTX
	mark func(Collection)

	evaluations evaluations.Repository
	queue       syncqueue.Repository
	companies   reference.Repository[models.Company]
	locations   reference.Repository[models.Location]
	users       reference.Repository[models.User]
	templates   reference.Repository[models.ChecklistTemplate]
	auth        authmaterial.Repository
}

func newRepos(db dbx.DBTX, mark func(Collection)) repos {
	r := repos{db: db, mark: mark}
	r.evaluations = evaluations.NewSQLiteRepository(r.exec(Evaluations))
	r.queue = syncqueue.NewSQLiteRepository(r.exec(SyncQueue))
	r.companies = reference.NewSQLiteRepository[models.Company](r.exec(Companies), string(Companies))
	r.locations = reference.NewSQLiteRepository[models.Location](r.exec(Locations), string(Locations))
	r.users = reference.NewSQLiteRepository[models.User](r.exec(Users), string(Users))
	r.templates = reference.NewSQLiteRepository[models.ChecklistTemplate](r.exec(ChecklistTemplates), string(ChecklistTemplates))
	r.auth = authmaterial.NewSQLiteRepository(r.exec(Auth))
	return r
}

func (r repos) exec(c Collection) dbx.DBTX {
	return &tracked{db: r.db, coll: c, mark: r.mark}
}

func (r repos) Evaluations() evaluations.Repository { return r.evaluations }

func (r repos) Queue() syncqueue.Repository { return r.queue }

func (r repos) Companies() reference.Repository[models.Company] { return r.companies }

func (r repos) Locations() reference.Repository[models.Location] { return r.locations }

func (r repos) Users() reference.Repository[models.User] { return r.users }

func (r repos) Templates() reference.Repository[models.ChecklistTemplate] { return r.templates }

func (r repos) Auth() authmaterial.Repository { return r.auth }

// tracked marks its collection dirty after every successful write and tags
// SQLite errors with the store sentinels.
type tracked struct {
	db   dbx.DBTX
	coll Collection
	mark func(Collection)
}

func (t *tracked) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	t.mark(t.coll)
	return res, nil
}

func (t *tracked) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	return rows, mapError(err)
}

func (t *tracked) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.db.QueryRowContext(ctx, query, args...)
}
