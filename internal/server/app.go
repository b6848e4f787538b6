// Package server wires the reference server: it opens Postgres, applies
// migrations, builds the services and runs the JSON API next to the gRPC
// health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/server/config"
	"github.com/dmitrijs2005/inspectsync/internal/server/httpapi"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/inspectsync/internal/server/services"

	gs "github.com/dmitrijs2005/inspectsync/internal/server/grpc"
)

// seedCompanyID is the demo company created by the migrations.
const seedCompanyID = 1

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	services httpapi.Services
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(parseLevel(c.LogLevel))

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	as := services.NewAuthService(db, rm, c)

	app := &App{
		config: c,
		logger: logger,
		db:     db,
		services: httpapi.Services{
			Auth:        as,
			Evaluations: services.NewEvaluationService(db, rm),
			Reference:   services.NewReferenceService(db, rm),
			Exports:     services.NewExportService(c),
		},
	}

	if err := app.seedUser(ctx, as); err != nil {
		_ = db.Close()
		return nil, err
	}

	return app, nil
}

// seedUser creates the configured admin once, so a fresh install has
// someone to log in as.
func (app *App) seedUser(ctx context.Context, as *services.AuthService) error {
	if app.config.SeedUserEmail == "" || app.config.SeedUserPassword == "" {
		return nil
	}

	u, created, err := as.EnsureUser(ctx, services.NewUser{
		CompanyID: seedCompanyID,
		Name:      app.config.SeedUserEmail,
		Email:     app.config.SeedUserEmail,
		Role:      models.RoleAdmin,
		Password:  app.config.SeedUserPassword,
	})
	if err != nil {
		return fmt.Errorf("error seeding user: %w", err)
	}
	if created {
		app.logger.Info(ctx, "Seed user created", "user_id", u.ID, "email", u.Email)
	}
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, app.services)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.HealthAddr, app.logger, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHealthServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "error closing database", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
