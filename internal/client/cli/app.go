package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/inspectsync/internal/client/backfill"
	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"github.com/dmitrijs2005/inspectsync/internal/client/config"
	"github.com/dmitrijs2005/inspectsync/internal/client/connectivity"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/refcache"
	"github.com/dmitrijs2005/inspectsync/internal/client/scheduler"
	"github.com/dmitrijs2005/inspectsync/internal/client/services"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/client/syncer"
	"github.com/dmitrijs2005/inspectsync/internal/filex"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

// The App talks to its components through these narrow views so commands
// can be tested with fakes.
type (
	syncEngine interface {
		SyncNow(ctx context.Context) syncer.DrainResult
		Retry(ctx context.Context, clientID string) error
		Paused() bool
	}
	migrator interface {
		Migrate(ctx context.Context, opts backfill.Options) backfill.Result
	}
	refresher interface {
		Refresh(ctx context.Context) error
	}
	stateSource interface {
		State() connectivity.State
	}
	wiper interface {
		Clear(ctx context.Context, collections ...store.Collection) error
	}
)

type App struct {
	config *config.Config
	log    logging.Logger

	authService services.AuthService
	recorder    services.Recorder
	exporter    services.ExportService
	refs        services.ReferenceLookup
	refresher   refresher
	engine      syncEngine
	migrator    migrator
	monitor     stateSource
	wiper       wiper

	user    *models.CurrentUser
	pending *pendingGauge

	reader *bufio.Reader
	out    io.Writer

	background func(ctx context.Context)
	closers    []func() error
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewText(os.Stderr, parseLevel(c.LogLevel))

	dbPath, err := filex.EnsureParentDir(c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error preparing database path: %w", err)
	}

	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	a := &App{
		config: c,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		wiper:  st,
	}
	a.closers = append(a.closers, st.Close)

	apiClient := client.NewHTTPClient(c.ServerURL, services.StoreTokenSource(st))

	prober, err := newProber(c, apiClient)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if cl, ok := prober.(io.Closer); ok {
		a.closers = append(a.closers, cl.Close)
	}

	linkUp := connectivity.HostLinkUp()
	monitor := connectivity.New(prober, c.ProbeTimeout, linkUp, log)

	engine := syncer.New(st, apiClient, monitor, syncer.Config{
		Concurrency:    c.SyncConcurrency,
		RequestTimeout: c.RequestTimeout,
		MaxAttempts:    c.MaxAttempts,
		BackoffBase:    c.BackoffBase,
		BackoffMax:     c.BackoffMax,
	}, log, syncer.WithOnAuthExpired(func() {
		printlnFn("Session expired: log in again to resume syncing")
	}))

	monitor.Subscribe(func(from, to connectivity.State) {
		log.Info(context.Background(), "connectivity changed", "from", from, "to", to)
		if to == connectivity.Online {
			engine.Trigger()
		}
	})
	engine.Subscribe(func(r syncer.DrainResult) {
		if r.Rejected > 0 || r.Stale > 0 {
			printlnFn(fmt.Sprintf("Sync needs attention: %d rejected, %d out of retries (see 'status')", r.Rejected, r.Stale))
		}
	})

	refs := refcache.New(st, apiClient, log)

	a.refs = refs
	a.refresher = refs
	a.engine = engine
	a.monitor = monitor
	a.migrator = backfill.New(st, apiClient, refs, log)
	a.exporter = services.NewExportService(apiClient, st, log)
	a.authService = services.NewAuthService(apiClient, st, log, engine.ResumeAfterAuth)
	a.recorder = services.NewRecorder(st, refs, c.MaxAttempts, log,
		services.WithOnRecorded(func(string) {
			if monitor.Online() {
				engine.Trigger()
			}
		}))

	a.pending = newPendingGauge(a.recorder.PendingCount)
	unwatch := st.Watch(a.pending.onChange)
	a.closers = append(a.closers, func() error {
		unwatch()
		return nil
	})

	sched := scheduler.New(log)
	poller := connectivity.NewLinkPoller(monitor, linkUp, nil)
	sched.Register("connectivity", c.OnlineCheckInterval, monitor.Tick)
	sched.Register("link", c.LinkPollInterval, poller.Poll)
	sched.Register("sync-wakeup", c.BackoffBase, engine.WakeIfDue)
	sched.Register("reference-refresh", c.RefreshInterval, func(ctx context.Context) {
		if !monitor.Online() {
			return
		}
		if _, err := a.authService.CurrentUser(ctx); err != nil {
			return
		}
		if err := refs.Refresh(ctx); err != nil {
			log.Warn(ctx, "reference refresh failed", "error", err)
		}
	})

	a.background = func(ctx context.Context) {
		go sched.Run(ctx)
		go engine.Run(ctx)
	}

	return a, nil
}

func newProber(c *config.Config, api client.Client) (connectivity.Prober, error) {
	switch c.ProbeMode {
	case config.ProbeGRPC:
		return connectivity.NewGRPCHealthProber(c.HealthAddr, "")
	default:
		return connectivity.NewHTTPProber(api), nil
	}
}

// Run starts the background jobs and the REPL and returns when the user
// exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.background != nil {
		a.background(ctx)
	}

	printlnFn("Welcome to inspectsync (type 'help' for commands)")

	a.restoreSession(ctx)
	if !a.isLoggedIn() {
		if err := a.Login(ctx); err != nil {
			printlnFn("Login failed:", err)
		}
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// restoreSession picks up the login kept in the store, so the client works
// offline right after a restart.
func (a *App) restoreSession(ctx context.Context) {
	u, err := a.authService.CurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, services.ErrNotLoggedIn) {
			a.log.Error(ctx, "failed to read stored login", "error", err)
		}
		return
	}
	a.user = u
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

func (a *App) getStatus() string {
	s := ""
	if a.user != nil {
		s = a.user.Name + " "
	}
	if a.monitor != nil {
		s += string(a.monitor.State())
	}
	if a.pending != nil {
		if n := a.pending.value(context.Background()); n > 0 {
			s += fmt.Sprintf(" %d unsynced", n)
		}
	}
	if a.engine != nil && a.engine.Paused() {
		s += " paused"
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}
