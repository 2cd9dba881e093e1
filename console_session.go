package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nonfou/mpayctl/internal/api"
	"github.com/nonfou/mpayctl/internal/config"
	"github.com/nonfou/mpayctl/internal/credstore"
	"github.com/nonfou/mpayctl/internal/session"
)

// ConsoleSession holds the session controller and everything it was built
// from for one CLI invocation. Close releases the persister and stops the
// token watcher.
type ConsoleSession struct {
	Ctrl     *session.Controller
	Resolved *config.Resolved
	Registry *prometheus.Registry

	logger  *slog.Logger
	closers []io.Closer
	cancel  context.CancelFunc
}

// NewConsoleSession opens the configured credential store, optionally
// starts the token file watcher, and builds the controller. No network call
// is made.
func NewConsoleSession(ctx context.Context, cc *CLIContext) (*ConsoleSession, error) {
	cfg := cc.Cfg
	logger := cc.Logger

	cs := &ConsoleSession{
		Resolved: cfg,
		Registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	persister, err := cs.openPersister(ctx)
	if err != nil {
		return nil, err
	}

	store := credstore.Open(ctx, persister, logger)

	if cfg.Session.Store == config.StoreFile && cfg.Session.Watch {
		watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		cs.cancel = cancel

		if _, err := store.Watch(watchCtx, cfg.Session.TokenPath); err != nil {
			cs.Close()
			return nil, err
		}

		logger.Debug("watching token file", slog.String("path", cfg.Session.TokenPath))
	}

	client := api.NewClient(cfg.Server.BaseURL, defaultHTTPClient(cfg), logger, cfg.Server.UserAgent)

	cs.Ctrl = session.New(session.Config{
		Client:         client,
		Store:          store,
		Navigator:      loginHint(cc.Err),
		Logger:         logger,
		Metrics:        session.NewMetrics(cs.Registry),
		RefreshTimeout: cfg.RefreshTimeout,
	})

	return cs, nil
}

func (cs *ConsoleSession) openPersister(ctx context.Context) (credstore.Persister, error) {
	sc := cs.Resolved.Session

	switch sc.Store {
	case config.StoreFile:
		return credstore.NewFilePersister(sc.TokenPath), nil
	case config.StoreSQLite:
		p, err := credstore.OpenSQLite(ctx, sc.DBPath, cs.logger)
		if err != nil {
			return nil, err
		}

		cs.closers = append(cs.closers, p)

		return p, nil
	case config.StoreMemory:
		return credstore.NewMemoryPersister(credstore.Credential{}), nil
	default:
		return nil, fmt.Errorf("unknown credential store %q", sc.Store)
	}
}

// Close stops the watcher, closes the persister, and logs the session
// counters at debug level.
func (cs *ConsoleSession) Close() {
	if cs.cancel != nil {
		cs.cancel()
	}

	for _, c := range cs.closers {
		if err := c.Close(); err != nil {
			cs.logger.Warn("closing credential store", slog.String("error", err.Error()))
		}
	}

	cs.logCounters()
}

func (cs *ConsoleSession) logCounters() {
	families, err := cs.Registry.Gather()
	if err != nil {
		return
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if v := m.GetCounter().GetValue(); v > 0 {
				cs.logger.Debug("session counter", slog.String("name", mf.GetName()), slog.Float64("value", v))
			}
		}
	}
}

// loginHint is the CLI's session.Navigator: there is no login page to go
// to, so it tells the user what to run.
func loginHint(w io.Writer) session.Navigator {
	return session.NavigatorFunc(func(_ context.Context, intended string) {
		fmt.Fprintf(w, "Session expired while requesting %s. Run 'mpayctl login' to sign in again.\n", intended)
	})
}
