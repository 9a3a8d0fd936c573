// Package app wires the analytics synchronizer to the snapshot store and the
// dashboard server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jpalmerr/creditpulse"
	"github.com/jpalmerr/creditpulse/analytics"
	"github.com/jpalmerr/creditpulse/config"
	"github.com/jpalmerr/creditpulse/dashboard"
	"github.com/jpalmerr/creditpulse/internal/poller"
	"github.com/jpalmerr/creditpulse/internal/server"
	"github.com/jpalmerr/creditpulse/internal/store"
)

// App owns one analytics synchronizer and republishes its state into a
// [store.MemoryStore] on every change.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	client *poller.Client
	sync   *creditpulse.Synchronizer[analytics.Dashboard]
	store  *store.MemoryStore

	// publishMu orders GetState and Update across concurrent change hooks.
	publishMu sync.Mutex
}

// New builds an App from a validated configuration. extra options are
// applied after the ones derived from cfg.
func New(cfg *config.Config, logger *slog.Logger, extra ...creditpulse.Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		client: config.BuildClient(cfg),
		store:  store.NewMemoryStore(),
	}

	opts := config.BuildOptions(cfg, logger)
	opts = append(opts, creditpulse.WithChangeHook(a.publish))
	opts = append(opts, extra...)

	s, err := creditpulse.NewSynchronizer(a.client, analytics.Validate, opts...)
	if err != nil {
		a.client.Close()
		return nil, fmt.Errorf("failed to create synchronizer: %w", err)
	}
	a.sync = s
	return a, nil
}

// Synchronizer returns the underlying synchronizer.
func (a *App) Synchronizer() *creditpulse.Synchronizer[analytics.Dashboard] {
	return a.sync
}

// Store returns the snapshot store fed by the synchronizer.
func (a *App) Store() *store.MemoryStore {
	return a.store
}

// Run subscribes to the synchronizer, starts the dashboard server and blocks
// until ctx is cancelled. The synchronizer is closed on return.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails to start.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	a.logger.Info("creditpulse starting",
		"source", a.client.URL(),
		"cache_ttl", a.sync.CacheTTL().String(),
		"poll_interval", a.sync.PollInterval().String(),
	)

	if ctx.Err() != nil {
		return nil
	}

	handle, err := a.sync.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer handle.Unsubscribe()

	httpServer := server.NewServer(a.store, a.sync, a.cfg.Port, dashboard.Assets, a.cfg.Title, a.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	a.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", a.cfg.Port))

	<-ctx.Done()
	a.logger.Info("creditpulse stopped")
	return nil
}

// Close shuts down the synchronizer and releases the HTTP client. Safe to
// call more than once.
func (a *App) Close() {
	a.sync.Close()
	a.client.Close()
}

// publish copies the current synchronizer state into the store. Hooks run
// on several goroutines, so the read and the write happen under one lock:
// the last hook to run always stores the newest state.
func (a *App) publish() {
	if a.sync == nil {
		return
	}
	a.publishMu.Lock()
	defer a.publishMu.Unlock()
	a.store.Update(SnapshotOf(a.sync.GetState()))
}

// SnapshotOf converts a synchronizer state into its serializable form.
func SnapshotOf(st creditpulse.State[analytics.Dashboard]) store.Snapshot {
	snap := store.Snapshot{
		Data:    st.Data,
		Loading: st.Loading,
		IsStale: st.IsStale,
	}
	if st.Data != nil {
		fetchedAt := st.FetchedAt
		snap.FetchedAt = &fetchedAt
		snap.MonthlyProgressPercent = st.Data.MonthlyProgressPercent()
	}
	if st.Err != nil {
		snap.Error = &store.ErrorInfo{
			Kind:    creditpulse.ErrorKind(st.Err),
			Message: st.Err.Error(),
		}
	}
	return snap
}
