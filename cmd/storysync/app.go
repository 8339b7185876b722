package main

import (
	"context"
	"fmt"

	"github.com/talekeeper/storysync/internal/config"
	"github.com/talekeeper/storysync/internal/journal"
	"github.com/talekeeper/storysync/internal/localstore"
	"github.com/talekeeper/storysync/internal/logging"
	"github.com/talekeeper/storysync/internal/remote"
	"github.com/talekeeper/storysync/internal/status"
	syncer "github.com/talekeeper/storysync/internal/sync"
)

// app is the wired set of components one command works with.
type app struct {
	cfg  *config.Config
	logs *logging.Output

	local       *localstore.Store
	remote      *remote.RedisStore
	monitor     *status.Monitor
	coordinator *syncer.Coordinator
	journal     *journal.DB
}

// openApp builds every component from cfg. The monitor has no sync hook;
// commands that want syncs on becoming available install one.
func openApp(cfg *config.Config) (*app, error) {
	logs := logging.Open(cfg.Log, cfg.DataDir)

	local, err := localstore.Open(cfg.DataDir, logs.Logger("localstore"))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	rs, err := remote.NewRedisStore(remote.RedisConfig{
		URL:    cfg.Remote.URL,
		Zone:   cfg.Remote.Zone,
		Logger: logs.Logger("remote"),
	})
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	jdb, err := journal.Open(cfg.JournalPath())
	if err != nil {
		_ = rs.Close()
		_ = logs.Close()
		return nil, err
	}
	jdb.SetLogger(logs.Logger("journal"))
	if err := jdb.InitSchema(); err != nil {
		_ = jdb.Close()
		_ = rs.Close()
		_ = logs.Close()
		return nil, err
	}

	monitor := status.New(rs, nil, logs.Logger("status"))

	enabled := cfg.Sync.Enabled
	coordinator, err := syncer.New(syncer.Config{
		Local:     local,
		Remote:    rs,
		Status:    monitor,
		Enabled:   func() bool { return enabled },
		Logger:    logs.Logger("sync"),
		Reporters: []syncer.Reporter{jdb},
	})
	if err != nil {
		_ = jdb.Close()
		_ = rs.Close()
		_ = logs.Close()
		return nil, fmt.Errorf("failed to create sync coordinator: %w", err)
	}

	return &app{
		cfg:         cfg,
		logs:        logs,
		local:       local,
		remote:      rs,
		monitor:     monitor,
		coordinator: coordinator,
		journal:     jdb,
	}, nil
}

// syncOnAvailable makes the monitor run a full sync each time the remote
// store becomes available.
func (a *app) syncOnAvailable() {
	a.monitor.SetSyncHook(func(ctx context.Context) error {
		_, err := a.coordinator.FullSync(ctx)
		return err
	})
}

func (a *app) Close() {
	_ = a.journal.Close()
	_ = a.remote.Close()
	_ = a.logs.Close()
}
