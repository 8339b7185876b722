package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/talekeeper/storysync/internal/daemon"
	"github.com/talekeeper/storysync/internal/dashboard"
	"github.com/talekeeper/storysync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run background sync (foreground)",
	Long: `Run the background sync triggers until interrupted.

The daemon will:
  1. Probe the remote status, syncing each time it becomes available
  2. Sync when other devices signal a change (debounced)
  3. Sync on a schedule, within a time budget
  4. Optionally serve a WebSocket dashboard of status changes and syncs

Background sync failures are logged, never fatal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("dashboard-port") {
			cfg.Dashboard.Port, _ = cmd.Flags().GetInt("dashboard-port")
		}

		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		a.syncOnAvailable()

		dcfg := &daemon.Config{
			StatusInterval:   cfg.Status.Interval,
			SyncInterval:     cfg.Sync.Interval,
			SyncBudget:       cfg.Sync.Budget,
			DebounceInterval: cfg.Notify.Debounce,
			WiFiOnly:         cfg.Sync.WiFiOnly,
			Logger:           a.logs.Logger("daemon"),
		}
		enabled := cfg.Sync.Enabled
		dcfg.Enabled = func() bool { return enabled }

		if cfg.Dashboard.Port > 0 {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: a.logs.Logger("dashboard"),
			})
			handler := dashboard.NewHandler(server, a.logs.Logger("dashboard"))
			a.monitor.Subscribe(handler.OnStatusChanged)
			a.coordinator.AddReporter(handler)
			dcfg.Dashboard = server
		}

		d, err := daemon.New(a.monitor, a.coordinator, a.remote, a.local, dcfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon: %w", err)
		}

		fmt.Printf("%s Starting sync daemon...\n", ui.RenderAccent("🚀"))
		fmt.Printf("   Data dir: %s\n", a.local.Dir())
		fmt.Printf("   Remote: %s (zone %s)\n", cfg.Remote.URL, a.remote.Zone())
		if cfg.Dashboard.Port > 0 {
			fmt.Printf("   Dashboard: ws://localhost:%d/ws\n", cfg.Dashboard.Port)
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			return fmt.Errorf("daemon stopped with error: %w", err)
		}
		return nil
	},
}

func init() {
	daemonCmd.Flags().IntP("dashboard-port", "p", 0, "Serve the dashboard on this port (overrides dashboard.port)")
	rootCmd.AddCommand(daemonCmd)
}
