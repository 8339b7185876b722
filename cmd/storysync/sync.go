package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	syncer "github.com/talekeeper/storysync/internal/sync"
	"github.com/talekeeper/storysync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run a full sync now",
	Long: `Reconcile both entity types with the remote store.

This performs a full sync:
  1. Probes the remote account status (provisioning the zone if needed)
  2. Reads stories and child profiles from both replicas
  3. Pushes local-only records, pulls remote-only records
  4. Resolves records present on both sides by the later createdAt

Unlike background syncs, failures are reported and exit non-zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		st, err := a.monitor.Check(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s Remote status: %s\n", ui.RenderAccent("●"), ui.RenderStatus(st))

		res, err := a.coordinator.FullSync(ctx)
		if err != nil && !errors.Is(err, syncer.ErrPartialSync) {
			return fmt.Errorf("sync failed: %w", err)
		}

		printResult(res)
		if err != nil {
			fmt.Printf("%s %v\n", ui.RenderWarn("⚠"), err)
			return err
		}
		return nil
	},
}

func printResult(res syncer.Result) {
	mark := ui.RenderPass("✓")
	if res.Failed() > 0 {
		mark = ui.RenderWarn("⚠")
	}
	fmt.Printf("%s Sync complete in %v\n", mark, res.Duration.Round(time.Millisecond))
	fmt.Print(ui.RenderTable([][]string{
		{"TYPE", "PUSHED", "PULLED", "UNCHANGED", "FAILED"},
		typeRow(res.Stories),
		typeRow(res.Profiles),
	}))
}

func typeRow(r syncer.TypeResult) []string {
	return []string{
		r.Type.String(),
		fmt.Sprint(r.Pushed),
		fmt.Sprint(r.Pulled),
		fmt.Sprint(r.Unchanged),
		fmt.Sprint(r.Failed),
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
