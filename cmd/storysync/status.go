package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/talekeeper/storysync/internal/journal"
	"github.com/talekeeper/storysync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show remote status and recent syncs",
	Long: `Display the remote account status, local record counts and the most
recent sync runs from the journal.

The status probe does not sync.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("runs")

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

		stories, err := a.local.Stories.All(ctx)
		if err != nil {
			return err
		}
		profiles, err := a.local.Profiles.All(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader("Sync Status"))
		fmt.Println(ui.RenderField("Remote", ui.RenderStatus(st)))
		fmt.Println(ui.RenderField("Zone", a.remote.Zone()))
		fmt.Println(ui.RenderField("Sync", enabledText(a.cfg.Sync.Enabled)))
		fmt.Println(ui.RenderField("Data dir", a.local.Dir()))
		fmt.Println(ui.RenderField("Stories", len(stories)))
		fmt.Println(ui.RenderField("Profiles", len(profiles)))

		runs, err := a.journal.List(ctx, limit)
		if err != nil {
			return err
		}
		fmt.Println()
		if len(runs) == 0 {
			fmt.Printf("%s No syncs recorded yet\n", ui.RenderMuted("•"))
			fmt.Printf("   Run 'storysync sync' to sync now\n\n")
			return nil
		}

		rows := [][]string{{"STARTED", "TRIGGER", "OUTCOME", "PUSHED", "PULLED", "FAILED", "TOOK"}}
		for _, r := range runs {
			rows = append(rows, []string{
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Trigger,
				renderOutcome(r.Outcome),
				fmt.Sprint(r.Pushed),
				fmt.Sprint(r.Pulled),
				fmt.Sprint(r.Failed),
				r.Duration().Round(time.Millisecond).String(),
			})
		}
		fmt.Print(ui.RenderTable(rows))
		if last := runs[0]; last.Error != "" {
			fmt.Printf("\n%s Last error: %s\n", ui.RenderWarn("⚠"), last.Error)
		}
		fmt.Println()
		return nil
	},
}

func enabledText(on bool) string {
	if on {
		return ui.RenderPass("enabled")
	}
	return ui.RenderWarn("disabled")
}

func renderOutcome(o journal.Outcome) string {
	switch o {
	case journal.OutcomeOK:
		return ui.RenderPass(string(o))
	case journal.OutcomePartial:
		return ui.RenderWarn(string(o))
	default:
		return ui.RenderFail(string(o))
	}
}

func init() {
	statusCmd.Flags().IntP("runs", "n", 5, "Number of recent sync runs to show")
	rootCmd.AddCommand(statusCmd)
}
