package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/talekeeper/storysync/internal/localstore"
	"github.com/talekeeper/storysync/internal/model"
	syncer "github.com/talekeeper/storysync/internal/sync"
	"github.com/talekeeper/storysync/internal/ui"
	"golang.org/x/term"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <story|profile> <id>",
	GroupID: "records",
	Short:   "Delete a record on this device and remotely",
	Long: `Delete a story or child profile locally, then remove its remote record.

There are no tombstones: if the remote delete cannot be made now, the record
stays in the remote zone and the next full sync brings it back.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"story", "profile"},
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := model.ParseEntityType(args[0])
		if err != nil {
			return err
		}
		id := args[1]
		yes, _ := cmd.Flags().GetBool("yes")

		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		label, err := describe(ctx, a.local, typ, id)
		if err != nil {
			return err
		}

		if !yes && term.IsTerminal(int(os.Stdin.Fd())) {
			confirmed := false
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Delete %s %q?", typ, label)).
				Description("The record is removed from this device and every synced device.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Cancelled")
				return nil
			}
		}

		if _, err := a.monitor.Check(ctx); err != nil {
			return err
		}

		switch typ {
		case model.TypeStory:
			err = a.coordinator.DeleteStory(ctx, id)
		default:
			err = a.coordinator.DeleteProfile(ctx, id)
		}

		var unavailable *syncer.UnavailableError
		switch {
		case err == nil:
			fmt.Printf("%s Deleted %s %s\n", ui.RenderPass("✓"), typ, id)
			return nil
		case errors.As(err, &unavailable):
			fmt.Printf("%s Deleted %s %s locally\n", ui.RenderWarn("⚠"), typ, id)
			fmt.Printf("   Remote is %s; the remote copy will return on the next sync\n", unavailable.Status)
			return err
		default:
			return err
		}
	},
}

// describe returns a human label for the record, failing if it does not
// exist locally.
func describe(ctx context.Context, local *localstore.Store, typ model.EntityType, id string) (string, error) {
	switch typ {
	case model.TypeStory:
		s, ok, err := local.Stories.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: story %s", localstore.ErrNotFound, id)
		}
		return s.Title, nil
	default:
		p, ok, err := local.Profiles.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: profile %s", localstore.ErrNotFound, id)
		}
		return p.Name, nil
	}
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}
