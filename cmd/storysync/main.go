// Command storysync keeps the on-device story library in step with the
// remote record store shared by the user's other devices.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/talekeeper/storysync/internal/config"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "storysync",
	Short: "Sync stories and child profiles across devices",
	Long: `storysync reconciles the local story library with the remote record store.

Stories and child profiles live in JSON files in the data directory and as
records in a shared remote zone. A full sync pushes records only present
locally, pulls records only present remotely and, when both sides hold the
same id, keeps the one with the later createdAt.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: <data dir>/storysync.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "records", Title: "Record Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
