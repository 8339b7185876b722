package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/talekeeper/storysync/internal/ui"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Print the effective configuration",
	Long: `Print the configuration after merging defaults, the config file and
STORYSYNC_* environment variables, as YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.File != "" {
			fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderMuted("# from"), cfg.File)
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
