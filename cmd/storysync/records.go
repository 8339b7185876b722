package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/talekeeper/storysync/internal/localstore"
	"github.com/talekeeper/storysync/internal/model"
	"github.com/talekeeper/storysync/internal/ui"
)

var storyCmd = &cobra.Command{
	Use:     "story",
	GroupID: "records",
	Short:   "Manage stories",
}

var profileCmd = &cobra.Command{
	Use:     "profile",
	GroupID: "records",
	Short:   "Manage child profiles",
}

// withSaveApp opens the app and probes the remote status so saves are
// pushed when the store is available.
func withSaveApp(ctx context.Context, fn func(*app) error) error {
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.monitor.Check(ctx); err != nil {
		return err
	}
	return fn(a)
}

var storyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a story",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		theme, _ := cmd.Flags().GetString("theme")
		child, _ := cmd.Flags().GetString("child")

		s := model.NewStory(title, content, theme, child)
		if err := s.ValidateInput(); err != nil {
			return fmt.Errorf("invalid story: %w", err)
		}

		return withSaveApp(cmd.Context(), func(a *app) error {
			saved, err := a.coordinator.SaveStory(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Printf("%s Added story %s\n", ui.RenderPass("✓"), saved.ID)
			return nil
		})
	},
}

var storyProgressCmd = &cobra.Command{
	Use:   "progress <id> <seconds>",
	Short: "Record the playback position of a story",
	Long: `Record where playback of a story stopped.

The position is updated in place and does not change createdAt, so another
device's copy is not replaced by it during sync.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid position %q: %w", args[1], err)
		}

		return withSaveApp(cmd.Context(), func(a *app) error {
			ctx := cmd.Context()
			s, ok, err := a.local.Stories.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: story %s", localstore.ErrNotFound, args[0])
			}
			s.LastPlayPosition = &pos
			if err := s.Validate(); err != nil {
				return fmt.Errorf("invalid story: %w", err)
			}
			if _, err := a.coordinator.SaveStory(ctx, s); err != nil {
				return err
			}
			fmt.Printf("%s %s at %.1fs\n", ui.RenderPass("✓"), s.Title, pos)
			return nil
		})
	},
}

var storyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local stories",
	RunE: func(cmd *cobra.Command, args []string) error {
		local, err := localstore.Open(cfg.DataDir, nil)
		if err != nil {
			return err
		}
		stories, err := local.Stories.All(cmd.Context())
		if err != nil {
			return err
		}
		if len(stories) == 0 {
			fmt.Println("No stories")
			return nil
		}

		rows := [][]string{{"ID", "TITLE", "CHILD", "THEME", "CREATED", "AUDIO"}}
		for _, s := range stories {
			audio := ""
			if s.HasAudio() {
				audio = "yes"
			}
			rows = append(rows, []string{
				s.ID, s.Title, s.ChildName, s.Theme,
				s.CreatedAt.Local().Format("2006-01-02 15:04"), audio,
			})
		}
		fmt.Print(ui.RenderTable(rows))
		return nil
	},
}

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a child profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		age, _ := cmd.Flags().GetInt("age")
		gender, _ := cmd.Flags().GetString("gender")
		interests, _ := cmd.Flags().GetStringSlice("interest")

		p := model.NewChildProfile(name, age, gender, interests)
		if err := p.ValidateInput(); err != nil {
			return fmt.Errorf("invalid profile: %w", err)
		}

		return withSaveApp(cmd.Context(), func(a *app) error {
			saved, err := a.coordinator.SaveProfile(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Printf("%s Added profile %s\n", ui.RenderPass("✓"), saved.ID)
			return nil
		})
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local child profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		local, err := localstore.Open(cfg.DataDir, nil)
		if err != nil {
			return err
		}
		profiles, err := local.Profiles.All(cmd.Context())
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles")
			return nil
		}

		rows := [][]string{{"ID", "NAME", "AGE", "GENDER", "INTERESTS"}}
		for _, p := range profiles {
			rows = append(rows, []string{
				p.ID, p.Name, strconv.Itoa(p.Age), p.Gender, strings.Join(p.Interests, ", "),
			})
		}
		fmt.Print(ui.RenderTable(rows))
		return nil
	},
}

func init() {
	storyAddCmd.Flags().String("title", "", "Story title (required)")
	storyAddCmd.Flags().String("content", "", "Story text")
	storyAddCmd.Flags().String("theme", "", "Story theme")
	storyAddCmd.Flags().String("child", "", "Name of the child the story is for")
	_ = storyAddCmd.MarkFlagRequired("title")

	profileAddCmd.Flags().String("name", "", "Child's name (required)")
	profileAddCmd.Flags().Int("age", 0, "Child's age")
	profileAddCmd.Flags().String("gender", "", "Child's gender")
	profileAddCmd.Flags().StringSlice("interest", nil, "Interest, most important first (repeatable)")
	_ = profileAddCmd.MarkFlagRequired("name")

	storyCmd.AddCommand(storyAddCmd, storyListCmd, storyProgressCmd)
	profileCmd.AddCommand(profileAddCmd, profileListCmd)
	rootCmd.AddCommand(storyCmd, profileCmd)
}
