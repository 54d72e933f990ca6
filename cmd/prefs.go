package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/prefs"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change the saved grouping and ordering",
	Long: `Show or change the saved board preferences.

Running bare 'kanban prefs' is the same as 'kanban prefs show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsShowRun(commandContext(cmd))
	},
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show saved and effective preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsShowRun(commandContext(cmd))
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <grouping|sorting> <value>",
	Short: "Save a preference",
	Example: `  kanban prefs set grouping username
  kanban prefs set sorting title`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsSetRun(commandContext(cmd), args[0], args[1])
	},
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget saved preferences and use the configured defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsResetRun(commandContext(cmd))
	},
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	prefsCmd.AddCommand(prefsResetCmd)
	rootCmd.AddCommand(prefsCmd)
}

func prefsShowRun(ctx context.Context) error {
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"Preference", "Key", "Saved", "Default"})
	rows := []struct {
		name, key, def string
	}{
		{"grouping", prefs.GroupingKey, viper.GetString("board.default_grouping")},
		{"sorting", prefs.SortingKey, viper.GetString("board.default_sorting")},
	}
	for _, r := range rows {
		saved, ok, err := s.Get(ctx, r.key)
		if err != nil {
			return fmt.Errorf("read %s: %w", r.key, err)
		}
		if !ok {
			saved = output.Faint("(none)")
		}
		def := r.def
		if def == "" {
			def = output.Faint("(none)")
		}
		_ = table.Append([]string{r.name, r.key, saved, def})
	}
	_ = table.Render()
	return nil
}

func prefsSetRun(ctx context.Context, name, value string) error {
	var key, stored string
	switch name {
	case "grouping", "group", prefs.GroupingKey:
		g, err := board.ParseGrouping(value)
		if err != nil {
			return err
		}
		key, stored = prefs.GroupingKey, string(g)
	case "sorting", "sort", "ordering", prefs.SortingKey:
		so, err := board.ParseSorting(value)
		if err != nil {
			return err
		}
		key, stored = prefs.SortingKey, string(so)
	default:
		return fmt.Errorf("unknown preference %q (want grouping or sorting)", name)
	}

	if dryRun {
		ui.DryRunMsg("Would set %s = %s", key, stored)
		return nil
	}

	s, err := getStore(ctx)
	if err != nil {
		return err
	}
	if err := s.Set(ctx, key, stored); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	ui.Success("Saved %s = %s", key, stored)
	return nil
}

func prefsResetRun(ctx context.Context) error {
	if dryRun {
		ui.DryRunMsg("Would remove %s and %s", prefs.GroupingKey, prefs.SortingKey)
		return nil
	}

	s, err := getStore(ctx)
	if err != nil {
		return err
	}
	for _, key := range []string{prefs.GroupingKey, prefs.SortingKey} {
		if err := s.Delete(ctx, key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	ui.Success("Preferences reset to defaults")
	return nil
}
