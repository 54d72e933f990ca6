package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive board in the terminal",
	Long: `Open the board full screen.

Keys: g cycles the grouping, s cycles the ordering (both are saved),
r reloads, left/right scroll the columns, q quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		// Logs would corrupt the alternate screen.
		state, err := newBoardState(ctx, newLogger(ui.ErrOut, true))
		if err != nil {
			return err
		}
		return tui.Run(ctx, state, newFetcher())
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
