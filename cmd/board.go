package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/tui"
)

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 120

type boardOptions struct {
	Group string
	Sort  string
	JSON  bool
	Table bool
	Width int
}

var boardFlags boardOptions

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the board",
	Long: `Load the board and print its columns.

--group and --sort change the saved preference, exactly like picking a
new value in the Display menu. With --dry-run the board is shown with the
given criteria but nothing is saved.`,
	Example: `  kanban board
  kanban board --group username --sort title
  kanban board --json
  kanban board --file board.json --table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardRun(commandContext(cmd), boardFlags)
	},
}

func init() {
	boardCmd.Flags().StringVarP(&boardFlags.Group, "group", "g", "", "Group by: status, username, priority")
	boardCmd.Flags().StringVarP(&boardFlags.Sort, "sort", "s", "", "Order by: priority, title")
	boardCmd.Flags().BoolVar(&boardFlags.JSON, "json", false, "Print the board as JSON")
	boardCmd.Flags().BoolVar(&boardFlags.Table, "table", false, "Print the board as a single table")
	boardCmd.Flags().IntVarP(&boardFlags.Width, "width", "w", 0, "Output width (default: terminal width)")
	boardCmd.MarkFlagsMutuallyExclusive("json", "table")
	rootCmd.AddCommand(boardCmd)
}

func boardRun(ctx context.Context, opts boardOptions) error {
	var (
		g   board.Grouping
		so  board.Sorting
		err error
	)
	if opts.Group != "" {
		if g, err = board.ParseGrouping(opts.Group); err != nil {
			return err
		}
	}
	if opts.Sort != "" {
		if so, err = board.ParseSorting(opts.Sort); err != nil {
			return err
		}
	}

	out := ui.Out
	if opts.JSON {
		// stdout carries only the JSON document.
		ui.Out = ui.ErrOut
		defer func() { ui.Out = out }()
	}

	state, err := newBoardState(ctx, newLogger(ui.ErrOut, true))
	if err != nil {
		return err
	}

	if err := saveSelection(ctx, state, g, so); err != nil {
		return err
	}

	if err := state.Load(ctx, newFetcher()); err != nil {
		ui.Error(board.LoadFailedMessage)
		return fmt.Errorf("load board: %w", err)
	}

	// In dry-run mode the selection was not saved; apply it to this view only.
	snap := state.View(g, so)
	ui.VerboseLog("Loaded %d tickets into %d columns", snap.TicketCount, len(snap.Columns))

	switch {
	case opts.JSON:
		return printJSON(out, snap)
	case opts.Table:
		printBoardTable(snap)
		return nil
	default:
		printBoardColumns(snap, opts.Width)
		return nil
	}
}

// saveSelection persists criteria chosen on the command line.
func saveSelection(ctx context.Context, state *board.State, g board.Grouping, so board.Sorting) error {
	if g != "" {
		if dryRun {
			ui.DryRunMsg("Would save grouping: %s", g)
		} else if err := state.SetGrouping(ctx, g); err != nil {
			return err
		} else {
			ui.VerboseLog("Saved grouping: %s", g)
		}
	}
	if so != "" {
		if dryRun {
			ui.DryRunMsg("Would save ordering: %s", so)
		} else if err := state.SetSorting(ctx, so); err != nil {
			return err
		} else {
			ui.VerboseLog("Saved ordering: %s", so)
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBoardColumns(snap board.Snapshot, width int) {
	if width <= 0 {
		width = terminalWidth()
	}
	ui.Info("Grouping: %s  Ordering: %s  (%d tickets)",
		output.Cyan(snap.Grouping.Label()), output.Cyan(snap.Sorting.Label()), snap.TicketCount)
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, tui.RenderColumns(snap.Columns, snap.Grouping, width, tui.DefaultTheme))
}

func printBoardTable(snap board.Snapshot) {
	if snap.TicketCount == 0 {
		ui.Info("No tickets.")
		return
	}

	table := ui.Table([]string{"Column", "ID", "Title", "Status", "User", "Priority"})
	for _, c := range snap.Columns {
		label := tui.ColumnTitle(c.Key, snap.Grouping)
		for i, t := range c.Tickets {
			col := ""
			if i == 0 {
				col = label + " (" + strconv.Itoa(len(c.Tickets)) + ")"
			}
			_ = table.Append([]string{
				col,
				string(t.ID),
				t.Title,
				output.StatusColor(t.Status),
				t.Username,
				output.PriorityColor(t.Priority),
			})
		}
	}
	_ = table.Render()
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}
