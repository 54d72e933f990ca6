package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client read the board and change the saved grouping
and ordering. Configure it with:

  {
    "mcpServers": {
      "kanban": { "command": "kanban", "args": ["mcp"] }
    }
  }

Available tools: kanban_board, kanban_set_preferences`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		// stdout carries the protocol.
		ui.Out = ui.ErrOut
		state, err := newBoardState(ctx, newLogger(ui.ErrOut, false))
		if err != nil {
			return err
		}
		return mcp.NewServer(state, newFetcher(), buildVersion).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
