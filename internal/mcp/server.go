package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/source"
)

// Server exposes the board as MCP tools.
type Server struct {
	state   *board.State
	fetcher source.Fetcher
	version string
}

// NewServer creates the MCP server wrapper. The board is loaded lazily on
// the first tool call that needs it.
func NewServer(state *board.State, fetcher source.Fetcher, version string) *Server {
	return &Server{state: state, fetcher: fetcher, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("kanban", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.boardTool())
	srv.AddTool(s.setPreferencesTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ensureLoaded loads the board unless a good copy is already held. A board
// whose last reload failed is fetched again.
func (s *Server) ensureLoaded(ctx context.Context) error {
	if snap := s.state.Snapshot(); snap.Loaded && snap.Error == "" {
		return nil
	}
	return s.state.Load(ctx, s.fetcher)
}

// kanban_board
func (s *Server) boardTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_board",
		mcp.WithDescription("Show the kanban board as JSON: columns keyed by the grouping value, each holding tickets (id, title, status, priority 0-4, username) in the requested order. Omitted criteria use the saved preferences; nothing is saved."),
		mcp.WithString("group", mcp.Description("Group columns by this field"), mcp.Enum("status", "username", "priority")),
		mcp.WithString("sort", mcp.Description("Order tickets within a column by this field"), mcp.Enum("priority", "title")),
		mcp.WithBoolean("reload", mcp.Description("Refetch the board before answering")),
	)
	return tool, s.handleBoard
}

func (s *Server) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var g board.Grouping
	var so board.Sorting
	var err error

	if v := request.GetString("group", ""); v != "" {
		if g, err = board.ParseGrouping(v); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if v := request.GetString("sort", ""); v != "" {
		if so, err = board.ParseSorting(v); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	if request.GetBool("reload", false) {
		err = s.state.Load(ctx, s.fetcher)
	} else {
		err = s.ensureLoaded(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s (%v)", board.LoadFailedMessage, err)), nil
	}

	view := s.state.View(g, so)
	if view.Error != "" {
		return mcp.NewToolResultError(view.Error), nil
	}
	return jsonResult(view)
}

// kanban_set_preferences
func (s *Server) setPreferencesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_set_preferences",
		mcp.WithDescription("Save the default grouping and/or ordering of the kanban board. Returns the active preferences."),
		mcp.WithString("group", mcp.Description("Default grouping"), mcp.Enum("status", "username", "priority")),
		mcp.WithString("sort", mcp.Description("Default ordering"), mcp.Enum("priority", "title")),
	)
	return tool, s.handleSetPreferences
}

func (s *Server) handleSetPreferences(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group := request.GetString("group", "")
	sort := request.GetString("sort", "")
	if group == "" && sort == "" {
		return mcp.NewToolResultError("at least one of group or sort is required"), nil
	}

	if group != "" {
		g, err := board.ParseGrouping(group)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.state.SetGrouping(ctx, g); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save grouping: %v", err)), nil
		}
	}
	if sort != "" {
		so, err := board.ParseSorting(sort)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.state.SetSorting(ctx, so); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save ordering: %v", err)), nil
		}
	}

	g, so := s.state.Criteria()
	return jsonResult(map[string]string{"grouping": string(g), "sorting": string(so)})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
