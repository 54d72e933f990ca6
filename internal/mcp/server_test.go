package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/prefs"
	"github.com/joescharf/kanban/internal/source"
)

type countingFetcher struct {
	payload *source.Payload
	err     error
	calls   int
}

func (f *countingFetcher) Fetch(context.Context) (*source.Payload, error) {
	f.calls++
	return f.payload, f.err
}

func newTestServer(t *testing.T, f *countingFetcher) (*Server, *prefs.MemoryStore) {
	t.Helper()
	store := prefs.NewMemoryStore()
	state, err := board.NewState(context.Background(), store, board.Config{
		DefaultGrouping: board.GroupByStatus,
		DefaultSorting:  board.SortByPriority,
		Locale:          language.English,
	})
	require.NoError(t, err)
	srv := NewServer(state, f, "test")
	require.NotNil(t, srv)
	return srv, store
}

func samplePayload() *source.Payload {
	return &source.Payload{
		Tickets: []models.Ticket{
			{ID: "1", UserID: "u1", Status: "Todo", Priority: 2, Title: "B"},
			{ID: "2", UserID: "u2", Status: "Todo", Priority: 1, Title: "A"},
		},
		Users: []models.User{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}},
	}
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestMCPServer_RegistersTools(t *testing.T) {
	srv, _ := newTestServer(t, &countingFetcher{payload: samplePayload()})
	assert.NotNil(t, srv.MCPServer())
}

func TestHandleBoard_LoadsOnce(t *testing.T) {
	f := &countingFetcher{payload: samplePayload()}
	srv, _ := newTestServer(t, f)
	ctx := context.Background()

	result, err := srv.handleBoard(ctx, callToolReq("kanban_board", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var snap board.Snapshot
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &snap))
	require.Len(t, snap.Columns, 1)
	assert.Equal(t, "Todo", snap.Columns[0].Key)
	assert.Equal(t, models.ID("2"), snap.Columns[0].Tickets[0].ID)
	assert.Equal(t, "Bob", snap.Columns[0].Tickets[0].Username)

	_, err = srv.handleBoard(ctx, callToolReq("kanban_board", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)

	_, err = srv.handleBoard(ctx, callToolReq("kanban_board", map[string]any{"reload": true}))
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestHandleBoard_OverrideCriteria(t *testing.T) {
	srv, store := newTestServer(t, &countingFetcher{payload: samplePayload()})

	result, err := srv.handleBoard(context.Background(), callToolReq("kanban_board", map[string]any{
		"group": "username",
		"sort":  "title",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var snap board.Snapshot
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &snap))
	require.Len(t, snap.Columns, 2)
	assert.Equal(t, "Alice", snap.Columns[0].Key)

	_, ok, _ := store.Get(context.Background(), prefs.GroupingKey)
	assert.False(t, ok)
}

func TestHandleBoard_InvalidCriterion(t *testing.T) {
	srv, _ := newTestServer(t, &countingFetcher{payload: samplePayload()})
	result, err := srv.handleBoard(context.Background(), callToolReq("kanban_board", map[string]any{"group": "title"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid criterion")
}

func TestHandleBoard_LoadFailure(t *testing.T) {
	srv, _ := newTestServer(t, &countingFetcher{err: source.ErrDataShape})
	result, err := srv.handleBoard(context.Background(), callToolReq("kanban_board", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), board.LoadFailedMessage)
}

func TestHandleSetPreferences(t *testing.T) {
	srv, store := newTestServer(t, &countingFetcher{payload: samplePayload()})
	ctx := context.Background()

	result, err := srv.handleSetPreferences(ctx, callToolReq("kanban_set_preferences", map[string]any{"group": "priority"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.JSONEq(t, `{"grouping":"priority","sorting":"priority"}`, resultText(t, result))

	v, ok, _ := store.Get(ctx, prefs.GroupingKey)
	assert.True(t, ok)
	assert.Equal(t, "priority", v)

	result, err = srv.handleSetPreferences(ctx, callToolReq("kanban_set_preferences", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleSetPreferences(ctx, callToolReq("kanban_set_preferences", map[string]any{"sort": "status"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleBoard_FailedReloadIsError(t *testing.T) {
	f := &countingFetcher{payload: samplePayload()}
	srv, _ := newTestServer(t, f)
	ctx := context.Background()

	result, err := srv.handleBoard(ctx, callToolReq("kanban_board", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	f.err = source.ErrNetwork
	result, err = srv.handleBoard(ctx, callToolReq("kanban_board", map[string]any{"reload": true}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), board.LoadFailedMessage)

	// Without reload the board is still in error and is fetched again.
	result, err = srv.handleBoard(ctx, callToolReq("kanban_board", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, 3, f.calls)

	f.err = nil
	result, err = srv.handleBoard(ctx, callToolReq("kanban_board", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, 4, f.calls)
}
