package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/prefs"
	"github.com/joescharf/kanban/internal/source"
)

const boardJSON = `{
  "tickets": [
    {"id":"1","userId":"u1","status":"Todo","priority":2,"title":"B"},
    {"id":"2","userId":"u2","status":"Todo","priority":1,"title":"A"},
    {"id":"3","userId":"u3","status":"Done","priority":0,"title":"C"}
  ],
  "users": [{"id":"u1","name":"Alice"},{"id":"u2","name":"Bob"}]
}`

// remote starts a fake board endpoint returning body.
func remote(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupTestServer(t *testing.T, body string) (*Server, prefs.Store) {
	t.Helper()
	store, err := prefs.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })

	state, err := board.NewState(context.Background(), store, board.Config{
		DefaultGrouping: board.GroupByStatus,
		DefaultSorting:  board.SortByPriority,
		Locale:          language.English,
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(state, source.NewClient(remote(t, body).URL, time.Second), logger)
	_ = srv.Reload(context.Background())
	return srv, store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) board.Snapshot {
	t.Helper()
	var snap board.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func TestHealth(t *testing.T) {
	srv, _ := setupTestServer(t, boardJSON)
	w := do(t, srv.Router(), "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGetBoard(t *testing.T) {
	srv, _ := setupTestServer(t, boardJSON)
	w := do(t, srv.Router(), "GET", "/api/v1/board", "")
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w)
	assert.Equal(t, board.GroupByStatus, snap.Grouping)
	assert.Equal(t, 3, snap.TicketCount)
	require.Len(t, snap.Columns, 2)
	assert.Equal(t, "Todo", snap.Columns[0].Key)
	assert.Equal(t, "2", string(snap.Columns[0].Tickets[0].ID))
	assert.Equal(t, "Bob", snap.Columns[0].Tickets[0].Username)
	assert.Equal(t, "Unknown User", snap.Columns[1].Tickets[0].Username)
}

func TestGetBoard_QueryOverrideDoesNotPersist(t *testing.T) {
	srv, store := setupTestServer(t, boardJSON)
	w := do(t, srv.Router(), "GET", "/api/v1/board?group=priority&sort=title", "")
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w)
	assert.Equal(t, board.GroupByPriority, snap.Grouping)
	require.Len(t, snap.Columns, 3)
	assert.Equal(t, []string{"2", "1", "0"}, []string{snap.Columns[0].Key, snap.Columns[1].Key, snap.Columns[2].Key})

	_, ok, err := store.Get(context.Background(), prefs.GroupingKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetBoard_InvalidQuery(t *testing.T) {
	srv, _ := setupTestServer(t, boardJSON)
	w := do(t, srv.Router(), "GET", "/api/v1/board?group=title", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid criterion")
}

func TestGetBoard_DataShapeError(t *testing.T) {
	srv, _ := setupTestServer(t, `{"tickets":[]}`)
	w := do(t, srv.Router(), "GET", "/api/v1/board", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	snap := decodeSnapshot(t, w)
	assert.Equal(t, board.LoadFailedMessage, snap.Error)
	assert.Empty(t, snap.Columns)
}

func TestUpdatePreferences(t *testing.T) {
	srv, store := setupTestServer(t, boardJSON)
	router := srv.Router()

	w := do(t, router, "PUT", "/api/v1/preferences", `{"grouping":"priority","sorting":"title"}`)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, board.GroupByPriority, snap.Grouping)
	assert.Equal(t, board.SortByTitle, snap.Sorting)
	require.Len(t, snap.Columns, 3)
	assert.Equal(t, "2", snap.Columns[0].Key)

	ctx := context.Background()
	v, _, _ := store.Get(ctx, prefs.GroupingKey)
	assert.Equal(t, "priority", v)
	v, _, _ = store.Get(ctx, prefs.SortingKey)
	assert.Equal(t, "title", v)

	w = do(t, router, "GET", "/api/v1/preferences", "")
	assert.JSONEq(t, `{"grouping":"priority","sorting":"title"}`, w.Body.String())
}

func TestUpdatePreferences_Partial(t *testing.T) {
	srv, _ := setupTestServer(t, boardJSON)
	w := do(t, srv.Router(), "PUT", "/api/v1/preferences", `{"sorting":"title"}`)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w)
	assert.Equal(t, board.GroupByStatus, snap.Grouping)
	assert.Equal(t, board.SortByTitle, snap.Sorting)
}

// sortingFailingStore rejects writes of the sorting preference.
type sortingFailingStore struct{ *prefs.MemoryStore }

func (s sortingFailingStore) Set(ctx context.Context, key, value string) error {
	if key == prefs.SortingKey {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestUpdatePreferences_FailedWriteSavesNothing(t *testing.T) {
	store := sortingFailingStore{prefs.NewMemoryStore()}
	state, err := board.NewState(context.Background(), store, board.Config{
		DefaultGrouping: board.GroupByStatus,
		DefaultSorting:  board.SortByPriority,
		Locale:          language.English,
	})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(state, source.NewClient(remote(t, boardJSON).URL, time.Second), logger)
	require.NoError(t, srv.Reload(context.Background()))

	w := do(t, srv.Router(), "PUT", "/api/v1/preferences", `{"grouping":"priority","sorting":"title"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	_, ok, _ := store.Get(context.Background(), prefs.GroupingKey)
	assert.False(t, ok)

	w = do(t, srv.Router(), "GET", "/api/v1/preferences", "")
	assert.JSONEq(t, `{"grouping":"status","sorting":"priority"}`, w.Body.String())
}

func TestUpdatePreferences_Invalid(t *testing.T) {
	srv, store := setupTestServer(t, boardJSON)
	router := srv.Router()

	w := do(t, router, "PUT", "/api/v1/preferences", `{"grouping":"title"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "grouping must be one of")

	w = do(t, router, "PUT", "/api/v1/preferences", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "PUT", "/api/v1/preferences", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, ok, _ := store.Get(context.Background(), prefs.GroupingKey)
	assert.False(t, ok)
}

func TestReloadBoard(t *testing.T) {
	srv, _ := setupTestServer(t, boardJSON)
	w := do(t, srv.Router(), "POST", "/api/v1/board/reload", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decodeSnapshot(t, w).TicketCount)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t, boardJSON)
	w := do(t, srv.Router(), "OPTIONS", "/api/v1/preferences", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestReloadEvery_StopsOnCancel(t *testing.T) {
	srv, _ := setupTestServer(t, boardJSON)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.ReloadEvery(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReloadEvery did not stop")
	}
}
