package prefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_DefaultsToSQLite(t *testing.T) {
	s, err := Open(context.Background(), Options{DBPath: filepath.Join(t.TempDir(), "k.db")})
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*SQLiteStore)
	assert.True(t, ok)

	// Migrations ran: the preferences table is usable.
	require.NoError(t, s.Set(context.Background(), GroupingKey, "status"))
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), Options{Backend: BackendMemory})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "etcd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preference backend")
}
