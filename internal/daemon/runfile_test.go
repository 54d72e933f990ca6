package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunFile(t *testing.T) *RunFile {
	t.Helper()
	return NewRunFile(filepath.Join(t.TempDir(), "serve.yaml"))
}

func TestRunFile_WriteAndRead(t *testing.T) {
	rf := newRunFile(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, rf.Write(Record{PID: 12345, Port: 8080, StartedAt: started}))

	rec, err := rf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, rec.PID)
	assert.Equal(t, 8080, rec.Port)
	assert.True(t, started.Equal(rec.StartedAt))
}

func TestRunFile_Read_MissingFile(t *testing.T) {
	_, err := newRunFile(t).Read()
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunFile_Read_InvalidContent(t *testing.T) {
	rf := newRunFile(t)
	require.NoError(t, os.WriteFile(rf.Path, []byte("port: 80\n"), 0o644))

	_, err := rf.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run file content")

	require.NoError(t, os.WriteFile(rf.Path, []byte("[not yaml"), 0o644))
	_, err = rf.Read()
	assert.Error(t, err)
}

func TestRunFile_Acquire(t *testing.T) {
	rf := newRunFile(t)

	rec, err := rf.Acquire(9090)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)

	got, alive := rf.Alive()
	assert.True(t, alive)
	assert.Equal(t, 9090, got.Port)

	// Re-acquiring from the same process is allowed.
	_, err = rf.Acquire(9091)
	require.NoError(t, err)
}

func TestRunFile_Acquire_StaleFile(t *testing.T) {
	rf := newRunFile(t)
	// A PID this high almost certainly does not exist.
	require.NoError(t, rf.Write(Record{PID: 999999, Port: 1}))

	_, alive := rf.Alive()
	assert.False(t, alive)

	rec, err := rf.Acquire(2)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
}

func TestRunFile_Acquire_LiveOtherProcess(t *testing.T) {
	rf := newRunFile(t)
	ppid := os.Getppid()
	if ppid <= 1 {
		t.Skip("no live parent process to point at")
	}
	require.NoError(t, rf.Write(Record{PID: ppid, Port: 7000}))

	_, err := rf.Acquire(8000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRunFile_Release(t *testing.T) {
	rf := newRunFile(t)
	_, err := rf.Acquire(1)
	require.NoError(t, err)

	require.NoError(t, rf.Release())
	_, err = os.Stat(rf.Path)
	assert.True(t, os.IsNotExist(err))

	// Releasing a missing file is a no-op.
	assert.NoError(t, rf.Release())
}

func TestRunFile_Release_ForeignRecord(t *testing.T) {
	rf := newRunFile(t)
	require.NoError(t, rf.Write(Record{PID: 999999}))

	require.NoError(t, rf.Release())
	_, err := os.Stat(rf.Path)
	assert.NoError(t, err)
}

func TestRunFile_Signal(t *testing.T) {
	rf := newRunFile(t)
	_, err := rf.Acquire(1)
	require.NoError(t, err)

	assert.NoError(t, rf.Signal(syscall.Signal(0)))
}

func TestRunFile_Signal_NoFile(t *testing.T) {
	err := newRunFile(t).Signal(syscall.Signal(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read run file")
}
