// Package daemon tracks a running "kanban serve" process through a small run
// file in the state directory.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrAlreadyRunning is returned by Acquire when the run file points at a live
// process.
var ErrAlreadyRunning = errors.New("server already running")

// Record is the content of a run file.
type Record struct {
	PID       int       `yaml:"pid"`
	Port      int       `yaml:"port"`
	StartedAt time.Time `yaml:"started_at"`
}

// RunFile manages the run file at Path.
type RunFile struct {
	Path string
}

// NewRunFile creates a RunFile for the given path.
func NewRunFile(path string) *RunFile {
	return &RunFile{Path: path}
}

// Acquire records the current process as the running server. A stale file
// left by a dead process is replaced.
func (r *RunFile) Acquire(port int) (Record, error) {
	if rec, alive := r.Alive(); alive && rec.PID != os.Getpid() {
		return rec, fmt.Errorf("%w (pid %d, port %d)", ErrAlreadyRunning, rec.PID, rec.Port)
	}
	rec := Record{PID: os.Getpid(), Port: port, StartedAt: time.Now().UTC().Truncate(time.Second)}
	return rec, r.Write(rec)
}

// Write stores rec in the run file.
func (r *RunFile) Write(rec Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run file: %w", err)
	}
	return os.WriteFile(r.Path, data, 0o644)
}

// Read loads the record from the run file.
func (r *RunFile) Read() (Record, error) {
	var rec Record
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return rec, err
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("invalid run file content: %w", err)
	}
	if rec.PID <= 0 {
		return rec, fmt.Errorf("invalid run file content: missing pid")
	}
	return rec, nil
}

// Alive reports the recorded server and whether its process still exists.
func (r *RunFile) Alive() (Record, bool) {
	rec, err := r.Read()
	if err != nil {
		return rec, false
	}
	return rec, processAlive(rec.PID)
}

// Release removes the run file if it still belongs to the current process.
func (r *RunFile) Release() error {
	rec, err := r.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if rec.PID != os.Getpid() {
		return nil
	}
	return os.Remove(r.Path)
}

// Signal sends sig to the recorded process.
func (r *RunFile) Signal(sig syscall.Signal) error {
	rec, err := r.Read()
	if err != nil {
		return fmt.Errorf("read run file: %w", err)
	}
	return signalProcess(rec.PID, sig)
}
