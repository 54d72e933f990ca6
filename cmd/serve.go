package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kanban/internal/api"
	"github.com/joescharf/kanban/internal/daemon"
	webui "github.com/joescharf/kanban/internal/ui"
)

const (
	shutdownTimeout = 5 * time.Second
	stopTimeout     = 5 * time.Second
)

var serveDetach bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board API and web page",
	Long: `Start an HTTP server with the JSON board API under /api/v1 and the
embedded board page at /. By default it listens on port 8080.

The board is loaded once at startup. POST /api/v1/board/reload refetches
it, and --reload-interval refetches it periodically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveDetach {
			return serveDetachRun()
		}
		return serveStartRun(commandContext(cmd))
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("reload-interval", 0, "refetch the board periodically (0 disables)")
	serveCmd.Flags().BoolVarP(&serveDetach, "detach", "d", false, "run the server in the background")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("serve.reload_interval", serveCmd.Flags().Lookup("reload-interval"))

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func runFile() *daemon.RunFile {
	return daemon.NewRunFile(filepath.Join(viper.GetString("state_dir"), "kanban-serve.yaml"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "kanban-serve.log")
}

func serveStartRun(ctx context.Context) error {
	port := viper.GetInt("port")

	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	rf := runFile()
	if _, err := rf.Acquire(port); err != nil {
		return err
	}
	defer func() { _ = rf.Release() }()

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	logger := newLogger(ui.ErrOut, false)
	state, err := newBoardState(ctx, logger)
	if err != nil {
		return err
	}

	srv := api.NewServer(state, newFetcher(), logger)
	handler, err := webui.Handler(srv.Router())
	if err != nil {
		return fmt.Errorf("failed to initialize UI handler: %w", err)
	}

	// A failed first load leaves the board in its error state; clients
	// retry with POST /api/v1/board/reload.
	if err := srv.Reload(ctx); err != nil {
		logger.Warn("initial board load failed", "error", err)
	}
	if interval := viper.GetDuration("serve.reload_interval"); interval > 0 {
		logger.Info("periodic reload enabled", "interval", interval)
		go srv.ReloadEvery(ctx, interval)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	logger.Info("serving board", "url", fmt.Sprintf("http://localhost:%d", port))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// serveDetachRun re-executes the binary as a detached "serve" process
// writing to the server log.
func serveDetachRun() error {
	if rec, alive := runFile().Alive(); alive {
		return fmt.Errorf("%w (pid %d, port %d)", daemon.ErrAlreadyRunning, rec.PID, rec.Port)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	port := viper.GetInt("port")
	args := []string{"serve",
		"--port", strconv.Itoa(port),
		"--reload-interval", viper.GetDuration("serve.reload_interval").String(),
	}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if path := viper.GetString("source.file"); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		args = append(args, "--file", abs)
	}
	if viper.GetBool("no_persist") {
		args = append(args, "--no-persist")
	}

	if dryRun {
		ui.DryRunMsg("Would run in background: %s %v", exe, args)
		return nil
	}

	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open server log: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()

	ui.Success("Server started in background (pid %d) at http://localhost:%d", pid, port)
	ui.Info("Log: %s", serveLogPath())
	return nil
}

func serveStatusRun() error {
	rf := runFile()
	rec, alive := rf.Alive()
	if !alive {
		if rec.PID != 0 {
			ui.Warning("Stale run file for pid %d: %s", rec.PID, rf.Path)
		}
		ui.Info("Server is not running")
		return nil
	}

	ui.Success("Server running (pid %d) at http://localhost:%d", rec.PID, rec.Port)
	if !rec.StartedAt.IsZero() {
		ui.Info("Started %s", formatAge(rec.StartedAt))
	}
	ui.VerboseLog("Run file: %s", rf.Path)
	ui.VerboseLog("Log: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	rf := runFile()
	rec, alive := rf.Alive()
	if !alive {
		return errors.New("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", rec.PID)
		return nil
	}

	if err := rf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if _, alive := rf.Alive(); !alive {
			ui.Success("Server stopped (pid %d)", rec.PID)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	ui.Warning("Server did not exit within %s, killing it", stopTimeout)
	if err := rf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	_ = os.Remove(rf.Path)
	ui.Success("Server killed (pid %d)", rec.PID)
	return nil
}
