package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"golang.org/x/text/language"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/prefs"
	"github.com/joescharf/kanban/internal/source"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	prefStore prefs.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "kanban",
	Short: "Kanban board - group and order tickets from the board API",
	Long: `kanban loads tickets and users from the board API, resolves each
ticket's user name, groups tickets into columns by status, user or
priority, and orders every column by priority or title.

The chosen grouping and ordering are remembered between runs.
Running bare 'kanban' is the same as 'kanban board'.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	defer closeStore()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeStore()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without saving preferences")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/kanban/config.yaml)")
	rootCmd.PersistentFlags().StringP("file", "f", "", "Read the board from a local JSON file instead of the API")
	rootCmd.PersistentFlags().Bool("no-persist", false, "Keep preferences in memory for this run only")

	_ = viper.BindPFlag("source.file", rootCmd.PersistentFlags().Lookup("file"))
	_ = viper.BindPFlag("no_persist", rootCmd.PersistentFlags().Lookup("no-persist"))
}

func initConfig() {
	// .env in the working directory is optional.
	_ = godotenv.Load()

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KANBAN")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	defaultConfigDir, _ := configDirFunc()
	setDefaults(defaultConfigDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default value.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "kanban.db"))
	viper.SetDefault("source.url", source.DefaultURL)
	viper.SetDefault("source.timeout", "15s")
	viper.SetDefault("board.default_grouping", string(board.GroupByStatus))
	viper.SetDefault("board.default_sorting", string(board.SortByPriority))
	viper.SetDefault("board.locale", "en")
	viper.SetDefault("prefs.backend", prefs.BackendSQLite)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("port", 8080)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The preference store is opened lazily, only by commands that need it.
	// This allows config/version commands to run without a db.
}

// rootRun handles `kanban` with no subcommand: show the board.
func rootRun(cmd *cobra.Command) error {
	return boardRun(commandContext(cmd), boardOptions{})
}

// getStore returns the shared preference store, opening it on first call.
func getStore(ctx context.Context) (prefs.Store, error) {
	if prefStore != nil {
		return prefStore, nil
	}

	backend := viper.GetString("prefs.backend")
	if viper.GetBool("no_persist") {
		backend = prefs.BackendMemory
	}
	ui.VerboseLog("Preference store: %s", backend)

	s, err := prefs.Open(ctx, prefs.Options{
		Backend: backend,
		DBPath:  viper.GetString("db_path"),
		Redis: prefs.RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open preference store: %w", err)
	}

	prefStore = s
	return prefStore, nil
}

func closeStore() {
	if prefStore != nil {
		_ = prefStore.Close()
		prefStore = nil
	}
}

// newFetcher returns the board source selected by --file or source.url.
func newFetcher() source.Fetcher {
	if path := viper.GetString("source.file"); path != "" {
		ui.VerboseLog("Reading board from %s", path)
		return source.FileFetcher{Path: path}
	}
	url := viper.GetString("source.url")
	ui.VerboseLog("Fetching board from %s", url)
	return source.NewClient(url, viper.GetDuration("source.timeout"))
}

// boardConfig reads the board defaults and locale from the configuration.
func boardConfig(logger *slog.Logger) (board.Config, error) {
	cfg := board.Config{Logger: logger}

	if v := viper.GetString("board.default_grouping"); v != "" {
		g, err := board.ParseGrouping(v)
		if err != nil {
			return cfg, fmt.Errorf("board.default_grouping: %w", err)
		}
		cfg.DefaultGrouping = g
	}
	if v := viper.GetString("board.default_sorting"); v != "" {
		so, err := board.ParseSorting(v)
		if err != nil {
			return cfg, fmt.Errorf("board.default_sorting: %w", err)
		}
		cfg.DefaultSorting = so
	}

	locale, err := language.Parse(viper.GetString("board.locale"))
	if err != nil {
		return cfg, fmt.Errorf("board.locale: %w", err)
	}
	cfg.Locale = locale
	return cfg, nil
}

// newBoardState builds a board over the shared preference store.
func newBoardState(ctx context.Context, logger *slog.Logger) (*board.State, error) {
	s, err := getStore(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := boardConfig(logger)
	if err != nil {
		return nil, err
	}
	return board.NewState(ctx, s, cfg)
}

// newLogger returns a structured logger for w. Terminals get text output,
// pipes and files get JSON. Interactive commands only log errors unless
// --verbose is set.
func newLogger(w io.Writer, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	options := &slog.HandlerOptions{Level: level}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// commandContext returns the command's context, or a background context
// when the command is invoked directly (tests).
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// formatAge renders a time as a short relative age.
func formatAge(t time.Time) string {
	d := time.Since(t).Round(time.Second)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(d.Hours()))
}
