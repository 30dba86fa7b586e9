package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Heizenburger/chess-mentor/internal/config"
	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/store"
)

// sourceFlags are the puzzle source overrides shared by puzzles and serve.
type sourceFlags struct {
	File      string
	MinRating int
	Database  string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.File, "file", "", "read puzzles from a local NDJSON feed instead of the network")
	cmd.Flags().IntVar(&f.MinRating, "min-rating", 0, "only fetch puzzles rated at least this")
	cmd.Flags().StringVar(&f.Database, "db", "", "path to SQLite database (overrides store.path; \"-\" disables)")
}

// apply copies flags the user set onto cfg.
func (f *sourceFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("file") {
		cfg.Source.File = f.File
	}
	if cmd.Flags().Changed("min-rating") {
		cfg.Source.MinRating = f.MinRating
	}
	if cmd.Flags().Changed("db") {
		cfg.Store.Path = f.Database
	}
}

// loadConfig reads the --config file over the defaults.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// openStore opens the configured database. A nil store with a no-op close
// is returned when persistence is disabled.
func openStore(cfg config.Config) (*store.Store, func(), error) {
	if cfg.Store.Path == "" || cfg.Store.Path == "-" {
		return nil, func() {}, nil
	}
	slog.Debug("opening database", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}, nil
}

// newSource builds the puzzle source: a local file or the HTTP feed, backed
// by the store's cache when one is open.
func newSource(cfg config.Config, st *store.Store) puzzle.Source {
	var src puzzle.Source
	if cfg.Source.File != "" {
		src = puzzle.FileSource{Path: cfg.Source.File}
	} else {
		src = puzzle.NewHTTPSource(cfg.Source.URL, cfg.Source.Timeout)
	}
	if st == nil {
		return src
	}
	return &puzzle.CachingSource{Primary: src, Cache: st}
}
