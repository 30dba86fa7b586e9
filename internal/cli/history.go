package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Heizenburger/chess-mentor/internal/freeplay"
	"github.com/Heizenburger/chess-mentor/internal/selector"
	"github.com/Heizenburger/chess-mentor/internal/store"
)

var errNoDatabase = errors.New("no database configured: set store.path or pass --db")

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database  string
	SessionID string
	PuzzleID  string
	Limit     int
	Games     bool
	Stats     bool
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Attempts []store.Attempt   `json:"attempts,omitempty"`
	Games    []freeplay.Record `json:"games,omitempty"`
	Stats    *store.Stats      `json:"stats,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded attempts and games",
		Long: `List the attempt log, the free-play game log, or summary counts.

Examples:
  chessmentor history
  chessmentor history --session 0190f1c2-... --limit 20
  chessmentor history --games
  chessmentor history --stats --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides store.path)")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "only attempts from this session")
	cmd.Flags().StringVar(&opts.PuzzleID, "puzzle", "", "only attempts on this puzzle")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum rows to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Games, "games", false, "list free-play games instead of attempts")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "show summary counts")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		cfg.Store.Path = opts.Database
	}
	if cfg.Store.Path == "" || cfg.Store.Path == "-" {
		return WrapExitError(ExitCommandError, "history unavailable", errNoDatabase)
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, err := readHistory(ctx, st, opts)
	if err != nil {
		if opts.Format == "json" {
			_ = formatter.Error(ErrCodeStore, "failed to read history", err.Error())
		}
		return WrapExitError(ExitFailure, "failed to read history", err)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	writeHistoryText(cmd.OutOrStdout(), result, opts)
	return nil
}

func readHistory(ctx context.Context, st *store.Store, opts *HistoryOptions) (HistoryResult, error) {
	var result HistoryResult
	if opts.Stats {
		stats, err := st.ReadStats(ctx)
		if err != nil {
			return result, err
		}
		result.Stats = &stats
		return result, nil
	}
	if opts.Games {
		games, err := st.ListGames(ctx, opts.Limit)
		if err != nil {
			return result, err
		}
		result.Games = games
		return result, nil
	}
	attempts, err := st.ListAttempts(ctx, store.AttemptFilter{
		SessionID: opts.SessionID,
		PuzzleID:  opts.PuzzleID,
		Limit:     opts.Limit,
	})
	if err != nil {
		return result, err
	}
	result.Attempts = attempts
	return result, nil
}

func writeHistoryText(w io.Writer, result HistoryResult, opts *HistoryOptions) {
	switch {
	case opts.Stats:
		s := result.Stats
		fmt.Fprintf(w, "Puzzles cached: %d\n", s.Puzzles)
		fmt.Fprintf(w, "Attempts:       %d (solved %d, incorrect %d, skipped %d)\n",
			s.Attempts, s.Solved, s.Incorrect, s.Skipped)
		fmt.Fprintf(w, "Games played:   %d\n", s.Games)

	case opts.Games:
		if len(result.Games) == 0 {
			fmt.Fprintln(w, "No games recorded.")
			return
		}
		for _, g := range result.Games {
			fmt.Fprintf(w, "%s  %-7s %s  %-9s %s (%d plies)\n",
				g.ID, g.Result, g.PlayerSide, selector.Difficulty(g.Difficulty), g.Outcome, len(g.Moves))
		}

	default:
		if len(result.Attempts) == 0 {
			fmt.Fprintln(w, "No attempts recorded.")
			return
		}
		for _, a := range result.Attempts {
			move := a.Move
			if move == "" {
				move = "-"
			}
			fmt.Fprintf(w, "%5d  %s  %-10s step %-2d %-6s %s\n",
				a.Seq, a.SessionID, a.PuzzleID, a.SolutionIndex+1, move, a.Result)
		}
	}
}
