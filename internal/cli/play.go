package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Heizenburger/chess-mentor/internal/freeplay"
	"github.com/Heizenburger/chess-mentor/internal/ident"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/selector"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Side       string
	Difficulty string
	Database   string

	// Selector and IDs allow deterministic games in tests.
	Selector *selector.Selector
	IDs      ident.Generator
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a casual game against the computer",
		Long: `Play a game from the standard position against the tiered selector.

Easy plays any legal move, Medium prefers captures and checks, Hard also
favours the centre. Enter moves in coordinate form (e2e4). Other commands:
  moves <square>   list legal moves from a square
  new              start another game with the same settings
  quit             leave

Example:
  chessmentor play --side black --difficulty hard`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Side, "side", "", "side to play (white|black; default from config)")
	cmd.Flags().StringVar(&opts.Difficulty, "difficulty", "", "computer difficulty (easy|medium|hard or 1-3)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides store.path; \"-\" disables)")

	return cmd
}

func runPlay(opts *PlayOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		cfg.Store.Path = opts.Database
	}
	if opts.Side != "" {
		cfg.FreePlay.Side = opts.Side
	}

	side, err := cfg.Side()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid side", err)
	}
	difficulty, err := cfg.Difficulty()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid difficulty", err)
	}
	if opts.Difficulty != "" {
		difficulty, err = selector.ParseDifficulty(opts.Difficulty)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid difficulty", err)
		}
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var gameOpts []freeplay.Option
	if opts.Selector != nil {
		gameOpts = append(gameOpts, freeplay.WithSelector(opts.Selector))
	}
	if opts.IDs != nil {
		gameOpts = append(gameOpts, freeplay.WithIDs(opts.IDs))
	}
	if st != nil {
		gameOpts = append(gameOpts, freeplay.WithRecorder(st))
	}
	game := freeplay.NewGame(rules.NewStandard(), gameOpts...)
	if err := game.Configure(side, difficulty); err != nil {
		return WrapExitError(ExitCommandError, "invalid game settings", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	term := &playTerminal{game: game, out: cmd.OutOrStdout(), json: opts.Format == "json"}
	if err := term.start(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start game", err)
	}
	if err := term.readCommands(ctx, cmd.InOrStdin()); err != nil {
		return WrapExitError(ExitFailure, "game error", err)
	}
	return nil
}

type playTerminal struct {
	game *freeplay.Game
	out  io.Writer
	json bool
}

func (p *playTerminal) start(ctx context.Context) error {
	snap, err := p.game.Start(ctx)
	if err != nil {
		return err
	}
	p.render(snap)
	return nil
}

func (p *playTerminal) readCommands(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := p.handle(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

func (p *playTerminal) handle(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true, nil

	case "new":
		p.game.Reset()
		return false, p.start(ctx)

	case "moves":
		from := ""
		if len(fields) > 1 {
			from = strings.ToLower(fields[1])
		}
		fmt.Fprintln(p.out, formatMoves(p.game.LegalMoves(from)))
		return false, nil
	}

	a, err := rules.ParseCoordinate(fields[0])
	if err != nil {
		fmt.Fprintf(p.out, "Unknown command %q. Enter a move like e2e4, \"moves e2\", \"new\" or \"quit\".\n", fields[0])
		return false, nil
	}
	snap, err := p.game.PlayerMove(ctx, a)
	switch {
	case errors.Is(err, rules.ErrIllegalMove):
		fmt.Fprintf(p.out, "Illegal move %s.\n", a.Coordinate())
		return false, nil
	case errors.Is(err, freeplay.ErrNotInProgress):
		fmt.Fprintln(p.out, "The game is over. Type \"new\" to play again.")
		return false, nil
	case err != nil:
		return false, err
	}
	p.render(snap)
	return false, nil
}

func (p *playTerminal) render(snap freeplay.Snapshot) {
	if p.json {
		_ = json.NewEncoder(p.out).Encode(snap)
		return
	}
	if len(snap.Moves) > 0 {
		fmt.Fprintf(p.out, "%s\n", formatMoveList(snap.Moves))
	}
	fmt.Fprintf(p.out, "  %s\n", snap.Position)
	if snap.Status == "ended" {
		fmt.Fprintf(p.out, "%s (%s)\n", snap.Outcome, snap.Result)
		return
	}
	fmt.Fprintf(p.out, "%s to move.\n", snap.SideToMove)
}

// formatMoveList numbers SAN moves in pairs: "1. e4 e5 2. Nf3".
func formatMoveList(moves []string) string {
	var b strings.Builder
	for i, m := range moves {
		if i%2 == 0 {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d. %s", i/2+1, m)
			continue
		}
		b.WriteByte(' ')
		b.WriteString(m)
	}
	return b.String()
}
