package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Heizenburger/chess-mentor/internal/ident"
	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/session"
)

// PuzzlesOptions holds flags for the puzzles command.
type PuzzlesOptions struct {
	*RootOptions
	sourceFlags

	// IDs allows overriding the session ID generator (for testing).
	IDs ident.Generator
}

// NewPuzzlesCommand creates the puzzles command.
func NewPuzzlesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PuzzlesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "puzzles",
		Short: "Solve puzzles in the terminal",
		Long: `Solve rated puzzles one move at a time.

Enter moves in coordinate form (e2e4, e7e8q). Other commands:
  moves <square>   list legal moves from a square
  next             skip to the next puzzle
  quit             leave

Example:
  chessmentor puzzles --min-rating 1400
  chessmentor puzzles --file ./puzzles.ndjson --db -`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPuzzles(opts, cmd)
		},
	}
	opts.sourceFlags.register(cmd)

	return cmd
}

func runPuzzles(opts *PuzzlesOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	opts.sourceFlags.apply(cmd, &cfg)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ids := opts.IDs
	if ids == nil {
		ids = ident.UUIDv7{}
	}
	m := session.NewMachine(rules.NewStandard(), puzzle.NewQueue(), cfg.SessionConfig())
	var runnerOpts []session.RunnerOption
	if st != nil {
		runnerOpts = append(runnerOpts, session.WithRecorder(st))
	}
	runner := session.NewRunner(ids.Generate(), m, newSource(cfg, st), runnerOpts...)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	out := &syncWriter{w: cmd.OutOrStdout()}
	term := &puzzleTerminal{runner: runner, out: out, json: opts.Format == "json"}
	snaps, unsubscribe := runner.Subscribe(32)
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		term.print(gctx, snaps)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return term.readCommands(gctx, cmd.InOrStdin())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "puzzle session error", err)
	}
	return nil
}

// syncWriter serialises writes from the printer and the command loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type puzzleTerminal struct {
	runner *session.Runner
	out    io.Writer
	json   bool
}

// print renders snapshots until ctx is done, skipping ones that change
// nothing the player can see.
func (p *puzzleTerminal) print(ctx context.Context, snaps <-chan session.Snapshot) {
	var last session.Snapshot
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case snap := <-snaps:
					last = p.renderChanged(last, snap)
				default:
					return
				}
			}
		case snap := <-snaps:
			last = p.renderChanged(last, snap)
		}
	}
}

func (p *puzzleTerminal) renderChanged(last, snap session.Snapshot) session.Snapshot {
	if snap.Status == last.Status && snap.Message == last.Message && snap.Position == last.Position {
		return last
	}
	p.render(snap)
	return snap
}

func (p *puzzleTerminal) render(snap session.Snapshot) {
	if p.json {
		_ = json.NewEncoder(p.out).Encode(snap)
		return
	}
	if snap.Message != "" {
		fmt.Fprintln(p.out, snap.Message)
	}
	if snap.PuzzleID != "" && snap.Status == session.AwaitingPlayerMove.String() {
		rating := 0
		if snap.PuzzleRating != nil {
			rating = *snap.PuzzleRating
		}
		fmt.Fprintf(p.out, "  puzzle %s (rating %d), %s to move, step %d/%d\n",
			snap.PuzzleID, rating, snap.SideToMove, snap.SolutionIndex+1, snap.SolutionLength)
		fmt.Fprintf(p.out, "  %s\n", snap.Position)
	}
	if snap.Outcome != "" {
		fmt.Fprintf(p.out, "  %s\n", snap.Outcome)
	}
}

// readCommands starts the session and feeds it one input line at a time,
// waiting for deferred replies and rollbacks to settle before reading on.
func (p *puzzleTerminal) readCommands(ctx context.Context, in io.Reader) error {
	if err := p.runner.Submit(ctx, session.Event{Type: session.EventStart}); err != nil {
		return err
	}
	if err := p.waitSettled(ctx); err != nil {
		return err
	}

	// Everything published so far reaches the printer before it stops.
	defer func() { _ = p.runner.Query(ctx, func(*session.Machine) {}) }()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
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
		if err := p.waitSettled(ctx); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// handle runs one command. Rejected moves are reported, not returned.
func (p *puzzleTerminal) handle(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true, nil

	case "next", "skip":
		return false, p.runner.Submit(ctx, session.Event{Type: session.EventSkip})

	case "start":
		return false, p.runner.Submit(ctx, session.Event{Type: session.EventStart})

	case "moves":
		from := ""
		if len(fields) > 1 {
			from = strings.ToLower(fields[1])
		}
		moves, err := p.runner.LegalMoves(ctx, from)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(p.out, formatMoves(moves))
		return false, nil
	}

	a, err := rules.ParseCoordinate(fields[0])
	if err != nil {
		fmt.Fprintf(p.out, "Unknown command %q. Enter a move like e2e4, \"moves e2\", \"next\" or \"quit\".\n", fields[0])
		return false, nil
	}
	if err := p.runner.Submit(ctx, session.Move(a)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, session.ErrStopped) {
			return false, err
		}
		fmt.Fprintf(p.out, "Move rejected: %v\n", err)
	}
	return false, nil
}

// waitSettled blocks until the session is waiting on the player or idle
// with nothing in flight. The query first makes sure the last submitted
// event has been published.
func (p *puzzleTerminal) waitSettled(ctx context.Context) error {
	if err := p.runner.Query(ctx, func(*session.Machine) {}); err != nil {
		return err
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if settled(p.runner.Latest()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func settled(s session.Snapshot) bool {
	switch s.Status {
	case session.AwaitingPlayerMove.String():
		return true
	case session.Idle.String():
		return s.Message != session.MsgLoading
	}
	return false
}

func formatMoves(moves []rules.Move) string {
	if len(moves) == 0 {
		return "No legal moves."
	}
	sans := make([]string, len(moves))
	for i, m := range moves {
		sans[i] = m.SAN
	}
	return strings.Join(sans, " ")
}
