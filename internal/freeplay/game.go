// Package freeplay runs a game against the tiered move selector.
package freeplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Heizenburger/chess-mentor/internal/ident"
	"github.com/Heizenburger/chess-mentor/internal/outcome"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/selector"
)

// Status is the free-play lifecycle state.
type Status int

const (
	Setup Status = iota
	InProgress
	Ended
)

func (s Status) String() string {
	switch s {
	case Setup:
		return "setup"
	case InProgress:
		return "in_progress"
	case Ended:
		return "ended"
	}
	return "unknown"
}

var (
	// ErrNotInSetup rejects Configure once a game has started.
	ErrNotInSetup = errors.New("game settings can only change during setup")

	// ErrNotInProgress rejects moves before Start or after the game ended.
	ErrNotInProgress = errors.New("game is not in progress")

	// ErrNotPlayerTurn rejects a move while the computer is to move.
	ErrNotPlayerTurn = errors.New("not the player's turn")
)

// Record is an ended game, as written to the game log.
type Record struct {
	ID         string   `json:"id"`
	PlayerSide string   `json:"player_side"`
	Difficulty int      `json:"difficulty"`
	Result     string   `json:"result"`
	Outcome    string   `json:"outcome"`
	Moves      []string `json:"moves"`
	FinalFEN   string   `json:"final_fen"`
}

// Recorder persists ended games.
type Recorder interface {
	RecordGame(ctx context.Context, rec Record) error
}

// Snapshot is the UI view of a game.
type Snapshot struct {
	ID         string   `json:"id,omitempty"`
	Status     string   `json:"status"`
	PlayerSide string   `json:"player_side"`
	Difficulty string   `json:"difficulty"`
	Position   string   `json:"position,omitempty"`
	SideToMove string   `json:"side_to_move,omitempty"`
	Moves      []string `json:"moves"`
	Outcome    string   `json:"outcome,omitempty"`
	Result     string   `json:"result,omitempty"`
}

// Game is one free-play game. It is safe for concurrent use; every
// operation holds the game lock for its whole duration.
type Game struct {
	mu sync.Mutex

	rules    rules.Engine
	selector *selector.Selector
	ids      ident.Generator
	recorder Recorder

	id         string
	position   rules.Position
	side       rules.Side
	difficulty selector.Difficulty
	status     Status
	outcome    outcome.Outcome
	moves      []rules.Move
}

// Option configures a Game.
type Option func(*Game)

// WithSelector overrides the move selector (tests seed it).
func WithSelector(s *selector.Selector) Option {
	return func(g *Game) { g.selector = s }
}

// WithIDs overrides the game ID generator.
func WithIDs(ids ident.Generator) Option {
	return func(g *Game) { g.ids = ids }
}

// WithRecorder sets where ended games are written.
func WithRecorder(r Recorder) Option {
	return func(g *Game) { g.recorder = r }
}

// NewGame creates a game in Setup with the player as White on Medium.
func NewGame(eng rules.Engine, opts ...Option) *Game {
	g := &Game{
		rules:      eng,
		selector:   selector.New(nil),
		ids:        ident.UUIDv7{},
		side:       rules.White,
		difficulty: selector.Medium,
		status:     Setup,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configure sets the player's side and the computer's difficulty.
func (g *Game) Configure(side rules.Side, d selector.Difficulty) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != Setup {
		return ErrNotInSetup
	}
	if !d.Valid() {
		return fmt.Errorf("%w: %d", selector.ErrUnknownDifficulty, int(d))
	}
	g.side = side
	g.difficulty = d
	return nil
}

// Start begins a new game from the standard position. If the player is
// Black the computer moves first.
func (g *Game) Start(ctx context.Context) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.id = g.ids.Generate()
	g.position = g.rules.NewPosition()
	g.status = InProgress
	g.outcome = outcome.Outcome{}
	g.moves = nil
	slog.Info("free-play game started",
		"game", g.id,
		"side", g.side.String(),
		"difficulty", g.difficulty.String(),
	)

	if g.position.SideToMove() != g.side {
		if err := g.computerMove(ctx); err != nil {
			return g.snapshot(), err
		}
	}
	return g.snapshot(), nil
}

// PlayerMove applies the player's move and, unless the game ended, the
// computer's reply. A rejected move leaves the game unchanged.
func (g *Game) PlayerMove(ctx context.Context, a rules.Attempt) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != InProgress {
		return g.snapshot(), ErrNotInProgress
	}
	if g.position.SideToMove() != g.side {
		return g.snapshot(), ErrNotPlayerTurn
	}

	played, err := g.position.Apply(a)
	if err != nil {
		return g.snapshot(), err
	}
	g.moves = append(g.moves, played)
	if g.checkEnded(ctx) {
		return g.snapshot(), nil
	}

	if err := g.computerMove(ctx); err != nil {
		return g.snapshot(), err
	}
	return g.snapshot(), nil
}

// Reset returns to Setup, keeping the chosen side and difficulty.
func (g *Game) Reset() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.id = ""
	g.position = nil
	g.status = Setup
	g.outcome = outcome.Outcome{}
	g.moves = nil
	return g.snapshot()
}

// LegalMoves lists legal moves from a square, for move highlighting.
func (g *Game) LegalMoves(from string) []rules.Move {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.position == nil {
		return nil
	}
	return g.position.LegalMoves(from)
}

// Snapshot returns the current view of the game.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

func (g *Game) computerMove(ctx context.Context) error {
	candidates := g.position.LegalMoves("")
	choice, err := g.selector.Select(candidates, g.difficulty)
	if err != nil {
		return fmt.Errorf("select computer move: %w", err)
	}
	played, err := g.position.Apply(rules.Attempt{From: choice.From, To: choice.To, Promotion: choice.Promotion})
	if err != nil {
		return fmt.Errorf("apply computer move %s: %w", choice.UCI(), err)
	}
	slog.Debug("computer moved", "game", g.id, "move", played.SAN)
	g.moves = append(g.moves, played)
	g.checkEnded(ctx)
	return nil
}

// checkEnded evaluates the position and records the game if it is over.
func (g *Game) checkEnded(ctx context.Context) bool {
	o, ok := outcome.Evaluate(g.position)
	if !ok {
		return false
	}
	g.status = Ended
	g.outcome = o
	slog.Info("free-play game ended", "game", g.id, "outcome", o.Kind.String(), "result", o.Result())

	if g.recorder != nil {
		if err := g.recorder.RecordGame(ctx, g.record()); err != nil {
			slog.Error("failed to record game", "game", g.id, "error", err)
		}
	}
	return true
}

func (g *Game) record() Record {
	moves := make([]string, len(g.moves))
	for i, m := range g.moves {
		moves[i] = m.UCI()
	}
	return Record{
		ID:         g.id,
		PlayerSide: g.side.String(),
		Difficulty: int(g.difficulty),
		Result:     g.outcome.Result(),
		Outcome:    g.outcome.Kind.String(),
		Moves:      moves,
		FinalFEN:   g.position.Serialize(),
	}
}

func (g *Game) snapshot() Snapshot {
	s := Snapshot{
		ID:         g.id,
		Status:     g.status.String(),
		PlayerSide: g.side.String(),
		Difficulty: g.difficulty.String(),
		Moves:      make([]string, 0, len(g.moves)),
	}
	for _, m := range g.moves {
		s.Moves = append(s.Moves, m.SAN)
	}
	if g.position != nil {
		s.Position = g.position.Serialize()
		s.SideToMove = g.position.SideToMove().String()
	}
	if g.status == Ended {
		s.Outcome = g.outcome.Message()
		s.Result = g.outcome.Result()
	}
	return s
}
