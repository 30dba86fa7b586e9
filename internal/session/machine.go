package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Heizenburger/chess-mentor/internal/outcome"
	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
)

// Player-facing messages.
const (
	MsgYourTurn       = "Your turn. Make the best move!"
	MsgCorrect        = "Correct! Keep going."
	MsgYourTurnAgain  = "Your turn again. Find the best move!"
	MsgIncorrect      = "Incorrect move. Try again!"
	MsgSolved         = "Congratulations! You've solved the puzzle!"
	MsgLoading        = "Loading puzzles..."
	MsgNoPuzzles      = "No puzzles available."
	MsgSkipFailed     = "Error loading puzzle. Skipping to next."
	msgFetchErrFormat = "Error loading puzzles: %v. Please try again."
)

var (
	// ErrNotAwaitingMove rejects a move while no puzzle is active or a
	// deferred action from the previous attempt is still pending.
	ErrNotAwaitingMove = errors.New("session is not awaiting a move")

	// ErrUnknownEvent is returned for an unrecognised event type.
	ErrUnknownEvent = errors.New("unknown session event")
)

// Config holds pacing and refill settings.
type Config struct {
	ReplyDelay    time.Duration
	RollbackDelay time.Duration
	AdvanceDelay  time.Duration

	// MaxSkips caps consecutive malformed records discarded by one load.
	MaxSkips int

	// Request is sent with every refill.
	Request puzzle.Request
}

// DefaultConfig returns the trainer's standard pacing.
func DefaultConfig() Config {
	return Config{
		ReplyDelay:    500 * time.Millisecond,
		RollbackDelay: 500 * time.Millisecond,
		AdvanceDelay:  2 * time.Second,
		MaxSkips:      10,
		Request:       puzzle.Request{MaxCount: 5},
	}
}

// State is the session's owned state.
//
// Position is the live handle owned by the Machine; callers outside the
// driving goroutine must not mutate it.
type State struct {
	Puzzle        *puzzle.Puzzle
	Position      rules.Position
	SolutionIndex int
	Status        Status
	Message       string

	// Outcome is set when the current position is terminal.
	Outcome  outcome.Outcome
	Terminal bool

	// Generation increments on every puzzle change.
	Generation uint64

	// Fetching is true while a refill is outstanding.
	Fetching bool

	// active is cleared by Reset so a late batch does not auto-load.
	active bool
}

// Machine is the puzzle session state machine.
type Machine struct {
	cfg   Config
	rules rules.Engine
	queue *puzzle.Queue
	state State
}

// NewMachine creates an Idle machine reading from queue.
func NewMachine(eng rules.Engine, queue *puzzle.Queue, cfg Config) *Machine {
	if cfg.MaxSkips <= 0 {
		cfg.MaxSkips = DefaultConfig().MaxSkips
	}
	return &Machine{cfg: cfg, rules: eng, queue: queue}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state
}

// Generation returns the current generation.
func (m *Machine) Generation() uint64 {
	return m.state.Generation
}

// LegalMoves lists legal moves from a square in the current position, for
// move highlighting. Returns nil when no puzzle is loaded.
func (m *Machine) LegalMoves(from string) []rules.Move {
	if m.state.Position == nil {
		return nil
	}
	return m.state.Position.LegalMoves(from)
}

// Update applies one event. The returned error is non-nil only when a Move
// is rejected (ErrNotAwaitingMove or a wrapped rules.ErrIllegalMove); a
// rejected move leaves state and message unchanged.
func (m *Machine) Update(ev Event) ([]Effect, error) {
	switch ev.Type {
	case EventStart:
		if m.state.Puzzle != nil || m.state.Fetching {
			m.state.active = true
			return nil, nil
		}
		return m.load(false), nil

	case EventMove:
		return m.verify(ev.Attempt)

	case EventReplyDue:
		if m.stale(ev, Correct) {
			return nil, nil
		}
		return m.reply(), nil

	case EventRollbackDue:
		if m.stale(ev, Incorrect) {
			return nil, nil
		}
		m.rollback()
		return nil, nil

	case EventAdvanceDue:
		if m.stale(ev, Solved) {
			return nil, nil
		}
		return m.load(false), nil

	case EventBatchFetched:
		return m.fetched(ev.Puzzles, ev.Err), nil

	case EventSkip:
		var effects []Effect
		if m.state.Puzzle != nil && m.state.Status != Solved {
			effects = append(effects, m.record("", ResultSkipped))
		}
		return append(effects, m.load(false)...), nil

	case EventReset:
		m.bump()
		m.clearPuzzle()
		m.state.active = false
		m.state.Message = ""
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, ev.Type)
}

// stale reports whether a deferred event no longer applies.
func (m *Machine) stale(ev Event, want Status) bool {
	if ev.Generation != m.state.Generation || m.state.Status != want {
		slog.Debug("dropping stale session event",
			"event", ev.Type.String(),
			"event_generation", ev.Generation,
			"generation", m.state.Generation,
			"status", m.state.Status.String(),
		)
		return true
	}
	return false
}

func (m *Machine) bump() {
	m.state.Generation++
}

func (m *Machine) clearPuzzle() {
	m.state.Puzzle = nil
	m.state.Position = nil
	m.state.SolutionIndex = 0
	m.state.Status = Idle
	m.state.Outcome = outcome.Outcome{}
	m.state.Terminal = false
}

// load discards the current puzzle and pulls the next playable one.
//
// Malformed records are skipped in a bounded loop. When the queue is empty
// a refill is requested unless one is in flight or the queue was just
// refilled (afterFetch), in which case the session stays Idle.
func (m *Machine) load(afterFetch bool) []Effect {
	m.bump()
	m.clearPuzzle()
	m.state.active = true

	skipped := 0
	for skipped < m.cfg.MaxSkips {
		p, ok := m.queue.Dequeue()
		if !ok {
			break
		}
		if err := p.Validate(); err != nil {
			slog.Warn("skipping invalid puzzle", "puzzle", p.ID, "error", err)
			skipped++
			continue
		}
		pos, err := m.rules.ParsePosition(p.InitialPosition)
		if err != nil {
			slog.Warn("skipping unparsable puzzle", "puzzle", p.ID, "error", err)
			skipped++
			continue
		}

		m.state.Puzzle = &p
		m.state.Position = pos
		m.state.SolutionIndex = 0
		m.state.Status = AwaitingPlayerMove
		m.state.Message = MsgYourTurn
		m.evaluate()
		slog.Info("puzzle loaded", "puzzle", p.ID, "rating", p.Rating, "plies", len(p.Solution))
		return nil
	}

	if skipped >= m.cfg.MaxSkips {
		m.state.Message = MsgSkipFailed
		return nil
	}
	if afterFetch {
		if skipped > 0 {
			m.state.Message = MsgSkipFailed
		} else {
			m.state.Message = MsgNoPuzzles
		}
		return nil
	}
	m.state.Message = MsgLoading
	if m.state.Fetching {
		return nil
	}
	m.state.Fetching = true
	return []Effect{{Type: EffectFetch, Request: m.cfg.Request}}
}

func (m *Machine) fetched(batch []puzzle.Puzzle, err error) []Effect {
	m.state.Fetching = false
	if err != nil {
		slog.Warn("puzzle fetch failed", "error", err)
		if m.state.Puzzle == nil {
			m.state.Message = fmt.Sprintf(msgFetchErrFormat, err)
		}
		return nil
	}
	m.queue.EnqueueBatch(batch)
	if !m.state.active || m.state.Puzzle != nil {
		return nil
	}
	return m.load(true)
}

func (m *Machine) verify(a rules.Attempt) ([]Effect, error) {
	if m.state.Status != AwaitingPlayerMove || m.state.Puzzle == nil {
		return nil, ErrNotAwaitingMove
	}

	m.state.Status = Verifying
	played, err := m.state.Position.Apply(a)
	if err != nil {
		m.state.Status = AwaitingPlayerMove
		return nil, err
	}
	m.evaluate()

	p := m.state.Puzzle
	expected := p.Solution[m.state.SolutionIndex]
	if played.Coordinate() != expected[:4] {
		m.state.Status = Incorrect
		m.state.Message = MsgIncorrect
		return []Effect{
			m.record(played.UCI(), ResultIncorrect),
			m.schedule(m.cfg.RollbackDelay, EventRollbackDue),
		}, nil
	}

	m.state.SolutionIndex++
	if m.state.SolutionIndex == len(p.Solution) {
		return []Effect{
			m.record(played.UCI(), ResultSolved),
			m.solved(),
		}, nil
	}

	m.state.Status = Correct
	m.state.Message = MsgCorrect
	return []Effect{
		m.record(played.UCI(), ResultCorrect),
		m.schedule(m.cfg.ReplyDelay, EventReplyDue),
	}, nil
}

// reply plays solution[SolutionIndex] for the opponent.
func (m *Machine) reply() []Effect {
	p := m.state.Puzzle
	a, err := p.Step(m.state.SolutionIndex)
	if err == nil {
		_, err = m.state.Position.Apply(a)
	}
	if err != nil {
		slog.Warn("scripted reply failed, discarding puzzle", "puzzle", p.ID, "error", err)
		return m.load(false)
	}

	m.state.SolutionIndex++
	m.evaluate()
	if m.state.SolutionIndex == len(p.Solution) {
		return []Effect{m.solved()}
	}
	m.state.Status = AwaitingPlayerMove
	m.state.Message = MsgYourTurnAgain
	return nil
}

func (m *Machine) rollback() {
	if err := m.state.Position.Undo(); err != nil {
		slog.Warn("rollback failed", "puzzle", m.state.Puzzle.ID, "error", err)
	}
	m.evaluate()
	m.state.Status = AwaitingPlayerMove
}

func (m *Machine) solved() Effect {
	m.state.Status = Solved
	m.state.Message = MsgSolved
	slog.Info("puzzle solved", "puzzle", m.state.Puzzle.ID)
	return m.schedule(m.cfg.AdvanceDelay, EventAdvanceDue)
}

func (m *Machine) evaluate() {
	m.state.Outcome, m.state.Terminal = outcome.Evaluate(m.state.Position)
}

func (m *Machine) schedule(d time.Duration, t EventType) Effect {
	return Effect{
		Type:  EffectSchedule,
		Delay: d,
		Event: Event{Type: t, Generation: m.state.Generation},
	}
}

func (m *Machine) record(move, result string) Effect {
	return Effect{
		Type: EffectRecord,
		Record: AttemptRecord{
			PuzzleID:      m.state.Puzzle.ID,
			Move:          move,
			Result:        result,
			SolutionIndex: m.state.SolutionIndex,
		},
	}
}
