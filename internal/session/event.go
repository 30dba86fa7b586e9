package session

import (
	"time"

	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
)

// Status is the session state.
type Status int

const (
	Idle Status = iota
	AwaitingPlayerMove
	Verifying
	Correct
	Incorrect
	Solved
)

var statusNames = [...]string{
	Idle:               "idle",
	AwaitingPlayerMove: "awaiting_player_move",
	Verifying:          "verifying",
	Correct:            "correct",
	Incorrect:          "incorrect",
	Solved:             "solved",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// EventType distinguishes session events.
type EventType int

const (
	// EventStart loads a puzzle if none is active.
	EventStart EventType = iota + 1
	// EventMove submits a player move attempt.
	EventMove
	// EventReplyDue plays the scripted opponent reply.
	EventReplyDue
	// EventRollbackDue undoes a wrong move.
	EventRollbackDue
	// EventAdvanceDue moves on after a solved puzzle.
	EventAdvanceDue
	// EventBatchFetched delivers the result of a Fetch effect.
	EventBatchFetched
	// EventSkip abandons the current puzzle for the next one.
	EventSkip
	// EventReset returns the session to Idle.
	EventReset
)

var eventNames = map[EventType]string{
	EventStart:        "start",
	EventMove:         "move",
	EventReplyDue:     "reply_due",
	EventRollbackDue:  "rollback_due",
	EventAdvanceDue:   "advance_due",
	EventBatchFetched: "batch_fetched",
	EventSkip:         "skip",
	EventReset:        "reset",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return "unknown"
}

// Event is input to Machine.Update.
type Event struct {
	Type EventType

	// Attempt is set for EventMove.
	Attempt rules.Attempt

	// Generation is set for deferred events (reply, rollback, advance).
	Generation uint64

	// Puzzles and Err are set for EventBatchFetched.
	Puzzles []puzzle.Puzzle
	Err     error
}

// Move builds an EventMove.
func Move(a rules.Attempt) Event {
	return Event{Type: EventMove, Attempt: a}
}

// EffectType distinguishes effects returned by Update.
type EffectType int

const (
	// EffectSchedule delivers Event after Delay.
	EffectSchedule EffectType = iota + 1
	// EffectFetch requests a puzzle batch; the result comes back as EventBatchFetched.
	EffectFetch
	// EffectRecord logs an attempt.
	EffectRecord
)

// Effect is work the Machine asks its driver to perform.
type Effect struct {
	Type EffectType

	Delay time.Duration
	Event Event

	Request puzzle.Request

	Record AttemptRecord
}

// Attempt results written to the attempt log.
const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"
	ResultSolved    = "solved"
	ResultSkipped   = "skipped"
)

// AttemptRecord is one entry of the attempt log.
type AttemptRecord struct {
	SessionID     string `json:"session_id"`
	PuzzleID      string `json:"puzzle_id"`
	Move          string `json:"move,omitempty"`
	Result        string `json:"result"`
	SolutionIndex int    `json:"solution_index"`
}
