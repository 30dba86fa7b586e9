package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Side identifies a player colour.
type Side int

const (
	White Side = iota
	Black
)

// String returns "white" or "black".
func (s Side) String() string {
	if s == Black {
		return "black"
	}
	return "white"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// ParseSide accepts "white"/"w" and "black"/"b" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return White, fmt.Errorf("unknown side %q: must be white or black", s)
	}
}

// Move is a structured descriptor of a legal move.
//
// Capture and Check are computed by the engine when the move is generated,
// so consumers never need to inspect notation strings.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"` // "q", "r", "b", "n" or ""
	SAN       string `json:"san"`
	Capture   bool   `json:"capture"`
	Check     bool   `json:"check"`
}

// Coordinate returns origin+destination, e.g. "e2e4". Promotion is omitted.
func (m Move) Coordinate() string {
	return m.From + m.To
}

// UCI returns origin+destination+promotion, e.g. "e7e8q".
func (m Move) UCI() string {
	return m.From + m.To + m.Promotion
}

// Attempt is a move request produced by input capture.
type Attempt struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// Coordinate returns origin+destination.
func (a Attempt) Coordinate() string {
	return a.From + a.To
}

// ParseCoordinate parses coordinate move form: four board-coordinate
// characters plus an optional fifth promotion character.
func ParseCoordinate(s string) (Attempt, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Attempt{}, fmt.Errorf("%w %q: want 4 or 5 characters", ErrInvalidCoordinate, s)
	}
	from, to := s[0:2], s[2:4]
	if !isSquare(from) || !isSquare(to) {
		return Attempt{}, fmt.Errorf("%w %q: bad square", ErrInvalidCoordinate, s)
	}
	a := Attempt{From: from, To: to}
	if len(s) == 5 {
		if !strings.ContainsRune("qrbn", rune(s[4])) {
			return Attempt{}, fmt.Errorf("%w %q: bad promotion piece %q", ErrInvalidCoordinate, s, s[4:])
		}
		a.Promotion = s[4:]
	}
	return a, nil
}

func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

var (
	// ErrIllegalMove is returned by Apply when the engine rejects an attempt.
	ErrIllegalMove = errors.New("illegal move")

	// ErrInvalidCoordinate is returned by ParseCoordinate for malformed text.
	ErrInvalidCoordinate = errors.New("invalid coordinate move")

	// ErrNothingToUndo is returned by Undo on a position with no applied moves.
	ErrNothingToUndo = errors.New("no move to undo")
)

// ParseError reports a position source the engine could not read.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	src := e.Source
	if len(src) > 40 {
		src = src[:40] + "..."
	}
	return fmt.Sprintf("parse position %q: %v", src, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Position is a mutable board state owned by exactly one consumer.
type Position interface {
	// LegalMoves lists legal moves, optionally filtered by origin square.
	// An empty from returns every legal move.
	LegalMoves(from string) []Move

	// Apply plays the attempt, mutating the position. A missing promotion
	// piece defaults to queen.
	Apply(a Attempt) (Move, error)

	// Undo reverts the most recently applied move.
	Undo() error

	SideToMove() Side
	IsCheckmate() bool
	IsStalemate() bool
	IsThreefoldRepetition() bool
	IsInsufficientMaterial() bool
	IsDraw() bool

	// Serialize returns the position as FEN.
	Serialize() string

	// Plies returns the number of moves applied since the position was parsed.
	Plies() int
}

// Engine creates positions.
type Engine interface {
	NewPosition() Position
	ParsePosition(src string) (Position, error)
}
