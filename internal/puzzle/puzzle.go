package puzzle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Heizenburger/chess-mentor/internal/rules"
)

// ErrMalformedPuzzle marks a record that cannot be played.
var ErrMalformedPuzzle = errors.New("malformed puzzle")

// Puzzle is an immutable puzzle record.
//
// InitialPosition is PGN or FEN source text. Solution alternates the
// player's move and the scripted reply, in coordinate form ("e2e4", "e7e8q").
type Puzzle struct {
	ID              string   `json:"id"`
	InitialPosition string   `json:"initial_position"`
	Solution        []string `json:"solution"`
	Rating          int      `json:"rating"`
	Themes          []string `json:"themes,omitempty"`
}

// Validate checks the record is structurally playable. It does not parse
// the position; that is the Rules Engine's job.
func (p Puzzle) Validate() error {
	if strings.TrimSpace(p.InitialPosition) == "" {
		return fmt.Errorf("%w: %s: missing position", ErrMalformedPuzzle, p.ID)
	}
	if len(p.Solution) == 0 {
		return fmt.Errorf("%w: %s: missing solution", ErrMalformedPuzzle, p.ID)
	}
	for i, mv := range p.Solution {
		if _, err := rules.ParseCoordinate(mv); err != nil {
			return fmt.Errorf("%w: %s: solution[%d]: %v", ErrMalformedPuzzle, p.ID, i, err)
		}
	}
	return nil
}

// Step returns solution[i] as a move attempt.
func (p Puzzle) Step(i int) (rules.Attempt, error) {
	if i < 0 || i >= len(p.Solution) {
		return rules.Attempt{}, fmt.Errorf("%w: %s: no solution step %d", ErrMalformedPuzzle, p.ID, i)
	}
	return rules.ParseCoordinate(p.Solution[i])
}

// feedRecord is one line of the Lichess puzzle feed.
type feedRecord struct {
	Game struct {
		ID  string `json:"id"`
		PGN string `json:"pgn"`
	} `json:"game"`
	Puzzle struct {
		ID       string   `json:"id"`
		Rating   int      `json:"rating"`
		Solution []string `json:"solution"`
		Themes   []string `json:"themes"`
	} `json:"puzzle"`
}

// DecodeLine decodes one NDJSON feed record. Only JSON syntax is checked;
// structural problems are left to Validate so the session can skip them.
func DecodeLine(line []byte) (Puzzle, error) {
	var rec feedRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return Puzzle{}, fmt.Errorf("%w: %v", ErrMalformedPuzzle, err)
	}
	id := rec.Puzzle.ID
	if id == "" {
		id = rec.Game.ID
	}
	solution := make([]string, len(rec.Puzzle.Solution))
	for i, s := range rec.Puzzle.Solution {
		solution[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return Puzzle{
		ID:              norm.NFC.String(id),
		InitialPosition: norm.NFC.String(rec.Game.PGN),
		Solution:        solution,
		Rating:          rec.Puzzle.Rating,
		Themes:          rec.Puzzle.Themes,
	}, nil
}
