// Package selector picks a reply move for the free-play opponent.
//
// Difficulty is a move filter, not a search depth: legal moves are split
// into priority tiers and one move is drawn uniformly from the first
// non-empty tier.
package selector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lukechampine.com/frand"

	"github.com/Heizenburger/chess-mentor/internal/rules"
)

// Difficulty is the opponent tier.
type Difficulty int

const (
	Easy   Difficulty = 1
	Medium Difficulty = 2
	Hard   Difficulty = 3
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "Easy"
	case Medium:
		return "Medium"
	case Hard:
		return "Hard"
	}
	return fmt.Sprintf("Difficulty(%d)", int(d))
}

// Valid reports whether d is one of the three tiers.
func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Hard
}

// ParseDifficulty accepts "1".."3" or "easy", "medium", "hard".
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		d := Difficulty(n)
		if !d.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrUnknownDifficulty, n)
		}
		return d, nil
	}
	for _, d := range []Difficulty{Easy, Medium, Hard} {
		if strings.ToLower(d.String()) == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
}

var (
	ErrNoMoves           = errors.New("no legal moves to select from")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
)

// centre squares preferred by Hard.
var centre = map[string]bool{"d4": true, "e4": true, "d5": true, "e5": true}

type filter func(rules.Move) bool

func all(rules.Move) bool          { return true }
func captures(m rules.Move) bool   { return m.Capture }
func checks(m rules.Move) bool     { return m.Check }
func centreLand(m rules.Move) bool { return centre[m.To] }

var tiers = map[Difficulty][]filter{
	Easy:   {all},
	Medium: {captures, checks, all},
	Hard:   {centreLand, all},
}

// Candidates returns the first non-empty tier for the difficulty, in input
// order. The result is empty only if moves is empty.
func Candidates(moves []rules.Move, d Difficulty) ([]rules.Move, error) {
	order, ok := tiers[d]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDifficulty, int(d))
	}
	for _, keep := range order {
		var tier []rules.Move
		for _, m := range moves {
			if keep(m) {
				tier = append(tier, m)
			}
		}
		if len(tier) > 0 {
			return tier, nil
		}
	}
	return nil, nil
}

// Rand is the source of uniform choice.
type Rand interface {
	Intn(n int) int
}

type frandSource struct{}

func (frandSource) Intn(n int) int { return frand.Intn(n) }

// Selector draws moves using its Rand.
type Selector struct {
	rng Rand
}

// New returns a Selector. A nil rng uses lukechampine.com/frand.
func New(rng Rand) *Selector {
	if rng == nil {
		rng = frandSource{}
	}
	return &Selector{rng: rng}
}

// Select returns one move from the first non-empty tier.
// Callers must not invoke it at a terminal position.
func (s *Selector) Select(moves []rules.Move, d Difficulty) (rules.Move, error) {
	if len(moves) == 0 {
		return rules.Move{}, ErrNoMoves
	}
	tier, err := Candidates(moves, d)
	if err != nil {
		return rules.Move{}, err
	}
	return tier[s.rng.Intn(len(tier))], nil
}
