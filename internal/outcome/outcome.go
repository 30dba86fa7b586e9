// Package outcome maps Rules Engine terminal predicates to one result.
package outcome

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Heizenburger/chess-mentor/internal/rules"
)

// Kind classifies how a game ended.
type Kind int

const (
	None Kind = iota
	Checkmate
	Stalemate
	DrawByRepetition
	DrawByInsufficientMaterial
	Draw
)

var kindNames = map[Kind]string{
	None:                       "none",
	Checkmate:                  "checkmate",
	Stalemate:                  "stalemate",
	DrawByRepetition:           "threefold_repetition",
	DrawByInsufficientMaterial: "insufficient_material",
	Draw:                       "draw",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Outcome is a terminal result. Winner is meaningful only for Checkmate.
type Outcome struct {
	Kind   Kind
	Winner rules.Side
}

// Terminal is the subset of rules.Position the evaluator reads.
type Terminal interface {
	SideToMove() rules.Side
	IsCheckmate() bool
	IsStalemate() bool
	IsThreefoldRepetition() bool
	IsInsufficientMaterial() bool
	IsDraw() bool
}

// Evaluate returns the first true predicate in precedence order:
// checkmate, stalemate, threefold repetition, insufficient material, draw.
// The second result is false when the position is not terminal.
func Evaluate(p Terminal) (Outcome, bool) {
	switch {
	case p.IsCheckmate():
		// The side to move is the mated side.
		return Outcome{Kind: Checkmate, Winner: p.SideToMove().Opponent()}, true
	case p.IsStalemate():
		return Outcome{Kind: Stalemate}, true
	case p.IsThreefoldRepetition():
		return Outcome{Kind: DrawByRepetition}, true
	case p.IsInsufficientMaterial():
		return Outcome{Kind: DrawByInsufficientMaterial}, true
	case p.IsDraw():
		return Outcome{Kind: Draw}, true
	}
	return Outcome{}, false
}

// Message returns user-facing text naming the winner for checkmate.
func (o Outcome) Message() string {
	switch o.Kind {
	case Checkmate:
		// Casers are stateful, so one is built per call.
		return cases.Title(language.English).String(o.Winner.String()) + " wins by checkmate!"
	case Stalemate:
		return "Stalemate!"
	case DrawByRepetition:
		return "Draw by threefold repetition!"
	case DrawByInsufficientMaterial:
		return "Draw by insufficient material!"
	case Draw:
		return "Draw!"
	}
	return ""
}

// Result returns the PGN style result string.
func (o Outcome) Result() string {
	switch o.Kind {
	case None:
		return "*"
	case Checkmate:
		if o.Winner == rules.White {
			return "1-0"
		}
		return "0-1"
	}
	return "1/2-1/2"
}
