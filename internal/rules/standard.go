package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/notnil/chess"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Standard is the Engine backed by github.com/notnil/chess.
type Standard struct{}

// NewStandard returns the notnil/chess backed engine.
func NewStandard() Standard {
	return Standard{}
}

// NewPosition returns the standard starting position.
func (Standard) NewPosition() Position {
	b, err := newBoard(StartFEN)
	if err != nil {
		// StartFEN is a constant; failure here is a programming error.
		panic(fmt.Sprintf("rules: start position: %v", err))
	}
	return b
}

// ParsePosition reads FEN, tagged PGN, or bare SAN movetext.
//
// PGN sources are played out and reduced to their final position; the game
// history before that position is not retained.
func (Standard) ParsePosition(src string) (Position, error) {
	text := strings.TrimSpace(src)
	if text == "" {
		return nil, &ParseError{Source: src, Err: errors.New("empty position source")}
	}

	var fen string
	switch {
	case looksLikeFEN(text):
		fen = text
	case strings.HasPrefix(text, "["):
		opt, err := chess.PGN(strings.NewReader(text))
		if err != nil {
			return nil, &ParseError{Source: src, Err: err}
		}
		fen = chess.NewGame(opt).Position().String()
	default:
		g, err := playMovetext(text)
		if err != nil {
			return nil, &ParseError{Source: src, Err: err}
		}
		fen = g.Position().String()
	}

	b, err := newBoard(fen)
	if err != nil {
		return nil, &ParseError{Source: src, Err: err}
	}
	return b, nil
}

func looksLikeFEN(s string) bool {
	fields := strings.Fields(s)
	return len(fields) >= 2 && strings.Count(fields[0], "/") == 7
}

var (
	moveNumber = regexp.MustCompile(`^\d+\.+`)
	results    = map[string]bool{"1-0": true, "0-1": true, "1/2-1/2": true, "*": true}
)

// playMovetext applies whitespace separated SAN tokens to the start position.
// Move numbers ("12." / "12...") and result markers are skipped.
func playMovetext(text string) (*chess.Game, error) {
	g := chess.NewGame()
	notation := chess.AlgebraicNotation{}
	for _, tok := range strings.Fields(text) {
		tok = moveNumber.ReplaceAllString(tok, "")
		if tok == "" || results[tok] {
			continue
		}
		m, err := notation.Decode(g.Position(), tok)
		if err != nil {
			return nil, fmt.Errorf("movetext token %q: %w", tok, err)
		}
		if err := g.Move(m); err != nil {
			return nil, fmt.Errorf("movetext token %q: %w", tok, err)
		}
	}
	return g, nil
}

// Board is a Position backed by a notnil/chess game.
//
// Undo rebuilds the game from the initial FEN and replays the remaining
// moves, so repetition history is kept only from the parsed position on.
type Board struct {
	initial string
	moves   []string // UCI, in play order
	game    *chess.Game
}

func newBoard(fen string) (*Board, error) {
	g, err := gameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	return &Board{initial: fen, game: g}, nil
}

func gameFromFEN(fen string) (*chess.Game, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(opt), nil
}

// LegalMoves implements Position.
func (b *Board) LegalMoves(from string) []Move {
	pos := b.game.Position()
	var out []Move
	for _, m := range b.game.ValidMoves() {
		if from != "" && m.S1().String() != from {
			continue
		}
		out = append(out, describe(pos, m))
	}
	return out
}

// Apply implements Position.
func (b *Board) Apply(a Attempt) (Move, error) {
	promo := a.Promotion
	if promo == "" {
		promo = "q"
	}
	pos := b.game.Position()
	for _, m := range b.game.ValidMoves() {
		if m.S1().String() != a.From || m.S2().String() != a.To {
			continue
		}
		if m.Promo() != chess.NoPieceType && promoLetter(m.Promo()) != promo {
			continue
		}
		desc := describe(pos, m)
		if err := b.game.Move(m); err != nil {
			return Move{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, a.Coordinate(), err)
		}
		b.moves = append(b.moves, desc.UCI())
		return desc, nil
	}
	return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, a.Coordinate()+a.Promotion)
}

// Undo implements Position.
func (b *Board) Undo() error {
	if len(b.moves) == 0 {
		return ErrNothingToUndo
	}
	g, err := gameFromFEN(b.initial)
	if err != nil {
		return err
	}
	remaining := b.moves[:len(b.moves)-1]
	uci := chess.UCINotation{}
	for _, s := range remaining {
		m, err := uci.Decode(g.Position(), s)
		if err != nil {
			return fmt.Errorf("replay %s: %w", s, err)
		}
		if err := g.Move(m); err != nil {
			return fmt.Errorf("replay %s: %w", s, err)
		}
	}
	b.game = g
	b.moves = remaining
	return nil
}

// SideToMove implements Position.
func (b *Board) SideToMove() Side {
	if b.game.Position().Turn() == chess.Black {
		return Black
	}
	return White
}

// IsCheckmate implements Position.
func (b *Board) IsCheckmate() bool {
	return b.game.Position().Status() == chess.Checkmate
}

// IsStalemate implements Position.
func (b *Board) IsStalemate() bool {
	return b.game.Position().Status() == chess.Stalemate
}

// IsThreefoldRepetition implements Position.
func (b *Board) IsThreefoldRepetition() bool {
	if b.game.Method() == chess.FivefoldRepetition {
		return true
	}
	return b.eligible(chess.ThreefoldRepetition)
}

// IsInsufficientMaterial implements Position.
func (b *Board) IsInsufficientMaterial() bool {
	return insufficientMaterial(b.game.Position().Board())
}

// IsDraw implements Position.
func (b *Board) IsDraw() bool {
	fiftyMove := b.eligible(chess.FiftyMoveRule) || b.game.Method() == chess.SeventyFiveMoveRule
	return fiftyMove || b.IsStalemate() || b.IsThreefoldRepetition() || b.IsInsufficientMaterial()
}

func (b *Board) eligible(method chess.Method) bool {
	for _, m := range b.game.EligibleDraws() {
		if m == method {
			return true
		}
	}
	return false
}

// Serialize implements Position.
func (b *Board) Serialize() string {
	return b.game.Position().String()
}

// Plies implements Position.
func (b *Board) Plies() int {
	return len(b.moves)
}

func describe(pos *chess.Position, m *chess.Move) Move {
	d := Move{
		From:    m.S1().String(),
		To:      m.S2().String(),
		SAN:     chess.AlgebraicNotation{}.Encode(pos, m),
		Capture: m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant),
		Check:   m.HasTag(chess.Check),
	}
	if m.Promo() != chess.NoPieceType {
		d.Promotion = promoLetter(m.Promo())
	}
	return d
}

func promoLetter(p chess.PieceType) string {
	switch p {
	case chess.Queen:
		return "q"
	case chess.Rook:
		return "r"
	case chess.Bishop:
		return "b"
	case chess.Knight:
		return "n"
	}
	return ""
}

// insufficientMaterial reports K v K, K+minor v K, and bishops-only endings
// where every bishop stands on the same square colour.
func insufficientMaterial(board *chess.Board) bool {
	var minors, knights int
	bishopColours := map[int]bool{}
	for sq, p := range board.SquareMap() {
		switch p.Type() {
		case chess.King:
		case chess.Knight:
			minors++
			knights++
		case chess.Bishop:
			minors++
			bishopColours[(int(sq.File())+int(sq.Rank()))%2] = true
		default:
			return false
		}
	}
	switch {
	case minors <= 1:
		return true
	case knights == 0 && len(bishopColours) == 1:
		return true
	}
	return false
}
