package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, p Position, moves ...string) {
	t.Helper()
	for _, s := range moves {
		a, err := ParseCoordinate(s)
		require.NoError(t, err)
		_, err = p.Apply(a)
		require.NoError(t, err, "apply %s", s)
	}
}

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		in      string
		want    Attempt
		wantErr bool
	}{
		{in: "e2e4", want: Attempt{From: "e2", To: "e4"}},
		{in: "E7E8Q", want: Attempt{From: "e7", To: "e8", Promotion: "q"}},
		{in: " g1f3 ", want: Attempt{From: "g1", To: "f3"}},
		{in: "e2e", wantErr: true},
		{in: "i2e4", wantErr: true},
		{in: "e2e9", wantErr: true},
		{in: "e7e8k", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCoordinate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoordinate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("Black")
	require.NoError(t, err)
	assert.Equal(t, Black, s)
	assert.Equal(t, White, s.Opponent())

	_, err = ParseSide("green")
	assert.Error(t, err)
}

func TestStandard_NewPosition(t *testing.T) {
	p := NewStandard().NewPosition()
	assert.Equal(t, StartFEN, p.Serialize())
	assert.Equal(t, White, p.SideToMove())
	assert.Len(t, p.LegalMoves(""), 20)
	assert.Equal(t, 0, p.Plies())
}

func TestStandard_LegalMovesFromSquare(t *testing.T) {
	p := NewStandard().NewPosition()
	moves := p.LegalMoves("g1")
	require.Len(t, moves, 2)

	var targets []string
	for _, m := range moves {
		assert.Equal(t, "g1", m.From)
		targets = append(targets, m.To)
	}
	assert.ElementsMatch(t, []string{"f3", "h3"}, targets)
}

func TestStandard_ApplyAndUndo(t *testing.T) {
	p := NewStandard().NewPosition()

	m, err := p.Apply(Attempt{From: "e2", To: "e4"})
	require.NoError(t, err)
	assert.Equal(t, "e2e4", m.Coordinate())
	assert.Equal(t, "e4", m.SAN)
	assert.False(t, m.Capture)
	assert.Equal(t, Black, p.SideToMove())
	assert.Equal(t, 1, p.Plies())

	require.NoError(t, p.Undo())
	assert.Equal(t, StartFEN, p.Serialize())
	assert.Equal(t, 0, p.Plies())

	assert.ErrorIs(t, p.Undo(), ErrNothingToUndo)
}

func TestStandard_ApplyIllegal(t *testing.T) {
	p := NewStandard().NewPosition()
	before := p.Serialize()

	_, err := p.Apply(Attempt{From: "e2", To: "e5"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalMove))
	assert.Equal(t, before, p.Serialize())
	assert.Equal(t, 0, p.Plies())
}

func TestStandard_CaptureAndCheckFlags(t *testing.T) {
	p := NewStandard().NewPosition()
	play(t, p, "e2e4", "d7d5")

	var capture Move
	for _, m := range p.LegalMoves("e4") {
		if m.To == "d5" {
			capture = m
		}
	}
	assert.True(t, capture.Capture)
	assert.Equal(t, "exd5", capture.SAN)

	play(t, p, "e4d5", "e7e6")
	var check Move
	for _, m := range p.LegalMoves("f1") {
		if m.To == "b5" {
			check = m
		}
	}
	assert.True(t, check.Check)
	assert.False(t, check.Capture)
}

func TestStandard_PromotionDefaultsToQueen(t *testing.T) {
	p, err := NewStandard().ParsePosition("8/4P3/8/8/8/8/k7/4K3 w - - 0 1")
	require.NoError(t, err)

	m, err := p.Apply(Attempt{From: "e7", To: "e8"})
	require.NoError(t, err)
	assert.Equal(t, "q", m.Promotion)
	assert.Equal(t, "e7e8q", m.UCI())

	require.NoError(t, p.Undo())
	m, err = p.Apply(Attempt{From: "e7", To: "e8", Promotion: "n"})
	require.NoError(t, err)
	assert.Equal(t, "n", m.Promotion)
}

func TestStandard_ParsePosition(t *testing.T) {
	eng := NewStandard()

	t.Run("fen", func(t *testing.T) {
		p, err := eng.ParsePosition("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
		require.NoError(t, err)
		assert.Equal(t, Black, p.SideToMove())
	})

	t.Run("movetext", func(t *testing.T) {
		p, err := eng.ParsePosition("1. e4 e5 2. Nf3 Nc6")
		require.NoError(t, err)
		assert.Equal(t, White, p.SideToMove())
		assert.Equal(t, 0, p.Plies(), "history before the parsed position is not kept")
		assert.Contains(t, p.Serialize(), "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w")
	})

	t.Run("movetext with result", func(t *testing.T) {
		p, err := eng.ParsePosition("e4 e5 *")
		require.NoError(t, err)
		assert.Equal(t, White, p.SideToMove())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := eng.ParsePosition("   ")
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("illegal movetext", func(t *testing.T) {
		_, err := eng.ParsePosition("e4 e4")
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
	})
}

func TestStandard_SerializeRoundTrip(t *testing.T) {
	eng := NewStandard()
	sources := []string{
		StartFEN,
		"e4 c5 Nf3 d6 d4 cxd4",
		"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
	}

	for _, src := range sources {
		p, err := eng.ParsePosition(src)
		require.NoError(t, err)
		first := p.Serialize()

		again, err := eng.ParsePosition(first)
		require.NoError(t, err)
		assert.Equal(t, first, again.Serialize(), "source %q", src)
	}
}

func TestStandard_TerminalPredicates(t *testing.T) {
	eng := NewStandard()

	t.Run("checkmate", func(t *testing.T) {
		p := eng.NewPosition()
		play(t, p, "f2f3", "e7e5", "g2g4", "d8h4")
		assert.True(t, p.IsCheckmate())
		assert.False(t, p.IsStalemate())
		assert.False(t, p.IsDraw())
		assert.Equal(t, White, p.SideToMove())
	})

	t.Run("stalemate", func(t *testing.T) {
		p, err := eng.ParsePosition("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
		require.NoError(t, err)
		assert.True(t, p.IsStalemate())
		assert.False(t, p.IsCheckmate())
		assert.True(t, p.IsDraw())
	})

	t.Run("insufficient material", func(t *testing.T) {
		for _, fen := range []string{
			"8/8/8/4k3/8/8/8/4K3 w - - 0 1",
			"8/8/8/4k3/8/8/8/4KN2 w - - 0 1",
			"8/8/2b5/4k3/8/8/8/4KB2 w - - 0 1",
		} {
			p, err := eng.ParsePosition(fen)
			require.NoError(t, err)
			assert.True(t, p.IsInsufficientMaterial(), fen)
			assert.True(t, p.IsDraw(), fen)
		}

		p, err := eng.ParsePosition("8/8/8/4k3/8/8/4P3/4K3 w - - 0 1")
		require.NoError(t, err)
		assert.False(t, p.IsInsufficientMaterial())
	})

	t.Run("threefold repetition", func(t *testing.T) {
		p := eng.NewPosition()
		play(t, p, "g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8")
		assert.True(t, p.IsThreefoldRepetition())
		assert.True(t, p.IsDraw())

		require.NoError(t, p.Undo())
		assert.False(t, p.IsThreefoldRepetition())
	})
}
