package store

import (
	"context"
	"testing"

	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/session"
)

func puzzleIDs(ps []puzzle.Puzzle) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func TestUnsolvedPuzzles_FiltersAndOrders(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	batch := []puzzle.Puzzle{
		createTestPuzzle("low", 900),
		createTestPuzzle("a", 1500),
		createTestPuzzle("solved", 1600),
		createTestPuzzle("b", 1700),
		createTestPuzzle("c", 1800),
	}
	if err := s.SavePuzzles(ctx, batch); err != nil {
		t.Fatalf("SavePuzzles() failed: %v", err)
	}
	// An incorrect attempt does not mark a puzzle solved.
	for _, rec := range []session.AttemptRecord{
		{SessionID: "s", PuzzleID: "solved", Move: "e2e4", Result: session.ResultSolved, SolutionIndex: 2},
		{SessionID: "s", PuzzleID: "a", Move: "d2d4", Result: session.ResultIncorrect},
	} {
		if err := s.RecordAttempt(ctx, rec); err != nil {
			t.Fatalf("RecordAttempt() failed: %v", err)
		}
	}

	tests := []struct {
		name      string
		minRating int
		limit     int
		want      []string
	}{
		{"all", 0, 0, []string{"low", "a", "b", "c"}},
		{"rating gate", 1400, 0, []string{"a", "b", "c"}},
		{"limit", 1400, 2, []string{"a", "b"}},
		{"none", 3000, 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.UnsolvedPuzzles(ctx, tt.minRating, tt.limit)
			if err != nil {
				t.Fatalf("UnsolvedPuzzles() failed: %v", err)
			}
			ids := puzzleIDs(got)
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ids = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func TestListAttempts_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, rec := range []session.AttemptRecord{
		{SessionID: "s1", PuzzleID: "p1", Result: session.ResultSkipped},
		{SessionID: "s2", PuzzleID: "p1", Move: "e2e4", Result: session.ResultSolved, SolutionIndex: 1},
		{SessionID: "s2", PuzzleID: "p2", Move: "g1f3", Result: session.ResultCorrect, SolutionIndex: 1},
	} {
		if err := s.RecordAttempt(ctx, rec); err != nil {
			t.Fatalf("RecordAttempt(%d) failed: %v", i, err)
		}
	}

	tests := []struct {
		name   string
		filter AttemptFilter
		want   int
	}{
		{"all", AttemptFilter{}, 3},
		{"by session", AttemptFilter{SessionID: "s2"}, 2},
		{"by puzzle", AttemptFilter{PuzzleID: "p1"}, 2},
		{"both", AttemptFilter{SessionID: "s2", PuzzleID: "p1"}, 1},
		{"limit", AttemptFilter{Limit: 1}, 1},
		{"no match", AttemptFilter{SessionID: "nope"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListAttempts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListAttempts() failed: %v", err)
			}
			if got == nil {
				t.Fatal("ListAttempts() returned nil, want empty slice")
			}
			if len(got) != tt.want {
				t.Errorf("got %d attempts, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReadStats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SavePuzzles(ctx, []puzzle.Puzzle{createTestPuzzle("p1", 1500), createTestPuzzle("p2", 1500)}); err != nil {
		t.Fatalf("SavePuzzles() failed: %v", err)
	}
	for _, result := range []string{session.ResultIncorrect, session.ResultCorrect, session.ResultSolved, session.ResultSkipped} {
		if err := s.RecordAttempt(ctx, session.AttemptRecord{SessionID: "s", PuzzleID: "p1", Result: result}); err != nil {
			t.Fatalf("RecordAttempt() failed: %v", err)
		}
	}

	st, err := s.ReadStats(ctx)
	if err != nil {
		t.Fatalf("ReadStats() failed: %v", err)
	}
	want := Stats{Puzzles: 2, Attempts: 4, Solved: 1, Incorrect: 1, Skipped: 1, Games: 0}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
}

func TestListGames_Empty(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ListGames(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListGames() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListGames() = %v, want empty slice", got)
	}
}

func TestCachingSourceFallsBackToStore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	primary := puzzle.NewStaticSource([]puzzle.Puzzle{createTestPuzzle("p1", 1500)})
	src := &puzzle.CachingSource{Primary: primary, Cache: s}

	first, err := src.Fetch(ctx, puzzle.Request{MaxCount: 5})
	if err != nil || len(first) != 1 {
		t.Fatalf("first Fetch() = %v, %v", first, err)
	}

	primary.FailNext(context.DeadlineExceeded)
	second, err := src.Fetch(ctx, puzzle.Request{MaxCount: 5})
	if err != nil {
		t.Fatalf("second Fetch() failed: %v", err)
	}
	if len(second) != 1 || second[0].ID != "p1" {
		t.Errorf("cached fetch = %v, want [p1]", puzzleIDs(second))
	}
}
