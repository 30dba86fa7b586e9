package store

import (
	"path/filepath"
	"testing"

	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPuzzle creates a puzzle from the start position with minimal fields.
func createTestPuzzle(id string, rating int) puzzle.Puzzle {
	return puzzle.Puzzle{
		ID:              id,
		InitialPosition: rules.StartFEN,
		Solution:        []string{"e2e4", "e7e5"},
		Rating:          rating,
		Themes:          []string{"opening"},
	}
}
