package store

import (
	"context"
	"fmt"

	"github.com/Heizenburger/chess-mentor/internal/freeplay"
	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/session"
)

// SavePuzzles inserts fetched puzzles into the cache.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a puzzle seen twice
// keeps its original seq.
func (s *Store) SavePuzzles(ctx context.Context, puzzles []puzzle.Puzzle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save puzzles: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO puzzles (id, seq, initial_position, solution, rating, themes)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM puzzles), ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("save puzzles: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range puzzles {
		if p.ID == "" {
			continue
		}
		solution, err := marshalStrings(p.Solution)
		if err != nil {
			return fmt.Errorf("save puzzle %s: %w", p.ID, err)
		}
		themes, err := marshalStrings(p.Themes)
		if err != nil {
			return fmt.Errorf("save puzzle %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.InitialPosition, solution, p.Rating, themes); err != nil {
			return fmt.Errorf("save puzzle %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save puzzles: commit: %w", err)
	}
	return nil
}

// RecordAttempt appends one entry to the attempt log.
func (s *Store) RecordAttempt(ctx context.Context, rec session.AttemptRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (session_id, puzzle_id, move, result, solution_index)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.SessionID,
		rec.PuzzleID,
		rec.Move,
		rec.Result,
		rec.SolutionIndex,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// RecordGame stores an ended free-play game.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) RecordGame(ctx context.Context, rec freeplay.Record) error {
	moves, err := marshalStrings(rec.Moves)
	if err != nil {
		return fmt.Errorf("record game: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO games (id, seq, player_side, difficulty, result, outcome, moves, final_fen)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM games), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.PlayerSide,
		rec.Difficulty,
		rec.Result,
		rec.Outcome,
		moves,
		rec.FinalFEN,
	)
	if err != nil {
		return fmt.Errorf("record game: %w", err)
	}
	return nil
}
