package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Heizenburger/chess-mentor/internal/freeplay"
	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/session"
)

// UnsolvedPuzzles returns cached puzzles rated at least minRating that no
// session has solved, oldest first. limit <= 0 means no limit.
//
// Returns empty slice (not nil) if nothing matches.
func (s *Store) UnsolvedPuzzles(ctx context.Context, minRating, limit int) ([]puzzle.Puzzle, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unbounded
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.initial_position, p.solution, p.rating, p.themes
		FROM puzzles p
		WHERE p.rating >= ?
		  AND NOT EXISTS (
			SELECT 1 FROM attempts a
			WHERE a.puzzle_id = p.id AND a.result = 'solved'
		  )
		ORDER BY p.seq ASC
		LIMIT ?
	`, minRating, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsolved puzzles: %w", err)
	}
	defer rows.Close()

	puzzles := []puzzle.Puzzle{}
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, err
		}
		puzzles = append(puzzles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate puzzles: %w", err)
	}
	return puzzles, nil
}

// AttemptFilter narrows ListAttempts. Zero values match everything.
type AttemptFilter struct {
	SessionID string
	PuzzleID  string
	Limit     int
}

// Attempt is a stored attempt record with its log position.
type Attempt struct {
	Seq int64 `json:"seq"`
	session.AttemptRecord
}

// ListAttempts returns attempt log entries in the order they were written.
func (s *Store) ListAttempts(ctx context.Context, f AttemptFilter) ([]Attempt, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, session_id, puzzle_id, move, result, solution_index
		FROM attempts
		WHERE (? = '' OR session_id = ?)
		  AND (? = '' OR puzzle_id = ?)
		ORDER BY seq ASC
		LIMIT ?
	`, f.SessionID, f.SessionID, f.PuzzleID, f.PuzzleID, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.Seq, &a.SessionID, &a.PuzzleID, &a.Move, &a.Result, &a.SolutionIndex); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// Stats summarises the attempt log.
type Stats struct {
	Puzzles   int `json:"puzzles"`
	Attempts  int `json:"attempts"`
	Solved    int `json:"solved"`
	Incorrect int `json:"incorrect"`
	Skipped   int `json:"skipped"`
	Games     int `json:"games"`
}

// ReadStats counts cached puzzles, attempts by result, and recorded games.
func (s *Store) ReadStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM puzzles),
			(SELECT COUNT(*) FROM attempts),
			(SELECT COUNT(*) FROM attempts WHERE result = 'solved'),
			(SELECT COUNT(*) FROM attempts WHERE result = 'incorrect'),
			(SELECT COUNT(*) FROM attempts WHERE result = 'skipped'),
			(SELECT COUNT(*) FROM games)
	`).Scan(&st.Puzzles, &st.Attempts, &st.Solved, &st.Incorrect, &st.Skipped, &st.Games)
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}
	return st, nil
}

// ListGames returns recorded games, oldest first. limit <= 0 means no limit.
func (s *Store) ListGames(ctx context.Context, limit int) ([]freeplay.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_side, difficulty, result, outcome, moves, final_fen
		FROM games
		ORDER BY seq ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	games := []freeplay.Record{}
	for rows.Next() {
		var (
			g     freeplay.Record
			moves string
		)
		if err := rows.Scan(&g.ID, &g.PlayerSide, &g.Difficulty, &g.Result, &g.Outcome, &moves, &g.FinalFEN); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		if g.Moves, err = unmarshalStrings(moves); err != nil {
			return nil, fmt.Errorf("game %s: %w", g.ID, err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

func scanPuzzle(rows *sql.Rows) (puzzle.Puzzle, error) {
	var (
		p                puzzle.Puzzle
		solution, themes string
	)
	if err := rows.Scan(&p.ID, &p.InitialPosition, &solution, &p.Rating, &themes); err != nil {
		return puzzle.Puzzle{}, fmt.Errorf("scan puzzle: %w", err)
	}
	var err error
	if p.Solution, err = unmarshalStrings(solution); err != nil {
		return puzzle.Puzzle{}, fmt.Errorf("puzzle %s: %w", p.ID, err)
	}
	if p.Themes, err = unmarshalStrings(themes); err != nil {
		return puzzle.Puzzle{}, fmt.Errorf("puzzle %s: %w", p.ID, err)
	}
	return p, nil
}
