package puzzle

import (
	"context"
	"log/slog"
)

// Cache persists fetched puzzles and serves unsolved ones back.
type Cache interface {
	SavePuzzles(ctx context.Context, puzzles []Puzzle) error
	UnsolvedPuzzles(ctx context.Context, minRating, limit int) ([]Puzzle, error)
}

// CachingSource writes every batch from Primary into Cache and serves the
// cache when Primary fails. The primary error is returned only when the
// cache has nothing to offer either.
type CachingSource struct {
	Primary Source
	Cache   Cache
}

// Fetch implements Source.
func (s *CachingSource) Fetch(ctx context.Context, req Request) ([]Puzzle, error) {
	puzzles, err := s.Primary.Fetch(ctx, req)
	if err == nil {
		if len(puzzles) > 0 {
			if cacheErr := s.Cache.SavePuzzles(ctx, puzzles); cacheErr != nil {
				slog.Warn("failed to cache puzzles", "error", cacheErr)
			}
		}
		return puzzles, nil
	}

	cached, cacheErr := s.Cache.UnsolvedPuzzles(ctx, req.MinRating, req.MaxCount)
	if cacheErr != nil || len(cached) == 0 {
		if cacheErr != nil {
			slog.Warn("puzzle cache unavailable", "error", cacheErr)
		}
		return nil, err
	}
	slog.Info("puzzle source failed, serving cache", "error", err, "count", len(cached))
	return cached, nil
}
