package puzzle

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Request parameterises a batch fetch.
type Request struct {
	MaxCount  int `json:"max_count"`
	MinRating int `json:"min_rating"`
}

// Source supplies puzzle batches.
type Source interface {
	Fetch(ctx context.Context, req Request) ([]Puzzle, error)
}

// FetchError reports a failure reaching or reading the puzzle source.
type FetchError struct {
	// Status is the HTTP status code, or 0 for transport and read errors.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch puzzles: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("fetch puzzles: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is or wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// maxLineBytes bounds a single NDJSON record.
const maxLineBytes = 1 << 20

// ReadFeed decodes newline-delimited puzzle records, stopping after max
// records when max > 0. Lines with bad JSON are skipped with a warning; if
// every non-blank line is bad the result is a *FetchError.
func ReadFeed(r io.Reader, max int) ([]Puzzle, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		out []Puzzle
		bad int
	)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		p, err := DecodeLine(line)
		if err != nil {
			bad++
			slog.Warn("skipping malformed feed line", "error", err)
			continue
		}
		out = append(out, p)
		if max > 0 && len(out) >= max {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return out, &FetchError{Err: err}
	}
	if len(out) == 0 && bad > 0 {
		return nil, &FetchError{Err: fmt.Errorf("all %d feed lines malformed", bad)}
	}
	return out, nil
}

// FileSource reads puzzles from an NDJSON file on every fetch, keeping
// those at or above the requested rating.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s FileSource) Fetch(ctx context.Context, req Request) ([]Puzzle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Err: err}
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer f.Close()

	all, err := ReadFeed(f, 0)
	if err != nil {
		return nil, err
	}
	var out []Puzzle
	for _, p := range all {
		if p.Rating < req.MinRating {
			continue
		}
		out = append(out, p)
		if req.MaxCount > 0 && len(out) >= req.MaxCount {
			break
		}
	}
	return out, nil
}

// StaticSource returns prepared batches in order, then empty batches.
type StaticSource struct {
	mu      sync.Mutex
	batches [][]Puzzle
	errs    []error
	calls   int
}

// NewStaticSource creates a source that returns each batch once.
func NewStaticSource(batches ...[]Puzzle) *StaticSource {
	return &StaticSource{batches: batches}
}

// FailNext makes the next fetch return err instead of a batch.
func (s *StaticSource) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Calls returns how many times Fetch was invoked.
func (s *StaticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Fetch implements Source.
func (s *StaticSource) Fetch(ctx context.Context, req Request) ([]Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, &FetchError{Err: err}
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}
