package puzzle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultFeedURL is the Lichess puzzle endpoint the trainer targets.
const DefaultFeedURL = "https://lichess.org/api/puzzle/daily"

// HTTPSource fetches NDJSON puzzle batches over HTTP.
//
// The request carries max and rating query parameters and asks for
// application/x-ndjson. Non-2xx responses become *FetchError.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns a source for feedURL with the given timeout.
func NewHTTPSource(feedURL string, timeout time.Duration) *HTTPSource {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &HTTPSource{
		URL:    feedURL,
		Client: &http.Client{Timeout: timeout},
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, req Request) ([]Puzzle, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("invalid feed url: %w", err)}
	}
	q := u.Query()
	if req.MaxCount > 0 {
		q.Set("max", strconv.Itoa(req.MaxCount))
	}
	if req.MinRating > 0 {
		q.Set("rating", strconv.Itoa(req.MinRating))
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	httpReq.Header.Set("Accept", "application/x-ndjson")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	slog.Debug("fetching puzzles", "url", u.String())
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("HTTP error: %s", snippet)}
	}

	puzzles, err := ReadFeed(resp.Body, req.MaxCount)
	if err != nil {
		return nil, err
	}
	slog.Debug("puzzles fetched", "count", len(puzzles))
	return puzzles, nil
}
