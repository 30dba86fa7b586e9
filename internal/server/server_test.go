package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heizenburger/chess-mentor/internal/freeplay"
	"github.com/Heizenburger/chess-mentor/internal/ident"
	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/selector"
	"github.com/Heizenburger/chess-mentor/internal/session"
	"github.com/Heizenburger/chess-mentor/internal/store"
	"github.com/Heizenburger/chess-mentor/internal/testutil"
)

type firstRand struct{}

func (firstRand) Intn(int) int { return 0 }

type fixture struct {
	srv   *Server
	http  *httptest.Server
	sched *testutil.ManualScheduler
	store *store.Store
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()

	q := puzzle.NewQueue()
	q.EnqueueBatch([]puzzle.Puzzle{
		{ID: "p1", InitialPosition: rules.StartFEN, Solution: []string{"e2e4", "e7e5", "g1f3"}, Rating: 1500},
		{ID: "p2", InitialPosition: rules.StartFEN, Solution: []string{"d2d4"}, Rating: 1600},
	})

	f := &fixture{sched: testutil.NewManualScheduler()}
	runnerOpts := []session.RunnerOption{session.WithScheduler(f.sched)}
	gameOpts := []freeplay.Option{
		freeplay.WithSelector(selector.New(firstRand{})),
		freeplay.WithIDs(ident.NewFixed("g1", "g2")),
	}
	var serverOpts []Option
	if withHistory {
		st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		f.store = st
		runnerOpts = append(runnerOpts, session.WithRecorder(st))
		gameOpts = append(gameOpts, freeplay.WithRecorder(st))
		serverOpts = append(serverOpts, WithHistory(st))
	}

	m := session.NewMachine(rules.NewStandard(), q, session.DefaultConfig())
	runner := session.NewRunner("s1", m, puzzle.NewStaticSource(), runnerOpts...)
	game := freeplay.NewGame(rules.NewStandard(), gameOpts...)
	f.srv = New(runner, game, serverOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { _ = runner.Run(ctx); done <- struct{}{} }()
	go func() { _ = f.srv.Run(ctx); done <- struct{}{} }()

	f.http = httptest.NewServer(f.srv.Handler())
	t.Cleanup(func() {
		f.http.Close()
		cancel()
		<-done
		<-done
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.http.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestPing(t *testing.T) {
	f := newFixture(t, false)
	resp, body := f.do(t, http.MethodGet, "/api/ping", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestPuzzleFlow(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.do(t, http.MethodGet, "/api/puzzle/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", decode[session.Snapshot](t, body).Status)

	resp, body = f.do(t, http.MethodPost, "/api/puzzle/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[session.Snapshot](t, body)
	assert.Equal(t, "awaiting_player_move", snap.Status)
	assert.Equal(t, "p1", snap.PuzzleID)
	assert.Equal(t, 3, snap.SolutionLength)

	resp, body = f.do(t, http.MethodPost, "/api/puzzle/move", map[string]string{"from": "e2", "to": "e4"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decode[session.Snapshot](t, body)
	assert.Equal(t, "correct", snap.Status)
	assert.Equal(t, session.MsgCorrect, snap.Message)

	// Moves are rejected while the reply is pending.
	resp, _ = f.do(t, http.MethodPost, "/api/puzzle/move", map[string]string{"move": "g1f3"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	f.sched.Advance(session.DefaultConfig().ReplyDelay)
	require.Eventually(t, func() bool {
		_, body := f.do(t, http.MethodGet, "/api/puzzle/", nil)
		return decode[session.Snapshot](t, body).SolutionIndex == 2
	}, 5*time.Second, 5*time.Millisecond)

	resp, body = f.do(t, http.MethodPost, "/api/puzzle/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "p2", decode[session.Snapshot](t, body).PuzzleID)
}

func TestPuzzleMoveErrors(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodPost, "/api/puzzle/start", nil)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"illegal", map[string]string{"move": "e2e5"}, http.StatusUnprocessableEntity},
		{"malformed coordinate", map[string]string{"move": "z9"}, http.StatusBadRequest},
		{"bad json", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/api/puzzle/move", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
			assert.Contains(t, string(body), `"error"`)
		})
	}

	_, body := f.do(t, http.MethodGet, "/api/puzzle/", nil)
	snap := decode[session.Snapshot](t, body)
	assert.Equal(t, session.MsgYourTurn, snap.Message, "rejected moves leave the message unchanged")
}

func TestPuzzleLegalMoves(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodPost, "/api/puzzle/start", nil)

	resp, body := f.do(t, http.MethodGet, "/api/puzzle/moves?from=e2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moves := decode[[]moveDTO](t, body)
	var sans []string
	for _, m := range moves {
		sans = append(sans, m.SAN)
	}
	assert.ElementsMatch(t, []string{"e3", "e4"}, sans)
}

func TestPlayFlow(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.do(t, http.MethodPost, "/api/play/config", map[string]string{"side": "black", "difficulty": "hard"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	snap := decode[freeplay.Snapshot](t, body)
	assert.Equal(t, "black", snap.PlayerSide)
	assert.Equal(t, "Hard", snap.Difficulty)

	resp, body = f.do(t, http.MethodPost, "/api/play/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decode[freeplay.Snapshot](t, body)
	assert.Equal(t, "in_progress", snap.Status)
	require.Len(t, snap.Moves, 1, "computer opens as white")

	resp, body = f.do(t, http.MethodPost, "/api/play/move", map[string]string{"move": "e7e5"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Len(t, decode[freeplay.Snapshot](t, body).Moves, 3)

	resp, _ = f.do(t, http.MethodPost, "/api/play/config", map[string]string{"side": "white", "difficulty": "1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/play/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "setup", decode[freeplay.Snapshot](t, body).Status)

	resp, _ = f.do(t, http.MethodPost, "/api/play/move", map[string]string{"move": "e2e4"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPlayConfigValidation(t *testing.T) {
	f := newFixture(t, false)

	resp, _ := f.do(t, http.MethodPost, "/api/play/config", map[string]string{"side": "green", "difficulty": "1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/play/config", map[string]string{"side": "white", "difficulty": "9"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryRequiresStore(t *testing.T) {
	f := newFixture(t, false)
	resp, _ := f.do(t, http.MethodGet, "/api/history/stats", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t, true)

	f.do(t, http.MethodPost, "/api/puzzle/start", nil)
	f.do(t, http.MethodPost, "/api/puzzle/move", map[string]string{"move": "d2d4"})

	resp, body := f.do(t, http.MethodGet, "/api/history/attempts?session=s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attempts := decode[[]store.Attempt](t, body)
	require.Len(t, attempts, 1)
	assert.Equal(t, "p1", attempts[0].PuzzleID)
	assert.Equal(t, session.ResultIncorrect, attempts[0].Result)

	resp, body = f.do(t, http.MethodGet, "/api/history/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[store.Stats](t, body).Incorrect)

	resp, body = f.do(t, http.MethodGet, "/api/history/games", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestWebSocketReceivesSnapshots(t *testing.T) {
	f := newFixture(t, false)

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readUntil := func(typ string, match func(json.RawMessage) bool) {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		for {
			_, data, err := conn.ReadMessage()
			require.NoError(t, err)
			var msg wsMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Type == typ && match(msg.Payload) {
				return
			}
		}
	}

	// Initial status
	readUntil("puzzle", func(json.RawMessage) bool { return true })
	readUntil("game", func(json.RawMessage) bool { return true })

	require.Eventually(t, func() bool { return f.srv.hub.ClientCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	f.do(t, http.MethodPost, "/api/puzzle/start", nil)
	readUntil("puzzle", func(p json.RawMessage) bool {
		var snap session.Snapshot
		return json.Unmarshal(p, &snap) == nil && snap.PuzzleID == "p1"
	})

	// Moves can also be sent over the socket.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "move", "payload": map[string]string{"move": "e2e4"}}))
	readUntil("puzzle", func(p json.RawMessage) bool {
		var snap session.Snapshot
		return json.Unmarshal(p, &snap) == nil && snap.Status == "correct"
	})

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "move", "payload": map[string]string{"move": "e7e5"}}))
	readUntil("error", func(json.RawMessage) bool { return true })
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errInvalidPayload, http.StatusBadRequest},
		{rules.ErrIllegalMove, http.StatusUnprocessableEntity},
		{session.ErrNotAwaitingMove, http.StatusConflict},
		{freeplay.ErrNotPlayerTurn, http.StatusConflict},
		{selector.ErrUnknownDifficulty, http.StatusBadRequest},
		{&rules.ParseError{Source: "x", Err: errInvalidPayload}, http.StatusBadRequest},
		{session.ErrStopped, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
