// Package server is the HTTP and WebSocket boundary of the trainer.
//
// The puzzle session and the free-play game are driven through a small
// JSON API; every published session snapshot and every free-play change is
// pushed to WebSocket clients.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Heizenburger/chess-mentor/internal/freeplay"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/selector"
	"github.com/Heizenburger/chess-mentor/internal/session"
	"github.com/Heizenburger/chess-mentor/internal/store"
)

// History reads the attempt and game logs.
type History interface {
	ListAttempts(ctx context.Context, f store.AttemptFilter) ([]store.Attempt, error)
	ListGames(ctx context.Context, limit int) ([]freeplay.Record, error)
	ReadStats(ctx context.Context) (store.Stats, error)
}

// Server serves one puzzle session and one free-play game.
type Server struct {
	runner  *session.Runner
	game    *freeplay.Game
	history History
	hub     *Hub

	snaps       <-chan session.Snapshot
	unsubscribe func()
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the history endpoints.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// New creates a Server.
func New(runner *session.Runner, game *freeplay.Game, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		game:   game,
		hub:    NewHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snaps, s.unsubscribe = runner.Subscribe(16)
	return s
}

// Run forwards session snapshots to WebSocket clients until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	defer s.unsubscribe()

	go s.hub.Run(ctx.Done())
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-s.snaps:
			s.hub.Publish("puzzle", snap)
		}
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Route("/api/puzzle", func(r chi.Router) {
		r.Get("/", s.puzzleState)
		r.Post("/start", s.puzzleEvent(session.EventStart))
		r.Post("/next", s.puzzleEvent(session.EventSkip))
		r.Post("/move", s.puzzleMove)
		r.Get("/moves", s.puzzleMoves)
	})

	r.Route("/api/play", func(r chi.Router) {
		r.Get("/", s.playState)
		r.Post("/config", s.playConfigure)
		r.Post("/start", s.playStart)
		r.Post("/move", s.playMove)
		r.Post("/reset", s.playReset)
		r.Get("/moves", s.playMoves)
	})

	r.Route("/api/history", func(r chi.Router) {
		r.Get("/attempts", s.historyAttempts)
		r.Get("/games", s.historyGames)
		r.Get("/stats", s.historyStats)
	})

	r.Get("/ws", s.serveWS)
	return r
}

func (s *Server) puzzleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Latest())
}

func (s *Server) puzzleEvent(t session.EventType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.runner.Submit(r.Context(), session.Event{Type: t}); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.latestAfterSubmit(r.Context()))
	}
}

// moveRequest accepts either {"move":"e2e4"} or {"from":"e2","to":"e4"}.
type moveRequest struct {
	Move      string `json:"move"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion"`
}

func (m moveRequest) attempt() (rules.Attempt, error) {
	if m.Move != "" {
		return rules.ParseCoordinate(m.Move)
	}
	return rules.ParseCoordinate(m.From + m.To + m.Promotion)
}

func decodeMove(r *http.Request) (rules.Attempt, error) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return rules.Attempt{}, errInvalidPayload
	}
	return req.attempt()
}

func (s *Server) puzzleMove(w http.ResponseWriter, r *http.Request) {
	a, err := decodeMove(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.runner.Submit(r.Context(), session.Move(a)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.latestAfterSubmit(r.Context()))
}

func (s *Server) puzzleMoves(w http.ResponseWriter, r *http.Request) {
	moves, err := s.runner.LegalMoves(r.Context(), r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movesResponse(moves))
}

// latestAfterSubmit waits for the loop to publish the submitted event's
// snapshot, then returns it.
func (s *Server) latestAfterSubmit(ctx context.Context) session.Snapshot {
	_ = s.runner.Query(ctx, func(*session.Machine) {})
	return s.runner.Latest()
}

type configRequest struct {
	Side       string `json:"side"`
	Difficulty string `json:"difficulty"`
}

func (s *Server) playState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.game.Snapshot())
}

func (s *Server) playConfigure(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidPayload)
		return
	}
	side, err := rules.ParseSide(req.Side)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	d, err := selector.ParseDifficulty(req.Difficulty)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.game.Configure(side, d); err != nil {
		writeError(w, err)
		return
	}
	s.publishGame(w, s.game.Snapshot())
}

func (s *Server) playStart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.game.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishGame(w, snap)
}

func (s *Server) playMove(w http.ResponseWriter, r *http.Request) {
	a, err := decodeMove(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.game.PlayerMove(r.Context(), a)
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishGame(w, snap)
}

func (s *Server) playReset(w http.ResponseWriter, r *http.Request) {
	s.publishGame(w, s.game.Reset())
}

func (s *Server) playMoves(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, movesResponse(s.game.LegalMoves(r.URL.Query().Get("from"))))
}

func (s *Server) publishGame(w http.ResponseWriter, snap freeplay.Snapshot) {
	s.hub.Publish("game", snap)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) historyAttempts(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, errNoHistory)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	attempts, err := s.history.ListAttempts(r.Context(), store.AttemptFilter{
		SessionID: q.Get("session"),
		PuzzleID:  q.Get("puzzle"),
		Limit:     limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (s *Server) historyGames(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, errNoHistory)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := s.history.ListGames(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) historyStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, errNoHistory)
		return
	}
	st, err := s.history.ReadStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := newClient()
	s.hub.Register(client)
	s.sendStatus(client)

	go func() {
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, client.send); err != nil {
			return
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.hub.Unregister(client)
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "request_status":
			s.sendStatus(client)
		case "move":
			var req moveRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				continue
			}
			a, err := req.attempt()
			if err == nil {
				err = s.runner.Submit(r.Context(), session.Move(a))
			}
			if err != nil {
				client.sendJSON(wsMessage{Type: "error", Payload: mustMarshal(map[string]string{"error": err.Error()})})
			}
		}
	}
}

func (s *Server) sendStatus(c *Client) {
	c.sendJSON(wsMessage{Type: "puzzle", Payload: mustMarshal(s.runner.Latest())})
	c.sendJSON(wsMessage{Type: "game", Payload: mustMarshal(s.game.Snapshot())})
}

type moveDTO struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	Capture   bool   `json:"capture"`
	Check     bool   `json:"check"`
}

func movesResponse(moves []rules.Move) []moveDTO {
	out := make([]moveDTO, 0, len(moves))
	for _, m := range moves {
		out = append(out, moveDTO{
			From:      m.From,
			To:        m.To,
			Promotion: m.Promotion,
			SAN:       m.SAN,
			Capture:   m.Capture,
			Check:     m.Check,
		})
	}
	return out
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
