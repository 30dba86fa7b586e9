package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Heizenburger/chess-mentor/internal/freeplay"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/selector"
	"github.com/Heizenburger/chess-mentor/internal/session"
)

var (
	errInvalidPayload = errors.New("invalid payload")
	errNoHistory      = errors.New("history is not available without a store")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var parseErr *rules.ParseError
	switch {
	case errors.Is(err, errInvalidPayload),
		errors.As(err, &parseErr),
		errors.Is(err, rules.ErrInvalidCoordinate),
		errors.Is(err, selector.ErrUnknownDifficulty):
		return http.StatusBadRequest
	case errors.Is(err, rules.ErrIllegalMove):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotAwaitingMove),
		errors.Is(err, freeplay.ErrNotInProgress),
		errors.Is(err, freeplay.ErrNotPlayerTurn),
		errors.Is(err, freeplay.ErrNotInSetup):
		return http.StatusConflict
	case errors.Is(err, errNoHistory):
		return http.StatusNotFound
	case errors.Is(err, session.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
