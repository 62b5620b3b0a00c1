package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shehryarbajwa/docdesk/internal/canvas"
	"github.com/shehryarbajwa/docdesk/internal/session"
)

// requestError is a client mistake detected while decoding a request
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, session.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrStaleReference),
		errors.Is(err, session.ErrSignatureLocked):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoFileSelected),
		errors.Is(err, session.ErrNoFiles),
		errors.Is(err, canvas.ErrInvalidStroke):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrTooManyUploads):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
