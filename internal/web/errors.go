package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrWong99/tiktalk/internal/chatstore"
	"github.com/MrWong99/tiktalk/internal/correction"
	"github.com/MrWong99/tiktalk/internal/tutor"
	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/language"
)

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("web: bad request")

// errorJSON is the body of every error response and WebSocket error frame.
type errorJSON struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, language.ErrUnsupported),
		errors.Is(err, correction.ErrEmptyText),
		errors.Is(err, tutor.ErrNoSpeech),
		errors.Is(err, audio.ErrInvalidWAV),
		errors.Is(err, chatstore.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, chatstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatstore.ErrChatExists):
		return http.StatusConflict
	case errors.Is(err, tutor.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorJSON{Error: err.Error(), Status: status})
}
