package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/user/cloudmux/internal/logtail"
	"github.com/user/cloudmux/internal/presets"
	"github.com/user/cloudmux/internal/pty"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if data == nil || status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	var ptyErr *pty.Error
	if errors.As(err, &ptyErr) {
		jsonResponse(w, ptyStatus(ptyErr.Code), errorBody{Error: err.Error(), Code: string(ptyErr.Code)})
		return
	}
	switch {
	case errors.Is(err, logtail.ErrSessionNotFound), errors.Is(err, presets.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	default:
		jsonError(w, http.StatusInternalServerError, err.Error())
	}
}

func ptyStatus(code pty.ErrorCode) int {
	switch code {
	case pty.CodeSessionNotFound:
		return http.StatusNotFound
	case pty.CodeDecodeError, pty.CodeResizeFailed, pty.CodeInvalidSessionType:
		return http.StatusBadRequest
	case pty.CodeWriteFailed, pty.CodeSessionAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
