package api

import (
	"net/http"
	"strconv"

	"github.com/user/cloudmux/internal/db"
)

func listFilter(r *http.Request) (db.ListFilter, error) {
	filter := db.ListFilter{Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, strconv.ErrSyntax
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (h *handler) listTerminalHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		jsonError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	filter, err := listFilter(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	sessions, err := h.history.Terminals(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, sessions)
}

func (h *handler) listTailHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		jsonError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	filter, err := listFilter(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	tails, err := h.history.Tails(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, tails)
}

// deleteTerminalHistory removes an ended session's record. Live sessions
// keep theirs until they end.
func (h *handler) deleteTerminalHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		jsonError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	id := r.PathValue("id")
	if _, err := h.terminals.Get(id); err == nil {
		jsonError(w, http.StatusConflict, "session is still open: "+id)
		return
	}
	deleted, err := h.history.ForgetTerminal(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		jsonError(w, http.StatusNotFound, "no ended session with id "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
