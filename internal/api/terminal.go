package api

import (
	"log/slog"
	"math"
	"net/http"

	"github.com/user/cloudmux/internal/pty"
)

type writeTerminalRequest struct {
	Data string `json:"data"`
}

type resizeTerminalRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

func (h *handler) createTerminal(w http.ResponseWriter, r *http.Request) {
	var req pty.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.openTerminal(w, req)
}

// openTerminal creates the session. History is recorded by the manager's
// OnCreate hook before any output is streamed.
func (h *handler) openTerminal(w http.ResponseWriter, req pty.CreateRequest) {
	result, err := h.terminals.Create(req)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, result)
}

func (h *handler) listTerminals(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.terminals.List())
}

func (h *handler) getTerminal(w http.ResponseWriter, r *http.Request) {
	info, err := h.terminals.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, info)
}

func (h *handler) writeTerminal(w http.ResponseWriter, r *http.Request) {
	var req writeTerminalRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.terminals.Write(r.PathValue("id"), req.Data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) resizeTerminal(w http.ResponseWriter, r *http.Request) {
	var req resizeTerminalRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Cols <= 0 || req.Rows <= 0 || req.Cols > math.MaxUint16 || req.Rows > math.MaxUint16 {
		jsonError(w, http.StatusBadRequest, "cols and rows must be between 1 and 65535")
		return
	}

	id := r.PathValue("id")
	if err := h.terminals.Resize(id, uint16(req.Cols), uint16(req.Rows)); err != nil {
		writeError(w, err)
		return
	}
	if h.history != nil {
		if err := h.history.TerminalResized(r.Context(), id, uint16(req.Cols), uint16(req.Rows)); err != nil {
			slog.Warn("record terminal resize failed", "session", id, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) closeTerminal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, ok := h.terminals.Close(id)
	if !ok {
		jsonError(w, http.StatusNotFound, "session not found: "+id)
		return
	}
	if h.history != nil {
		if err := h.history.TerminalEnded(r.Context(), id, info.Status, ""); err != nil {
			slog.Warn("record terminal close failed", "session", id, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
