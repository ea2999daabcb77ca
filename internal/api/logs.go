package api

import (
	"log/slog"
	"net/http"

	"github.com/user/cloudmux/internal/logtail"
)

type startTailResponse struct {
	SessionID string              `json:"session_id"`
	Info      logtail.SessionInfo `json:"info"`
}

func (h *handler) startTail(w http.ResponseWriter, r *http.Request) {
	var req logtail.StartRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.LogGroupName == "" {
		jsonError(w, http.StatusBadRequest, "log_group_name is required")
		return
	}

	info, err := h.tails.Start(req)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, startTailResponse{SessionID: info.ID, Info: info})
}

func (h *handler) listTails(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.tails.List())
}

func (h *handler) getTail(w http.ResponseWriter, r *http.Request) {
	info, err := h.tails.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, info)
}

func (h *handler) stopTail(w http.ResponseWriter, r *http.Request) {
	info, err := h.tails.Stop(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if h.history != nil {
		if err := h.history.TailStopped(r.Context(), info); err != nil {
			slog.Warn("record log tail stop failed", "session", info.ID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
