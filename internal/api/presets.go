package api

import (
	"net/http"

	"github.com/user/cloudmux/internal/presets"
)

func (h *handler) listPresets(w http.ResponseWriter, r *http.Request) {
	if h.presets == nil {
		jsonError(w, http.StatusServiceUnavailable, "presets unavailable")
		return
	}
	jsonResponse(w, http.StatusOK, h.presets.List())
}

func (h *handler) getPreset(w http.ResponseWriter, r *http.Request) {
	if h.presets == nil {
		jsonError(w, http.StatusServiceUnavailable, "presets unavailable")
		return
	}
	p := h.presets.Get(r.PathValue("id"))
	if p == nil {
		jsonError(w, http.StatusNotFound, "preset not found")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

func (h *handler) savePreset(w http.ResponseWriter, r *http.Request) {
	if h.presets == nil {
		jsonError(w, http.StatusServiceUnavailable, "presets unavailable")
		return
	}
	var p presets.Preset
	if err := decodeJSON(r, &p); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id := r.PathValue("id")
	if p.ID == "" {
		p.ID = id
	}
	if p.ID != id {
		jsonError(w, http.StatusBadRequest, "preset id does not match path")
		return
	}
	if err := h.presets.Save(&p); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, h.presets.Get(id))
}

func (h *handler) deletePreset(w http.ResponseWriter, r *http.Request) {
	if h.presets == nil {
		jsonError(w, http.StatusServiceUnavailable, "presets unavailable")
		return
	}
	if err := h.presets.Delete(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) launchPreset(w http.ResponseWriter, r *http.Request) {
	if h.presets == nil {
		jsonError(w, http.StatusServiceUnavailable, "presets unavailable")
		return
	}
	p := h.presets.Get(r.PathValue("id"))
	if p == nil {
		jsonError(w, http.StatusNotFound, "preset not found")
		return
	}
	h.openTerminal(w, p.Request())
}
