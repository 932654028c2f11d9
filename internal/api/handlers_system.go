package api

import (
	"net/http"
)

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	info, appErr := h.ctrl.GetInfo(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) restart(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Restart() {
		writeText(w, http.StatusConflict, "Restart or reset already pending")
		return
	}
	writeText(w, http.StatusAccepted, "Restarting")
}

func (h *Handlers) reset(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Reset() {
		writeText(w, http.StatusConflict, "Restart or reset already pending")
		return
	}
	writeText(w, http.StatusAccepted, "Resetting")
}
