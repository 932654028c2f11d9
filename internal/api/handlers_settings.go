package api

import (
	"errors"
	"net/http"

	"github.com/micro-nova/apportal/internal/models"
)

const maxFormBytes = 16 << 10

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Settings())
}

// updateSettings accepts the settings form as urlencoded or multipart body
// parameters. Query parameters are ignored.
func (h *Handlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeText(w, http.StatusBadRequest, "Invalid form body")
		return
	}

	fields := make(map[string]string, len(models.SettingsFields))
	for _, name := range models.SettingsFields {
		if vs, ok := r.PostForm[name]; ok && len(vs) > 0 {
			fields[name] = vs[0]
		}
	}

	if _, appErr := h.ctrl.UpdateSettings(r.Context(), fields); appErr != nil {
		writeText(w, appErr.Status, appErr.Message)
		return
	}
	writeText(w, http.StatusOK, "Configuration updated")
}
