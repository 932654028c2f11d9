package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseSettings streams the client-facing settings. The current value is sent
// immediately, then one event per committed change.
func (h *Handlers) sseSettings(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := h.events.Subscribe()
	defer h.events.Unsubscribe(id)

	sendSSE(w, flusher, 0, h.ctrl.Settings())

	for {
		select {
		case change, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, change.Seq, change.Config.Settings())
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, seq uint64, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", seq, data)
	flusher.Flush()
}
