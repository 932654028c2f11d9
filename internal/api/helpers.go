// Package api implements the portal's HTTP surface: static pages from the
// storage root, the device endpoints and the settings form.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/micro-nova/apportal/internal/events"
	"github.com/micro-nova/apportal/internal/models"
	"github.com/micro-nova/apportal/internal/storage"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
	files  storage.FS
	hidden map[string]bool
}

// Controller is the interface the handlers use to read and change the device.
type Controller interface {
	Settings() models.Settings
	UpdateSettings(ctx context.Context, fields map[string]string) (models.Configuration, *models.AppError)
	GetInfo(ctx context.Context) (models.Info, *models.AppError)
	Restart() bool
	Reset() bool
}

// EventBus is the interface for subscribing to configuration changes.
type EventBus interface {
	Subscribe() (string, <-chan events.Change)
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*models.AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// writeText writes a plain-text response with the given status code.
func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// redirectRoot sends the client back to the portal's start page.
func redirectRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}

// requestLogger logs one line per request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("api: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"req_id", middleware.GetReqID(r.Context()),
			"dur", time.Since(start),
		)
	})
}
