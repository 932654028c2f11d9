package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/micro-nova/apportal/internal/auth"
	"github.com/micro-nova/apportal/internal/storage"
)

// NewRouter creates the portal router. files is the storage root served as
// static content; names in hidden are never served from it. authSvc may be
// nil, in which case the mutating routes are open.
func NewRouter(ctrl Controller, files storage.FS, hidden []string, authSvc *auth.Service, bus EventBus) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.GetHead)

	h := &Handlers{ctrl: ctrl, events: bus, files: files, hidden: make(map[string]bool)}
	for _, name := range hidden {
		h.hidden[cleanName(name)] = true
	}

	r.Get("/esp8266/information", h.getInfo)
	r.Get("/settings", h.getSettings)
	if bus != nil {
		r.Get("/settings/events", h.sseSettings)
	}

	r.Group(func(r chi.Router) {
		if authSvc != nil {
			r.Use(authSvc.Middleware)
		}
		r.Post("/esp8266/restart", h.restart)
		r.Post("/esp8266/reset", h.reset)
		r.Post("/settings/update", h.updateSettings)
	})

	r.Get("/*", h.static)

	// Unknown pages and methods go back to the portal page.
	r.NotFound(redirectRoot)
	r.MethodNotAllowed(redirectRoot)

	return r
}
