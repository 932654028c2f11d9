package auth

import (
	"log/slog"
	"net/http"

	"github.com/micro-nova/apportal/internal/models"
)

const (
	apiKeyHeader     = "X-Api-Key"
	apiKeyQueryParam = "api-key"
)

// Middleware rejects requests without a valid access key with 401. In open
// mode all requests pass through. The key is read from the X-Api-Key header,
// then from the api-key query parameter.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			key = r.URL.Query().Get(apiKeyQueryParam)
		}
		if s.VerifyKey(key) {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("auth: rejected request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(models.ErrUnauthorized.Status)
		_, _ = w.Write([]byte(models.ErrUnauthorized.Message))
	})
}
