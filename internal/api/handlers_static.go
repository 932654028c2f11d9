package api

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/micro-nova/apportal/internal/storage"
)

const indexFile = "index.html"

func cleanName(name string) string {
	return path.Clean("/" + name)
}

// static serves files from the storage root. Directories serve their
// index.html and a precompressed name.gz is used when the client accepts
// gzip. Anything that cannot be served redirects to "/".
func (h *Handlers) static(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path
	if strings.HasSuffix(name, "/") {
		name += indexFile
	}
	name = cleanName(name)

	if h.hidden[name] || h.hidden[strings.TrimSuffix(name, ".gz")] {
		redirectRoot(w, r)
		return
	}

	data, encoding, err := h.readStatic(name, acceptsGzip(r))
	if errors.Is(err, storage.ErrIsDir) {
		name = path.Join(name, indexFile)
		data, encoding, err = h.readStatic(name, acceptsGzip(r))
	}
	if err != nil {
		if !storage.IsNotFound(err) {
			slog.Warn("api: failed to read static file", "path", name, "err", err)
		}
		if r.URL.Path == "/" {
			// Redirecting "/" to itself would loop.
			writeText(w, http.StatusNotFound, "Not found")
			return
		}
		redirectRoot(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType(name, data, encoding))
	if encoding != "" {
		w.Header().Set("Content-Encoding", encoding)
		w.Header().Add("Vary", "Accept-Encoding")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}

func (h *Handlers) readStatic(name string, gzipOK bool) ([]byte, string, error) {
	if gzipOK {
		if data, err := storage.ReadFile(h.files, name+".gz"); err == nil {
			return data, "gzip", nil
		}
	}
	data, err := storage.ReadFile(h.files, name)
	return data, "", err
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(enc, "gzip") {
			return true
		}
	}
	return false
}

// contentType picks the type from the extension and falls back to sniffing
// the content. Compressed bodies are not sniffed.
func contentType(name string, data []byte, encoding string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	if encoding != "" {
		return "application/octet-stream"
	}
	return mimetype.Detect(data).String()
}
