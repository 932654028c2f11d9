package main

import (
	"embed"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/micro-nova/apportal/internal/storage"
)

//go:embed web
var webFiles embed.FS

// seedWeb copies the built-in portal pages onto the storage root. Files that
// already exist are left alone so uploaded pages win.
func seedWeb(dst storage.FS) error {
	return fs.WalkDir(webFiles, "web", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := "/" + strings.TrimPrefix(p, "web/")
		if dst.Exists(name) {
			return nil
		}
		data, err := webFiles.ReadFile(p)
		if err != nil {
			return err
		}
		f, err := dst.Open(name, storage.WriteTruncate)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		slog.Info("seeded web file", "path", name)
		return nil
	})
}
