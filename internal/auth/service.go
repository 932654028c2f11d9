// Package auth guards the portal's mutating endpoints with optional access
// keys. Without an access file every request is allowed, as on a freshly
// flashed device.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileName is the access file inside the auth directory.
const FileName = "access.json"

// Key is one accepted access key.
type Key struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Created string `json:"created,omitempty"`
}

type accessFile struct {
	Keys []Key `json:"keys"`
}

// Service holds the accepted keys and reloads them when the access file
// changes on disk.
type Service struct {
	mu      sync.RWMutex
	dir     string
	keys    []Key
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewService loads dir/access.json and starts watching it. A missing file or
// directory leaves the service in open mode.
func NewService(dir string) (*Service, error) {
	s := &Service{dir: dir, done: make(chan struct{})}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("auth: could not create fsnotify watcher", "err", err)
		close(s.done)
		return s, nil
	}
	if err := watcher.Add(dir); err != nil {
		slog.Warn("auth: could not watch auth dir, keys will not reload", "dir", dir, "err", err)
		watcher.Close()
		close(s.done)
		return s, nil
	}
	s.watcher = watcher

	go s.watchLoop(s.path())
	return s, nil
}

func (s *Service) path() string {
	return filepath.Join(s.dir, FileName)
}

// Reload re-reads the access file. A missing file clears all keys.
func (s *Service) Reload() error {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.setKeys(nil)
			return nil
		}
		return err
	}

	var f accessFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	keys := f.Keys[:0]
	for _, k := range f.Keys {
		if k.Key == "" {
			slog.Warn("auth: ignoring empty access key", "name", k.Name)
			continue
		}
		keys = append(keys, k)
	}
	s.setKeys(keys)
	return nil
}

func (s *Service) setKeys(keys []Key) {
	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	slog.Debug("auth: keys loaded", "count", len(keys))
}

// IsOpenMode reports whether no access keys are configured.
func (s *Service) IsOpenMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys) == 0
}

// VerifyKey reports whether key matches a configured access key.
func (s *Service) VerifyKey(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k.Key)) == 1 {
			return true
		}
	}
	return false
}

// Close stops the file watcher.
func (s *Service) Close() {
	if s.watcher != nil {
		s.watcher.Close()
		<-s.done
	}
}

func (s *Service) watchLoop(path string) {
	defer close(s.done)
	const mask = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != path || !event.Has(mask) {
				continue
			}
			if err := s.Reload(); err != nil {
				slog.Warn("auth: failed to reload access keys, keeping previous set", "err", err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("auth: watcher error", "err", err)
		}
	}
}
