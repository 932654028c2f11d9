package config

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/micro-nova/apportal/internal/models"
	"github.com/micro-nova/apportal/internal/storage"
)

const (
	// DefaultFilename is the settings file on the storage root.
	DefaultFilename = "/settings.json"
	// BackupSuffix is appended to the settings file name for the shadow copy
	// taken before every save.
	BackupSuffix = ".bak"
)

var errShortWrite = errors.New("short write")

// Manager owns the live configuration and its persisted copy.
// The settings file after Save returns always holds either the previous
// document or the new one, never a partial write.
type Manager struct {
	mu       sync.Mutex
	fs       storage.FS
	filename string
	current  models.Configuration
}

// NewManager creates a manager for filename on fsys. The live configuration
// starts at the defaults until LoadAtBoot runs.
func NewManager(fsys storage.FS, filename string) *Manager {
	if filename == "" {
		filename = DefaultFilename
	}
	return &Manager{
		fs:       fsys,
		filename: filename,
		current:  models.DefaultConfiguration(),
	}
}

// Filename returns the settings file name.
func (m *Manager) Filename() string { return m.filename }

// BackupFilename returns the name of the backup taken before each save.
func (m *Manager) BackupFilename() string { return m.filename + BackupSuffix }

// LoadAtBoot reads the settings file into the live configuration. Any
// failure is logged and the defaults are used instead; boot never stops here.
func (m *Manager) LoadAtBoot() models.Configuration {
	cfg := models.DefaultConfiguration()

	data, err := storage.ReadFile(m.fs, m.filename)
	switch {
	case storage.IsNotFound(err):
		slog.Warn("config: settings file not found, using default configuration", "path", m.filename)
	case err != nil:
		slog.Warn("config: failed to read file, using default configuration", "path", m.filename, "err", err)
	default:
		if err := Decode(data, &cfg); err != nil {
			slog.Warn("config: corrupt settings file, using default configuration", "path", m.filename, "err", err)
		}
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()

	slog.Info("config: loaded", "path", m.filename, "config", cfg.String())
	return cfg
}

// Current returns the live configuration.
func (m *Manager) Current() models.Configuration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Update validates fields against a draft of the live configuration. On
// success the draft replaces the live configuration and is saved. A
// *models.ValidationError leaves everything unchanged. A storage error is
// returned after the commit: the new configuration is live but was not
// persisted, and the previous settings file is still in place.
func (m *Manager) Update(fields map[string]string) (models.Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, verr := ApplyUpdate(m.current, fields)
	if verr != nil {
		return m.current, verr
	}
	m.current = next

	if err := m.save(next); err != nil {
		return next, err
	}
	return next, nil
}

// Save persists cfg to the settings file with backup and restore.
func (m *Manager) Save(cfg models.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(cfg)
}

func (m *Manager) save(cfg models.Configuration) error {
	backup := m.BackupFilename()

	// A missing settings file is fine (first save). Any other rename
	// failure aborts: the settings file still exists and must not be
	// truncated without a backup.
	hasBackup := true
	if err := m.fs.Rename(m.filename, backup); err != nil {
		if !storage.IsNotFound(err) {
			slog.Error("config: failed to create backup file", "path", backup, "err", err)
			return err
		}
		hasBackup = false
		slog.Debug("config: no settings file to back up", "path", m.filename)
	}

	f, err := m.fs.Open(m.filename, storage.WriteTruncate)
	if err != nil {
		slog.Error("config: failed to create file", "path", m.filename, "err", err)
		m.restore(hasBackup)
		return err
	}

	data, err := Encode(cfg)
	if err == nil {
		var n int
		n, err = f.Write(data)
		if err == nil && n != len(data) {
			err = errShortWrite
		}
	}
	if err != nil {
		f.Close()
		slog.Error("config: failed to write to file", "path", m.filename, "err", err)
		m.restore(hasBackup)
		return &storage.IOError{Op: "write", Name: m.filename, Err: err}
	}

	if err := f.Close(); err != nil {
		slog.Error("config: failed to close file", "path", m.filename, "err", err)
		m.restore(hasBackup)
		return &storage.IOError{Op: "close", Name: m.filename, Err: err}
	}

	slog.Info("config: saved", "path", m.filename, "config", cfg.String())
	return nil
}

// restore puts the backup back over the settings file. Without a backup
// the partial settings file is removed so the next boot falls back to
// defaults instead of reading a truncated document.
func (m *Manager) restore(hasBackup bool) {
	backup := m.BackupFilename()
	if hasBackup {
		if err := m.fs.Rename(backup, m.filename); err != nil {
			slog.Error("config: failed to restore backup file", "path", backup, "err", err)
		}
		return
	}
	if err := m.fs.Remove(m.filename); err != nil && !storage.IsNotFound(err) {
		slog.Error("config: failed to remove partial file", "path", m.filename, "err", err)
	}
}
