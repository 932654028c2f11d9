package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// DirFS is a store rooted at a directory on the host file system.
type DirFS struct {
	root string
}

// Mount prepares dir as the storage root and checks that it is writable.
func Mount(dir string) (*DirFS, error) {
	if dir == "" {
		return nil, errors.New("storage: empty mount directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("storage: mount %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".mount-*")
	if err != nil {
		return nil, fmt.Errorf("storage: mount %s: not writable: %w", dir, err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())

	slog.Debug("storage: mounted", "root", dir)
	return &DirFS{root: dir}, nil
}

// Root returns the host directory backing the store.
func (d *DirFS) Root() string { return d.root }

// resolve maps a store name onto the host path, confined to the root.
func (d *DirFS) resolve(name string) string {
	clean := path.Clean("/" + name)
	return filepath.Join(d.root, filepath.FromSlash(clean))
}

func (d *DirFS) Open(name string, mode Mode) (File, error) {
	p := d.resolve(name)
	switch mode {
	case ReadOnly:
		fi, err := os.Stat(p)
		if err != nil {
			return nil, ioErr("open", name, err)
		}
		if fi.IsDir() {
			return nil, ioErr("open", name, ErrIsDir)
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, ioErr("open", name, err)
		}
		return f, nil
	case WriteTruncate:
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, ioErr("open", name, err)
		}
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, ioErr("open", name, err)
		}
		return &syncFile{File: f}, nil
	}
	return nil, ioErr("open", name, fmt.Errorf("unsupported mode %s", mode))
}

func (d *DirFS) Rename(from, to string) error {
	if err := os.Rename(d.resolve(from), d.resolve(to)); err != nil {
		return ioErr("rename", from, err)
	}
	return nil
}

func (d *DirFS) Remove(name string) error {
	if err := os.Remove(d.resolve(name)); err != nil {
		return ioErr("remove", name, err)
	}
	return nil
}

func (d *DirFS) Exists(name string) bool {
	_, err := os.Stat(d.resolve(name))
	return err == nil
}

// syncFile flushes written data to the device before closing.
type syncFile struct {
	*os.File
}

func (f *syncFile) Close() error {
	if err := f.File.Sync(); err != nil {
		f.File.Close()
		return err
	}
	return f.File.Close()
}

var _ FS = (*DirFS)(nil)
