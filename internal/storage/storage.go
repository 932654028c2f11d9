// Package storage is the flash-backed file store the portal keeps its
// settings and static web files on. It is a narrow capability surface:
// open, rename, and remove of named blobs, with no validation logic.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// Mode selects how a file is opened.
type Mode int

const (
	// ReadOnly opens an existing file for reading.
	ReadOnly Mode = iota
	// WriteTruncate opens a file for writing, creating or truncating it.
	WriteTruncate
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "r"
	case WriteTruncate:
		return "w"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ErrNotFound is returned when the named file does not exist.
var ErrNotFound = fs.ErrNotExist

// File is a handle returned by FS.Open.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// FS is the persistent store. Any call may fail; callers must handle errors.
// Names are slash-separated paths such as "/settings.json".
type FS interface {
	Open(name string, mode Mode) (File, error)
	Rename(from, to string) error
	Remove(name string) error
	Exists(name string) bool
}

// IOError describes a failed store operation.
type IOError struct {
	Op   string
	Name string
	Err  error
}

func (e *IOError) Error() string {
	return "storage: " + e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the file does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func ioErr(op, name string, err error) error {
	return &IOError{Op: op, Name: name, Err: err}
}

// ErrIsDir is returned when a directory is opened as a file.
var ErrIsDir = errors.New("is a directory")

// ReadFile opens name for reading and returns its full contents.
func ReadFile(fsys FS, name string) ([]byte, error) {
	f, err := fsys.Open(name, ReadOnly)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, ioErr("read", name, err)
	}
	return data, nil
}
