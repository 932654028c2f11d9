package storage

import (
	"bytes"
	"errors"
	"path"
	"strings"
	"sync"
)

// MemFS is a thread-safe in-memory store for tests and degraded boot.
// Failures can be injected per operation.
type MemFS struct {
	mu         sync.Mutex
	files      map[string][]byte
	failRead   bool
	failCreate bool
	failWrite  bool
	failRename bool
}

// NewMemFS returns an empty in-memory store.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

// SetFailRead configures the store to fail read-only opens.
func (m *MemFS) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = fail
}

// SetFailCreate configures the store to fail write-truncate opens.
func (m *MemFS) SetFailCreate(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCreate = fail
}

// SetFailWrite configures the store to reject all writes on open handles.
func (m *MemFS) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

// SetFailRename configures the store to fail all renames.
func (m *MemFS) SetFailRename(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRename = fail
}

// WriteFile stores data under name, bypassing fault injection.
func (m *MemFS) WriteFile(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[clean(name)] = append([]byte(nil), data...)
}

// Contents returns a copy of the named file, bypassing fault injection.
func (m *MemFS) Contents(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[clean(name)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

func (m *MemFS) Open(name string, mode Mode) (File, error) {
	name = clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch mode {
	case ReadOnly:
		if m.failRead {
			return nil, ioErr("open", name, errors.New("mem: read failure configured"))
		}
		data, ok := m.files[name]
		if !ok {
			if m.isDirLocked(name) {
				return nil, ioErr("open", name, ErrIsDir)
			}
			return nil, ioErr("open", name, ErrNotFound)
		}
		return &memFile{r: bytes.NewReader(append([]byte(nil), data...))}, nil
	case WriteTruncate:
		if m.failCreate {
			return nil, ioErr("open", name, errors.New("mem: create failure configured"))
		}
		m.files[name] = []byte{}
		return &memFile{fs: m, name: name, writable: true}, nil
	}
	return nil, ioErr("open", name, errors.New("mem: unsupported mode"))
}

func (m *MemFS) Rename(from, to string) error {
	from, to = clean(from), clean(to)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRename {
		return ioErr("rename", from, errors.New("mem: rename failure configured"))
	}
	data, ok := m.files[from]
	if !ok {
		return ioErr("rename", from, ErrNotFound)
	}
	m.files[to] = data
	delete(m.files, from)
	return nil
}

func (m *MemFS) Remove(name string) error {
	name = clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return ioErr("remove", name, ErrNotFound)
	}
	delete(m.files, name)
	return nil
}

func (m *MemFS) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[clean(name)]
	return ok
}

type memFile struct {
	fs       *MemFS
	name     string
	writable bool
	r        *bytes.Reader
	closed   bool
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, ioErr("read", f.name, errors.New("mem: file closed"))
	}
	if f.r == nil {
		return 0, ioErr("read", f.name, errors.New("mem: file not open for reading"))
	}
	return f.r.Read(p)
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.closed || !f.writable {
		return 0, ioErr("write", f.name, errors.New("mem: file not open for writing"))
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.fs.failWrite {
		return 0, ioErr("write", f.name, errors.New("mem: write failure configured"))
	}
	f.fs.files[f.name] = append(f.fs.files[f.name], p...)
	return len(p), nil
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}

func clean(name string) string {
	return path.Clean("/" + name)
}

var _ FS = (*MemFS)(nil)

// isDirLocked reports whether name is a parent of any stored file.
func (m *MemFS) isDirLocked(name string) bool {
	prefix := strings.TrimSuffix(name, "/") + "/"
	for n := range m.files {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}
