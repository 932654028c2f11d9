package storage_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/micro-nova/apportal/internal/storage"
)

// stores returns one of each implementation so behavior is checked on both.
func stores(t *testing.T) map[string]storage.FS {
	t.Helper()
	dir, err := storage.Mount(filepath.Join(t.TempDir(), "flash"))
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return map[string]storage.FS{
		"dir": dir,
		"mem": storage.NewMemFS(),
	}
}

func writeAll(t *testing.T, fsys storage.FS, name, data string) {
	t.Helper()
	f, err := fsys.Open(name, storage.WriteTruncate)
	if err != nil {
		t.Fatalf("Open(%s, w): %v", name, err)
	}
	if _, err := io.WriteString(f, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestStore_WriteRead(t *testing.T) {
	for name, fsys := range stores(t) {
		t.Run(name, func(t *testing.T) {
			writeAll(t, fsys, "/settings.json", `{"ssid":"x"}`)
			data, err := storage.ReadFile(fsys, "/settings.json")
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if string(data) != `{"ssid":"x"}` {
				t.Errorf("ReadFile = %q", data)
			}
			if !fsys.Exists("/settings.json") {
				t.Error("Exists() = false after write")
			}
		})
	}
}

func TestStore_WriteTruncates(t *testing.T) {
	for name, fsys := range stores(t) {
		t.Run(name, func(t *testing.T) {
			writeAll(t, fsys, "/a", "a long first version")
			writeAll(t, fsys, "/a", "short")
			data, _ := storage.ReadFile(fsys, "/a")
			if string(data) != "short" {
				t.Errorf("contents = %q, want %q", data, "short")
			}
		})
	}
}

func TestStore_OpenMissing(t *testing.T) {
	for name, fsys := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := fsys.Open("/missing.json", storage.ReadOnly)
			if !storage.IsNotFound(err) {
				t.Fatalf("Open missing: err = %v, want not found", err)
			}
			var ioe *storage.IOError
			if !errors.As(err, &ioe) || ioe.Op != "open" {
				t.Errorf("err = %#v, want *IOError with op open", err)
			}
		})
	}
}

func TestStore_RenameOverwrites(t *testing.T) {
	for name, fsys := range stores(t) {
		t.Run(name, func(t *testing.T) {
			writeAll(t, fsys, "/a", "from")
			writeAll(t, fsys, "/b", "to")
			if err := fsys.Rename("/a", "/b"); err != nil {
				t.Fatalf("Rename: %v", err)
			}
			if fsys.Exists("/a") {
				t.Error("source still exists after rename")
			}
			data, _ := storage.ReadFile(fsys, "/b")
			if string(data) != "from" {
				t.Errorf("destination = %q, want %q", data, "from")
			}
		})
	}
}

func TestStore_RenameMissing(t *testing.T) {
	for name, fsys := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := fsys.Rename("/nope", "/other")
			if !storage.IsNotFound(err) {
				t.Errorf("Rename missing: err = %v, want not found", err)
			}
		})
	}
}

func TestStore_Remove(t *testing.T) {
	for name, fsys := range stores(t) {
		t.Run(name, func(t *testing.T) {
			writeAll(t, fsys, "/a", "x")
			if err := fsys.Remove("/a"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if fsys.Exists("/a") {
				t.Error("file exists after Remove")
			}
			if err := fsys.Remove("/a"); !storage.IsNotFound(err) {
				t.Errorf("second Remove: err = %v, want not found", err)
			}
		})
	}
}

func TestDirFS_ConfinedToRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "flash")
	fsys, err := storage.Mount(root)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	writeAll(t, fsys, "/../../escape.txt", "x")

	if _, err := os.Stat(filepath.Join(parent, "escape.txt")); err == nil {
		t.Fatal("write escaped the storage root")
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); err != nil {
		t.Errorf("expected file inside root: %v", err)
	}
}

func TestDirFS_OpenDirectory(t *testing.T) {
	root := t.TempDir()
	fsys, err := storage.Mount(root)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "www"), 0755); err != nil {
		t.Fatal(err)
	}
	_, err = fsys.Open("/www", storage.ReadOnly)
	if !errors.Is(err, storage.ErrIsDir) {
		t.Errorf("Open(dir) err = %v, want ErrIsDir", err)
	}
}

func TestMount_Empty(t *testing.T) {
	if _, err := storage.Mount(""); err == nil {
		t.Error("Mount(\"\") should fail")
	}
}

func TestMemFS_FaultInjection(t *testing.T) {
	m := storage.NewMemFS()
	m.WriteFile("/a", []byte("orig"))

	m.SetFailRead(true)
	if _, err := m.Open("/a", storage.ReadOnly); err == nil {
		t.Error("read open should fail")
	}
	m.SetFailRead(false)

	m.SetFailCreate(true)
	if _, err := m.Open("/b", storage.WriteTruncate); err == nil {
		t.Error("create should fail")
	}
	m.SetFailCreate(false)

	m.SetFailWrite(true)
	f, err := m.Open("/b", storage.WriteTruncate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n, err := f.Write([]byte("data")); err == nil || n != 0 {
		t.Errorf("Write = (%d, %v), want (0, error)", n, err)
	}
	f.Close()
	m.SetFailWrite(false)

	m.SetFailRename(true)
	if err := m.Rename("/a", "/c"); err == nil {
		t.Error("rename should fail")
	}
	if got, _ := m.Contents("/a"); string(got) != "orig" {
		t.Errorf("contents after failed rename = %q", got)
	}
}

func TestMemFS_OpenDirectory(t *testing.T) {
	m := storage.NewMemFS()
	m.WriteFile("/www/index.html", []byte("x"))
	if _, err := m.Open("/www", storage.ReadOnly); !errors.Is(err, storage.ErrIsDir) {
		t.Errorf("Open(dir) err = %v, want ErrIsDir", err)
	}
	if _, err := m.Open("/ww", storage.ReadOnly); !storage.IsNotFound(err) {
		t.Errorf("Open(prefix) err = %v, want not found", err)
	}
}
