package vfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// osDir adapts one OS directory to the DirHandle contract. Only traversal
// primitives are used so the behavior stays identical to a genuinely
// sandboxed handle store: no os.Rename, no symlink creation, children are
// reached strictly one segment at a time.
type osDir struct {
	path string
	name string
}

// NewOSStore returns a handle store rooted at the given OS directory.
func NewOSStore(root string) (DirHandle, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrHandleKind
	}
	return &osDir{path: root, name: filepath.Base(root)}, nil
}

func (d *osDir) Name() string { return d.name }

// validChildName refuses names that would address anything but a direct
// child of the handle's directory. Without this, a ".." segment handed to
// filepath.Join walks out of the store root.
func validChildName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func (d *osDir) File(name string, create bool) (FileHandle, error) {
	if !validChildName(name) {
		return nil, ErrHandleNotFound
	}
	full := filepath.Join(d.path, name)
	info, err := os.Lstat(full)
	switch {
	case err == nil:
		if info.IsDir() {
			return nil, ErrHandleKind
		}
		return &osFile{path: full, name: name}, nil
	case errors.Is(err, fs.ErrNotExist):
		if !create {
			return nil, ErrHandleNotFound
		}
		f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		return &osFile{path: full, name: name}, nil
	default:
		return nil, err
	}
}

func (d *osDir) Dir(name string, create bool) (DirHandle, error) {
	if !validChildName(name) {
		return nil, ErrHandleNotFound
	}
	full := filepath.Join(d.path, name)
	info, err := os.Lstat(full)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, ErrHandleKind
		}
		return &osDir{path: full, name: name}, nil
	case errors.Is(err, fs.ErrNotExist):
		if !create {
			return nil, ErrHandleNotFound
		}
		if err := os.Mkdir(full, 0o755); err != nil {
			return nil, err
		}
		return &osDir{path: full, name: name}, nil
	default:
		return nil, err
	}
}

func (d *osDir) Entries() ([]Entry, error) {
	dirents, err := os.ReadDir(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrHandleNotFound
		}
		return nil, err
	}
	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		kind := EntryFile
		if de.IsDir() {
			kind = EntryDir
		}
		entries = append(entries, Entry{Name: de.Name(), Kind: kind})
	}
	return entries, nil
}

func (d *osDir) RemoveEntry(name string, recursive bool) error {
	if !validChildName(name) {
		return ErrHandleNotFound
	}
	full := filepath.Join(d.path, name)
	if recursive {
		if _, err := os.Lstat(full); errors.Is(err, fs.ErrNotExist) {
			return ErrHandleNotFound
		}
		return os.RemoveAll(full)
	}
	err := os.Remove(full)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return ErrHandleNotFound
	case errors.Is(err, syscall.ENOTEMPTY):
		return ErrHandleNotEmpty
	default:
		return err
	}
}

type osFile struct {
	path string
	name string
}

func (f *osFile) Name() string { return f.name }

func (f *osFile) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrHandleNotFound
	}
	return data, err
}

func (f *osFile) Write(data []byte) error {
	err := os.WriteFile(f.path, data, 0o644)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrHandleNotFound
	}
	return err
}

func (f *osFile) Info() (int64, time.Time, error) {
	info, err := os.Lstat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, time.Time{}, ErrHandleNotFound
		}
		return 0, time.Time{}, err
	}
	return info.Size(), info.ModTime(), nil
}
