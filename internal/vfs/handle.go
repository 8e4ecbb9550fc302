package vfs

import (
	"errors"
	"time"
)

// The handle interfaces model the host's sandboxed hierarchical storage API:
// opaque references to directories and files reachable only by traversal.
// There is deliberately no rename and no symlink primitive.

// Host-level failures. The adapter translates these into PathErrors; they
// never escape to adapter callers directly.
var (
	ErrHandleNotFound = errors.New("storage: entry not found")
	ErrHandleKind     = errors.New("storage: entry kind mismatch")
	ErrHandleNotEmpty = errors.New("storage: directory not empty")
)

// EntryKind discriminates directory listings.
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDir
)

// Entry is a single child of a directory handle.
type Entry struct {
	Name string
	Kind EntryKind
}

// DirHandle is an opaque reference to one directory in the store.
type DirHandle interface {
	// Name returns the entry name this handle was obtained under.
	Name() string

	// File returns a handle for the named child file. When create is true a
	// missing file is created empty. Returns ErrHandleNotFound for a missing
	// file without create, ErrHandleKind when the name is a directory.
	File(name string, create bool) (FileHandle, error)

	// Dir returns a handle for the named child directory, creating it when
	// create is true. Returns ErrHandleNotFound or ErrHandleKind like File.
	Dir(name string, create bool) (DirHandle, error)

	// Entries lists the immediate children.
	Entries() ([]Entry, error)

	// RemoveEntry deletes the named child. A non-empty directory is refused
	// with ErrHandleNotEmpty unless recursive is set.
	RemoveEntry(name string, recursive bool) error
}

// FileHandle is an opaque reference to one file in the store.
type FileHandle interface {
	Name() string

	// Read returns the full file contents.
	Read() ([]byte, error)

	// Write replaces the full file contents.
	Write(data []byte) error

	// Info reports size and modification time.
	Info() (size int64, mtime time.Time, err error)
}
