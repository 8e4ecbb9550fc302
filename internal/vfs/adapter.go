package vfs

import (
	"context"
	"errors"
	"sort"
)

// FileKind is the result of an explicit kind lookup. Operations that need to
// branch on what a path currently is (stat, staging add-vs-remove) consult
// Kind instead of probing with calls expected to fail.
type FileKind int

const (
	KindAbsent FileKind = iota
	KindFile
	KindDirectory
)

// Stat describes one path at the moment of the call. It is built fresh on
// every Stat/Lstat and never cached.
type Stat struct {
	Kind    FileKind
	Size    int64
	Mode    uint32
	MtimeMs int64
	UID     int
	GID     int
}

func (s Stat) IsFile() bool         { return s.Kind == KindFile }
func (s Stat) IsDirectory() bool    { return s.Kind == KindDirectory }
func (s Stat) IsSymbolicLink() bool { return false }

const (
	fileMode = 0o644
	dirMode  = 0o755
)

// MkdirOptions controls Mkdir.
type MkdirOptions struct{ Recursive bool }

// RmdirOptions controls Rmdir.
type RmdirOptions struct{ Recursive bool }

// Adapter exposes a POSIX-shaped call surface on top of a handle store. One
// adapter is bound to one root handle for the life of an opened vault; there
// is no internal locking, concurrent writers to the same path race with
// last-write-wins semantics.
type Adapter struct {
	root DirHandle
}

// NewAdapter binds an adapter to a root directory handle.
func NewAdapter(root DirHandle) *Adapter {
	return &Adapter{root: root}
}

// ReadFile returns the full contents of the file at path.
func (a *Adapter) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	segs := Split(path)
	if len(segs) == 0 {
		return nil, newPathError(CodeIsDir, "open", path)
	}
	parent, err := resolveDir(a.root, segs[:len(segs)-1], false, "open", path)
	if err != nil {
		return nil, err
	}
	fh, err := parent.File(segs[len(segs)-1], false)
	if err != nil {
		switch {
		case errors.Is(err, ErrHandleNotFound):
			return nil, newPathError(CodeNotFound, "open", path)
		case errors.Is(err, ErrHandleKind):
			return nil, newPathError(CodeIsDir, "open", path)
		default:
			return nil, err
		}
	}
	return fh.Read()
}

// WriteFile creates missing parent directories, creates the leaf file when
// absent, and replaces its full contents. There is no partial-write
// protection: a failure mid-write leaves undefined content.
func (a *Adapter) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segs := Split(path)
	if len(segs) == 0 {
		return newPathError(CodeIsDir, "open", path)
	}
	parent, err := resolveDir(a.root, segs[:len(segs)-1], true, "open", path)
	if err != nil {
		return err
	}
	fh, err := parent.File(segs[len(segs)-1], true)
	if err != nil {
		if errors.Is(err, ErrHandleKind) {
			return newPathError(CodeIsDir, "open", path)
		}
		return err
	}
	return fh.Write(data)
}

// Unlink removes a leaf file entry.
func (a *Adapter) Unlink(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segs := Split(path)
	if len(segs) == 0 {
		return newPathError(CodeIsDir, "unlink", path)
	}
	parent, err := resolveDir(a.root, segs[:len(segs)-1], false, "unlink", path)
	if err != nil {
		return err
	}
	leaf := segs[len(segs)-1]
	if _, err := parent.File(leaf, false); err != nil {
		switch {
		case errors.Is(err, ErrHandleNotFound):
			return newPathError(CodeNotFound, "unlink", path)
		case errors.Is(err, ErrHandleKind):
			return newPathError(CodeIsDir, "unlink", path)
		default:
			return err
		}
	}
	return parent.RemoveEntry(leaf, false)
}

// ReadDir lists the immediate child names of the directory at path, sorted.
// The root is addressed by "" (or any spelling that normalizes to it).
func (a *Adapter) ReadDir(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := resolveDir(a.root, Split(path), false, "scandir", path)
	if err != nil {
		return nil, err
	}
	entries, err := dir.Entries()
	if err != nil {
		if errors.Is(err, ErrHandleNotFound) {
			return nil, newPathError(CodeNotFound, "scandir", path)
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Mkdir creates the directory at path. Recursive mode creates every missing
// segment; otherwise the parent must already exist and only the final
// segment is created.
func (a *Adapter) Mkdir(ctx context.Context, path string, opts MkdirOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segs := Split(path)
	if len(segs) == 0 {
		return newPathError(CodeExists, "mkdir", path)
	}
	if opts.Recursive {
		_, err := resolveDir(a.root, segs, true, "mkdir", path)
		return err
	}
	parent, err := resolveDir(a.root, segs[:len(segs)-1], false, "mkdir", path)
	if err != nil {
		return err
	}
	leaf := segs[len(segs)-1]
	if kind := childKind(parent, leaf); kind != KindAbsent {
		return newPathError(CodeExists, "mkdir", path)
	}
	if _, err := parent.Dir(leaf, true); err != nil {
		return err
	}
	return nil
}

// Rmdir removes the directory entry at path, including its contents when
// recursive is set.
func (a *Adapter) Rmdir(ctx context.Context, path string, opts RmdirOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segs := Split(path)
	if len(segs) == 0 {
		return newPathError(CodeBusy, "rmdir", path)
	}
	parent, err := resolveDir(a.root, segs[:len(segs)-1], false, "rmdir", path)
	if err != nil {
		return err
	}
	leaf := segs[len(segs)-1]
	switch childKind(parent, leaf) {
	case KindAbsent:
		return newPathError(CodeNotFound, "rmdir", path)
	case KindFile:
		return newPathError(CodeNotDir, "rmdir", path)
	}
	if err := parent.RemoveEntry(leaf, opts.Recursive); err != nil {
		switch {
		case errors.Is(err, ErrHandleNotFound):
			return newPathError(CodeNotFound, "rmdir", path)
		case errors.Is(err, ErrHandleNotEmpty):
			return newPathError(CodeNotEmpty, "rmdir", path)
		default:
			return err
		}
	}
	return nil
}

// Kind reports what path currently is. A missing intermediate directory
// yields KindAbsent, not an error.
func (a *Adapter) Kind(ctx context.Context, path string) (FileKind, error) {
	if err := ctx.Err(); err != nil {
		return KindAbsent, err
	}
	segs := Split(path)
	if len(segs) == 0 {
		return KindDirectory, nil
	}
	parent, err := resolveDir(a.root, segs[:len(segs)-1], false, "stat", path)
	if err != nil {
		if IsCode(err, CodeNotFound) || IsCode(err, CodeNotDir) {
			return KindAbsent, nil
		}
		return KindAbsent, err
	}
	return childKind(parent, segs[len(segs)-1]), nil
}

// Stat describes path. The root always reports as a directory.
func (a *Adapter) Stat(ctx context.Context, path string) (Stat, error) {
	if err := ctx.Err(); err != nil {
		return Stat{}, err
	}
	segs := Split(path)
	if len(segs) == 0 {
		return Stat{Kind: KindDirectory, Mode: dirMode}, nil
	}
	parent, err := resolveDir(a.root, segs[:len(segs)-1], false, "stat", path)
	if err != nil {
		return Stat{}, err
	}
	leaf := segs[len(segs)-1]
	switch childKind(parent, leaf) {
	case KindFile:
		fh, err := parent.File(leaf, false)
		if err != nil {
			return Stat{}, newPathError(CodeNotFound, "stat", path)
		}
		size, mtime, err := fh.Info()
		if err != nil {
			return Stat{}, newPathError(CodeNotFound, "stat", path)
		}
		return Stat{Kind: KindFile, Size: size, Mode: fileMode, MtimeMs: mtime.UnixMilli()}, nil
	case KindDirectory:
		return Stat{Kind: KindDirectory, Mode: dirMode}, nil
	default:
		return Stat{}, newPathError(CodeNotFound, "stat", path)
	}
}

// Lstat is identical to Stat: the store has no symlinks to distinguish.
func (a *Adapter) Lstat(ctx context.Context, path string) (Stat, error) {
	return a.Stat(ctx, path)
}

// Rename moves a file by reading the old path, writing the new one and
// unlinking the old. The sequence is not atomic: a failure between steps can
// leave both paths present, or the new path present alongside a stale old
// one. Callers needing ordering guarantees must serialize externally.
func (a *Adapter) Rename(ctx context.Context, oldPath, newPath string) error {
	data, err := a.ReadFile(ctx, oldPath)
	if err != nil {
		return err
	}
	if err := a.WriteFile(ctx, newPath, data); err != nil {
		return err
	}
	return a.Unlink(ctx, oldPath)
}

// Symlink always fails: the underlying store has no symlink concept.
func (a *Adapter) Symlink(ctx context.Context, target, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return newPathError(CodeUnsupported, "symlink", path)
}

// Readlink always fails, like Symlink.
func (a *Adapter) Readlink(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", newPathError(CodeUnsupported, "readlink", path)
}

// childKind classifies one child of an already-resolved parent directory.
func childKind(parent DirHandle, name string) FileKind {
	_, err := parent.File(name, false)
	switch {
	case err == nil:
		return KindFile
	case errors.Is(err, ErrHandleKind):
		return KindDirectory
	default:
		return KindAbsent
	}
}
