package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5"
)

// Bridge exposes an Adapter as a billy.Filesystem so the version-control
// plumbing library can operate against the sandboxed store. Adapter errors
// are rewritten as *os.PathError before they cross the boundary: the
// plumbing library branches on os.IsNotExist and friends.
type Bridge struct {
	a      *Adapter
	ctx    context.Context
	prefix string
}

// NewBridge wraps adapter as a billy filesystem rooted at the vault root.
func NewBridge(a *Adapter) *Bridge {
	return &Bridge{a: a, ctx: context.Background()}
}

func (b *Bridge) full(name string) string {
	return Join(b.prefix, name)
}

// sysError converts adapter PathErrors to the os error shapes billy
// consumers expect. Other errors pass through unchanged.
func sysError(err error) error {
	if err == nil {
		return nil
	}
	var pe *PathError
	if errors.As(err, &pe) {
		return &os.PathError{Op: pe.Syscall, Path: pe.Path, Err: pe.Unwrap()}
	}
	return err
}

func (b *Bridge) Create(filename string) (billy.File, error) {
	return b.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (b *Bridge) Open(filename string) (billy.File, error) {
	return b.OpenFile(filename, os.O_RDONLY, 0)
}

func (b *Bridge) OpenFile(filename string, flag int, _ os.FileMode) (billy.File, error) {
	full := b.full(filename)
	kind, err := b.a.Kind(b.ctx, full)
	if err != nil {
		return nil, sysError(err)
	}
	switch kind {
	case KindDirectory:
		return nil, &os.PathError{Op: "open", Path: filename, Err: syscall.EISDIR}
	case KindAbsent:
		if flag&os.O_CREATE == 0 {
			return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
		}
	case KindFile:
		if flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0 {
			return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrExist}
		}
	}

	var buf []byte
	if kind == KindFile && flag&os.O_TRUNC == 0 {
		buf, err = b.a.ReadFile(b.ctx, full)
		if err != nil {
			return nil, sysError(err)
		}
	}
	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0 || flag&os.O_APPEND != 0
	f := &bridgeFile{
		bridge:   b,
		name:     filename,
		path:     full,
		buf:      buf,
		writable: writable,
		appendTo: flag&os.O_APPEND != 0,
	}
	// A freshly created file must exist on disk even if never written to.
	if kind == KindAbsent || flag&os.O_TRUNC != 0 {
		if err := b.a.WriteFile(b.ctx, full, buf); err != nil {
			return nil, sysError(err)
		}
	}
	return f, nil
}

func (b *Bridge) Stat(filename string) (os.FileInfo, error) {
	st, err := b.a.Stat(b.ctx, b.full(filename))
	if err != nil {
		return nil, sysError(err)
	}
	name := Base(filename)
	if name == "" {
		name = "/"
	}
	return newFileInfo(name, st), nil
}

func (b *Bridge) Lstat(filename string) (os.FileInfo, error) {
	return b.Stat(filename)
}

func (b *Bridge) Rename(oldpath, newpath string) error {
	return sysError(b.a.Rename(b.ctx, b.full(oldpath), b.full(newpath)))
}

func (b *Bridge) Remove(filename string) error {
	full := b.full(filename)
	kind, err := b.a.Kind(b.ctx, full)
	if err != nil {
		return sysError(err)
	}
	switch kind {
	case KindFile:
		return sysError(b.a.Unlink(b.ctx, full))
	case KindDirectory:
		return sysError(b.a.Rmdir(b.ctx, full, RmdirOptions{}))
	default:
		return &os.PathError{Op: "remove", Path: filename, Err: os.ErrNotExist}
	}
}

func (b *Bridge) Join(elem ...string) string {
	return Join(elem...)
}

var tempSeq atomic.Uint64

func (b *Bridge) TempFile(dir, prefix string) (billy.File, error) {
	for i := 0; i < 10000; i++ {
		name := fmt.Sprintf("%s%d_%d", prefix, time.Now().UnixNano(), tempSeq.Add(1))
		f, err := b.OpenFile(Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("tempfile: exhausted name candidates in %q", dir)
}

func (b *Bridge) ReadDir(path string) ([]os.FileInfo, error) {
	full := b.full(path)
	names, err := b.a.ReadDir(b.ctx, full)
	if err != nil {
		return nil, sysError(err)
	}
	infos := make([]os.FileInfo, 0, len(names))
	for _, name := range names {
		st, err := b.a.Stat(b.ctx, Join(full, name))
		if err != nil {
			// Entry vanished between listing and stat; skip it.
			continue
		}
		infos = append(infos, newFileInfo(name, st))
	}
	return infos, nil
}

func (b *Bridge) MkdirAll(filename string, _ os.FileMode) error {
	return sysError(b.a.Mkdir(b.ctx, b.full(filename), MkdirOptions{Recursive: true}))
}

func (b *Bridge) Symlink(target, link string) error {
	return sysError(b.a.Symlink(b.ctx, target, b.full(link)))
}

func (b *Bridge) Readlink(link string) (string, error) {
	s, err := b.a.Readlink(b.ctx, b.full(link))
	return s, sysError(err)
}

func (b *Bridge) Chroot(path string) (billy.Filesystem, error) {
	return &Bridge{a: b.a, ctx: b.ctx, prefix: b.full(path)}, nil
}

func (b *Bridge) Root() string {
	return "/" + b.prefix
}

// bridgeFile buffers one file's contents in memory. Writes are flushed back
// through the adapter on Close, matching the store's whole-file write
// primitive.
type bridgeFile struct {
	bridge   *Bridge
	name     string
	path     string
	buf      []byte
	pos      int64
	writable bool
	appendTo bool
	closed   bool
}

func (f *bridgeFile) Name() string { return f.name }

func (f *bridgeFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *bridgeFile) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *bridgeFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if !f.writable {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: os.ErrPermission}
	}
	if f.appendTo {
		f.pos = int64(len(f.buf))
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *bridgeFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.pos + offset
	case io.SeekEnd:
		next = int64(len(f.buf)) + offset
	default:
		return 0, fmt.Errorf("seek %s: invalid whence %d", f.name, whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("seek %s: negative position", f.name)
	}
	f.pos = next
	return next, nil
}

func (f *bridgeFile) Truncate(size int64) error {
	if f.closed {
		return os.ErrClosed
	}
	if !f.writable {
		return &os.PathError{Op: "truncate", Path: f.name, Err: os.ErrPermission}
	}
	if size <= int64(len(f.buf)) {
		f.buf = f.buf[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, f.buf)
		f.buf = grown
	}
	return nil
}

func (f *bridgeFile) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	if !f.writable {
		return nil
	}
	return sysError(f.bridge.a.WriteFile(f.bridge.ctx, f.path, f.buf))
}

func (f *bridgeFile) Lock() error   { return nil }
func (f *bridgeFile) Unlock() error { return nil }

type fileInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	mtime time.Time
	dir   bool
}

func newFileInfo(name string, st Stat) *fileInfo {
	fi := &fileInfo{name: name, size: st.Size, mtime: time.UnixMilli(st.MtimeMs)}
	if st.IsDirectory() {
		fi.dir = true
		fi.mode = os.ModeDir | os.FileMode(st.Mode)
	} else {
		fi.mode = os.FileMode(st.Mode)
	}
	return fi
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.mtime }
func (fi *fileInfo) IsDir() bool        { return fi.dir }
func (fi *fileInfo) Sys() interface{}   { return nil }
