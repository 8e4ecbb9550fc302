package vfs

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	return NewAdapter(NewMemStore())
}

func TestWriteReadRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	cases := []struct {
		path string
		data []byte
	}{
		{"note.md", []byte("# hello\n")},
		{"Daily/2026-08-31.md", []byte("- [ ] task\n")},
		{"attachments/img.bin", []byte{0x00, 0xff, 0x10, 0x00}},
		{"empty.md", nil},
	}
	for _, tc := range cases {
		if err := a.WriteFile(ctx, tc.path, tc.data); err != nil {
			t.Fatalf("WriteFile(%q): %v", tc.path, err)
		}
		got, err := a.ReadFile(ctx, tc.path)
		if err != nil {
			t.Fatalf("ReadFile(%q): %v", tc.path, err)
		}
		if !bytes.Equal(got, tc.data) {
			t.Fatalf("ReadFile(%q)=%q want %q", tc.path, got, tc.data)
		}
	}
}

func TestReadFileMissing(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	_, err := a.ReadFile(ctx, "missing.md")
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("ReadFile(missing) err=%v want ENOENT", err)
	}
	// Missing intermediate directory reports ENOENT as well.
	_, err = a.ReadFile(ctx, "no/such/dir/file.md")
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("ReadFile(missing dir) err=%v want ENOENT", err)
	}
}

func TestReadFileOnDirectory(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.Mkdir(ctx, "notes", MkdirOptions{}); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := a.ReadFile(ctx, "notes"); !IsCode(err, CodeIsDir) {
		t.Fatalf("ReadFile(dir) err=%v want EISDIR", err)
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.WriteFile(ctx, "a/b/c/deep.md", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	names, err := a.ReadDir(ctx, "a/b/c")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"deep.md"}) {
		t.Fatalf("ReadDir=%v want [deep.md]", names)
	}
}

func TestUnlink(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.WriteFile(ctx, "gone.md", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := a.Unlink(ctx, "gone.md"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := a.Unlink(ctx, "gone.md"); !IsCode(err, CodeNotFound) {
		t.Fatalf("second Unlink err=%v want ENOENT", err)
	}
	if err := a.Mkdir(ctx, "d", MkdirOptions{}); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := a.Unlink(ctx, "d"); !IsCode(err, CodeIsDir) {
		t.Fatalf("Unlink(dir) err=%v want EISDIR", err)
	}
}

func TestMkdirRecursive(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.Mkdir(ctx, "a/b/c", MkdirOptions{Recursive: true}); err != nil {
		t.Fatalf("Mkdir recursive: %v", err)
	}
	names, err := a.ReadDir(ctx, "a/b")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "c" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ReadDir(a/b)=%v want to include c", names)
	}
}

func TestMkdirNonRecursive(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.Mkdir(ctx, "x/y", MkdirOptions{}); !IsCode(err, CodeNotFound) {
		t.Fatalf("Mkdir without parent err=%v want ENOENT", err)
	}
	if err := a.Mkdir(ctx, "x", MkdirOptions{}); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := a.Mkdir(ctx, "x", MkdirOptions{}); !IsCode(err, CodeExists) {
		t.Fatalf("Mkdir existing err=%v want EEXIST", err)
	}
}

func TestRmdir(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.WriteFile(ctx, "d/inner.md", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := a.Rmdir(ctx, "d", RmdirOptions{}); !IsCode(err, CodeNotEmpty) {
		t.Fatalf("Rmdir non-empty err=%v want ENOTEMPTY", err)
	}
	if err := a.Rmdir(ctx, "d", RmdirOptions{Recursive: true}); err != nil {
		t.Fatalf("Rmdir recursive: %v", err)
	}
	if err := a.Rmdir(ctx, "d", RmdirOptions{}); !IsCode(err, CodeNotFound) {
		t.Fatalf("Rmdir missing err=%v want ENOENT", err)
	}
}

func TestStat(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	root, err := a.Stat(ctx, "")
	if err != nil {
		t.Fatalf("Stat(root): %v", err)
	}
	if !root.IsDirectory() {
		t.Fatalf("Stat(root).Kind=%v want directory", root.Kind)
	}

	if err := a.WriteFile(ctx, "n.md", []byte("hello")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	st, err := a.Stat(ctx, "n.md")
	if err != nil {
		t.Fatalf("Stat(file): %v", err)
	}
	if !st.IsFile() || st.Size != 5 {
		t.Fatalf("Stat(file)={kind:%v size:%d} want file size 5", st.Kind, st.Size)
	}
	if st.IsSymbolicLink() {
		t.Fatal("Stat reported a symlink; store has none")
	}

	lst, err := a.Lstat(ctx, "n.md")
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if lst.Kind != st.Kind || lst.Size != st.Size {
		t.Fatalf("Lstat=%+v differs from Stat=%+v", lst, st)
	}

	if _, err := a.Stat(ctx, "absent"); !IsCode(err, CodeNotFound) {
		t.Fatalf("Stat(absent) err=%v want ENOENT", err)
	}
}

func TestKind(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.WriteFile(ctx, "f.md", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := a.Mkdir(ctx, "d", MkdirOptions{}); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	cases := []struct {
		path string
		want FileKind
	}{
		{"", KindDirectory},
		{"f.md", KindFile},
		{"d", KindDirectory},
		{"nope", KindAbsent},
		{"nope/deeper", KindAbsent},
		{"f.md/under-file", KindAbsent},
	}
	for _, tc := range cases {
		got, err := a.Kind(ctx, tc.path)
		if err != nil {
			t.Fatalf("Kind(%q): %v", tc.path, err)
		}
		if got != tc.want {
			t.Fatalf("Kind(%q)=%v want %v", tc.path, got, tc.want)
		}
	}
}

func TestRename(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	content := []byte("moved content\n")
	if err := a.WriteFile(ctx, "old.md", content); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := a.Rename(ctx, "old.md", "sub/new.md"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	got, err := a.ReadFile(ctx, "sub/new.md")
	if err != nil {
		t.Fatalf("ReadFile(new): %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("ReadFile(new)=%q want %q", got, content)
	}
	if _, err := a.ReadFile(ctx, "old.md"); !IsCode(err, CodeNotFound) {
		t.Fatalf("ReadFile(old) err=%v want ENOENT", err)
	}
}

func TestSymlinkUnsupported(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.Symlink(ctx, "target", "link"); !IsCode(err, CodeUnsupported) {
		t.Fatalf("Symlink err=%v want ENOSYS", err)
	}
	if _, err := a.Readlink(ctx, "link"); !IsCode(err, CodeUnsupported) {
		t.Fatalf("Readlink err=%v want ENOSYS", err)
	}
}

func TestPathErrorMessage(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.ReadFile(context.Background(), "a/b.md")
	pe, ok := err.(*PathError)
	if !ok {
		t.Fatalf("err type %T want *PathError", err)
	}
	if pe.Error() != "ENOENT: open 'a/b.md'" {
		t.Fatalf("message=%q", pe.Error())
	}
	if pe.Errno != -2 {
		t.Fatalf("errno=%d want -2", pe.Errno)
	}
}

func TestCancelledContext(t *testing.T) {
	a := newTestAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.WriteFile(ctx, "x.md", nil); err != context.Canceled {
		t.Fatalf("WriteFile err=%v want context.Canceled", err)
	}
}

func TestOSStore(t *testing.T) {
	root, err := NewOSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewOSStore: %v", err)
	}
	a := NewAdapter(root)
	ctx := context.Background()

	if err := a.WriteFile(ctx, "notes/a.md", []byte("hi")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := a.ReadFile(ctx, "notes/a.md")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hi" {
		t.Fatalf("ReadFile=%q want %q", got, "hi")
	}
	if err := a.Rename(ctx, "notes/a.md", "b.md"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := a.ReadFile(ctx, "notes/a.md"); !IsCode(err, CodeNotFound) {
		t.Fatalf("old path err=%v want ENOENT", err)
	}
	kind, err := a.Kind(ctx, "notes")
	if err != nil {
		t.Fatalf("Kind: %v", err)
	}
	if kind != KindDirectory {
		t.Fatalf("Kind(notes)=%v want directory", kind)
	}
}

func TestOSStoreConfinesToRoot(t *testing.T) {
	base := t.TempDir()
	vault := filepath.Join(base, "vault")
	if err := os.Mkdir(vault, 0o755); err != nil {
		t.Fatalf("mkdir vault: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "secret.txt"), []byte("outside"), 0o644); err != nil {
		t.Fatalf("write outside file: %v", err)
	}

	root, err := NewOSStore(vault)
	if err != nil {
		t.Fatalf("NewOSStore: %v", err)
	}
	a := NewAdapter(root)
	ctx := context.Background()

	if _, err := a.ReadFile(ctx, "../secret.txt"); !IsCode(err, CodeNotFound) {
		t.Fatalf("ReadFile(../secret.txt) err=%v want ENOENT", err)
	}
	if _, err := a.ReadFile(ctx, "notes/../../secret.txt"); !IsCode(err, CodeNotFound) {
		t.Fatalf("ReadFile(notes/../../secret.txt) err=%v want ENOENT", err)
	}
	if err := a.WriteFile(ctx, "../escape.txt", []byte("x")); !IsCode(err, CodeNotFound) {
		t.Fatalf("WriteFile(../escape.txt) err=%v want ENOENT", err)
	}
	if err := a.Mkdir(ctx, "../intruder", MkdirOptions{Recursive: true}); !IsCode(err, CodeNotFound) {
		t.Fatalf("Mkdir(../intruder) err=%v want ENOENT", err)
	}
	if err := a.Unlink(ctx, "../secret.txt"); !IsCode(err, CodeNotFound) {
		t.Fatalf("Unlink(../secret.txt) err=%v want ENOENT", err)
	}

	if _, err := os.Stat(filepath.Join(base, "escape.txt")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("escape.txt stat err=%v, file must not exist outside the root", err)
	}
	data, err := os.ReadFile(filepath.Join(base, "secret.txt"))
	if err != nil || string(data) != "outside" {
		t.Fatalf("outside file was touched: %q, %v", data, err)
	}
}
