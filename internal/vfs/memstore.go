package vfs

import (
	"sort"
	"sync"
	"time"
)

// memNode is one entry in the in-memory store. A node is either a file
// (data) or a directory (children), never both.
type memNode struct {
	mu       sync.RWMutex
	name     string
	dir      bool
	data     []byte
	mtime    time.Time
	children map[string]*memNode
}

// NewMemStore returns the root directory handle of an empty in-memory store.
// Useful for tests and for ephemeral scratch vaults.
func NewMemStore() DirHandle {
	return &memDir{node: &memNode{dir: true, children: map[string]*memNode{}, mtime: time.Now()}}
}

type memDir struct{ node *memNode }

func (d *memDir) Name() string { return d.node.name }

func (d *memDir) File(name string, create bool) (FileHandle, error) {
	d.node.mu.Lock()
	defer d.node.mu.Unlock()
	child, ok := d.node.children[name]
	if !ok {
		if !create {
			return nil, ErrHandleNotFound
		}
		child = &memNode{name: name, mtime: time.Now()}
		d.node.children[name] = child
	}
	if child.dir {
		return nil, ErrHandleKind
	}
	return &memFile{node: child}, nil
}

func (d *memDir) Dir(name string, create bool) (DirHandle, error) {
	d.node.mu.Lock()
	defer d.node.mu.Unlock()
	child, ok := d.node.children[name]
	if !ok {
		if !create {
			return nil, ErrHandleNotFound
		}
		child = &memNode{name: name, dir: true, children: map[string]*memNode{}, mtime: time.Now()}
		d.node.children[name] = child
	}
	if !child.dir {
		return nil, ErrHandleKind
	}
	return &memDir{node: child}, nil
}

func (d *memDir) Entries() ([]Entry, error) {
	d.node.mu.RLock()
	defer d.node.mu.RUnlock()
	entries := make([]Entry, 0, len(d.node.children))
	for name, child := range d.node.children {
		kind := EntryFile
		if child.dir {
			kind = EntryDir
		}
		entries = append(entries, Entry{Name: name, Kind: kind})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (d *memDir) RemoveEntry(name string, recursive bool) error {
	d.node.mu.Lock()
	defer d.node.mu.Unlock()
	child, ok := d.node.children[name]
	if !ok {
		return ErrHandleNotFound
	}
	if child.dir && !recursive {
		child.mu.RLock()
		empty := len(child.children) == 0
		child.mu.RUnlock()
		if !empty {
			return ErrHandleNotEmpty
		}
	}
	delete(d.node.children, name)
	return nil
}

type memFile struct{ node *memNode }

func (f *memFile) Name() string { return f.node.name }

func (f *memFile) Read() ([]byte, error) {
	f.node.mu.RLock()
	defer f.node.mu.RUnlock()
	out := make([]byte, len(f.node.data))
	copy(out, f.node.data)
	return out, nil
}

func (f *memFile) Write(data []byte) error {
	f.node.mu.Lock()
	defer f.node.mu.Unlock()
	f.node.data = make([]byte, len(data))
	copy(f.node.data, data)
	f.node.mtime = time.Now()
	return nil
}

func (f *memFile) Info() (int64, time.Time, error) {
	f.node.mu.RLock()
	defer f.node.mu.RUnlock()
	return int64(len(f.node.data)), f.node.mtime, nil
}
