// Package gitsidian is the storage and version-control core of a
// note-taking application. It mounts plain directories as vaults behind a
// sandboxed filesystem adapter, tracks them in a small catalog database and
// drives an embedded git implementation for snapshots, history and sync.
//
// The adapter in internal/vfs gives every consumer a POSIX-shaped surface
// (read, write, mkdir, rename, stat) over a handle-based store, and errors
// carry stable codes and errno values so callers can branch on them. The
// same adapter, bridged to a billy filesystem, is what the git layer reads
// and writes, so repository operations never bypass the sandbox.
package gitsidian
