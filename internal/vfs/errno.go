package vfs

import (
	"errors"
	"fmt"
	"syscall"
)

// Error codes surfaced by the adapter. The numeric values follow the
// conventional negative errno encoding so callers inspecting Errno see the
// same numbers a POSIX layer would hand back.
const (
	CodeNotFound    = "ENOENT"
	CodeNotDir      = "ENOTDIR"
	CodeExists      = "EEXIST"
	CodeIsDir       = "EISDIR"
	CodeNotEmpty    = "ENOTEMPTY"
	CodeUnsupported = "ENOSYS"
	CodeBusy        = "EBUSY"
)

var errnoByCode = map[string]int{
	CodeNotFound:    -2,
	CodeBusy:        -16,
	CodeExists:      -17,
	CodeNotDir:      -20,
	CodeIsDir:       -21,
	CodeUnsupported: -38,
	CodeNotEmpty:    -39,
}

var syscallByCode = map[string]syscall.Errno{
	CodeNotFound:    syscall.ENOENT,
	CodeBusy:        syscall.EBUSY,
	CodeExists:      syscall.EEXIST,
	CodeNotDir:      syscall.ENOTDIR,
	CodeIsDir:       syscall.EISDIR,
	CodeUnsupported: syscall.ENOSYS,
	CodeNotEmpty:    syscall.ENOTEMPTY,
}

// PathError is the tagged error every adapter failure funnels through. It
// carries a POSIX-style code, the negative errno number, the operation that
// failed and the offending path.
type PathError struct {
	Code    string
	Errno   int
	Syscall string
	Path    string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s '%s'", e.Code, e.Syscall, e.Path)
}

// Unwrap exposes the matching syscall.Errno so errors.Is against the
// fs.ErrNotExist family works on adapter errors.
func (e *PathError) Unwrap() error {
	if errno, ok := syscallByCode[e.Code]; ok {
		return errno
	}
	return nil
}

func newPathError(code, sysc, path string) *PathError {
	return &PathError{Code: code, Errno: errnoByCode[code], Syscall: sysc, Path: path}
}

// IsCode reports whether err is a PathError carrying the given code.
func IsCode(err error, code string) bool {
	var pe *PathError
	return errors.As(err, &pe) && pe.Code == code
}
