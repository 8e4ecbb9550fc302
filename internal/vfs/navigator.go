package vfs

import (
	"errors"
	"strings"
)

// resolveDir walks segments from root one directory handle at a time. When
// create is set, missing intermediate directories are created on the way
// down. The returned PathError names the full path being resolved, not just
// the segment that failed.
func resolveDir(root DirHandle, segments []string, create bool, sysc, fullPath string) (DirHandle, error) {
	cur := root
	for i, seg := range segments {
		next, err := cur.Dir(seg, create)
		if err != nil {
			switch {
			case errors.Is(err, ErrHandleNotFound):
				return nil, newPathError(CodeNotFound, sysc, fullPath)
			case errors.Is(err, ErrHandleKind):
				// An intermediate segment names a file.
				return nil, newPathError(CodeNotDir, sysc, strings.Join(segments[:i+1], "/"))
			default:
				return nil, err
			}
		}
		cur = next
	}
	return cur, nil
}
