package vfs

import "strings"

// Normalize canonicalizes a vault-relative path: backslashes become slashes,
// leading and trailing slashes are stripped, repeated slashes collapse, and
// "." segments at either end are dropped. The empty string, "." and "./" all
// normalize to "" (the vault root).
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasSuffix(p, "/."):
			p = p[:len(p)-2]
		case p == ".":
			p = ""
		default:
			return strings.Join(Split(p), "/")
		}
	}
}

// Split normalizes p and returns its ordered segments. The root yields an
// empty slice. Split never touches storage.
func Split(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		segments = append(segments, part)
	}
	return segments
}

// Join builds a normalized path from elements, skipping empty ones.
func Join(elems ...string) string {
	joined := strings.Join(elems, "/")
	return strings.Join(Split(joined), "/")
}

// Base returns the final segment of p, or "" for the root.
func Base(p string) string {
	segs := Split(p)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}
