package simulation

import (
	"fmt"
	"path"
	"strings"
)

// RootOf returns a user's root directory.
func RootOf(user string) string {
	return "/" + user
}

// CleanPath normalises p and rejects relative paths and the bare "/".
func CleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: relative path %q", ErrNotFound, p)
	}
	p = path.Clean(p)
	if p == "/" {
		return "", fmt.Errorf("%w: no owner in %q", ErrNotFound, p)
	}
	return p, nil
}

// OwnerOf returns the first segment of an absolute path.
func OwnerOf(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// Ancestors returns p followed by each parent up to the owner's root.
func Ancestors(p string) []string {
	root := RootOf(OwnerOf(p))
	out := []string{p}
	for p != root && p != "/" {
		p = path.Dir(p)
		out = append(out, p)
	}
	return out
}

// Within reports whether p equals dir or lies beneath it.
func Within(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/")
}
