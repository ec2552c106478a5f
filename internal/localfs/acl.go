package localfs

import (
	"sort"
	"sync"

	"fssim/internal/simulation"
)

// AccessControl stores the direct grants of the reference model. Paths are
// absolute and owned by their first segment.
type AccessControl interface {
	Grant(path, grantee string, perm simulation.Permission) error
	Revoke(path, grantee string, perm simulation.Permission) error
	// Sharees lists the users granted perm directly on path, sorted.
	Sharees(path string, perm simulation.Permission) ([]string, error)
	// SharedWith lists, sorted, the paths under owner's root granted to grantee.
	SharedWith(owner, grantee string, perm simulation.Permission) ([]string, error)
	// Granted reports whether any of paths carries a grant of one of perms to grantee.
	Granted(paths []string, grantee string, perms ...simulation.Permission) (bool, error)
	// Purge forgets every grant on path or beneath it.
	Purge(path string) error
	Close() error
}

// MemoryACL keeps grants in maps.
type MemoryACL struct {
	mu     sync.RWMutex
	grants map[simulation.Permission]map[string]map[string]struct{} // perm -> path -> grantees
}

// NewMemoryACL creates an empty in-memory ACL.
func NewMemoryACL() *MemoryACL {
	return &MemoryACL{
		grants: map[simulation.Permission]map[string]map[string]struct{}{
			simulation.Read:  {},
			simulation.Write: {},
		},
	}
}

func (m *MemoryACL) Grant(path, grantee string, perm simulation.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byPath := m.grants[perm]
	if byPath[path] == nil {
		byPath[path] = make(map[string]struct{})
	}
	byPath[path][grantee] = struct{}{}
	return nil
}

func (m *MemoryACL) Revoke(path, grantee string, perm simulation.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byPath := m.grants[perm]
	delete(byPath[path], grantee)
	if len(byPath[path]) == 0 {
		delete(byPath, path)
	}
	return nil
}

func (m *MemoryACL) Sharees(path string, perm simulation.Permission) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.grants[perm][path]))
	for g := range m.grants[perm][path] {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryACL) SharedWith(owner, grantee string, perm simulation.Permission) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	root := simulation.RootOf(owner)
	var out []string
	for p, grantees := range m.grants[perm] {
		if _, ok := grantees[grantee]; ok && simulation.Within(p, root) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryACL) Granted(paths []string, grantee string, perms ...simulation.Permission) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, perm := range perms {
		for _, p := range paths {
			if _, ok := m.grants[perm][p][grantee]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *MemoryACL) Purge(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, byPath := range m.grants {
		for p := range byPath {
			if simulation.Within(p, path) {
				delete(byPath, p)
			}
		}
	}
	return nil
}

func (m *MemoryACL) Close() error { return nil }
