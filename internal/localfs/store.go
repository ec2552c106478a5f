// Package localfs is the reference model: a plain directory tree on an
// afero filesystem with sharing kept in a separate access-control table.
package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"fssim/internal/simulation"

	"github.com/spf13/afero"
)

// Store is the world shared by every user's reference handle: one tree, one
// ACL and the follow graph.
type Store struct {
	mu      sync.Mutex
	fs      afero.Fs
	base    string
	acl     AccessControl
	friends map[string]map[string]struct{}
}

// NewStore roots the tree at base inside fsys.
func NewStore(fsys afero.Fs, base string, acl AccessControl) (*Store, error) {
	if acl == nil {
		acl = NewMemoryACL()
	}
	if err := fsys.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reference root: %w", err)
	}
	return &Store{
		fs:      fsys,
		base:    base,
		acl:     acl,
		friends: make(map[string]map[string]struct{}),
	}, nil
}

// NewMemStore is a Store on afero's in-memory filesystem.
func NewMemStore() *Store {
	s, err := NewStore(afero.NewMemMapFs(), "/", NewMemoryACL())
	if err != nil {
		panic(err)
	}
	return s
}

// Close releases the ACL.
func (s *Store) Close() error {
	return s.acl.Close()
}

// Fs exposes the underlying filesystem, e.g. for fault injection in tests.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// OSPath maps a simulation path to the location inside the afero filesystem.
func (s *Store) OSPath(p string) string {
	return filepath.Join(s.base, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

// FileSystem returns user's handle.
func (s *Store) FileSystem(user string) *FileSystem {
	return &FileSystem{store: s, user: user}
}

func (s *Store) friendsWith(a, b string) bool {
	_, ok := s.friends[a][b]
	return ok
}

func (s *Store) follow(a, b string) {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if s.friends[pair[0]] == nil {
			s.friends[pair[0]] = make(map[string]struct{})
		}
		s.friends[pair[0]][pair[1]] = struct{}{}
	}
}

// FileSystem is one user's view of a Store.
type FileSystem struct {
	store *Store
	user  string
}

var _ simulation.FileSystem = (*FileSystem)(nil)

func (f *FileSystem) User() string { return f.user }

func (f *FileSystem) String() string { return "localfs:" + f.user }

// access reports whether the handle's user may use p with perm. Owners may
// do anything; others need a grant on p or an ancestor, and a write grant
// also allows reading.
func (f *FileSystem) access(p string, perm simulation.Permission) (bool, error) {
	if simulation.OwnerOf(p) == f.user {
		return true, nil
	}
	perms := []simulation.Permission{simulation.Write}
	if perm == simulation.Read {
		perms = append(perms, simulation.Read)
	}
	return f.store.acl.Granted(simulation.Ancestors(p), f.user, perms...)
}

func (f *FileSystem) checkAccess(p string, perm simulation.Permission) error {
	ok, err := f.access(p, perm)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s cannot %s %s", simulation.ErrAccessDenied, f.user, perm, p)
	}
	return nil
}

func (f *FileSystem) checkOwner(p string) error {
	if simulation.OwnerOf(p) != f.user {
		return fmt.Errorf("%w: %s does not own %s", simulation.ErrAccessDenied, f.user, p)
	}
	return nil
}

func (f *FileSystem) stat(p string) (os.FileInfo, error) {
	info, err := f.store.fs.Stat(f.store.OSPath(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", simulation.ErrNotFound, p)
		}
		return nil, err
	}
	return info, nil
}

func (f *FileSystem) Read(p string) ([]byte, error) {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return nil, err
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	if err := f.checkAccess(p, simulation.Read); err != nil {
		return nil, err
	}
	info, err := f.stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read %s: is a directory", p)
	}
	return afero.ReadFile(f.store.fs, f.store.OSPath(p))
}

func (f *FileSystem) Write(p string, data []byte) error {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return err
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	if err := f.checkAccess(p, simulation.Write); err != nil {
		return err
	}
	parent, err := f.stat(path.Dir(p))
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return fmt.Errorf("write %s: parent is not a directory", p)
	}
	if info, err := f.stat(p); err == nil && info.IsDir() {
		return fmt.Errorf("write %s: is a directory", p)
	}
	return afero.WriteFile(f.store.fs, f.store.OSPath(p), data, 0644)
}

func (f *FileSystem) MkDir(p string) error {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return err
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	if err := f.checkOwner(p); err != nil {
		return err
	}
	if _, err := f.stat(p); err == nil {
		return fmt.Errorf("mkdir %s: already exists", p)
	}
	if p != simulation.RootOf(f.user) {
		parent, err := f.stat(path.Dir(p))
		if err != nil {
			return err
		}
		if !parent.IsDir() {
			return fmt.Errorf("mkdir %s: parent is not a directory", p)
		}
	}
	return f.store.fs.Mkdir(f.store.OSPath(p), 0755)
}

func (f *FileSystem) Delete(p string) error {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return err
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	if err := f.checkOwner(p); err != nil {
		return err
	}
	if p == simulation.RootOf(f.user) {
		return fmt.Errorf("delete %s: cannot delete a root directory", p)
	}
	if _, err := f.stat(p); err != nil {
		return err
	}
	if err := f.store.fs.RemoveAll(f.store.OSPath(p)); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return f.store.acl.Purge(p)
}

func (f *FileSystem) Grant(p, grantee string, perm simulation.Permission) error {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return err
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	if err := f.checkOwner(p); err != nil {
		return err
	}
	if grantee == f.user {
		return fmt.Errorf("grant %s: cannot share with yourself", p)
	}
	if !f.store.friendsWith(f.user, grantee) {
		return fmt.Errorf("%w: %s does not follow %s", simulation.ErrAccessDenied, f.user, grantee)
	}
	if _, err := f.stat(p); err != nil {
		return err
	}
	return f.store.acl.Grant(p, grantee, perm)
}

func (f *FileSystem) Revoke(p, grantee string, perm simulation.Permission) error {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return err
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	if err := f.checkOwner(p); err != nil {
		return err
	}
	return f.store.acl.Revoke(p, grantee, perm)
}

func (f *FileSystem) Sharees(p string, perm simulation.Permission) ([]string, error) {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return nil, err
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	if err := f.checkOwner(p); err != nil {
		return nil, err
	}
	return f.store.acl.Sharees(p, perm)
}

func (f *FileSystem) RandomSharedPath(rng *rand.Rand, perm simulation.Permission, grantee string) (string, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	paths, err := f.store.acl.SharedWith(f.user, grantee, perm)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: %s has shared nothing with %s for %s",
			simulation.ErrNothingShared, f.user, grantee, perm)
	}
	return paths[rng.Intn(len(paths))], nil
}

func (f *FileSystem) Follow(other simulation.FileSystem) error {
	o, ok := other.(*FileSystem)
	if !ok || o.store != f.store {
		return fmt.Errorf("%w: %s can only follow handles of the same store", simulation.ErrConfiguration, f.user)
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.follow(f.user, o.user)
	return nil
}

func (f *FileSystem) Walk(visit func(p string) error) error {
	f.store.mu.Lock()
	var paths []string
	root := f.store.OSPath(simulation.RootOf(f.user))
	err := afero.Walk(f.store.fs, root, func(osPath string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(f.store.base, osPath)
		if err != nil {
			return err
		}
		paths = append(paths, "/"+filepath.ToSlash(rel))
		return nil
	})
	f.store.mu.Unlock()
	if err != nil {
		return fmt.Errorf("walk %s: %w", f.user, err)
	}

	for _, p := range paths {
		if err := visit(p); err != nil {
			return err
		}
	}
	return nil
}
