// Package memfs is an in-memory, node-based filesystem with per-node sharing.
// It is the system under test shipped with fssim: sharing state lives on the
// tree nodes themselves, unlike the reference model's separate ACL table.
package memfs

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"fssim/internal/simulation"
)

// Faults makes the filesystem misbehave on purpose so divergence detection
// can be demonstrated.
type Faults struct {
	// DropRevoke makes Revoke report success without removing the grant.
	DropRevoke bool
	// TruncateWrites shortens every write by one byte when set.
	TruncateWrites bool
	// IgnoreGrants records grants but never lets a sharee use them.
	IgnoreGrants bool
}

type node struct {
	name     string
	parent   *node
	dir      bool
	data     []byte
	children map[string]*node
	sharees  map[simulation.Permission]map[string]struct{}
}

func newNode(name string, parent *node, dir bool) *node {
	n := &node{
		name:    name,
		parent:  parent,
		dir:     dir,
		sharees: make(map[simulation.Permission]map[string]struct{}),
	}
	if dir {
		n.children = make(map[string]*node)
	}
	return n
}

func (n *node) path() string {
	if n.parent == nil {
		return ""
	}
	return n.parent.path() + "/" + n.name
}

func (n *node) sharedWith(user string, perm simulation.Permission) bool {
	_, ok := n.sharees[perm][user]
	return ok
}

// World holds the whole tree and the follow graph for every user.
type World struct {
	mu      sync.Mutex
	root    *node
	friends map[string]map[string]struct{}
	faults  Faults
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return NewWorldWithFaults(Faults{})
}

// NewWorldWithFaults creates an empty world that misbehaves as configured.
func NewWorldWithFaults(faults Faults) *World {
	return &World{
		root:    newNode("", nil, true),
		friends: make(map[string]map[string]struct{}),
		faults:  faults,
	}
}

// FileSystem returns user's handle.
func (w *World) FileSystem(user string) *FileSystem {
	return &FileSystem{world: w, user: user}
}

func (w *World) lookup(p string) (*node, error) {
	n := w.root
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if !n.dir {
			return nil, fmt.Errorf("%w: %s", simulation.ErrNotFound, p)
		}
		child, ok := n.children[part]
		if !ok {
			return nil, fmt.Errorf("%w: %s", simulation.ErrNotFound, p)
		}
		n = child
	}
	return n, nil
}

func (w *World) parentOf(p string) (*node, string, error) {
	i := strings.LastIndexByte(p, '/')
	name := p[i+1:]
	if i == 0 {
		return w.root, name, nil
	}
	parent, err := w.lookup(p[:i])
	if err != nil {
		return nil, "", err
	}
	if !parent.dir {
		return nil, "", fmt.Errorf("%s: parent is not a directory", p)
	}
	return parent, name, nil
}

// FileSystem is one user's view of a World.
type FileSystem struct {
	world *World
	user  string
}

var _ simulation.FileSystem = (*FileSystem)(nil)

func (f *FileSystem) User() string { return f.user }

func (f *FileSystem) String() string { return "memfs:" + f.user }

// allowed walks from n up to the owner's root looking for a grant. Write
// grants imply read access.
func (f *FileSystem) allowed(p string, perm simulation.Permission) bool {
	if simulation.OwnerOf(p) == f.user {
		return true
	}
	if f.world.faults.IgnoreGrants {
		return false
	}
	// Grants may sit on an ancestor of a path that does not exist yet.
	n := f.world.root
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		child, ok := n.children[part]
		if !ok {
			break
		}
		n = child
		if n.sharedWith(f.user, simulation.Write) || (perm == simulation.Read && n.sharedWith(f.user, simulation.Read)) {
			return true
		}
		if !n.dir {
			break
		}
	}
	return false
}

func (f *FileSystem) denied(p string, perm simulation.Permission) error {
	return fmt.Errorf("%w: %s cannot %s %s", simulation.ErrAccessDenied, f.user, perm, p)
}

func (f *FileSystem) owned(p string) (string, error) {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return "", err
	}
	if simulation.OwnerOf(p) != f.user {
		return "", fmt.Errorf("%w: %s does not own %s", simulation.ErrAccessDenied, f.user, p)
	}
	return p, nil
}

func (f *FileSystem) Read(p string) ([]byte, error) {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return nil, err
	}
	f.world.mu.Lock()
	defer f.world.mu.Unlock()

	if !f.allowed(p, simulation.Read) {
		return nil, f.denied(p, simulation.Read)
	}
	n, err := f.world.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, fmt.Errorf("read %s: is a directory", p)
	}
	return append([]byte(nil), n.data...), nil
}

func (f *FileSystem) Write(p string, data []byte) error {
	p, err := simulation.CleanPath(p)
	if err != nil {
		return err
	}
	f.world.mu.Lock()
	defer f.world.mu.Unlock()

	if !f.allowed(p, simulation.Write) {
		return f.denied(p, simulation.Write)
	}
	parent, name, err := f.world.parentOf(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		n = newNode(name, parent, false)
		parent.children[name] = n
	}
	if n.dir {
		return fmt.Errorf("write %s: is a directory", p)
	}
	if f.world.faults.TruncateWrites && len(data) > 0 {
		data = data[:len(data)-1]
	}
	n.data = append([]byte(nil), data...)
	return nil
}

func (f *FileSystem) MkDir(p string) error {
	p, err := f.owned(p)
	if err != nil {
		return err
	}
	f.world.mu.Lock()
	defer f.world.mu.Unlock()

	parent, name, err := f.world.parentOf(p)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return fmt.Errorf("mkdir %s: already exists", p)
	}
	parent.children[name] = newNode(name, parent, true)
	return nil
}

// Delete unlinks the node. Grants on the subtree go with it.
func (f *FileSystem) Delete(p string) error {
	p, err := f.owned(p)
	if err != nil {
		return err
	}
	if p == simulation.RootOf(f.user) {
		return fmt.Errorf("delete %s: cannot delete a root directory", p)
	}
	f.world.mu.Lock()
	defer f.world.mu.Unlock()

	n, err := f.world.lookup(p)
	if err != nil {
		return err
	}
	delete(n.parent.children, n.name)
	n.parent = nil
	return nil
}

func (f *FileSystem) Grant(p, grantee string, perm simulation.Permission) error {
	p, err := f.owned(p)
	if err != nil {
		return err
	}
	if grantee == f.user {
		return fmt.Errorf("grant %s: cannot share with yourself", p)
	}
	f.world.mu.Lock()
	defer f.world.mu.Unlock()

	if _, ok := f.world.friends[f.user][grantee]; !ok {
		return fmt.Errorf("%w: %s does not follow %s", simulation.ErrAccessDenied, f.user, grantee)
	}
	n, err := f.world.lookup(p)
	if err != nil {
		return err
	}
	if n.sharees[perm] == nil {
		n.sharees[perm] = make(map[string]struct{})
	}
	n.sharees[perm][grantee] = struct{}{}
	return nil
}

func (f *FileSystem) Revoke(p, grantee string, perm simulation.Permission) error {
	p, err := f.owned(p)
	if err != nil {
		return err
	}
	f.world.mu.Lock()
	defer f.world.mu.Unlock()

	n, err := f.world.lookup(p)
	if err != nil {
		return err
	}
	if f.world.faults.DropRevoke {
		return nil
	}
	delete(n.sharees[perm], grantee)
	return nil
}

func (f *FileSystem) Sharees(p string, perm simulation.Permission) ([]string, error) {
	p, err := f.owned(p)
	if err != nil {
		return nil, err
	}
	f.world.mu.Lock()
	defer f.world.mu.Unlock()

	n, err := f.world.lookup(p)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(n.sharees[perm]))
	for u := range n.sharees[perm] {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (f *FileSystem) RandomSharedPath(rng *rand.Rand, perm simulation.Permission, grantee string) (string, error) {
	f.world.mu.Lock()
	defer f.world.mu.Unlock()

	root, ok := f.world.root.children[f.user]
	var paths []string
	if ok {
		visit(root, func(n *node) {
			if n.sharedWith(grantee, perm) {
				paths = append(paths, n.path())
			}
		})
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: %s has shared nothing with %s for %s",
			simulation.ErrNothingShared, f.user, grantee, perm)
	}
	sort.Strings(paths)
	return paths[rng.Intn(len(paths))], nil
}

func (f *FileSystem) Follow(other simulation.FileSystem) error {
	o, ok := other.(*FileSystem)
	if !ok || o.world != f.world {
		return fmt.Errorf("%w: %s can only follow handles of the same world", simulation.ErrConfiguration, f.user)
	}
	f.world.mu.Lock()
	defer f.world.mu.Unlock()
	for _, pair := range [][2]string{{f.user, o.user}, {o.user, f.user}} {
		if f.world.friends[pair[0]] == nil {
			f.world.friends[pair[0]] = make(map[string]struct{})
		}
		f.world.friends[pair[0]][pair[1]] = struct{}{}
	}
	return nil
}

func (f *FileSystem) Walk(fn func(p string) error) error {
	f.world.mu.Lock()
	root, ok := f.world.root.children[f.user]
	var paths []string
	if ok {
		visit(root, func(n *node) { paths = append(paths, n.path()) })
	}
	f.world.mu.Unlock()
	if !ok {
		return fmt.Errorf("walk %s: %w", f.user, simulation.ErrNotFound)
	}

	sort.Strings(paths)
	for _, p := range paths {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func visit(n *node, fn func(*node)) {
	fn(n)
	for _, c := range n.children {
		visit(c, fn)
	}
}
