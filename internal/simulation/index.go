package simulation

import (
	"fmt"
	"math/rand"
	"path"
	"sort"
)

// maxFileRetries bounds how many random directories RandomFile tries before
// falling back to the sorted list of non-empty directories.
const maxFileRetries = 64

// ShadowIndex is the engine's own record of what should exist: per user, each
// known directory mapped to the ordered names of the files directly inside it.
// It is maintained only from the operations issued and never asks a backend.
type ShadowIndex struct {
	rng   *rand.Rand
	users map[string]map[string][]string
}

// NewShadowIndex creates an empty index drawing from rng.
func NewShadowIndex(rng *rand.Rand) *ShadowIndex {
	return &ShadowIndex{
		rng:   rng,
		users: make(map[string]map[string][]string),
	}
}

// AddUser creates the user's directory map with an empty root entry.
func (x *ShadowIndex) AddUser(user string) error {
	if _, ok := x.users[user]; ok {
		return fmt.Errorf("%w: user %q already indexed", ErrConfiguration, user)
	}
	x.users[user] = map[string][]string{RootOf(user): {}}
	return nil
}

func (x *ShadowIndex) dirs(user string) (map[string][]string, error) {
	d, ok := x.users[user]
	if !ok {
		return nil, fmt.Errorf("%w: user %q not indexed", ErrConfiguration, user)
	}
	return d, nil
}

// Users returns the indexed users, sorted.
func (x *ShadowIndex) Users() []string {
	out := make([]string, 0, len(x.users))
	for u := range x.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Directories returns every known directory of user in lexicographic order.
func (x *ShadowIndex) Directories(user string) []string {
	d := x.users[user]
	out := make([]string, 0, len(d))
	for p := range d {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Files returns the file names known directly inside dir.
func (x *ShadowIndex) Files(user, dir string) []string {
	return append([]string(nil), x.users[user][dir]...)
}

// IsDirectory reports whether p is a known directory of user.
func (x *ShadowIndex) IsDirectory(user, p string) bool {
	_, ok := x.users[user][p]
	return ok
}

// RandomDirectory picks uniformly among user's directories after sorting them,
// so the choice depends only on the rng and the index contents.
func (x *ShadowIndex) RandomDirectory(user string, skipRoot bool) (string, error) {
	d, err := x.dirs(user)
	if err != nil {
		return "", err
	}
	root := RootOf(user)
	candidates := make([]string, 0, len(d))
	for p := range d {
		if skipRoot && p == root {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: user %s has no directories to pick", ErrNoCandidates, user)
	}
	sort.Strings(candidates)
	return candidates[x.rng.Intn(len(candidates))], nil
}

// RandomFile picks a directory (root included) and then a file inside it,
// re-drawing the directory while the chosen one is empty.
func (x *ShadowIndex) RandomFile(user string) (string, error) {
	d, err := x.dirs(user)
	if err != nil {
		return "", err
	}
	var nonEmpty []string
	for p, files := range d {
		if len(files) > 0 {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return "", fmt.Errorf("%w: user %s has no files", ErrNoCandidates, user)
	}

	for i := 0; i < maxFileRetries; i++ {
		dir, err := x.RandomDirectory(user, false)
		if err != nil {
			return "", err
		}
		if files := d[dir]; len(files) > 0 {
			return path.Join(dir, files[x.rng.Intn(len(files))]), nil
		}
	}

	sort.Strings(nonEmpty)
	dir := nonEmpty[x.rng.Intn(len(nonEmpty))]
	files := d[dir]
	return path.Join(dir, files[x.rng.Intn(len(files))]), nil
}

// Register records a new, empty directory. Registering a known directory is a no-op.
func (x *ShadowIndex) Register(user, dir string) error {
	d, err := x.dirs(user)
	if err != nil {
		return err
	}
	if _, ok := d[dir]; !ok {
		d[dir] = []string{}
	}
	return nil
}

// Unregister drops dir and every directory rooted under it.
func (x *ShadowIndex) Unregister(user, dir string) error {
	d, err := x.dirs(user)
	if err != nil {
		return err
	}
	for p := range d {
		if Within(p, dir) {
			delete(d, p)
		}
	}
	return nil
}

// AddFile records name inside dir. The directory must already be known.
func (x *ShadowIndex) AddFile(user, dir, name string) error {
	d, err := x.dirs(user)
	if err != nil {
		return err
	}
	files, ok := d[dir]
	if !ok {
		return fmt.Errorf("%w: directory %s not indexed for %s", ErrConfiguration, dir, user)
	}
	for _, f := range files {
		if f == name {
			return nil
		}
	}
	d[dir] = append(files, name)
	return nil
}

// RemoveFile forgets name inside dir.
func (x *ShadowIndex) RemoveFile(user, dir, name string) error {
	d, err := x.dirs(user)
	if err != nil {
		return err
	}
	files := d[dir]
	for i, f := range files {
		if f == name {
			d[dir] = append(files[:i:i], files[i+1:]...)
			return nil
		}
	}
	return nil
}

// ExpectedFiles returns the full paths of every file user should own.
func (x *ShadowIndex) ExpectedFiles(user string) []string {
	var out []string
	for dir, files := range x.users[user] {
		for _, f := range files {
			out = append(out, path.Join(dir, f))
		}
	}
	sort.Strings(out)
	return out
}

// ExpectedPaths returns every directory and file path user should own.
func (x *ShadowIndex) ExpectedPaths(user string) map[string]struct{} {
	out := make(map[string]struct{})
	for dir := range x.users[user] {
		out[dir] = struct{}{}
	}
	for _, f := range x.ExpectedFiles(user) {
		out[f] = struct{}{}
	}
	return out
}

// Snapshot copies the index for comparisons in tests and reports.
func (x *ShadowIndex) Snapshot() map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(x.users))
	for u, d := range x.users {
		cp := make(map[string][]string, len(d))
		for dir, files := range d {
			cp[dir] = append([]string{}, files...)
		}
		out[u] = cp
	}
	return out
}
