package simulation

import (
	"fmt"
	"math/rand"
	"sort"
)

// FileSystem is the capability the simulator needs from a backend, as seen by
// one user. Paths are slash separated and rooted at the owner, e.g. /alice/3/7.
type FileSystem interface {
	// User returns the identity this handle acts as.
	User() string

	// Read returns the file content, ErrNotFound or ErrAccessDenied.
	Read(path string) ([]byte, error)
	// Write creates or overwrites a file.
	Write(path string, data []byte) error
	// MkDir creates a directory.
	MkDir(path string) error
	// Delete removes a file or, recursively, a directory.
	Delete(path string) error

	Grant(path, grantee string, perm Permission) error
	Revoke(path, grantee string, perm Permission) error
	// Sharees lists the users directly granted perm on path.
	Sharees(path string, perm Permission) ([]string, error)
	// RandomSharedPath picks one of the paths this user has shared with grantee
	// under perm, or returns ErrNothingShared.
	RandomSharedPath(rng *rand.Rand, perm Permission, grantee string) (string, error)

	// Follow establishes the trust relation needed before sharing with other.
	Follow(other FileSystem) error
	// Walk calls visit once for every path reachable in this user's tree,
	// the root included.
	Walk(visit func(path string) error) error
}

// Pair holds the two handles for one user. The roles are fixed: Test is the
// system under test, Reference is the oracle.
type Pair struct {
	Test      FileSystem
	Reference FileSystem
}

// FileSystems is the run's set of pairs, one per user.
type FileSystems struct {
	rng   *rand.Rand
	users []string
	pairs map[string]Pair
}

// NewFileSystems validates that both handles of every pair act as the same user
// and that no user appears twice.
func NewFileSystems(rng *rand.Rand, pairs ...Pair) (*FileSystems, error) {
	fs := &FileSystems{
		rng:   rng,
		pairs: make(map[string]Pair, len(pairs)),
	}
	for _, p := range pairs {
		if p.Test == nil || p.Reference == nil {
			return nil, fmt.Errorf("%w: pair is missing a handle", ErrConfiguration)
		}
		user := p.Reference.User()
		if p.Test.User() != user {
			return nil, fmt.Errorf("%w: pair users differ: test=%q reference=%q",
				ErrConfiguration, p.Test.User(), user)
		}
		if _, dup := fs.pairs[user]; dup {
			return nil, fmt.Errorf("%w: duplicate user %q", ErrConfiguration, user)
		}
		fs.pairs[user] = p
		fs.users = append(fs.users, user)
	}
	if len(fs.users) == 0 {
		return nil, fmt.Errorf("%w: no users", ErrConfiguration)
	}
	sort.Strings(fs.users)
	return fs, nil
}

// Users returns the users in sorted order.
func (f *FileSystems) Users() []string {
	return append([]string(nil), f.users...)
}

// Test returns the system-under-test handle for user.
func (f *FileSystems) Test(user string) FileSystem {
	return f.pairs[user].Test
}

// Reference returns the reference handle for user.
func (f *FileSystems) Reference(user string) FileSystem {
	return f.pairs[user].Reference
}

// NextUser picks a user uniformly.
func (f *FileSystems) NextUser() string {
	return f.users[f.rng.Intn(len(f.users))]
}

// OtherUser picks a user uniformly among everyone except notThis.
func (f *FileSystems) OtherUser(notThis string) (string, error) {
	if len(f.users) < 2 {
		return "", fmt.Errorf("%w: no second user besides %s", ErrNoCandidates, notThis)
	}
	for {
		u := f.users[f.rng.Intn(len(f.users))]
		if u != notThis {
			return u, nil
		}
	}
}
