package localfs_test

import (
	"path/filepath"
	"testing"

	"fssim/internal/localfs"
	"fssim/internal/simulation"
	"fssim/internal/simulation/simtest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformanceMemoryACL(t *testing.T) {
	simtest.RunConformance(t, func(t *testing.T) func(string) simulation.FileSystem {
		s := localfs.NewMemStore()
		t.Cleanup(func() { s.Close() })
		return func(u string) simulation.FileSystem { return s.FileSystem(u) }
	})
}

func TestConformanceSQLiteACL(t *testing.T) {
	simtest.RunConformance(t, func(t *testing.T) func(string) simulation.FileSystem {
		acl, err := localfs.OpenSQLiteACL("")
		require.NoError(t, err)
		s, err := localfs.NewStore(afero.NewMemMapFs(), "/ref", acl)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return func(u string) simulation.FileSystem { return s.FileSystem(u) }
	})
}

func TestConformanceOnDisk(t *testing.T) {
	simtest.RunConformance(t, func(t *testing.T) func(string) simulation.FileSystem {
		s, err := localfs.NewStore(afero.NewOsFs(), t.TempDir(), localfs.NewMemoryACL())
		require.NoError(t, err)
		return func(u string) simulation.FileSystem { return s.FileSystem(u) }
	})
}

func TestOSPath(t *testing.T) {
	s, err := localfs.NewStore(afero.NewMemMapFs(), "/ref", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/ref", "alice", "d", "f"), s.OSPath("/alice/d/f"))
}

func TestRemovingBehindTheStoresBack(t *testing.T) {
	s := localfs.NewMemStore()
	alice := s.FileSystem("alice")
	require.NoError(t, alice.MkDir("/alice"))
	require.NoError(t, alice.Write("/alice/f", []byte("x")))

	require.NoError(t, s.Fs().Remove(s.OSPath("/alice/f")))
	_, err := alice.Read("/alice/f")
	assert.ErrorIs(t, err, simulation.ErrNotFound)
}

func TestSQLiteACLPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "acl", "grants.db")

	acl, err := localfs.OpenSQLiteACL(dbPath)
	require.NoError(t, err)
	require.NoError(t, acl.Grant("/alice/f", "bob", simulation.Read))
	require.NoError(t, acl.Grant("/alice/d", "bob", simulation.Write))
	require.NoError(t, acl.Close())

	acl, err = localfs.OpenSQLiteACL(dbPath)
	require.NoError(t, err)
	defer acl.Close()
	assert.Equal(t, dbPath, acl.Path())

	sharees, err := acl.Sharees("/alice/f", simulation.Read)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, sharees)

	ok, err := acl.Granted([]string{"/alice/d/x", "/alice/d", "/alice"}, "bob", simulation.Write)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, acl.Reset())
	sharees, err = acl.Sharees("/alice/f", simulation.Read)
	require.NoError(t, err)
	assert.Empty(t, sharees)
}

// Both ACLs must agree on the same sequence of calls.
func TestACLImplementationsAgree(t *testing.T) {
	sqlACL, err := localfs.OpenSQLiteACL(":memory:")
	require.NoError(t, err)
	defer sqlACL.Close()

	for _, acl := range []localfs.AccessControl{localfs.NewMemoryACL(), sqlACL} {
		require.NoError(t, acl.Grant("/alice/a", "bob", simulation.Read))
		require.NoError(t, acl.Grant("/alice/a/b", "bob", simulation.Read))
		require.NoError(t, acl.Grant("/alice/ab", "bob", simulation.Read))
		require.NoError(t, acl.Grant("/alicex/c", "bob", simulation.Read))
		require.NoError(t, acl.Grant("/alice/a", "carol", simulation.Write))

		shared, err := acl.SharedWith("alice", "bob", simulation.Read)
		require.NoError(t, err)
		assert.Equal(t, []string{"/alice/a", "/alice/a/b", "/alice/ab"}, shared)

		// Purge is by path component, not string prefix.
		require.NoError(t, acl.Purge("/alice/a"))
		shared, err = acl.SharedWith("alice", "bob", simulation.Read)
		require.NoError(t, err)
		assert.Equal(t, []string{"/alice/ab"}, shared)

		sharees, err := acl.Sharees("/alice/a", simulation.Write)
		require.NoError(t, err)
		assert.Empty(t, sharees)

		require.NoError(t, acl.Revoke("/alice/ab", "bob", simulation.Read))
		ok, err := acl.Granted([]string{"/alice/ab"}, "bob", simulation.Read, simulation.Write)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestACLImplementationsAgreeOnNonASCIIOwners(t *testing.T) {
	sqlACL, err := localfs.OpenSQLiteACL(":memory:")
	require.NoError(t, err)
	defer sqlACL.Close()

	for name, acl := range map[string]localfs.AccessControl{"memory": localfs.NewMemoryACL(), "sqlite": sqlACL} {
		require.NoError(t, acl.Grant("/józef/1/2", "bob", simulation.Read), name)
		require.NoError(t, acl.Grant("/józef/3", "bob", simulation.Read), name)
		require.NoError(t, acl.Grant("/zoë", "bob", simulation.Read), name)

		shared, err := acl.SharedWith("józef", "bob", simulation.Read)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"/józef/1/2", "/józef/3"}, shared, name)

		require.NoError(t, acl.Purge("/józef/1"), name)
		sharees, err := acl.Sharees("/józef/1/2", simulation.Read)
		require.NoError(t, err, name)
		assert.Empty(t, sharees, name)

		shared, err = acl.SharedWith("józef", "bob", simulation.Read)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"/józef/3"}, shared, name)

		shared, err = acl.SharedWith("zoë", "bob", simulation.Read)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"/zoë"}, shared, name)
	}
}
