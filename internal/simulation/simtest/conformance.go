// Package simtest holds a conformance suite every simulation.FileSystem
// backend is expected to pass, plus helpers for wiring test runs.
package simtest

import (
	"math/rand"
	"sort"
	"testing"

	"fssim/internal/simulation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewWorld returns a constructor of handles that all share one fresh world.
type NewWorld func(t *testing.T) func(user string) simulation.FileSystem

// setup creates two users that follow each other and own a root each.
func setup(t *testing.T, newWorld NewWorld) (owner, friend simulation.FileSystem) {
	t.Helper()
	handle := newWorld(t)
	owner, friend = handle("alice"), handle("bob")
	require.NoError(t, owner.MkDir("/alice"))
	require.NoError(t, friend.MkDir("/bob"))
	require.NoError(t, owner.Follow(friend))
	return owner, friend
}

func walk(t *testing.T, fs simulation.FileSystem) []string {
	t.Helper()
	var paths []string
	require.NoError(t, fs.Walk(func(p string) error {
		paths = append(paths, p)
		return nil
	}))
	sort.Strings(paths)
	return paths
}

// RunConformance runs the backend contract against newWorld.
func RunConformance(t *testing.T, newWorld NewWorld) {
	t.Run("write then read returns the same bytes", func(t *testing.T) {
		owner, _ := setup(t, newWorld)
		data := make([]byte, 1000)
		rand.New(rand.NewSource(7)).Read(data)

		require.NoError(t, owner.Write("/alice/f", data))
		got, err := owner.Read("/alice/f")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		owner, _ := setup(t, newWorld)
		require.NoError(t, owner.Write("/alice/f", []byte("first version")))
		require.NoError(t, owner.Write("/alice/f", []byte{0}))
		got, err := owner.Read("/alice/f")
		require.NoError(t, err)
		assert.Equal(t, []byte{0}, got)
	})

	t.Run("missing file is not found", func(t *testing.T) {
		owner, _ := setup(t, newWorld)
		_, err := owner.Read("/alice/nope")
		assert.ErrorIs(t, err, simulation.ErrNotFound)
	})

	t.Run("walk lists root directories and files", func(t *testing.T) {
		owner, _ := setup(t, newWorld)
		require.NoError(t, owner.MkDir("/alice/d"))
		require.NoError(t, owner.Write("/alice/d/f", []byte("x")))
		require.NoError(t, owner.Write("/alice/g", []byte("y")))
		assert.Equal(t, []string{"/alice", "/alice/d", "/alice/d/f", "/alice/g"}, walk(t, owner))
	})

	t.Run("deleting a directory is recursive", func(t *testing.T) {
		owner, _ := setup(t, newWorld)
		require.NoError(t, owner.MkDir("/alice/a"))
		require.NoError(t, owner.MkDir("/alice/a/b"))
		require.NoError(t, owner.Write("/alice/a/b/f", []byte("x")))
		require.NoError(t, owner.Delete("/alice/a"))
		assert.Equal(t, []string{"/alice"}, walk(t, owner))
	})

	t.Run("strangers cannot read", func(t *testing.T) {
		owner, friend := setup(t, newWorld)
		require.NoError(t, owner.Write("/alice/f", []byte("secret")))
		_, err := friend.Read("/alice/f")
		assert.ErrorIs(t, err, simulation.ErrAccessDenied)
	})

	t.Run("grant read then revoke", func(t *testing.T) {
		owner, friend := setup(t, newWorld)
		require.NoError(t, owner.Write("/alice/f", []byte("shared")))

		require.NoError(t, owner.Grant("/alice/f", "bob", simulation.Read))
		got, err := friend.Read("/alice/f")
		require.NoError(t, err)
		assert.Equal(t, []byte("shared"), got)

		sharees, err := owner.Sharees("/alice/f", simulation.Read)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, sharees)

		require.NoError(t, owner.Revoke("/alice/f", "bob", simulation.Read))
		_, err = friend.Read("/alice/f")
		assert.ErrorIs(t, err, simulation.ErrAccessDenied)
	})

	t.Run("read grant does not allow writing", func(t *testing.T) {
		owner, friend := setup(t, newWorld)
		require.NoError(t, owner.Write("/alice/f", []byte("shared")))
		require.NoError(t, owner.Grant("/alice/f", "bob", simulation.Read))
		assert.ErrorIs(t, friend.Write("/alice/f", []byte{0}), simulation.ErrAccessDenied)
	})

	t.Run("directory write grant covers children", func(t *testing.T) {
		owner, friend := setup(t, newWorld)
		require.NoError(t, owner.MkDir("/alice/d"))
		require.NoError(t, owner.Write("/alice/d/f", []byte("old")))
		require.NoError(t, owner.Grant("/alice/d", "bob", simulation.Write))

		require.NoError(t, friend.Write("/alice/d/f", []byte("new")))
		got, err := owner.Read("/alice/d/f")
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), got)

		// Sharees are direct grants only.
		sharees, err := owner.Sharees("/alice/d/f", simulation.Write)
		require.NoError(t, err)
		assert.Empty(t, sharees)
	})

	t.Run("grant requires following", func(t *testing.T) {
		handle := newWorld(t)
		owner, stranger := handle("alice"), handle("carol")
		require.NoError(t, owner.MkDir("/alice"))
		require.NoError(t, stranger.MkDir("/carol"))
		require.NoError(t, owner.Write("/alice/f", []byte("x")))
		assert.Error(t, owner.Grant("/alice/f", "carol", simulation.Read))
	})

	t.Run("random shared path", func(t *testing.T) {
		owner, _ := setup(t, newWorld)
		rng := rand.New(rand.NewSource(1))

		_, err := owner.RandomSharedPath(rng, simulation.Read, "bob")
		assert.ErrorIs(t, err, simulation.ErrNothingShared)

		require.NoError(t, owner.MkDir("/alice/d"))
		require.NoError(t, owner.Write("/alice/f", []byte("x")))
		require.NoError(t, owner.Grant("/alice/d", "bob", simulation.Read))
		require.NoError(t, owner.Grant("/alice/f", "bob", simulation.Read))
		require.NoError(t, owner.Grant("/alice/f", "bob", simulation.Write))

		seen := map[string]bool{}
		for i := 0; i < 50; i++ {
			p, err := owner.RandomSharedPath(rng, simulation.Read, "bob")
			require.NoError(t, err)
			seen[p] = true
		}
		assert.Equal(t, map[string]bool{"/alice/d": true, "/alice/f": true}, seen)

		p, err := owner.RandomSharedPath(rng, simulation.Write, "bob")
		require.NoError(t, err)
		assert.Equal(t, "/alice/f", p)
	})

	t.Run("deleting drops grants", func(t *testing.T) {
		owner, _ := setup(t, newWorld)
		require.NoError(t, owner.MkDir("/alice/d"))
		require.NoError(t, owner.Write("/alice/d/f", []byte("x")))
		require.NoError(t, owner.Grant("/alice/d/f", "bob", simulation.Read))
		require.NoError(t, owner.Delete("/alice/d"))

		_, err := owner.RandomSharedPath(rand.New(rand.NewSource(1)), simulation.Read, "bob")
		assert.ErrorIs(t, err, simulation.ErrNothingShared)
	})

	t.Run("only owners mutate structure", func(t *testing.T) {
		owner, friend := setup(t, newWorld)
		require.NoError(t, owner.MkDir("/alice/d"))
		assert.ErrorIs(t, friend.MkDir("/alice/e"), simulation.ErrAccessDenied)
		assert.ErrorIs(t, friend.Delete("/alice/d"), simulation.ErrAccessDenied)
	})
}
