package simulation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// named is a FileSystem that only knows its user.
type named struct {
	FileSystem
	user string
}

func (n named) User() string { return n.user }

func pairOf(test, ref string) Pair {
	return Pair{Test: named{user: test}, Reference: named{user: ref}}
}

func TestNewFileSystemsValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := NewFileSystems(rng)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewFileSystems(rng, pairOf("left", "right"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewFileSystems(rng, pairOf("left", "left"), pairOf("left", "left"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewFileSystems(rng, Pair{Test: named{user: "left"}})
	assert.ErrorIs(t, err, ErrConfiguration)

	fs, err := NewFileSystems(rng, pairOf("right", "right"), pairOf("left", "left"))
	require.NoError(t, err)
	assert.Equal(t, []string{"left", "right"}, fs.Users())
	assert.Equal(t, "left", fs.Test("left").User())
	assert.Nil(t, fs.Test("nobody"))
}

func TestOtherUser(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	single, err := NewFileSystems(rng, pairOf("left", "left"))
	require.NoError(t, err)
	_, err = single.OtherUser("left")
	assert.ErrorIs(t, err, ErrNoCandidates)

	fs, err := NewFileSystems(rng, pairOf("a", "a"), pairOf("b", "b"), pairOf("c", "c"))
	require.NoError(t, err)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		u, err := fs.OtherUser("b")
		require.NoError(t, err)
		seen[u] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "c": true}, seen)
}
