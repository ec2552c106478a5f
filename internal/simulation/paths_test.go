package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	p, err := CleanPath("/left//3/./4/")
	require.NoError(t, err)
	assert.Equal(t, "/left/3/4", p)

	_, err = CleanPath("left/3")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = CleanPath("/")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOwnerOf(t *testing.T) {
	assert.Equal(t, "left", OwnerOf("/left"))
	assert.Equal(t, "left", OwnerOf("/left/1/2"))
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"/left/1/2", "/left/1", "/left"}, Ancestors("/left/1/2"))
	assert.Equal(t, []string{"/left"}, Ancestors("/left"))
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/left/a", "/left/a"))
	assert.True(t, Within("/left/a/b", "/left/a"))
	assert.False(t, Within("/left/ab", "/left/a"))
	assert.False(t, Within("/left", "/left/a"))
}
