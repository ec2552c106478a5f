package simulation

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerRejectsBadTables(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := NewScheduler(ProbabilityTable{}, rng)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewScheduler(ProbabilityTable{MakeDir: 0, RemoveFile: 0}, rng)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewScheduler(ProbabilityTable{MakeDir: 1, RemoveFile: -0.5}, rng)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSchedulerPickBoundaries(t *testing.T) {
	s, err := NewScheduler(ProbabilityTable{GrantReadFile: 1, MakeDir: 1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	// Cumulative order follows the catalog, not the map.
	assert.Equal(t, []Action{MakeDir, GrantReadFile}, s.Actions())

	assert.Equal(t, MakeDir, s.pick(0))
	assert.Equal(t, MakeDir, s.pick(0.5))
	assert.Equal(t, MakeDir, s.pick(1.0), "a draw on a bound selects that bound's action")
	assert.Equal(t, GrantReadFile, s.pick(1.0001))
	assert.Equal(t, GrantReadFile, s.pick(2.0))
}

func TestSchedulerSingleAction(t *testing.T) {
	s, err := NewScheduler(ProbabilityTable{WriteOwnFile: 0.3}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		assert.Equal(t, WriteOwnFile, s.Next())
	}
}

func TestSchedulerFrequencies(t *testing.T) {
	table := ProbabilityTable{WriteOwnFile: 3, MakeDir: 1}
	s, err := NewScheduler(table, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	counts := map[Action]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[s.Next()]++
	}
	assert.InDelta(t, 0.75, float64(counts[WriteOwnFile])/n, 0.02)
	assert.InDelta(t, 0.25, float64(counts[MakeDir])/n, 0.02)
}

func TestTableFromNames(t *testing.T) {
	table, err := TableFromNames(map[string]float64{"mkdir": 0.1, "write_own_file": 0.4})
	require.NoError(t, err)
	assert.Equal(t, ProbabilityTable{MakeDir: 0.1, WriteOwnFile: 0.4}, table)

	_, err = TableFromNames(map[string]float64{"teleport": 1})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = TableFromNames(map[string]float64{"mkdir": -1})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSchedulerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	table := ProbabilityTable{ReadOwnFile: 0, WriteOwnFile: 0.4, MakeDir: 0.1, RevokeRead: 0.05}

	properties.Property("zero-weight actions are never drawn", prop.ForAll(
		func(seed int64) bool {
			s, err := NewScheduler(table, rand.New(rand.NewSource(seed)))
			if err != nil {
				return false
			}
			for i := 0; i < 200; i++ {
				if a := s.Next(); table[a] <= 0 {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.Property("same seed, same sequence", prop.ForAll(
		func(seed int64) bool {
			a, _ := NewScheduler(table, rand.New(rand.NewSource(seed)))
			b, _ := NewScheduler(table, rand.New(rand.NewSource(seed)))
			for i := 0; i < 100; i++ {
				if a.Next() != b.Next() {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
