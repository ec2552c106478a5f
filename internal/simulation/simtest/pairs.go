package simtest

import (
	"testing"

	"fssim/internal/localfs"
	"fssim/internal/memfs"
	"fssim/internal/simulation"
)

// Backends is a memfs world under test against an in-memory reference store.
type Backends struct {
	World *memfs.World
	Store *localfs.Store
	Pairs []simulation.Pair
}

// NewBackends builds one pair per user. The store is closed when t ends.
func NewBackends(t *testing.T, faults memfs.Faults, users ...string) *Backends {
	t.Helper()
	b := &Backends{
		World: memfs.NewWorldWithFaults(faults),
		Store: localfs.NewMemStore(),
	}
	t.Cleanup(func() { b.Store.Close() })
	for _, u := range users {
		b.Pairs = append(b.Pairs, simulation.Pair{
			Test:      b.World.FileSystem(u),
			Reference: b.Store.FileSystem(u),
		})
	}
	return b
}

// DefaultTable is the mixed workload used by end-to-end tests.
func DefaultTable() simulation.ProbabilityTable {
	return simulation.ProbabilityTable{
		simulation.ReadOwnFile:    0.0,
		simulation.WriteOwnFile:   0.4,
		simulation.RemoveFile:     0.0,
		simulation.MakeDir:        0.1,
		simulation.RemoveDir:      0.0,
		simulation.GrantReadFile:  0.2,
		simulation.GrantWriteFile: 0.1,
		simulation.GrantReadDir:   0.05,
		simulation.GrantWriteDir:  0.05,
		simulation.RevokeRead:     0.05,
		simulation.RevokeWrite:    0.05,
	}
}
