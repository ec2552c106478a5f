package simulation

import (
	"fmt"
	"math/rand"
	"sort"
)

// ProbabilityTable maps each action to a relative, non-negative weight.
// Weights need not sum to one; zero weights are never sampled.
type ProbabilityTable map[Action]float64

// TableFromNames builds a table from catalog names, as found in YAML configs.
func TableFromNames(weights map[string]float64) (ProbabilityTable, error) {
	table := make(ProbabilityTable, len(weights))
	for name, w := range weights {
		a, err := ParseAction(name)
		if err != nil {
			return nil, err
		}
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight %v for %s", ErrConfiguration, w, a)
		}
		table[a] = w
	}
	return table, nil
}

// Scheduler produces an unbounded, seed-deterministic stream of actions drawn
// from a ProbabilityTable.
type Scheduler struct {
	rng        *rand.Rand
	actions    []Action
	cumulative []float64
	total      float64
}

// NewScheduler discards zero-weight entries and builds the cumulative table in
// catalog order, so map iteration order never leaks into the sequence.
func NewScheduler(table ProbabilityTable, rng *rand.Rand) (*Scheduler, error) {
	s := &Scheduler{rng: rng}
	for _, a := range Actions() {
		w := table[a]
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight %v for %s", ErrConfiguration, w, a)
		}
		if w == 0 {
			continue
		}
		s.total += w
		s.actions = append(s.actions, a)
		s.cumulative = append(s.cumulative, s.total)
	}
	if len(s.actions) == 0 {
		return nil, fmt.Errorf("%w: probability table has no positive weights", ErrConfiguration)
	}
	return s, nil
}

// Next draws the next action.
func (s *Scheduler) Next() Action {
	return s.pick(s.rng.Float64() * s.total)
}

// pick returns the action owning the first cumulative bound >= v. A draw that
// lands exactly on a bound selects that bound's action, not the next one.
func (s *Scheduler) pick(v float64) Action {
	i := sort.SearchFloat64s(s.cumulative, v)
	if i >= len(s.actions) {
		i = len(s.actions) - 1
	}
	return s.actions[i]
}

// Actions returns the actions with positive weight in sampling order.
func (s *Scheduler) Actions() []Action {
	return append([]Action(nil), s.actions...)
}
