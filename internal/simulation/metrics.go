package simulation

import "time"

// ActionStats summarises one action's outcomes over a run.
type ActionStats struct {
	Executed   int           `json:"executed"`
	Skipped    int           `json:"skipped"`
	Warnings   int           `json:"warnings"`
	AvgLatency time.Duration `json:"avg_latency"`
}

// MetricsCollector aggregates per-action counters during a run. A run is
// single threaded, so it carries no lock.
type MetricsCollector struct {
	executed  map[Action]int
	skipped   map[Action]int
	warnings  map[Action]int
	latencies map[Action]time.Duration
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		executed:  make(map[Action]int),
		skipped:   make(map[Action]int),
		warnings:  make(map[Action]int),
		latencies: make(map[Action]time.Duration),
	}
}

// RecordExecuted counts an applied action and the time both backends took.
func (m *MetricsCollector) RecordExecuted(a Action, latency time.Duration) {
	m.executed[a]++
	m.latencies[a] += latency
}

// RecordSkipped counts an action that had nothing to target.
func (m *MetricsCollector) RecordSkipped(a Action) {
	m.skipped[a]++
}

// RecordWarning counts an inline mismatch or rejected read.
func (m *MetricsCollector) RecordWarning(a Action) {
	m.warnings[a]++
}

// Executed returns the total of applied actions.
func (m *MetricsCollector) Executed() int {
	return sum(m.executed)
}

// Skipped returns the total of skipped actions.
func (m *MetricsCollector) Skipped() int {
	return sum(m.skipped)
}

// Warnings returns the total of soft failures seen during the run.
func (m *MetricsCollector) Warnings() int {
	return sum(m.warnings)
}

// Finalize computes per-action statistics keyed by catalog name.
func (m *MetricsCollector) Finalize() map[string]ActionStats {
	seen := make(map[Action]struct{})
	for _, src := range []map[Action]int{m.executed, m.skipped, m.warnings} {
		for a := range src {
			seen[a] = struct{}{}
		}
	}
	out := make(map[string]ActionStats, len(seen))
	for a := range seen {
		st := ActionStats{
			Executed: m.executed[a],
			Skipped:  m.skipped[a],
			Warnings: m.warnings[a],
		}
		if st.Executed > 0 {
			st.AvgLatency = m.latencies[a] / time.Duration(st.Executed)
		}
		out[a.String()] = st
	}
	return out
}

func sum(m map[Action]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
