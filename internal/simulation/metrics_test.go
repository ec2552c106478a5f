package simulation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordExecuted(WriteOwnFile, 10*time.Millisecond)
	m.RecordExecuted(WriteOwnFile, 30*time.Millisecond)
	m.RecordSkipped(RemoveDir)
	m.RecordSkipped(RemoveDir)
	m.RecordWarning(ReadSharedFile)
	m.RecordExecuted(ReadSharedFile, time.Millisecond)

	if got := m.Executed(); got != 3 {
		t.Errorf("Executed() = %d, want 3", got)
	}
	if got := m.Skipped(); got != 2 {
		t.Errorf("Skipped() = %d, want 2", got)
	}
	if got := m.Warnings(); got != 1 {
		t.Errorf("Warnings() = %d, want 1", got)
	}

	want := map[string]ActionStats{
		"write-own-file":   {Executed: 2, AvgLatency: 20 * time.Millisecond},
		"rmdir":            {Skipped: 2},
		"read-shared-file": {Executed: 1, Warnings: 1, AvgLatency: time.Millisecond},
	}
	if diff := cmp.Diff(want, m.Finalize()); diff != "" {
		t.Errorf("Finalize() mismatch (-want +got):\n%s", diff)
	}
}
