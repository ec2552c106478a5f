package harness

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"fssim/internal/simulation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(verified bool) *simulation.Result {
	res := &simulation.Result{
		RunID:    "run-1",
		Seed:     7,
		Verified: verified,
		Steps:    10,
		Seeded:   4,
		Executed: 12,
		Skipped:  2,
		Duration: time.Second,
		PerAction: map[string]simulation.ActionStats{
			"mkdir":          {Executed: 4},
			"write-own-file": {Executed: 8, Skipped: 2},
		},
		Report: &simulation.Report{
			Verified: verified,
			Users: []simulation.UserReport{
				{User: "left", Verified: verified, Paths: 3, Files: 2},
				{User: "right", Verified: true, Paths: 2, Files: 1},
			},
		},
	}
	if !verified {
		res.Report.Failures = []simulation.Failure{{
			Kind: simulation.FailureMissing, User: "left", Backend: simulation.BackendReference, Path: "/left/1",
		}}
	}
	return res
}

func TestReporterConsole(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, "console")
	require.NoError(t, r.Report(sampleResult(false)))

	out := buf.String()
	assert.Contains(t, out, "FSSIM RUN run-1 (seed 7)")
	assert.Contains(t, out, "✗ NOT VERIFIED")
	assert.Contains(t, out, "Seeded:    4")
	assert.Contains(t, out, "PER ACTION:")
	assert.Less(t, strings.Index(out, "mkdir"), strings.Index(out, "write-own-file"))
	assert.Contains(t, out, "1. missing user=left backend=reference path=/left/1")
}

func TestReporterConsoleVerified(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReporter(&buf, "console").Report(sampleResult(true)))
	assert.Contains(t, buf.String(), "✓ VERIFIED")
	assert.NotContains(t, buf.String(), "FAILURES:")
}

func TestReporterJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReporter(&buf, "json").Report(sampleResult(false)))

	var decoded simulation.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.False(t, decoded.Verified)
	require.Len(t, decoded.Report.Failures, 1)
	assert.Equal(t, "/left/1", decoded.Report.Failures[0].Path)
}

func TestReportSummary(t *testing.T) {
	results := []*simulation.Result{sampleResult(true), sampleResult(false)}

	var buf bytes.Buffer
	require.NoError(t, NewReporter(&buf, "console").ReportSummary(results))
	assert.Contains(t, buf.String(), "Total: 2 | Verified: 1 | Failed: 1")

	buf.Reset()
	require.NoError(t, NewReporter(&buf, "json").ReportSummary(results))
	var summary Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
	assert.Equal(t, Summary{Total: 2, Verified: 1, Failed: 1, Runs: summary.Runs}, summary)
	assert.Len(t, summary.Runs, 2)
}
