package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fssim/internal/simulation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLog(t *testing.T) {
	base := t.TempDir()
	rl, err := NewRunLog(base, "abc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-abc"), rl.Dir())

	rl.Record(simulation.Entry{Step: 1, User: "left", Action: simulation.MakeDir, Path: "/left/0"})
	rl.Record(simulation.Entry{Step: 2, User: "left", Action: simulation.WriteOwnFile, Path: "/left/0/1"})
	require.NoError(t, rl.WriteVerification(sampleResult(false)))
	require.NoError(t, rl.Close())

	ops, err := os.ReadFile(filepath.Join(rl.Dir(), "operations.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(ops)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"action":"write-own-file"`)

	verification, err := os.ReadFile(filepath.Join(rl.Dir(), "verification.log"))
	require.NoError(t, err)
	assert.Contains(t, string(verification), "run run-1 seed 7: NOT VERIFIED")
	assert.Contains(t, string(verification), "missing user=left backend=reference path=/left/1")

	manifest, err := os.ReadFile(filepath.Join(rl.Dir(), "MANIFEST.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "Run ID:        abc")
	assert.Contains(t, string(manifest), "Operations:    2")
}
