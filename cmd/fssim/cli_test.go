package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fssim/internal/config"
	"fssim/internal/simulation"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("os/signal.signal_recv"),
		goleak.IgnoreAnyFunction("os/signal.loop"))
}

// setup resets the globals a command relies on.
func setup(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.OpCount = 50
	cfg.Reference.Root = filepath.Join(t.TempDir(), "ref")
	cfg.Output.RunDir = filepath.Join(t.TempDir(), "runs")
	t.Cleanup(func() { cfg = nil })
	return &bytes.Buffer{}
}

func newCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	addRunFlags(cmd)
	cmd.SetOut(out)
	return cmd
}

func TestRunCmd(t *testing.T) {
	out := setup(t)
	cmd := newCmd(out)
	require.NoError(t, cmd.Flags().Set("format", "json"))
	require.NoError(t, cmd.Flags().Set("seed", "5"))

	require.NoError(t, runSimulation(cmd, nil))

	var res simulation.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.Verified)
	assert.Equal(t, int64(5), res.Seed)
	assert.Equal(t, 50, res.Steps)
}

func TestRunCmdReportsDivergence(t *testing.T) {
	out := setup(t)
	cfg.Test.TruncateWrites = true

	err := runSimulation(newCmd(out), nil)
	assert.True(t, errors.Is(err, errNotVerified))
	assert.Contains(t, out.String(), "NOT VERIFIED")
}

func TestRunCmdRejectsBadConfig(t *testing.T) {
	out := setup(t)
	cfg.Users = nil

	err := runSimulation(newCmd(out), nil)
	assert.ErrorIs(t, err, simulation.ErrConfiguration)
}

func TestSoakCmd(t *testing.T) {
	out := setup(t)
	soakRuns, soakParallel = 3, 2
	cmd := newCmd(out)

	require.NoError(t, runSoak(cmd, nil))
	assert.Contains(t, out.String(), "Total: 3 | Verified: 3 | Failed: 0")
}

func TestActionsCmd(t *testing.T) {
	out := setup(t)
	cmd := &cobra.Command{}
	cmd.SetOut(out)

	require.NoError(t, listActions(cmd, nil))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(simulation.Actions())+1)
	assert.Contains(t, out.String(), "grant-write-dir")
	assert.Contains(t, out.String(), "40.0%")
}

func TestConfigInitCmd(t *testing.T) {
	out := setup(t)
	configPath = filepath.Join(t.TempDir(), "fssim.yaml")
	defer func() { configPath = "fssim.yaml" }()
	cmd := &cobra.Command{}
	cmd.SetOut(out)

	require.NoError(t, initConfig(cmd, nil))
	_, err := os.Stat(configPath)
	require.NoError(t, err)

	// Refuses to clobber without --force.
	assert.Error(t, initConfig(cmd, nil))
	configForce = true
	defer func() { configForce = false }()
	assert.NoError(t, initConfig(cmd, nil))

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Weights, loaded.Weights)
}

func TestRootCmdLoadsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fssim.yaml")
	c := config.DefaultConfig()
	c.OpCount = 20
	c.Reference.Root = filepath.Join(dir, "ref")
	c.Output.RunDir = ""
	c.Output.Format = "json"
	c.Logging.Level = "error"
	require.NoError(t, c.Save(path))
	for _, k := range []string{"FSSIM_SEED", "FSSIM_OPS", "FSSIM_USERS", "FSSIM_REFERENCE_ROOT", "FSSIM_ACL_DB", "FSSIM_LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--config", path, "--seed", "2"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	var res simulation.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 20, res.Steps)
	assert.Equal(t, int64(2), res.Seed)
	assert.True(t, res.Verified)
}
