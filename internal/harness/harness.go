// Package harness turns a configuration into backend worlds and drives
// simulation runs over them, reporting each result.
package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fssim/internal/config"
	"fssim/internal/localfs"
	"fssim/internal/logging"
	"fssim/internal/memfs"
	"fssim/internal/simulation"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Harness is the main orchestrator for simulation runs.
type Harness struct {
	cfg      *config.Config
	table    simulation.ProbabilityTable
	logger   *zap.Logger
	reporter *Reporter
}

// NewHarness validates cfg and prepares a harness writing reports to output.
func NewHarness(cfg *config.Config, logger *zap.Logger, output io.Writer) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", simulation.ErrConfiguration, err)
	}
	table, err := simulation.TableFromNames(cfg.Weights)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{
		cfg:      cfg,
		table:    table,
		logger:   logger,
		reporter: NewReporter(output, cfg.Output.Format),
	}, nil
}

// World is one run's pair of backends.
type World struct {
	Test  *memfs.World
	Store *localfs.Store

	root string
	temp bool
}

// Pairs returns one test/reference pair per user.
func (w *World) Pairs(users []string) []simulation.Pair {
	pairs := make([]simulation.Pair, 0, len(users))
	for _, u := range users {
		pairs = append(pairs, simulation.Pair{
			Test:      w.Test.FileSystem(u),
			Reference: w.Store.FileSystem(u),
		})
	}
	return pairs
}

// Root returns the reference tree's directory on disk.
func (w *World) Root() string {
	return w.root
}

// NewWorld builds fresh backends for one run. Each run gets its own reference
// directory, and in soak mode its own ACL database.
func (h *Harness) NewWorld(runID string, seed int64, soak bool) (*World, error) {
	log := logging.Named(h.logger, h.cfg.Logging, logging.CategoryBackend)

	w := &World{
		Test: memfs.NewWorldWithFaults(memfs.Faults{
			DropRevoke:     h.cfg.Test.DropRevoke,
			TruncateWrites: h.cfg.Test.TruncateWrites,
			IgnoreGrants:   h.cfg.Test.IgnoreGrants,
		}),
	}

	if h.cfg.Reference.Root == "" {
		dir, err := os.MkdirTemp("", "fssim-ref-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create reference root: %w", err)
		}
		w.root, w.temp = dir, true
	} else {
		w.root = filepath.Join(h.cfg.Reference.Root, "run-"+runID)
	}

	acl, err := h.openACL(seed, soak)
	if err != nil {
		w.cleanup()
		return nil, err
	}
	w.Store, err = localfs.NewStore(afero.NewOsFs(), w.root, acl)
	if err != nil {
		acl.Close()
		w.cleanup()
		return nil, err
	}

	log.Debug("world ready",
		zap.String("run", runID),
		zap.String("reference_root", w.root),
		zap.String("acl", h.cfg.Reference.ACL))
	return w, nil
}

func (h *Harness) openACL(seed int64, soak bool) (localfs.AccessControl, error) {
	if h.cfg.Reference.ACL != "sqlite" {
		return localfs.NewMemoryACL(), nil
	}
	dbPath := h.cfg.Reference.ACLDB
	if soak && dbPath != "" {
		ext := filepath.Ext(dbPath)
		dbPath = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(dbPath, ext), seed, ext)
	}
	acl, err := localfs.OpenSQLiteACL(dbPath)
	if err != nil {
		return nil, err
	}
	if err := acl.Reset(); err != nil {
		acl.Close()
		return nil, err
	}
	return acl, nil
}

// closeWorld releases the ACL and removes a temporary reference root.
func (h *Harness) closeWorld(w *World) error {
	err := w.Store.Close()
	if w.temp && !h.cfg.Reference.Keep {
		w.cleanup()
	}
	return err
}

func (w *World) cleanup() {
	if w.temp {
		os.RemoveAll(w.root)
	}
}

// Run executes one simulation with the given seed and reports it.
func (h *Harness) Run(ctx context.Context, seed int64) (*simulation.Result, error) {
	result, err := h.execute(ctx, seed, false)
	if err != nil {
		return nil, err
	}
	if err := h.reporter.Report(result); err != nil {
		return nil, fmt.Errorf("reporting failed: %w", err)
	}
	return result, nil
}

// Soak runs seeds seed..seed+runs-1, at most parallel at a time, each in its
// own world, and reports a summary. Results are ordered by seed.
func (h *Harness) Soak(ctx context.Context, runs, parallel int) ([]*simulation.Result, error) {
	if runs <= 0 {
		return nil, fmt.Errorf("%w: runs must be positive, got %d", simulation.ErrConfiguration, runs)
	}
	if parallel <= 0 {
		parallel = 1
	}

	results := make([]*simulation.Result, runs)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i := 0; i < runs; i++ {
		i := i
		seed := h.cfg.Seed + int64(i)
		g.Go(func() error {
			res, err := h.execute(ctx, seed, true)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := h.reporter.ReportSummary(results); err != nil {
		return nil, fmt.Errorf("summary reporting failed: %w", err)
	}
	return results, nil
}

func (h *Harness) execute(ctx context.Context, seed int64, soak bool) (*simulation.Result, error) {
	runID := uuid.NewString()

	world, err := h.NewWorld(runID, seed, soak)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := h.closeWorld(world); err != nil {
			h.logger.Warn("failed to close world", zap.String("run", runID), zap.Error(err))
		}
	}()

	simLogger := logging.Named(h.logger, h.cfg.Logging, logging.CategorySimulation)
	sinks := simulation.MultiLog{simulation.NewZapLog(simLogger.With(zap.String("run", runID)))}

	var runLog *RunLog
	if h.cfg.Output.RunDir != "" {
		runLog, err = NewRunLog(h.cfg.Output.RunDir, runID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, runLog)
	}

	sim, err := simulation.New(simulation.Options{
		Seed:           seed,
		OpCount:        h.cfg.OpCount,
		MeanFileLength: h.cfg.MeanFileLength,
		MaxFileLength:  h.cfg.MaxFileLength,
	}, h.table, world.Pairs(h.cfg.Users),
		simulation.WithOpLog(sinks),
		simulation.WithLogger(simLogger),
		simulation.WithVerifyLogger(logging.Named(h.logger, h.cfg.Logging, logging.CategoryVerify)),
		simulation.WithRunID(runID))
	if err != nil {
		if runLog != nil {
			runLog.Close()
		}
		return nil, err
	}

	result, runErr := sim.Run(ctx)
	if runLog != nil {
		if result != nil {
			if err := runLog.WriteVerification(result); err != nil {
				h.logger.Warn("failed to write verification log", zap.Error(err))
			}
		}
		if err := runLog.Close(); err != nil {
			h.logger.Warn("failed to close run log", zap.Error(err))
		}
	}
	if runErr != nil {
		return nil, fmt.Errorf("run %s: %w", runID, runErr)
	}
	return result, nil
}
