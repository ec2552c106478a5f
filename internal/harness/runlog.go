package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fssim/internal/simulation"
)

// RunLog manages the per-run output directory.
type RunLog struct {
	mu      sync.Mutex
	dir     string
	runID   string
	started time.Time

	opsFile    *os.File
	verifyFile *os.File
	ops        *json.Encoder
	opCount    int
	encodeErr  error
}

var _ simulation.OpLog = (*RunLog)(nil)

// NewRunLog creates <baseDir>/run-<runID>/ and opens its log files.
func NewRunLog(baseDir, runID string) (*RunLog, error) {
	dir := filepath.Join(baseDir, "run-"+runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	rl := &RunLog{dir: dir, runID: runID, started: time.Now()}

	var err error
	rl.opsFile, err = os.Create(filepath.Join(dir, "operations.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to create operations.jsonl: %w", err)
	}
	rl.verifyFile, err = os.Create(filepath.Join(dir, "verification.log"))
	if err != nil {
		rl.opsFile.Close()
		return nil, fmt.Errorf("failed to create verification.log: %w", err)
	}
	rl.ops = json.NewEncoder(rl.opsFile)
	return rl, nil
}

// Dir returns the run directory.
func (rl *RunLog) Dir() string {
	return rl.dir
}

// Record appends one operation as a JSON line.
func (rl *RunLog) Record(e simulation.Entry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if err := rl.ops.Encode(e); err != nil && rl.encodeErr == nil {
		rl.encodeErr = err
	}
	rl.opCount++
}

// WriteVerification writes the verdict and every failure of a finished run.
func (rl *RunLog) WriteVerification(result *simulation.Result) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	verdict := "VERIFIED"
	if !result.Verified {
		verdict = "NOT VERIFIED"
	}
	fmt.Fprintf(rl.verifyFile, "run %s seed %d: %s\n", result.RunID, result.Seed, verdict)
	if result.Report == nil {
		return nil
	}
	for _, u := range result.Report.Users {
		fmt.Fprintf(rl.verifyFile, "user %s: verified=%v paths=%d files=%d\n", u.User, u.Verified, u.Paths, u.Files)
	}
	for _, f := range result.Report.Failures {
		if _, err := fmt.Fprintln(rl.verifyFile, f.String()); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all log files and writes the manifest.
func (rl *RunLog) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	firstErr := rl.encodeErr
	for _, f := range []*os.File{rl.opsFile, rl.verifyFile} {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := rl.writeManifest(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (rl *RunLog) writeManifest() error {
	f, err := os.Create(filepath.Join(rl.dir, "MANIFEST.txt"))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, `fssim run manifest
═══════════════════════════════════════════════════════════════

Run ID:        %s
Run Directory: %s
Started:       %s
Finished:      %s
Operations:    %d

FILES:
───────────────────────────────────────────────────────────────

operations.jsonl
  - One JSON object per executed operation
  - step, user, action, path, note, ts

verification.log
  - Final verdict and per-user summary
  - One line per recorded divergence
`, rl.runID, rl.dir, rl.started.Format("2006-01-02 15:04:05"), time.Now().Format("2006-01-02 15:04:05"), rl.opCount)
	return err
}
