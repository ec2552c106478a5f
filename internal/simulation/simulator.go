package simulation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MinFileLength is the smallest file the executor writes.
const MinFileLength = 256

// DefaultMaxFileLength caps generated files when Options leaves it unset.
const DefaultMaxFileLength = 16 << 20

// Options configures one run.
type Options struct {
	Seed           int64
	OpCount        int
	MeanFileLength int
	MaxFileLength  int
}

// Result is the outcome of a full simulate-then-verify run.
// Executed+Skipped == Steps+Seeded.
type Result struct {
	RunID    string `json:"run_id"`
	Seed     int64  `json:"seed"`
	Verified bool   `json:"verified"`
	// Steps is the number of scheduled actions.
	Steps int `json:"steps"`
	// Seeded counts the MakeDir and WriteOwnFile applied per user by Init.
	Seeded int `json:"seeded"`
	// Executed counts every applied action, seeding included.
	Executed  int                    `json:"executed"`
	Skipped   int                    `json:"skipped"`
	Warnings  int                    `json:"warnings"`
	PerAction map[string]ActionStats `json:"per_action"`
	Report    *Report                `json:"report"`
	Duration  time.Duration          `json:"duration"`
}

// Option customises a Simulator.
type Option func(*Simulator)

// WithOpLog sets the sink for executed operations.
func WithOpLog(l OpLog) Option {
	return func(s *Simulator) { s.oplog = l }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithVerifyLogger sets a separate logger for the verification pass.
// Without it the verifier logs through the diagnostic logger.
func WithVerifyLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.verifyLogger = l }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(s *Simulator) { s.runID = id }
}

// WithClock replaces time.Now for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// Simulator drives both backends of every user through the same randomly
// scheduled operations and then verifies that they agree.
type Simulator struct {
	opts      Options
	rng       *rand.Rand
	scheduler *Scheduler
	fs        *FileSystems
	index     *ShadowIndex
	metrics   *MetricsCollector

	oplog        OpLog
	logger       *zap.Logger
	verifyLogger *zap.Logger
	runID        string
	now          func() time.Time

	step        int
	seeded      int
	nameCounter int64
}

// New wires a simulator. A single rng seeded from opts.Seed is shared by the
// scheduler, the user picker and the shadow index; every action consumes it in
// a fixed order, which is what makes a run reproducible.
func New(opts Options, table ProbabilityTable, pairs []Pair, options ...Option) (*Simulator, error) {
	if opts.OpCount < 0 {
		return nil, fmt.Errorf("%w: negative op count %d", ErrConfiguration, opts.OpCount)
	}
	if opts.MeanFileLength <= 0 {
		opts.MeanFileLength = MinFileLength
	}
	if opts.MaxFileLength <= 0 {
		opts.MaxFileLength = DefaultMaxFileLength
	}
	if opts.MaxFileLength < MinFileLength {
		return nil, fmt.Errorf("%w: max file length %d below minimum %d",
			ErrConfiguration, opts.MaxFileLength, MinFileLength)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	scheduler, err := NewScheduler(table, rng)
	if err != nil {
		return nil, err
	}
	fs, err := NewFileSystems(rng, pairs...)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		opts:      opts,
		rng:       rng,
		scheduler: scheduler,
		fs:        fs,
		index:     NewShadowIndex(rng),
		metrics:   NewMetricsCollector(),
		oplog:     discardLog{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, o := range options {
		o(s)
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	s.logger = s.logger.With(zap.String("run", s.runID))
	if s.verifyLogger == nil {
		s.verifyLogger = s.logger
	} else {
		s.verifyLogger = s.verifyLogger.With(zap.String("run", s.runID))
	}
	return s, nil
}

// Index exposes the shadow index, mainly for tests and reports.
func (s *Simulator) Index() *ShadowIndex {
	return s.index
}

// FileSystems exposes the run's backend pairs.
func (s *Simulator) FileSystems() *FileSystems {
	return s.fs
}

// Run seeds every user, executes OpCount scheduled actions and verifies.
// Skipped actions and inline read mismatches do not fail the run; the
// returned error is reserved for configuration problems, unexpected actions
// and backend calls that must not fail.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	s.logger.Info("running file-system IO-simulation",
		zap.Int64("seed", s.opts.Seed),
		zap.Int("ops", s.opts.OpCount),
		zap.Strings("users", s.fs.Users()))

	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("init failed: %w", err)
	}

	for i := 0; i < s.opts.OpCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation interrupted at step %d: %w", i, err)
		}
		if err := s.Step(s.scheduler.Next()); err != nil {
			return nil, err
		}
	}

	s.logger.Info("running file-system verification")
	report := NewVerifier(s.index, s.fs, s.verifyLogger).Verify()
	s.logger.Info("system verified", zap.Bool("verified", report.Verified))

	return &Result{
		RunID:     s.runID,
		Seed:      s.opts.Seed,
		Verified:  report.Verified,
		Steps:     s.opts.OpCount,
		Seeded:    s.seeded,
		Executed:  s.metrics.Executed(),
		Skipped:   s.metrics.Skipped(),
		Warnings:  s.metrics.Warnings(),
		PerAction: s.metrics.Finalize(),
		Report:    report,
		Duration:  time.Since(start),
	}, nil
}

// Init creates each user's root on both backends, seeds it with a directory
// and a file directly inside the root, and makes every pair of users follow
// each other. The root file keeps RandomFile from starting on an empty user.
func (s *Simulator) Init() error {
	users := s.fs.Users()
	for i, user := range users {
		root := RootOf(user)
		if err := s.index.AddUser(user); err != nil {
			return err
		}
		if err := s.fs.Test(user).MkDir(root); err != nil {
			return fmt.Errorf("test mkdir %s: %w", root, err)
		}
		if err := s.fs.Reference(user).MkDir(root); err != nil {
			return fmt.Errorf("reference mkdir %s: %w", root, err)
		}
		if err := s.apply(MakeDir, user); err != nil {
			return err
		}
		started := time.Now()
		if err := s.writeFile(user, root); err != nil {
			return err
		}
		s.metrics.RecordExecuted(WriteOwnFile, time.Since(started))
		s.seeded += 2

		for _, other := range users[i+1:] {
			if err := s.fs.Test(user).Follow(s.fs.Test(other)); err != nil {
				return fmt.Errorf("test follow %s -> %s: %w", user, other, err)
			}
			if err := s.fs.Reference(user).Follow(s.fs.Reference(other)); err != nil {
				return fmt.Errorf("reference follow %s -> %s: %w", user, other, err)
			}
		}
	}
	return nil
}

// Step applies one action for a uniformly chosen user. Exhausted candidates
// are counted as skips and swallowed.
func (s *Simulator) Step(a Action) error {
	if !a.Valid() {
		return fmt.Errorf("%w: %v", ErrUnexpectedAction, a)
	}
	user := s.fs.NextUser()
	err := s.apply(a, user)
	if err != nil && isSkip(err) {
		s.metrics.RecordSkipped(a)
		s.logger.Debug("skipped", zap.Stringer("action", a), zap.String("user", user), zap.Error(err))
		return nil
	}
	return err
}

func (s *Simulator) apply(a Action, user string) error {
	started := time.Now()
	var err error
	switch a {
	case ReadOwnFile:
		err = s.readOwn(user)
	case WriteOwnFile:
		err = s.writeOwn(user)
	case ReadSharedFile:
		err = s.readShared(user)
	case WriteSharedFile:
		err = s.writeShared(user)
	case MakeDir:
		err = s.mkdir(user)
	case RemoveFile:
		err = s.rm(user)
	case RemoveDir:
		err = s.rmdir(user)
	case GrantReadFile, GrantWriteFile:
		err = s.grant(a, user, false)
	case GrantReadDir, GrantWriteDir:
		err = s.grant(a, user, true)
	case RevokeRead, RevokeWrite:
		err = s.revoke(a, user)
	default:
		return fmt.Errorf("%w: %v", ErrUnexpectedAction, a)
	}
	if err == nil {
		s.metrics.RecordExecuted(a, time.Since(started))
	}
	return err
}

func (s *Simulator) record(user string, a Action, p, note string) {
	s.step++
	s.oplog.Record(Entry{
		Time:   s.now(),
		Step:   s.step,
		User:   user,
		Action: a,
		Path:   p,
		Note:   note,
	})
}

func (s *Simulator) warn(a Action, msg string, fields ...zap.Field) {
	s.metrics.RecordWarning(a)
	s.logger.Warn(msg, append(fields, zap.Stringer("action", a))...)
}

func (s *Simulator) nextName() string {
	name := strconv.FormatInt(s.nameCounter, 10)
	s.nameCounter++
	return name
}

func (s *Simulator) nextFileLength() int {
	target := s.rng.NormFloat64() * float64(s.opts.MeanFileLength)
	target = math.Max(target, MinFileLength)
	target = math.Min(target, float64(s.opts.MaxFileLength))
	return int(target)
}

func (s *Simulator) nextContents() []byte {
	data := make([]byte, s.nextFileLength())
	s.rng.Read(data)
	return data
}

// compareRead reads p as reader from both backends. Disagreement is only a
// warning; final verification is authoritative.
func (s *Simulator) compareRead(a Action, reader, p string) {
	ref, refErr := s.fs.Reference(reader).Read(p)
	got, testErr := s.fs.Test(reader).Read(p)
	switch {
	case refErr != nil || testErr != nil:
		s.warn(a, "inline read failed",
			zap.String("user", reader), zap.String("path", p),
			zap.NamedError("reference_error", refErr), zap.NamedError("test_error", testErr))
	case !bytes.Equal(ref, got):
		s.warn(a, "inline read mismatch",
			zap.String("user", reader), zap.String("path", p),
			zap.Int("reference_len", len(ref)), zap.Int("test_len", len(got)))
	}
}

func (s *Simulator) writeBoth(writer, p string, data []byte) error {
	if err := s.fs.Test(writer).Write(p, data); err != nil {
		return fmt.Errorf("test write %s as %s: %w", p, writer, err)
	}
	if err := s.fs.Reference(writer).Write(p, data); err != nil {
		return fmt.Errorf("reference write %s as %s: %w", p, writer, err)
	}
	return nil
}

func (s *Simulator) deleteBoth(user, p string) error {
	if err := s.fs.Test(user).Delete(p); err != nil {
		return fmt.Errorf("test delete %s: %w", p, err)
	}
	if err := s.fs.Reference(user).Delete(p); err != nil {
		return fmt.Errorf("reference delete %s: %w", p, err)
	}
	return nil
}

func (s *Simulator) readOwn(user string) error {
	p, err := s.index.RandomFile(user)
	if err != nil {
		return err
	}
	s.record(user, ReadOwnFile, p, "")
	s.compareRead(ReadOwnFile, user, p)
	return nil
}

func (s *Simulator) writeOwn(user string) error {
	dir, err := s.index.RandomDirectory(user, false)
	if err != nil {
		return err
	}
	return s.writeFile(user, dir)
}

func (s *Simulator) writeFile(user, dir string) error {
	name := s.nextName()
	p := path.Join(dir, name)
	s.record(user, WriteOwnFile, p, "")
	if err := s.writeBoth(user, p, s.nextContents()); err != nil {
		return err
	}
	return s.index.AddFile(user, dir, name)
}

// sharedFile asks the owner's reference backend for something it shared with
// sharee under perm. A shared directory resolves to a file directly inside it.
func (s *Simulator) sharedFile(owner, sharee string, perm Permission) (string, error) {
	p, err := s.fs.Reference(owner).RandomSharedPath(s.rng, perm, sharee)
	if err != nil {
		return "", err
	}
	if !s.index.IsDirectory(owner, p) {
		return p, nil
	}
	files := s.index.Files(owner, p)
	if len(files) == 0 {
		return "", fmt.Errorf("%w: shared directory %s is empty", ErrNoCandidates, p)
	}
	return path.Join(p, files[s.rng.Intn(len(files))]), nil
}

func (s *Simulator) readShared(user string) error {
	owner, err := s.fs.OtherUser(user)
	if err != nil {
		return err
	}
	p, err := s.sharedFile(owner, user, Read)
	if err != nil {
		return err
	}
	s.record(user, ReadSharedFile, p, "owner "+owner)
	s.compareRead(ReadSharedFile, user, p)
	return nil
}

// writeShared overwrites a file owned by someone else. The index tracks each
// file once, under its owner, and the name already exists there.
func (s *Simulator) writeShared(user string) error {
	owner, err := s.fs.OtherUser(user)
	if err != nil {
		return err
	}
	p, err := s.sharedFile(owner, user, Write)
	if err != nil {
		return err
	}
	s.record(user, WriteSharedFile, p, "owner "+owner)
	return s.writeBoth(user, p, s.nextContents())
}

func (s *Simulator) mkdir(user string) error {
	name := s.nextName()
	dir, err := s.index.RandomDirectory(user, false)
	if err != nil {
		return err
	}
	p := path.Join(dir, name)
	if err := s.index.Register(user, p); err != nil {
		return err
	}
	s.record(user, MakeDir, p, "")
	if err := s.fs.Test(user).MkDir(p); err != nil {
		return fmt.Errorf("test mkdir %s: %w", p, err)
	}
	if err := s.fs.Reference(user).MkDir(p); err != nil {
		return fmt.Errorf("reference mkdir %s: %w", p, err)
	}
	return nil
}

func (s *Simulator) rm(user string) error {
	p, err := s.index.RandomFile(user)
	if err != nil {
		return err
	}
	if err := s.index.RemoveFile(user, path.Dir(p), path.Base(p)); err != nil {
		return err
	}
	s.record(user, RemoveFile, p, "")
	return s.deleteBoth(user, p)
}

func (s *Simulator) rmdir(user string) error {
	p, err := s.index.RandomDirectory(user, true)
	if err != nil {
		return err
	}
	if err := s.index.Unregister(user, p); err != nil {
		return err
	}
	s.record(user, RemoveDir, p, "")
	return s.deleteBoth(user, p)
}

func (s *Simulator) grant(a Action, user string, dir bool) error {
	perm, _ := PermissionOf(a)
	var (
		p   string
		err error
	)
	if dir {
		p, err = s.index.RandomDirectory(user, true)
	} else {
		p, err = s.index.RandomFile(user)
	}
	if err != nil {
		return err
	}
	grantee, err := s.fs.OtherUser(user)
	if err != nil {
		return err
	}
	s.record(user, a, p, "with grantee "+grantee)
	if err := s.fs.Test(user).Grant(p, grantee, perm); err != nil {
		return fmt.Errorf("test grant %s %s to %s: %w", perm, p, grantee, err)
	}
	if err := s.fs.Reference(user).Grant(p, grantee, perm); err != nil {
		return fmt.Errorf("reference grant %s %s to %s: %w", perm, p, grantee, err)
	}
	return nil
}

func (s *Simulator) revoke(a Action, user string) error {
	perm, _ := PermissionOf(a)
	revokee, err := s.fs.OtherUser(user)
	if err != nil {
		return err
	}
	p, err := s.fs.Reference(user).RandomSharedPath(s.rng, perm, revokee)
	if err != nil {
		return err
	}
	s.record(user, a, p, "from "+revokee)
	if err := s.fs.Test(user).Revoke(p, revokee, perm); err != nil {
		return fmt.Errorf("test revoke %s %s from %s: %w", perm, p, revokee, err)
	}
	if err := s.fs.Reference(user).Revoke(p, revokee, perm); err != nil {
		return fmt.Errorf("reference revoke %s %s from %s: %w", perm, p, revokee, err)
	}
	return nil
}

// IsFatal reports whether a Run error is a configuration or contract problem
// rather than a backend failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrUnexpectedAction)
}
