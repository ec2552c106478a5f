package simulation

import (
	"bytes"
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"
)

// FailureKind classifies a verification failure.
type FailureKind string

const (
	FailureExtra    FailureKind = "extra"
	FailureMissing  FailureKind = "missing"
	FailureWalk     FailureKind = "walk"
	FailureContent  FailureKind = "content"
	FailureRead     FailureKind = "read"
	FailureSharees  FailureKind = "sharees"
	FailureReadable FailureKind = "probe-read"
	FailureWritable FailureKind = "probe-write"
)

// Backend names which side of a pair a failure was observed on.
type Backend string

const (
	BackendTest      Backend = "test"
	BackendReference Backend = "reference"
	BackendBoth      Backend = "both"
)

// Failure is one recorded divergence.
type Failure struct {
	Kind       FailureKind `json:"kind"`
	User       string      `json:"user"`
	Backend    Backend     `json:"backend,omitempty"`
	Path       string      `json:"path,omitempty"`
	Permission *Permission `json:"permission,omitempty"`
	Expected   []string    `json:"expected,omitempty"`
	Actual     []string    `json:"actual,omitempty"`
	Detail     string      `json:"detail,omitempty"`
}

func (f Failure) String() string {
	s := fmt.Sprintf("%s user=%s", f.Kind, f.User)
	if f.Backend != "" {
		s += " backend=" + string(f.Backend)
	}
	if f.Path != "" {
		s += " path=" + f.Path
	}
	if f.Permission != nil {
		s += " permission=" + f.Permission.String()
	}
	if f.Expected != nil || f.Actual != nil {
		s += fmt.Sprintf(" expected=%v actual=%v", f.Expected, f.Actual)
	}
	if f.Detail != "" {
		s += " (" + f.Detail + ")"
	}
	return s
}

// UserReport is the verdict for one user.
type UserReport struct {
	User     string `json:"user"`
	Verified bool   `json:"verified"`
	Paths    int    `json:"paths"`
	Files    int    `json:"files"`
}

// Report is the outcome of verification.
type Report struct {
	Verified bool         `json:"verified"`
	Users    []UserReport `json:"users"`
	Failures []Failure    `json:"failures,omitempty"`
}

// FailuresOf returns the recorded failures of one kind.
func (r *Report) FailuresOf(kind FailureKind) []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Verifier reconciles both backends of every user against the shadow index
// and against each other.
type Verifier struct {
	index  *ShadowIndex
	fs     *FileSystems
	logger *zap.Logger
	report *Report
}

// NewVerifier creates a verifier for a finished run.
func NewVerifier(index *ShadowIndex, fs *FileSystems, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{index: index, fs: fs, logger: logger}
}

// Verify checks every user and never fails early: every divergence is
// recorded and logged, and the run is verified only if all users are.
//
// The write-permission probe overwrites the shared file on the system under
// test with a single zero byte. Verification is therefore not read-only; each
// file is probed after its contents were compared, so the overwrite cannot
// affect the content verdict.
func (v *Verifier) Verify() *Report {
	v.report = &Report{Verified: true}
	for _, user := range v.fs.Users() {
		ok := v.verifyUser(user)
		if !ok {
			v.logger.Info("user is not verified", zap.String("user", user))
			v.report.Verified = false
		}
	}
	return v.report
}

func (v *Verifier) fail(ok *bool, f Failure) {
	*ok = false
	v.report.Failures = append(v.report.Failures, f)
	v.logger.Info("verification failure",
		zap.String("kind", string(f.Kind)),
		zap.String("user", f.User),
		zap.String("backend", string(f.Backend)),
		zap.String("path", f.Path),
		zap.Strings("expected", f.Expected),
		zap.Strings("actual", f.Actual),
		zap.String("detail", f.Detail))
}

func (v *Verifier) verifyUser(user string) bool {
	ok := true
	expected := v.index.ExpectedPaths(user)
	files := v.index.ExpectedFiles(user)

	v.verifyTree(&ok, user, BackendTest, v.fs.Test(user), expected)
	v.verifyTree(&ok, user, BackendReference, v.fs.Reference(user), expected)

	for _, p := range files {
		v.verifyContents(&ok, user, p)
		v.verifySharing(&ok, user, p)
	}

	v.report.Users = append(v.report.Users, UserReport{
		User:     user,
		Verified: ok,
		Paths:    len(expected),
		Files:    len(files),
	})
	return ok
}

func (v *Verifier) verifyTree(ok *bool, user string, backend Backend, fs FileSystem, expected map[string]struct{}) {
	walked := make(map[string]struct{})
	err := fs.Walk(func(p string) error {
		walked[p] = struct{}{}
		return nil
	})
	if err != nil {
		v.fail(ok, Failure{Kind: FailureWalk, User: user, Backend: backend, Detail: err.Error()})
	}

	for _, p := range difference(walked, expected) {
		v.fail(ok, Failure{Kind: FailureExtra, User: user, Backend: backend, Path: p})
	}
	for _, p := range difference(expected, walked) {
		v.fail(ok, Failure{Kind: FailureMissing, User: user, Backend: backend, Path: p})
	}
}

func (v *Verifier) verifyContents(ok *bool, user, p string) {
	got, testErr := v.fs.Test(user).Read(p)
	want, refErr := v.fs.Reference(user).Read(p)
	if testErr != nil {
		v.fail(ok, Failure{Kind: FailureRead, User: user, Backend: BackendTest, Path: p, Detail: testErr.Error()})
	}
	if refErr != nil {
		v.fail(ok, Failure{Kind: FailureRead, User: user, Backend: BackendReference, Path: p, Detail: refErr.Error()})
	}
	if testErr == nil && refErr == nil && !bytes.Equal(got, want) {
		v.fail(ok, Failure{
			Kind:   FailureContent,
			User:   user,
			Path:   p,
			Detail: fmt.Sprintf("test has %d bytes, reference has %d", len(got), len(want)),
		})
	}
}

func (v *Verifier) verifySharing(ok *bool, user, p string) {
	for _, perm := range Permissions() {
		perm := perm
		testSharees, testErr := v.fs.Test(user).Sharees(p, perm)
		refSharees, refErr := v.fs.Reference(user).Sharees(p, perm)
		if testErr != nil || refErr != nil {
			v.fail(ok, Failure{
				Kind:       FailureSharees,
				User:       user,
				Backend:    BackendBoth,
				Path:       p,
				Permission: &perm,
				Detail:     fmt.Sprintf("test error: %v, reference error: %v", testErr, refErr),
			})
			continue
		}
		want, got := normalize(refSharees), normalize(testSharees)
		if !slices.Equal(want, got) {
			v.fail(ok, Failure{
				Kind:       FailureSharees,
				User:       user,
				Path:       p,
				Permission: &perm,
				Expected:   want,
				Actual:     got,
			})
		}

		for _, sharee := range got {
			v.probe(ok, user, sharee, p, perm)
		}
	}
}

// probe checks that a declared sharee can really use the permission on the
// system under test.
func (v *Verifier) probe(ok *bool, owner, sharee, p string, perm Permission) {
	fs := v.fs.Test(sharee)
	if fs == nil {
		v.fail(ok, Failure{Kind: kindFor(perm), User: owner, Backend: BackendTest, Path: p, Permission: &perm,
			Detail: fmt.Sprintf("sharee %s is not part of the run", sharee)})
		return
	}
	var err error
	switch perm {
	case Read:
		_, err = fs.Read(p)
	case Write:
		err = fs.Write(p, []byte{0})
	}
	if err != nil {
		v.fail(ok, Failure{
			Kind:       kindFor(perm),
			User:       owner,
			Backend:    BackendTest,
			Path:       p,
			Permission: &perm,
			Detail:     fmt.Sprintf("sharee %s rejected: %v", sharee, err),
		})
	}
}

func kindFor(perm Permission) FailureKind {
	if perm == Write {
		return FailureWritable
	}
	return FailureReadable
}

// difference returns the sorted members of a that are not in b.
func difference(a, b map[string]struct{}) []string {
	var out []string
	for p := range a {
		if _, ok := b[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func normalize(in []string) []string {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
