package simulation

import "errors"

var (
	// ErrNoCandidates is returned when the shadow index has nothing eligible to
	// target (no directory left after excluding the root, no file anywhere, no
	// second user). The executor treats it as a skipped step.
	ErrNoCandidates = errors.New("no candidates available")

	// ErrNothingShared is returned by FileSystem.RandomSharedPath when the owner
	// has shared nothing with the grantee under the requested permission.
	ErrNothingShared = errors.New("nothing shared")

	// ErrNotFound is returned by backends for absent paths.
	ErrNotFound = errors.New("path not found")

	// ErrAccessDenied is returned by backends when the caller lacks permission.
	ErrAccessDenied = errors.New("access denied")

	// ErrConfiguration marks fatal setup problems: duplicate users, mismatched
	// identities within a pair, empty probability tables.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnexpectedAction means the scheduler produced a value outside the catalog.
	ErrUnexpectedAction = errors.New("unexpected action")
)

// isSkip reports whether err means "nothing to target right now".
func isSkip(err error) bool {
	return errors.Is(err, ErrNoCandidates) || errors.Is(err, ErrNothingShared)
}
