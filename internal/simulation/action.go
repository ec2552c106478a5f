package simulation

import (
	"fmt"
	"strings"
)

// Permission is one of the two independently grantable capabilities on a path.
type Permission int

const (
	Read Permission = iota
	Write
)

// Permissions returns every permission kind in a fixed order.
func Permissions() []Permission {
	return []Permission{Read, Write}
}

func (p Permission) String() string {
	switch p {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("permission(%d)", int(p))
}

// Action is one entry of the operation vocabulary.
type Action int

const (
	ReadOwnFile Action = iota
	WriteOwnFile
	ReadSharedFile
	WriteSharedFile
	MakeDir
	RemoveFile
	RemoveDir
	GrantReadFile
	GrantReadDir
	GrantWriteFile
	GrantWriteDir
	RevokeRead
	RevokeWrite

	numActions
)

var actionNames = [...]string{
	ReadOwnFile:     "read-own-file",
	WriteOwnFile:    "write-own-file",
	ReadSharedFile:  "read-shared-file",
	WriteSharedFile: "write-shared-file",
	MakeDir:         "mkdir",
	RemoveFile:      "rm",
	RemoveDir:       "rmdir",
	GrantReadFile:   "grant-read-file",
	GrantReadDir:    "grant-read-dir",
	GrantWriteFile:  "grant-write-file",
	GrantWriteDir:   "grant-write-dir",
	RevokeRead:      "revoke-read",
	RevokeWrite:     "revoke-write",
}

// Actions returns the catalog in enumeration order. The scheduler builds its
// cumulative table in this order.
func Actions() []Action {
	out := make([]Action, 0, numActions)
	for a := Action(0); a < numActions; a++ {
		out = append(out, a)
	}
	return out
}

func (a Action) String() string {
	if a.Valid() {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Valid reports whether a belongs to the catalog.
func (a Action) Valid() bool {
	return a >= 0 && a < numActions
}

// ParseAction resolves a catalog name. Matching ignores case and accepts
// underscores in place of dashes so YAML keys like READ_OWN_FILE also work.
func ParseAction(name string) (Action, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
	for a, n := range actionNames {
		if n == norm {
			return Action(a), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrConfiguration, name)
}

// PermissionOf returns the permission kind an action concerns, if any.
func PermissionOf(a Action) (Permission, bool) {
	switch a {
	case GrantReadFile, GrantReadDir, RevokeRead, ReadSharedFile:
		return Read, true
	case GrantWriteFile, GrantWriteDir, RevokeWrite, WriteSharedFile:
		return Write, true
	}
	return 0, false
}

// MarshalText renders the catalog name, so reports and JSON logs stay readable.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// MarshalText renders "read" or "write".
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts any name ParseAction does.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// UnmarshalText accepts "read" or "write".
func (p *Permission) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "read":
		*p = Read
	case "write":
		*p = Write
	default:
		return fmt.Errorf("%w: unknown permission %q", ErrConfiguration, text)
	}
	return nil
}
