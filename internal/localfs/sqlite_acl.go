package localfs

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fssim/internal/simulation"

	_ "modernc.org/sqlite"
)

// SQLiteACL persists grants in a SQLite database so a failed run can be
// inspected after the process exits.
type SQLiteACL struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteACL opens (or creates) the grant database at dbPath. An empty path
// or ":memory:" keeps the database in memory.
func OpenSQLiteACL(dbPath string) (*SQLiteACL, error) {
	dsn := dbPath
	if dsn == "" {
		dsn = ":memory:"
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create acl directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open acl database: %w", err)
	}
	// An in-memory database lives per connection.
	db.SetMaxOpenConns(1)

	acl := &SQLiteACL{db: db, dbPath: dsn}
	if err := acl.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize acl schema: %w", err)
	}
	return acl, nil
}

func (a *SQLiteACL) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grants (
		path TEXT NOT NULL,
		grantee TEXT NOT NULL,
		perm TEXT NOT NULL,
		PRIMARY KEY (path, grantee, perm)
	);
	CREATE INDEX IF NOT EXISTS idx_grants_grantee ON grants(grantee, perm);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Path returns the database location.
func (a *SQLiteACL) Path() string {
	return a.dbPath
}

func (a *SQLiteACL) Grant(path, grantee string, perm simulation.Permission) error {
	_, err := a.db.Exec(`INSERT OR IGNORE INTO grants (path, grantee, perm) VALUES (?, ?, ?)`,
		path, grantee, perm.String())
	if err != nil {
		return fmt.Errorf("grant %s on %s: %w", perm, path, err)
	}
	return nil
}

func (a *SQLiteACL) Revoke(path, grantee string, perm simulation.Permission) error {
	_, err := a.db.Exec(`DELETE FROM grants WHERE path = ? AND grantee = ? AND perm = ?`,
		path, grantee, perm.String())
	if err != nil {
		return fmt.Errorf("revoke %s on %s: %w", perm, path, err)
	}
	return nil
}

func (a *SQLiteACL) Sharees(path string, perm simulation.Permission) ([]string, error) {
	return a.strings(`SELECT grantee FROM grants WHERE path = ? AND perm = ? ORDER BY grantee`,
		path, perm.String())
}

func (a *SQLiteACL) SharedWith(owner, grantee string, perm simulation.Permission) ([]string, error) {
	root := simulation.RootOf(owner)
	prefix := root + "/"
	return a.strings(`SELECT path FROM grants
		WHERE grantee = ? AND perm = ? AND (path = ? OR substr(path, 1, length(?)) = ?)
		ORDER BY path`,
		grantee, perm.String(), root, prefix, prefix)
}

func (a *SQLiteACL) Granted(paths []string, grantee string, perms ...simulation.Permission) (bool, error) {
	if len(paths) == 0 || len(perms) == 0 {
		return false, nil
	}
	args := make([]any, 0, 1+len(paths)+len(perms))
	args = append(args, grantee)
	for _, p := range paths {
		args = append(args, p)
	}
	for _, perm := range perms {
		args = append(args, perm.String())
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM grants WHERE grantee = ? AND path IN (%s) AND perm IN (%s)`,
		placeholders(len(paths)), placeholders(len(perms)))

	var n int
	if err := a.db.QueryRow(query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check grants for %s: %w", grantee, err)
	}
	return n > 0, nil
}

func (a *SQLiteACL) Purge(path string) error {
	prefix := strings.TrimSuffix(path, "/") + "/"
	// substr and length count characters, so the prefix is measured by SQLite.
	_, err := a.db.Exec(`DELETE FROM grants WHERE path = ? OR substr(path, 1, length(?)) = ?`,
		path, prefix, prefix)
	if err != nil {
		return fmt.Errorf("purge grants under %s: %w", path, err)
	}
	return nil
}

// Reset forgets every grant. A reused database file must not leak grants
// into a fresh store.
func (a *SQLiteACL) Reset() error {
	if _, err := a.db.Exec(`DELETE FROM grants`); err != nil {
		return fmt.Errorf("reset grants: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (a *SQLiteACL) Close() error {
	return a.db.Close()
}

func (a *SQLiteACL) strings(query string, args ...any) ([]string, error) {
	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
