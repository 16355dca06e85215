// Package sqlite is the default store driver, backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/onboard/internal/onboard/store/drivers/sqlrepo"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// NewStore opens dsn, which may be a bare file path, a file: URI or
// ":memory:".
//
// SQLite has a single writer anyway so the pool is pinned to one
// connection. That also keeps ":memory:" databases alive across calls,
// since every new connection to ":memory:" would be a fresh empty database.
func NewStore(dsn string) (*sqlrepo.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqlrepo.New(db, Dialect{}, ApplyMigrations), nil
}

// FileDSN builds the DSN used for on-disk databases.
func FileDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
}

// Dialect is the sqlite flavour of sqlrepo.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

// Rebind is the identity, sqlite speaks ? natively.
func (Dialect) Rebind(query string) string { return query }

func (Dialect) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	// Older builds surface the extended code only in the message
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
