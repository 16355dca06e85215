// Package sqlrepo holds the database/sql repositories shared by the sqlite
// and postgres drivers. Queries are written with ? placeholders and rebound
// by the driver's Dialect.
package sqlrepo

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/onboard/internal/onboard/store"
)

// Dialect captures the handful of things that differ between drivers.
type Dialect interface {
	Name() string

	// Rebind rewrites ? placeholders into the driver's native form.
	Rebind(query string) string

	// IsUniqueViolation reports whether err came from a unique constraint.
	IsUniqueViolation(err error) bool
}

// Migrator applies the driver's embedded schema migrations.
type Migrator func(db *sql.DB) error

type Store struct {
	db      *sql.DB
	q       *queries
	migrate Migrator
}

// New wraps an open database. The driver packages call this; nothing else
// should need to.
func New(db *sql.DB, d Dialect, migrate Migrator) *Store {
	return &Store{
		db:      db,
		q:       &queries{db: db, d: d},
		migrate: migrate,
	}
}

// DB exposes the underlying pool, e.g. for readiness checks in tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ApplyMigrations() error { return s.migrate(s.db) }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, q: &queries{db: tx, d: s.q.d}}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Safe to call after Commit, it just returns ErrTxDone
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users             { return &usersRepo{q: s.q} }
func (s *Store) Invitations() store.Invitations { return &invitationsRepo{q: s.q} }
func (s *Store) AgentPages() store.AgentPages   { return &agentPagesRepo{q: s.q} }
func (s *Store) AuditLog() store.AuditLog       { return &auditRepo{q: s.q} }

type txStore struct {
	tx *sql.Tx
	q  *queries
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op, the outer store owns the pool.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

// Nested transactions are not supported; SAVEPOINT would do it if we ever need them.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

// ApplyMigrations is a no-op; migrations run before any transaction starts.
func (t *txStore) ApplyMigrations() error { return nil }

func (t *txStore) Users() store.Users             { return &usersRepo{q: t.q} }
func (t *txStore) Invitations() store.Invitations { return &invitationsRepo{q: t.q} }
func (t *txStore) AgentPages() store.AgentPages   { return &agentPagesRepo{q: t.q} }
func (t *txStore) AuditLog() store.AuditLog       { return &auditRepo{q: t.q} }
