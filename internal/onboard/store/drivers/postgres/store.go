// Package postgres is the store driver for multi-instance deployments,
// backed by pgx through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/store/drivers/sqlrepo"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// NewStore opens a pool against dsn and verifies it within a short timeout.
func NewStore(dsn string) (*sqlrepo.Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewStoreFromDB(db), nil
}

// NewStoreFromDB wraps an existing *sql.DB. Tests hand in a sqlmock here.
func NewStoreFromDB(db *sql.DB) *sqlrepo.Store {
	return sqlrepo.New(db, Dialect{}, ApplyMigrations)
}

// Dialect is the postgres flavour of sqlrepo.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Rebind(query string) string { return sqlrepo.RebindDollar(query) }

func (Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
