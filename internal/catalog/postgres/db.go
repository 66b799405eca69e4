// Package postgres implements internal/catalog's repositories against
// Postgres via sqlx + lib/pq, grounded on the teacher's
// accounts-service/internal/repository/postgres package: a Database
// wrapper around *sqlx.DB, one repository type per aggregate, $1..$n
// placeholders, and explicit transactions for multi-statement operations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Config holds the Postgres connection parameters, mirroring the
// teacher's accounts-service Config shape.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Database wraps a *sqlx.DB connection pool shared by every repository.
type Database struct {
	db *sqlx.DB
}

// NewDatabase opens and pings a Postgres connection pool per cfg.
func NewDatabase(cfg Config) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime == 0 {
		lifetime = 5 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	return &Database{db: db}, nil
}

// Close closes the underlying connection pool.
func (d *Database) Close() error { return d.db.Close() }

// Ping verifies connectivity.
func (d *Database) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Begin starts a new transaction.
func (d *Database) Begin(ctx context.Context) (*sqlx.Tx, error) {
	return d.db.BeginTxx(ctx, nil)
}

// GetDB exposes the raw *sqlx.DB for repositories that need it directly.
func (d *Database) GetDB() *sqlx.DB { return d.db }

// NewDatabaseFromConn wraps an already-open *sqlx.DB, letting tests back a
// Database with a sqlmock connection instead of a live Postgres dial.
func NewDatabaseFromConn(db *sqlx.DB) *Database { return &Database{db: db} }
