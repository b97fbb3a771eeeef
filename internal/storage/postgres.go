package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Database is the subset of *pgxpool.Pool the Postgres backend needs.
// pgxmock.PgxPoolIface satisfies it as well.
type Database interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresConfig holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// PostgresKV keeps values in a single key/value table.
type PostgresKV struct {
	db Database
}

// NewDatabase opens a connection pool and pings it.
func NewDatabase(ctx context.Context, config PostgresConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		config.User, config.Password, config.Host, config.Port, config.Name)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresKV creates the backend on top of an open database handle.
func NewPostgresKV(db Database) *PostgresKV {
	return &PostgresKV{db: db}
}

// Migrate creates the key/value table when it does not exist yet.
func (p *PostgresKV) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS hermes_kv (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	if _, err := p.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create key/value table: %w", err)
	}

	return nil
}

// Get retrieves the value stored under key.
func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM hermes_kv
		WHERE key = $1;
	`

	var value []byte
	err := p.db.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query key %q: %w", key, err)
	}

	return value, nil
}

// Set upserts the value stored under key.
func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO hermes_kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at;
	`

	if _, err := p.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to upsert key %q: %w", key, err)
	}

	return nil
}

// Remove deletes key; a missing key is not an error.
func (p *PostgresKV) Remove(ctx context.Context, key string) error {
	query := `
		DELETE FROM hermes_kv
		WHERE key = $1;
	`

	if _, err := p.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}

	return nil
}

func (p *PostgresKV) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
