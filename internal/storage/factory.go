package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Type represents the kind of storage backend.
type Type string

const (
	// TypeFile keeps one file per key in a local directory.
	TypeFile Type = "file"
	// TypeRedis keeps values in Redis.
	TypeRedis Type = "redis"
	// TypePostgres keeps values in a PostgreSQL table.
	TypePostgres Type = "postgres"
	// TypeMemory keeps values in process memory only.
	TypeMemory Type = "memory"
)

// Config holds configuration for creating a storage backend.
type Config struct {
	Type     Type           // Type of backend to create
	Dir      string         // Dir is the data directory for the file backend
	Redis    RedisConfig    // Redis connection settings
	Postgres PostgresConfig // Postgres connection settings
	Logger   *slog.Logger
}

// New creates a storage backend based on the provided configuration. The returned function
// releases the backend's connections and is never nil.
func New(ctx context.Context, config Config) (KV, func(), error) {
	noop := func() {}

	switch config.Type {
	case TypeFile:
		kv, err := NewFileKV(config.Dir)
		if err != nil {
			return nil, noop, err
		}
		return kv, noop, nil
	case TypeRedis:
		client, err := NewRedisClient(config.Redis)
		if err != nil {
			return nil, noop, err
		}
		return NewRedisKV(client), func() { _ = client.Close() }, nil
	case TypePostgres:
		pool, err := NewDatabase(ctx, config.Postgres)
		if err != nil {
			return nil, noop, err
		}
		kv := NewPostgresKV(pool)
		if err = kv.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return kv, pool.Close, nil
	case TypeMemory:
		if config.Logger != nil {
			config.Logger.Warn("Using in-memory storage, the route will not survive a restart")
		}
		return NewMemoryKV(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}
