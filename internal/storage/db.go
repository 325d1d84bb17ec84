package storage

import (
	"context"
	"fmt"
)

// Config holds the connection settings for every backend the pipeline can
// talk to. Backend selects the relational store; the ClickHouse archive is
// attached only when Archive is true.
type Config struct {
	Backend    string // "postgres" or "sqlite"
	SQLitePath string

	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Archive    bool
}

// DefaultConfig returns local development settings.
func DefaultConfig() Config {
	return Config{
		Backend:    "postgres",
		SQLitePath: "zev_ingest.db",
		Postgres:   DefaultPostgresConfig(),
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "zev",
			User:     "default",
			Password: "",
		},
	}
}

// Open opens the configured relational store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "postgres":
		return OpenPostgres(ctx, cfg.Postgres)
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// OpenArchive opens the ClickHouse archive when enabled; otherwise it returns
// nil and loaders skip archiving.
func OpenArchive(ctx context.Context, cfg Config) (*Archive, error) {
	if !cfg.Archive {
		return nil, nil
	}
	return OpenClickHouse(ctx, cfg.ClickHouse)
}
