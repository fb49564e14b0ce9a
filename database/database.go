// Package database wires the configured metadata index backend.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dostvardhan/drivegate"
	"github.com/dostvardhan/drivegate/database/postgres"
	"github.com/dostvardhan/drivegate/database/sqlite"
	"github.com/dostvardhan/drivegate/fileindex"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the backend type: "sqlite", "postgres", or "file"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres file"`
	// DSN is the data source name: a connection string for the SQL
	// backends, a file path for the file backend
	DSN string `mapstructure:"dsn" validate:"required"`
	// Table is the name of the transfers table (SQL backends only)
	Table string `mapstructure:"table"`
}

// Connect establishes a connection to the configured backend, runs
// migrations where applicable, and returns a TransferRepo.
// The returned cleanup function should be called to close the connection.
func Connect(ctx context.Context, cfg Config) (drivegate.TransferRepo, func(), error) {
	switch cfg.Type {
	case "sqlite":
		return connectSQLite(ctx, cfg.DSN, drivegate.Tables{Transfers: cfg.Table})
	case "postgres":
		return connectPostgres(ctx, cfg.DSN, drivegate.Tables{Transfers: cfg.Table})
	case "file":
		store, err := fileindex.NewStore(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open file index: %w", err)
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func connectSQLite(ctx context.Context, dsn string, tables drivegate.Tables) (drivegate.TransferRepo, func(), error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err = sqlite.Migrate(ctx, db, tables); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	repo, err := sqlite.NewRepo(db, tables)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create sqlite repo: %w", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return repo, cleanup, nil
}

func connectPostgres(ctx context.Context, dsn string, tables drivegate.Tables) (drivegate.TransferRepo, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err = postgres.Migrate(ctx, pool, tables); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	repo, err := postgres.NewRepo(pool, tables)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("create postgres repo: %w", err)
	}

	return repo, pool.Close, nil
}
