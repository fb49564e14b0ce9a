package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dostvardhan/drivegate"
)

// quoteIdentifier safely quotes a PostgreSQL identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// Migrate creates the transfers table and its indexes if missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables drivegate.Tables) error {
	quotedTable := quoteIdentifier(tables.Transfers)
	indexNewestFirst := quoteIdentifier(fmt.Sprintf("idx_%s_uploaded_at", tables.Transfers))

	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID NOT NULL PRIMARY KEY,
			storage_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			caption TEXT NOT NULL,
			uploaded_by TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL
		)
	`, quotedTable)

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("migrate: create table: %w", err)
	}

	indexSQL := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s ON %s (uploaded_at DESC)
	`, indexNewestFirst, quotedTable)

	if _, err := pool.Exec(ctx, indexSQL); err != nil {
		return fmt.Errorf("migrate: create index uploaded_at: %w", err)
	}

	return nil
}

// DropTables removes the transfers table. Intended for tests.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables drivegate.Tables) error {
	dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(tables.Transfers))

	if _, err := pool.Exec(ctx, dropSQL); err != nil {
		return fmt.Errorf("migrate: drop table: %w", err)
	}

	return nil
}
