// Package postgres implements the transfer repo interface using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dostvardhan/drivegate"
)

const transferColumns = "id, storage_id, name, caption, uploaded_by, mime_type, size_bytes, uploaded_at"

type Repo struct {
	pool      *pgxpool.Pool
	tableName string
}

func NewRepo(pool *pgxpool.Pool, tables drivegate.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new postgres repo: %w", err)
	}
	return &Repo{pool: pool, tableName: tables.Transfers}, nil
}

func (r *Repo) Append(ctx context.Context, rec drivegate.TransferRecord) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.tableName, transferColumns)

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.StorageID, rec.Name, rec.Caption, rec.UploadedBy,
		rec.MimeType, rec.SizeBytes, rec.UploadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}

	return nil
}

func (r *Repo) List(ctx context.Context, limit int) ([]drivegate.TransferRecord, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s ORDER BY uploaded_at DESC, id`, transferColumns, r.tableName)
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	records := make([]drivegate.TransferRecord, 0)
	for rows.Next() {
		var rec drivegate.TransferRecord
		if scanErr := rows.Scan(&rec.ID, &rec.StorageID, &rec.Name, &rec.Caption,
			&rec.UploadedBy, &rec.MimeType, &rec.SizeBytes, &rec.UploadedAt); scanErr != nil {
			return nil, fmt.Errorf("list: scan: %w", scanErr)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: rows: %w", err)
	}

	return records, nil
}

func (r *Repo) Get(ctx context.Context, storageID string) (drivegate.TransferRecord, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE storage_id = $1`, transferColumns, r.tableName)

	var rec drivegate.TransferRecord
	err := r.pool.QueryRow(ctx, query, storageID).Scan(&rec.ID, &rec.StorageID,
		&rec.Name, &rec.Caption, &rec.UploadedBy, &rec.MimeType, &rec.SizeBytes, &rec.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return drivegate.TransferRecord{}, drivegate.ErrNotFound
		}
		return drivegate.TransferRecord{}, fmt.Errorf("get: %w", err)
	}

	return rec, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.tableName) //nolint:gosec // table name is validated

	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	return count, nil
}
