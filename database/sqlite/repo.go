// Package sqlite implements the transfer repo interface using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dostvardhan/drivegate"
)

const transferColumns = "id, storage_id, name, caption, uploaded_by, mime_type, size_bytes, uploaded_at"

type Repo struct {
	db        *sql.DB
	tableName string
}

func NewRepo(db *sql.DB, tables drivegate.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new sqlite repo: %w", err)
	}
	return &Repo{db: db, tableName: tables.Transfers}, nil
}

func (r *Repo) Append(ctx context.Context, rec drivegate.TransferRecord) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.tableName, transferColumns)

	_, err := r.db.ExecContext(ctx, query,
		rec.ID.String(), rec.StorageID, rec.Name, rec.Caption, rec.UploadedBy,
		rec.MimeType, rec.SizeBytes, rec.UploadedAt.UTC().Format(time.RFC3339Nano),
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
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]drivegate.TransferRecord, 0)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("list: %w", scanErr)
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
		`SELECT %s FROM %s WHERE storage_id = ?`, transferColumns, r.tableName)

	row := r.db.QueryRowContext(ctx, query, storageID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return drivegate.TransferRecord{}, drivegate.ErrNotFound
		}
		return drivegate.TransferRecord{}, fmt.Errorf("get: %w", err)
	}

	return rec, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.tableName) //nolint:gosec // table name is validated

	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (drivegate.TransferRecord, error) {
	var rec drivegate.TransferRecord
	var idStr, uploadedAt string

	err := row.Scan(&idStr, &rec.StorageID, &rec.Name, &rec.Caption,
		&rec.UploadedBy, &rec.MimeType, &rec.SizeBytes, &uploadedAt)
	if err != nil {
		return drivegate.TransferRecord{}, err
	}

	rec.ID, err = uuid.Parse(idStr)
	if err != nil {
		return drivegate.TransferRecord{}, fmt.Errorf("parse uuid: %w", err)
	}

	rec.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt)
	if err != nil {
		return drivegate.TransferRecord{}, fmt.Errorf("parse uploaded_at: %w", err)
	}

	return rec, nil
}
