package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const fileColumns = `id::text, tenant_id, display_name, file_name, original_name, size_bytes, mime_type, object_name, created_at, expires_at, seq`

// PostgresRepository stores file metadata in the shop_files table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository builds a repository over the pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts metadata for a new file.
func (r *PostgresRepository) Create(ctx context.Context, rec StoredFile) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO shop_files (id, tenant_id, display_name, file_name, original_name, size_bytes, mime_type, object_name, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.TenantID,
		rec.DisplayName,
		rec.FileName,
		rec.OriginalName,
		rec.SizeBytes,
		rec.MimeType,
		rec.objectName,
		rec.CreatedAt,
		rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create file metadata: %w", err)
	}
	return nil
}

// Get fetches a live file owned by the tenant.
func (r *PostgresRepository) Get(ctx context.Context, tenantID, id string, now time.Time) (StoredFile, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + fileColumns + `
FROM shop_files
WHERE id = $1 AND tenant_id = $2 AND expires_at > $3;`

	rec, err := scanFile(r.pool.QueryRow(ctx, query, id, tenantID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredFile{}, ErrNotFound
		}
		return StoredFile{}, fmt.Errorf("get file metadata: %w", err)
	}
	return rec, nil
}

// List returns the tenant's live files, newest first.
func (r *PostgresRepository) List(ctx context.Context, tenantID string, now time.Time) ([]StoredFile, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + fileColumns + `
FROM shop_files
WHERE tenant_id = $1 AND expires_at > $2
ORDER BY created_at DESC, seq DESC;`

	rows, err := r.pool.Query(ctx, query, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return collectFiles(rows)
}

// Delete removes a live file owned by the tenant and returns the deleted record.
func (r *PostgresRepository) Delete(ctx context.Context, tenantID, id string, now time.Time) (StoredFile, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
DELETE FROM shop_files
WHERE id = $1 AND tenant_id = $2 AND expires_at > $3
RETURNING ` + fileColumns + `;`

	rec, err := scanFile(r.pool.QueryRow(ctx, query, id, tenantID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredFile{}, ErrNotFound
		}
		return StoredFile{}, fmt.Errorf("delete file metadata: %w", err)
	}
	return rec, nil
}

// DeleteExpired removes up to limit expired rows and returns them so payloads can be reclaimed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) ([]StoredFile, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
DELETE FROM shop_files
WHERE id IN (
    SELECT id FROM shop_files
    WHERE expires_at <= $1
    ORDER BY expires_at
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + fileColumns + `;`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("delete expired files: %w", err)
	}
	return collectFiles(rows)
}

func collectFiles(rows pgx.Rows) ([]StoredFile, error) {
	defer rows.Close()

	files := []StoredFile{}
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file metadata: %w", err)
		}
		files = append(files, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

func scanFile(row pgx.Row) (StoredFile, error) {
	var rec StoredFile
	err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.DisplayName,
		&rec.FileName,
		&rec.OriginalName,
		&rec.SizeBytes,
		&rec.MimeType,
		&rec.objectName,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.seq,
	)
	return rec, err
}
