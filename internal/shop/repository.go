package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultQueryTimeout = 5 * time.Second

// PostgresDirectory reads the shops table kept by the account service.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory constructs a PostgresDirectory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// Exists reports whether a shop with this id is registered.
func (d *PostgresDirectory) Exists(ctx context.Context, shopID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `SELECT EXISTS (SELECT 1 FROM shops WHERE shop_id = $1);`

	var exists bool
	if err := d.pool.QueryRow(ctx, query, shopID).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup shop: %w", err)
	}
	return exists, nil
}

// Register inserts or renames a shop.
func (d *PostgresDirectory) Register(ctx context.Context, shopID, name string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
INSERT INTO shops (shop_id, name)
VALUES ($1, $2)
ON CONFLICT (shop_id) DO UPDATE SET name = EXCLUDED.name;`

	if _, err := d.pool.Exec(ctx, query, shopID, name); err != nil {
		return fmt.Errorf("register shop: %w", err)
	}
	return nil
}
