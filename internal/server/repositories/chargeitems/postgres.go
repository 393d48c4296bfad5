// Package chargeitems provides the PostgreSQL repository of the charge-item
// ledger.
package chargeitems

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
)

const columns = `id, record_id, event_id, name, price, received, version, deleted, created_at, updated_at`

// PostgresRepository implements charge item storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanItem(row interface{ Scan(...any) error }) (*models.ChargeItem, error) {
	c := &models.ChargeItem{}
	err := row.Scan(&c.ID, &c.RecordID, &c.EventID, &c.Name, &c.Price, &c.Received, &c.Version, &c.Deleted, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.ChargeItem, error) {
	c, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// UpdateIfVersion changes the amounts, name and event tag of a live item.
// The owning record never changes.
func (r *PostgresRepository) UpdateIfVersion(ctx context.Context, id string, expected *int64, c *models.ChargeItem) (*models.ChargeItem, error) {
	query := `UPDATE charge_items SET event_id = $2, name = $3, price = $4, received = $5,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND deleted = false AND ($6::bigint IS NULL OR version = $6)
		RETURNING ` + columns

	return r.queryOne(ctx, query, id, c.EventID, c.Name, c.Price, c.Received, versioned.Arg(expected))
}

// DeleteIfVersion soft-deletes a live item.
func (r *PostgresRepository) DeleteIfVersion(ctx context.Context, id string, expected *int64) (*models.ChargeItem, error) {
	query := `UPDATE charge_items SET deleted = true, version = version + 1, updated_at = now()
		WHERE id = $1 AND deleted = false AND ($2::bigint IS NULL OR version = $2)
		RETURNING ` + columns

	return r.queryOne(ctx, query, id, versioned.Arg(expected))
}

// InsertFresh creates the item unless the id is taken.
func (r *PostgresRepository) InsertFresh(ctx context.Context, id string, c *models.ChargeItem) (*models.ChargeItem, error) {
	query := `INSERT INTO charge_items (id, record_id, event_id, name, price, received, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + columns

	return r.queryOne(ctx, query, id, c.RecordID, c.EventID, c.Name, c.Price, c.Received)
}

// Snapshot returns the item row whether or not it is deleted.
func (r *PostgresRepository) Snapshot(ctx context.Context, id string) (*versioned.Snapshot[models.ChargeItem], error) {
	c, err := r.queryOne(ctx, `SELECT `+columns+` FROM charge_items WHERE id = $1`, id)
	if err != nil || c == nil {
		return nil, err
	}
	return &versioned.Snapshot[models.ChargeItem]{Row: c, Version: c.Version, Deleted: c.Deleted}, nil
}

// ListByRecord returns the live items of recordID, oldest first.
func (r *PostgresRepository) ListByRecord(ctx context.Context, recordID string) ([]*models.ChargeItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM charge_items WHERE record_id = $1 AND deleted = false ORDER BY created_at, id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to select charge items: %w", err)
	}
	defer rows.Close()

	var result []*models.ChargeItem
	for rows.Next() {
		c, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// HasLive reports whether recordID has at least one live item.
func (r *PostgresRepository) HasLive(ctx context.Context, recordID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM charge_items WHERE record_id = $1 AND deleted = false)`, recordID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
