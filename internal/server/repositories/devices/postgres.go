// Package devices provides the PostgreSQL repository of registered devices.
package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
)

// PostgresRepository implements device storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an active device and fills CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, d *models.Device) (*models.Device, error) {
	query :=
		`INSERT INTO devices (id, secret_token, name, platform, active)
		 VALUES ($1, $2, $3, $4, true)
		 RETURNING created_at`

	if err := r.db.QueryRowContext(ctx, query, d.ID, d.SecretToken, d.Name, d.Platform).Scan(&d.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	d.Active = true
	return d, nil
}

// Get returns the device by id, inactive ones included.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Device, error) {
	query :=
		`SELECT id, secret_token, name, platform, active, last_sync_at, created_at
		 FROM devices WHERE id = $1`

	d := &models.Device{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&d.ID, &d.SecretToken, &d.Name, &d.Platform, &d.Active, &d.LastSyncAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// Deactivate clears the active flag. Devices are never removed.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE devices SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// TouchLastSync records the time of the device's latest batch save.
func (r *PostgresRepository) TouchLastSync(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE devices SET last_sync_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
