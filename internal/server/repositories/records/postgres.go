// Package records provides the PostgreSQL repository of records (the people
// events and notes are anchored to).
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/access"
)

const columns = `id, record_number, name, phone, version, deleted, created_at, updated_at`

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...any) (*models.Record, error) {
	rec := &models.Record{}
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&rec.ID, &rec.RecordNumber, &rec.Name, &rec.Phone, &rec.Version, &rec.Deleted, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// Create inserts a record at version 1.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.Record) (*models.Record, error) {
	query := `INSERT INTO records (id, record_number, name, phone, version)
		VALUES ($1, $2, $3, $4, 1)
		RETURNING ` + columns

	return r.get(ctx, query, rec.ID, rec.RecordNumber, rec.Name, rec.Phone)
}

// Get returns a live record by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	return r.get(ctx, `SELECT `+columns+` FROM records WHERE id = $1 AND deleted = false`, id)
}

// FindLinkable returns the live record carrying the external record number
// that the device may attach a new event to. Numbers are not unique across
// tenants; a record reachable through a live event wins over an orphaned one.
func (r *PostgresRepository) FindLinkable(ctx context.Context, deviceID, number string) (*models.Record, error) {
	query := `SELECT ` + columns + ` FROM records r
		WHERE r.record_number = $2 AND r.deleted = false AND ` + access.DeviceCanLinkRecord + `
		ORDER BY ` + access.DeviceReachesRecord + ` DESC, r.updated_at DESC
		LIMIT 1`

	return r.get(ctx, query, deviceID, number)
}
