// Package books provides the PostgreSQL repository of appointment books and
// their access grants.
package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
)

const columns = `id, owner_device_id, name, created_at, updated_at, archived_at, version, deleted`

// PostgresRepository implements book storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanBook(row interface{ Scan(...any) error }) (*models.Book, error) {
	b := &models.Book{}
	err := row.Scan(&b.ID, &b.OwnerDeviceID, &b.Name, &b.CreatedAt, &b.UpdatedAt, &b.ArchivedAt, &b.Version, &b.Deleted)
	return b, err
}

// queryOne runs a single-row query; no row yields (nil, nil).
func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

// Create inserts a new book at version 1.
func (r *PostgresRepository) Create(ctx context.Context, b *models.Book) (*models.Book, error) {
	query := `INSERT INTO books (id, owner_device_id, name, archived_at, version)
		VALUES ($1, $2, $3, $4, 1)
		RETURNING ` + columns

	return r.queryOne(ctx, query, b.ID, b.OwnerDeviceID, b.Name, b.ArchivedAt)
}

// Get returns a live book or ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Book, error) {
	b, err := r.queryOne(ctx, `SELECT `+columns+` FROM books WHERE id = $1 AND deleted = false`, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, common.ErrorNotFound
	}
	return b, nil
}

// UpdateIfVersion changes name and archive state of a live book. A nil
// ArchivedAt unarchives; an already archived book keeps its first timestamp.
func (r *PostgresRepository) UpdateIfVersion(ctx context.Context, id string, expected *int64, b *models.Book) (*models.Book, error) {
	query := `UPDATE books SET name = $2,
			archived_at = CASE WHEN $3::timestamptz IS NULL THEN NULL ELSE COALESCE(archived_at, $3) END,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND deleted = false AND ($4::bigint IS NULL OR version = $4)
		RETURNING ` + columns

	return r.queryOne(ctx, query, id, b.Name, b.ArchivedAt, versioned.Arg(expected))
}

// DeleteIfVersion soft-deletes a live book.
func (r *PostgresRepository) DeleteIfVersion(ctx context.Context, id string, expected *int64) (*models.Book, error) {
	query := `UPDATE books SET deleted = true, version = version + 1, updated_at = now()
		WHERE id = $1 AND deleted = false AND ($2::bigint IS NULL OR version = $2)
		RETURNING ` + columns

	return r.queryOne(ctx, query, id, versioned.Arg(expected))
}

// InsertFresh inserts the book unless the id is taken.
func (r *PostgresRepository) InsertFresh(ctx context.Context, id string, b *models.Book) (*models.Book, error) {
	query := `INSERT INTO books (id, owner_device_id, name, archived_at, version)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + columns

	return r.queryOne(ctx, query, id, b.OwnerDeviceID, b.Name, b.ArchivedAt)
}

// Snapshot returns the book row whether or not it is deleted.
func (r *PostgresRepository) Snapshot(ctx context.Context, id string) (*versioned.Snapshot[models.Book], error) {
	b, err := r.queryOne(ctx, `SELECT `+columns+` FROM books WHERE id = $1`, id)
	if err != nil || b == nil {
		return nil, err
	}
	return &versioned.Snapshot[models.Book]{Row: b, Version: b.Version, Deleted: b.Deleted}, nil
}

// GrantAccess gives deviceID access to bookID. Granting twice is a no-op.
func (r *PostgresRepository) GrantAccess(ctx context.Context, bookID, deviceID string) error {
	query := `INSERT INTO book_access (book_id, device_id) VALUES ($1, $2)
		ON CONFLICT (book_id, device_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, bookID, deviceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeAccess removes a grant; a missing grant is ErrorNotFound.
func (r *PostgresRepository) RevokeAccess(ctx context.Context, bookID, deviceID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM book_access WHERE book_id = $1 AND device_id = $2`, bookID, deviceID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
