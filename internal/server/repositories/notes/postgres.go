// Package notes provides the PostgreSQL repository of record notes. A note is
// addressed by its record id; the surrogate id never leaves the server.
package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/access"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
)

const columns = `id, record_id, pages, version, deleted, created_at, updated_at`

// PostgresRepository implements note storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanNote(row interface{ Scan(...any) error }) (*models.Note, error) {
	n := &models.Note{}
	var pages []byte
	if err := row.Scan(&n.ID, &n.RecordID, &pages, &n.Version, &n.Deleted, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pages, &n.Pages); err != nil {
		return nil, fmt.Errorf("decode pages of note %s: %w", n.ID, err)
	}
	return n, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Note, error) {
	n, err := scanNote(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func encodePages(pages []models.Page) (string, error) {
	if pages == nil {
		pages = []models.Page{}
	}
	b, err := json.Marshal(pages)
	if err != nil {
		return "", fmt.Errorf("encode pages: %w", err)
	}
	return string(b), nil
}

// UpdateIfVersion replaces the pages of the live note of recordID.
func (r *PostgresRepository) UpdateIfVersion(ctx context.Context, recordID string, expected *int64, n *models.Note) (*models.Note, error) {
	pages, err := encodePages(n.Pages)
	if err != nil {
		return nil, err
	}

	query := `UPDATE notes SET pages = $2::jsonb, version = version + 1, updated_at = now()
		WHERE record_id = $1 AND deleted = false AND ($3::bigint IS NULL OR version = $3)
		RETURNING ` + columns

	return r.queryOne(ctx, query, recordID, pages, versioned.Arg(expected))
}

// DeleteIfVersion soft-deletes the live note of recordID.
func (r *PostgresRepository) DeleteIfVersion(ctx context.Context, recordID string, expected *int64) (*models.Note, error) {
	query := `UPDATE notes SET deleted = true, version = version + 1, updated_at = now()
		WHERE record_id = $1 AND deleted = false AND ($2::bigint IS NULL OR version = $2)
		RETURNING ` + columns

	return r.queryOne(ctx, query, recordID, versioned.Arg(expected))
}

// InsertFresh creates the note of recordID unless one exists, deleted or not.
func (r *PostgresRepository) InsertFresh(ctx context.Context, recordID string, n *models.Note) (*models.Note, error) {
	pages, err := encodePages(n.Pages)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO notes (id, record_id, pages, version)
		VALUES ($1, $2, $3::jsonb, 1)
		ON CONFLICT (record_id) DO NOTHING
		RETURNING ` + columns

	return r.queryOne(ctx, query, n.ID, recordID, pages)
}

// Snapshot returns the note row of recordID whether or not it is deleted.
func (r *PostgresRepository) Snapshot(ctx context.Context, recordID string) (*versioned.Snapshot[models.Note], error) {
	n, err := r.queryOne(ctx, `SELECT `+columns+` FROM notes WHERE record_id = $1`, recordID)
	if err != nil || n == nil {
		return nil, err
	}
	return &versioned.Snapshot[models.Note]{Row: n, Version: n.Version, Deleted: n.Deleted}, nil
}

// Get returns the live note of recordID, or nil when there is none.
func (r *PostgresRepository) Get(ctx context.Context, recordID string) (*models.Note, error) {
	return r.queryOne(ctx, `SELECT `+columns+` FROM notes WHERE record_id = $1 AND deleted = false`, recordID)
}

// ListForDevice returns the live notes of recordIDs that the device can reach.
// Unreachable or unknown records are silently left out.
func (r *PostgresRepository) ListForDevice(ctx context.Context, deviceID string, recordIDs []string) ([]*models.Note, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + columns + ` FROM notes n
		WHERE n.record_id = ANY($2::uuid[]) AND n.deleted = false
		AND EXISTS (SELECT 1 FROM events e JOIN books b ON b.id = e.book_id
			WHERE e.record_id = n.record_id AND e.deleted = false AND ` + access.DeviceCanSeeBook + `)
		ORDER BY n.record_id`

	rows, err := r.db.QueryContext(ctx, query, deviceID, recordIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	defer rows.Close()

	var result []*models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// HasLive reports whether recordID has a live note.
func (r *PostgresRepository) HasLive(ctx context.Context, recordID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notes WHERE record_id = $1 AND deleted = false)`, recordID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
