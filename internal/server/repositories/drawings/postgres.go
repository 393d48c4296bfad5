// Package drawings provides the PostgreSQL repository of calendar-page
// drawings, addressed by their composite key.
package drawings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/access"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
	"github.com/dmitrijs2005/booksync/internal/timex"
)

const columns = `id, book_id, drawing_date, view_mode, strokes, version, deleted, created_at, updated_at`

const keyPredicate = `book_id = $1 AND drawing_date = $2::date AND view_mode = $3`

// PostgresRepository implements drawing storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func keyArgs(k models.DrawingKey) []any {
	return []any{k.BookID, k.Date.Format(timex.DateLayout), string(k.ViewMode)}
}

func scanDrawing(row interface{ Scan(...any) error }) (*models.Drawing, error) {
	d := &models.Drawing{}
	var (
		strokes []byte
		mode    string
	)
	if err := row.Scan(&d.ID, &d.BookID, &d.Date, &mode, &strokes, &d.Version, &d.Deleted, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Date = timex.TruncateToDate(d.Date)
	d.ViewMode = models.ViewMode(mode)
	if err := json.Unmarshal(strokes, &d.Strokes); err != nil {
		return nil, fmt.Errorf("decode strokes of drawing %s: %w", d.ID, err)
	}
	return d, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Drawing, error) {
	d, err := scanDrawing(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func encodeStrokes(strokes []models.Stroke) (string, error) {
	if strokes == nil {
		strokes = []models.Stroke{}
	}
	b, err := json.Marshal(strokes)
	if err != nil {
		return "", fmt.Errorf("encode strokes: %w", err)
	}
	return string(b), nil
}

// UpdateIfVersion replaces the strokes of the live drawing at key.
func (r *PostgresRepository) UpdateIfVersion(ctx context.Context, key models.DrawingKey, expected *int64, d *models.Drawing) (*models.Drawing, error) {
	strokes, err := encodeStrokes(d.Strokes)
	if err != nil {
		return nil, err
	}

	query := `UPDATE drawings SET strokes = $4::jsonb, version = version + 1, updated_at = now()
		WHERE ` + keyPredicate + ` AND deleted = false AND ($5::bigint IS NULL OR version = $5)
		RETURNING ` + columns

	return r.queryOne(ctx, query, append(keyArgs(key), strokes, versioned.Arg(expected))...)
}

// DeleteIfVersion soft-deletes the live drawing at key.
func (r *PostgresRepository) DeleteIfVersion(ctx context.Context, key models.DrawingKey, expected *int64) (*models.Drawing, error) {
	query := `UPDATE drawings SET deleted = true, version = version + 1, updated_at = now()
		WHERE ` + keyPredicate + ` AND deleted = false AND ($4::bigint IS NULL OR version = $4)
		RETURNING ` + columns

	return r.queryOne(ctx, query, append(keyArgs(key), versioned.Arg(expected))...)
}

// InsertFresh creates the drawing at key unless one exists, deleted or not.
func (r *PostgresRepository) InsertFresh(ctx context.Context, key models.DrawingKey, d *models.Drawing) (*models.Drawing, error) {
	strokes, err := encodeStrokes(d.Strokes)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO drawings (book_id, drawing_date, view_mode, strokes, id, version)
		VALUES ($1, $2::date, $3, $4::jsonb, $5, 1)
		ON CONFLICT (book_id, drawing_date, view_mode) DO NOTHING
		RETURNING ` + columns

	return r.queryOne(ctx, query, append(keyArgs(key), strokes, d.ID)...)
}

// Snapshot returns the drawing row at key whether or not it is deleted.
func (r *PostgresRepository) Snapshot(ctx context.Context, key models.DrawingKey) (*versioned.Snapshot[models.Drawing], error) {
	d, err := r.queryOne(ctx, `SELECT `+columns+` FROM drawings WHERE `+keyPredicate, keyArgs(key)...)
	if err != nil || d == nil {
		return nil, err
	}
	return &versioned.Snapshot[models.Drawing]{Row: d, Version: d.Version, Deleted: d.Deleted}, nil
}

// Get returns the live drawing at key, or nil when none exists yet.
func (r *PostgresRepository) Get(ctx context.Context, key models.DrawingKey) (*models.Drawing, error) {
	return r.queryOne(ctx, `SELECT `+columns+` FROM drawings WHERE `+keyPredicate+` AND deleted = false`, keyArgs(key)...)
}

// ListRange returns live drawings of bookID dated within [from, to], provided
// the device can access the book. Otherwise the result is empty.
func (r *PostgresRepository) ListRange(ctx context.Context, deviceID, bookID string, from, to time.Time) ([]*models.Drawing, error) {
	query := `SELECT ` + columns + ` FROM drawings
		WHERE book_id = $2 AND drawing_date BETWEEN $3::date AND $4::date AND deleted = false
		AND EXISTS (SELECT 1 FROM books b WHERE b.id = drawings.book_id AND ` + access.DeviceCanSeeBook + `)
		ORDER BY drawing_date, view_mode`

	rows, err := r.db.QueryContext(ctx, query, deviceID, bookID, from.Format(timex.DateLayout), to.Format(timex.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to select drawings: %w", err)
	}
	defer rows.Close()

	var result []*models.Drawing
	for rows.Next() {
		d, err := scanDrawing(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
