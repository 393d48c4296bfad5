// Package events provides the PostgreSQL repository of scheduled events.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
)

const columns = `id, book_id, record_id, title, tags, start_time, end_time, has_charge_items, has_note,
	is_removed, removal_reason, original_event_id, new_event_id, is_checked, version, deleted, created_at, updated_at`

// PostgresRepository implements event storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// queryOne runs a single-row query; no row yields (nil, nil).
func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Event, error) {
	e := &models.Event{}
	var tags []byte
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&e.ID, &e.BookID, &e.RecordID, &e.Title, &tags, &e.StartTime, &e.EndTime, &e.HasChargeItems, &e.HasNote,
		&e.IsRemoved, &e.RemovalReason, &e.OriginalEventID, &e.NewEventID, &e.IsChecked, &e.Version, &e.Deleted,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(tags, &e.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of event %s: %w", e.ID, err)
	}
	return e, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

// Create inserts e at version 1. Tags are stored as given.
func (r *PostgresRepository) Create(ctx context.Context, e *models.Event) (*models.Event, error) {
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO events (id, book_id, record_id, title, tags, start_time, end_time, has_charge_items, has_note,
			is_removed, removal_reason, original_event_id, is_checked, version)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11, $12, $13, 1)
		RETURNING ` + columns

	return r.queryOne(ctx, query, e.ID, e.BookID, e.RecordID, e.Title, tags, e.StartTime, e.EndTime,
		e.HasChargeItems, e.HasNote, e.IsRemoved, e.RemovalReason, e.OriginalEventID, e.IsChecked)
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*models.Event, error) {
	e, err := r.queryOne(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, common.ErrorNotFound
	}
	return e, nil
}

// Get returns the event row, soft-deleted rows included; callers decide
// what a deleted row means for them.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Event, error) {
	return r.get(ctx, `SELECT `+columns+` FROM events WHERE id = $1`, id)
}

// GetForUpdate is Get with a row lock; use it inside a transaction.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Event, error) {
	return r.get(ctx, `SELECT `+columns+` FROM events WHERE id = $1 FOR UPDATE`, id)
}

// Update writes the mutable fields of a live event and bumps its version.
// A deleted or missing row yields (nil, nil).
func (r *PostgresRepository) Update(ctx context.Context, e *models.Event) (*models.Event, error) {
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return nil, err
	}

	query := `UPDATE events SET title = $2, tags = $3::jsonb, start_time = $4, end_time = $5,
			is_removed = $6, removal_reason = $7, is_checked = $8,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND deleted = false
		RETURNING ` + columns

	return r.queryOne(ctx, query, e.ID, e.Title, tags, e.StartTime, e.EndTime, e.IsRemoved, e.RemovalReason, e.IsChecked)
}

// MarkSuperseded removes the event with reason and links it forward to
// newEventID. Only live events without a successor match; otherwise (nil, nil).
func (r *PostgresRepository) MarkSuperseded(ctx context.Context, id, newEventID, reason string) (*models.Event, error) {
	query := `UPDATE events SET is_removed = true, removal_reason = $3, new_event_id = $2,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND deleted = false AND new_event_id IS NULL
		RETURNING ` + columns

	return r.queryOne(ctx, query, id, newEventID, reason)
}

// SoftDelete marks a live event deleted; a deleted or missing row yields (nil, nil).
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) (*models.Event, error) {
	query := `UPDATE events SET deleted = true, version = version + 1, updated_at = now()
		WHERE id = $1 AND deleted = false
		RETURNING ` + columns

	return r.queryOne(ctx, query, id)
}

// SetHasNote writes the cached has_note flag to every live event of the
// record. Only rows whose flag changes are touched; the count is returned.
func (r *PostgresRepository) SetHasNote(ctx context.Context, recordID string, value bool) (int64, error) {
	return r.setFlag(ctx, `UPDATE events SET has_note = $2, version = version + 1, updated_at = now()
		WHERE record_id = $1 AND deleted = false AND has_note IS DISTINCT FROM $2`, recordID, value)
}

// SetHasChargeItems is SetHasNote for the has_charge_items flag.
func (r *PostgresRepository) SetHasChargeItems(ctx context.Context, recordID string, value bool) (int64, error) {
	return r.setFlag(ctx, `UPDATE events SET has_charge_items = $2, version = version + 1, updated_at = now()
		WHERE record_id = $1 AND deleted = false AND has_charge_items IS DISTINCT FROM $2`, recordID, value)
}

func (r *PostgresRepository) setFlag(ctx context.Context, query, recordID string, value bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, recordID, value)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
