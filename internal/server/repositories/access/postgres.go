// Package access answers ownership-chain questions for the authorization gate.
// A device reaches a book it owns or holds a grant for, and a record through
// any live event in such a book. A record whose events are all deleted may be
// linked again from a book that once held one of them.
package access

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/booksync/internal/dbx"
)

// DeviceCanSeeBook is the SQL predicate "device $1 may access book b". Other
// repositories embed it to filter batch reads inside the query.
const DeviceCanSeeBook = `b.deleted = false AND (b.owner_device_id = $1 OR EXISTS (
		SELECT 1 FROM book_access a WHERE a.book_id = b.id AND a.device_id = $1))`

// DeviceReachesRecord is the SQL predicate "record r has a live event in a
// book device $1 may access".
const DeviceReachesRecord = `EXISTS (SELECT 1 FROM events e JOIN books b ON b.id = e.book_id
		WHERE e.record_id = r.id AND e.deleted = false AND ` + DeviceCanSeeBook + `)`

// DeviceCanLinkRecord is the SQL predicate "device $1 may attach a new event
// to record r": the record is reachable, or it has no live event anywhere and
// one of its deleted events sits in a book the device may access.
const DeviceCanLinkRecord = `(` + DeviceReachesRecord + ` OR (
		NOT EXISTS (SELECT 1 FROM events e WHERE e.record_id = r.id AND e.deleted = false)
		AND EXISTS (SELECT 1 FROM events e JOIN books b ON b.id = e.book_id
			WHERE e.record_id = r.id AND ` + DeviceCanSeeBook + `)))`

// PostgresRepository implements access checks over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CanAccessBook reports whether the device owns or was granted the live book.
func (r *PostgresRepository) CanAccessBook(ctx context.Context, deviceID, bookID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM books b WHERE b.id = $2 AND ` + DeviceCanSeeBook + `)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, deviceID, bookID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// CanAccessRecord reports whether the record is referenced by a live event in
// a book the device can access.
func (r *PostgresRepository) CanAccessRecord(ctx context.Context, deviceID, recordID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM events e JOIN books b ON b.id = e.book_id
		WHERE e.record_id = $2 AND e.deleted = false AND ` + DeviceCanSeeBook + `)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, deviceID, recordID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// CanLinkRecord reports whether the device may attach a new event to the live
// record.
func (r *PostgresRepository) CanLinkRecord(ctx context.Context, deviceID, recordID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM records r
		WHERE r.id = $2 AND r.deleted = false AND ` + DeviceCanLinkRecord + `)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, deviceID, recordID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
