// Package versioned implements the conditional write protocol shared by every
// versioned table: one conditional statement, and on zero affected rows a
// re-read that tells "create", "gone" and "conflict" apart.
//
// A table binds its key type K and row type T by implementing Table. The
// protocol functions (Write, Update, Delete) never touch SQL themselves.
package versioned

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/booksync/internal/common"
)

// Snapshot is the current state of a row, soft-deleted rows included.
type Snapshot[T any] struct {
	Row     *T
	Version int64
	Deleted bool
}

// Table is the storage binding of one entity kind.
//
// UpdateIfVersion and DeleteIfVersion must change a row only when it is live
// and expected is nil or equal to its version, bump the version by one and
// return the fresh row. They return (nil, nil) when nothing matched.
// InsertFresh inserts at version 1 and returns (nil, nil) when a row with the
// same key already exists. Snapshot returns (nil, nil) when no row exists.
type Table[K comparable, T any] interface {
	UpdateIfVersion(ctx context.Context, key K, expected *int64, payload *T) (*T, error)
	DeleteIfVersion(ctx context.Context, key K, expected *int64) (*T, error)
	InsertFresh(ctx context.Context, key K, payload *T) (*T, error)
	Snapshot(ctx context.Context, key K) (*Snapshot[T], error)
}

// ConflictError reports a live row whose version differs from the expected
// one. It carries the server's current row so the caller can merge or
// overwrite deliberately.
type ConflictError[T any] struct {
	Current *T
	Version int64
}

func (e *ConflictError[T]) Error() string {
	return fmt.Sprintf("version conflict: server version is %d", e.Version)
}

func (e *ConflictError[T]) Unwrap() error {
	return common.ErrVersionConflict
}

// AsConflict extracts a ConflictError for row type T from err.
func AsConflict[T any](err error) (*ConflictError[T], bool) {
	var ce *ConflictError[T]
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Write updates the row at key or, when there is none, creates it.
//
// With expected nil a live row is overwritten and a missing row is created.
// With expected set, a live row is overwritten only at that version; a missing
// row is created only when expected is 0 and reported as not found otherwise.
func Write[K comparable, T any](ctx context.Context, t Table[K, T], key K, expected *int64, payload *T) (*T, error) {
	if err := checkExpected(expected); err != nil {
		return nil, err
	}

	row, err := t.UpdateIfVersion(ctx, key, expected, payload)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}

	snap, err := t.Snapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		return nil, classify(snap)
	}

	if expected != nil && *expected > 0 {
		return nil, fmt.Errorf("no row at expected version %d: %w", *expected, common.ErrorNotFound)
	}

	row, err = t.InsertFresh(ctx, key, payload)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}

	// A concurrent writer created the row first.
	snap, err = t.Snapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("row vanished after insert conflict: %w", common.ErrorInternal)
	}
	return nil, classify(snap)
}

// Update is Write without the create path: a missing row is not found.
func Update[K comparable, T any](ctx context.Context, t Table[K, T], key K, expected *int64, payload *T) (*T, error) {
	if err := checkExpected(expected); err != nil {
		return nil, err
	}

	row, err := t.UpdateIfVersion(ctx, key, expected, payload)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	return nil, resolveMiss(ctx, t, key)
}

// Delete soft-deletes the row at key under the same version rule as Update.
func Delete[K comparable, T any](ctx context.Context, t Table[K, T], key K, expected *int64) (*T, error) {
	if err := checkExpected(expected); err != nil {
		return nil, err
	}

	row, err := t.DeleteIfVersion(ctx, key, expected)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	return nil, resolveMiss(ctx, t, key)
}

func resolveMiss[K comparable, T any](ctx context.Context, t Table[K, T], key K) error {
	snap, err := t.Snapshot(ctx, key)
	if err != nil {
		return err
	}
	if snap == nil {
		return common.ErrorNotFound
	}
	return classify(snap)
}

func classify[T any](snap *Snapshot[T]) error {
	if snap.Deleted {
		return common.ErrEntityGone
	}
	return &ConflictError[T]{Current: snap.Row, Version: snap.Version}
}

func checkExpected(expected *int64) error {
	if expected != nil && *expected < 0 {
		return fmt.Errorf("expected version %d is negative: %w", *expected, common.ErrValidation)
	}
	return nil
}

// Arg converts an optional expected version into a SQL argument: NULL when
// absent. Queries compare it as ($n::bigint IS NULL OR version = $n).
func Arg(expected *int64) any {
	if expected == nil {
		return nil
	}
	return *expected
}
