package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
	"github.com/dmitrijs2005/booksync/internal/timex"
	"github.com/google/uuid"
)

// DrawingWrite is one conditional drawing upsert addressed by its composite key.
type DrawingWrite struct {
	Key             models.DrawingKey
	Strokes         []models.Stroke
	ExpectedVersion *int64
}

func validateKey(k models.DrawingKey) error {
	if err := validateIDs(k.BookID); err != nil {
		return err
	}
	if k.Date.IsZero() {
		return validationf("drawing date is required")
	}
	if _, err := models.ParseViewMode(string(k.ViewMode)); err != nil {
		return validationf("%v", err)
	}
	return nil
}

func (w DrawingWrite) validate() error {
	if err := validateKey(w.Key); err != nil {
		return err
	}
	if w.ExpectedVersion != nil && *w.ExpectedVersion < 0 {
		return validationf("expected version %d is negative", *w.ExpectedVersion)
	}
	return nil
}

// DrawingService stores calendar-page drawings keyed by book, date and view mode.
type DrawingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
}

func NewDrawingService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate) *DrawingService {
	return &DrawingService{db: db, repomanager: m, gate: gate}
}

func normalizeKey(k models.DrawingKey) models.DrawingKey {
	k.Date = timex.TruncateToDate(k.Date)
	return k
}

// Get returns the live drawing at key, or nil when nothing was drawn yet.
func (s *DrawingService) Get(ctx context.Context, deviceID string, key models.DrawingKey) (*models.Drawing, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeBook(ctx, nil, deviceID, key.BookID); err != nil {
		return nil, err
	}
	return s.repomanager.Drawings(s.db).Get(ctx, normalizeKey(key))
}

// Upsert conditionally writes a drawing. A stale expected version yields a
// *versioned.ConflictError[models.Drawing].
func (s *DrawingService) Upsert(ctx context.Context, deviceID string, w DrawingWrite) (*models.Drawing, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}

	var out *models.Drawing
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		out, err = upsertDrawing(ctx, tx, s.repomanager, s.gate, deviceID, w)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func upsertDrawing(ctx context.Context, tx dbx.DBTX, m repomanager.RepositoryManager, gate *Gate, deviceID string, w DrawingWrite) (*models.Drawing, error) {
	if err := gate.AuthorizeBook(ctx, tx, deviceID, w.Key.BookID); err != nil {
		return nil, err
	}

	key := normalizeKey(w.Key)
	strokes := w.Strokes
	if strokes == nil {
		strokes = []models.Stroke{}
	}
	d := &models.Drawing{
		ID:       uuid.NewString(),
		BookID:   key.BookID,
		Date:     key.Date,
		ViewMode: key.ViewMode,
		Strokes:  strokes,
	}
	return versioned.Write(ctx, m.Drawings(tx), key, w.ExpectedVersion, d)
}

// Delete soft-deletes the drawing at key.
func (s *DrawingService) Delete(ctx context.Context, deviceID string, key models.DrawingKey, expected *int64) (*models.Drawing, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeBook(ctx, nil, deviceID, key.BookID); err != nil {
		return nil, err
	}
	return versioned.Delete(ctx, s.repomanager.Drawings(s.db), normalizeKey(key), expected)
}

// ListRange returns every live drawing of the book dated within [from, to].
func (s *DrawingService) ListRange(ctx context.Context, deviceID, bookID string, from, to time.Time) ([]*models.Drawing, error) {
	if err := validateIDs(bookID); err != nil {
		return nil, err
	}
	from, to = timex.TruncateToDate(from), timex.TruncateToDate(to)
	if to.Before(from) {
		return nil, validationf("range end %s is before start %s", to.Format(timex.DateLayout), from.Format(timex.DateLayout))
	}
	if err := s.gate.AuthorizeBook(ctx, nil, deviceID, bookID); err != nil {
		return nil, err
	}
	return s.repomanager.Drawings(s.db).ListRange(ctx, deviceID, bookID, from, to)
}
