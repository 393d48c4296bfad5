package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
	"github.com/google/uuid"
)

// NoteWrite is one conditional note upsert. LegacyStrokes is the single-page
// shape older clients send; it is used only when Pages is empty.
type NoteWrite struct {
	RecordID        string
	Pages           []models.Page
	LegacyStrokes   []models.Stroke
	ExpectedVersion *int64
}

func (w NoteWrite) validate() error {
	if err := validateIDs(w.RecordID); err != nil {
		return err
	}
	if w.ExpectedVersion != nil && *w.ExpectedVersion < 0 {
		return validationf("expected version %d is negative", *w.ExpectedVersion)
	}
	return nil
}

// NoteService stores one handwritten note per record. Events referencing the
// record share it.
type NoteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
}

func NewNoteService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate) *NoteService {
	return &NoteService{db: db, repomanager: m, gate: gate}
}

// Get returns the live note of a record, or nil when there is none.
func (s *NoteService) Get(ctx context.Context, deviceID, recordID string) (*models.Note, error) {
	if err := validateIDs(recordID); err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRecord(ctx, nil, deviceID, recordID); err != nil {
		return nil, err
	}
	return s.repomanager.Notes(s.db).Get(ctx, recordID)
}

// Upsert conditionally writes a note. A stale expected version yields a
// *versioned.ConflictError[models.Note].
func (s *NoteService) Upsert(ctx context.Context, deviceID string, w NoteWrite) (*models.Note, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}

	var out *models.Note
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		out, err = upsertNote(ctx, tx, s.repomanager, s.gate, deviceID, w)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// upsertNote runs inside the caller's transaction so the batch coordinator
// can share it.
func upsertNote(ctx context.Context, tx dbx.DBTX, m repomanager.RepositoryManager, gate *Gate, deviceID string, w NoteWrite) (*models.Note, error) {
	if err := gate.AuthorizeRecord(ctx, tx, deviceID, w.RecordID); err != nil {
		return nil, err
	}

	note := &models.Note{
		ID:       uuid.NewString(),
		RecordID: w.RecordID,
		Pages:    models.NormalizePages(w.Pages, w.LegacyStrokes),
	}
	out, err := versioned.Write(ctx, m.Notes(tx), w.RecordID, w.ExpectedVersion, note)
	if err != nil {
		return nil, err
	}
	if err := recomputeHasNote(ctx, tx, m, w.RecordID); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete soft-deletes the record's note and clears has_note on its events.
func (s *NoteService) Delete(ctx context.Context, deviceID, recordID string, expected *int64) (*models.Note, error) {
	if err := validateIDs(recordID); err != nil {
		return nil, err
	}

	var out *models.Note
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.gate.AuthorizeRecord(ctx, tx, deviceID, recordID); err != nil {
			return err
		}
		var err error
		out, err = versioned.Delete(ctx, s.repomanager.Notes(tx), recordID, expected)
		if err != nil {
			return err
		}
		return recomputeHasNote(ctx, tx, s.repomanager, recordID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListForDevice returns the notes of the given records the device may see.
// Unreachable records are skipped, not reported.
func (s *NoteService) ListForDevice(ctx context.Context, deviceID string, recordIDs []string) ([]*models.Note, error) {
	if err := validateIDs(recordIDs...); err != nil {
		return nil, err
	}
	return s.repomanager.Notes(s.db).ListForDevice(ctx, deviceID, recordIDs)
}

func recomputeHasNote(ctx context.Context, tx dbx.DBTX, m repomanager.RepositoryManager, recordID string) error {
	has, err := m.Notes(tx).HasLive(ctx, recordID)
	if err != nil {
		return err
	}
	_, err = m.Events(tx).SetHasNote(ctx, recordID, has)
	return err
}
