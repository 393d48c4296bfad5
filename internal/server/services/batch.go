package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/logging"
	"github.com/dmitrijs2005/booksync/internal/server/config"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
	"github.com/dmitrijs2005/booksync/internal/timex"
)

// Item kinds of a batch.
const (
	KindNote    = "note"
	KindDrawing = "drawing"
)

// Per-item statuses of a batch.
const (
	StatusSaved        = "saved"
	StatusReverted     = "reverted"
	StatusFailed       = "failed"
	StatusNotAttempted = "not_attempted"
)

// Failure reasons reported for a batch item.
const (
	ReasonVersionConflict    = "version_conflict"
	ReasonEntityGone         = "entity_gone"
	ReasonUnauthorizedRecord = "unauthorized_record"
	ReasonUnauthorizedBook   = "unauthorized_book"
	ReasonNotFound           = "not_found"
	ReasonValidation         = "validation"
)

// ItemResult is the outcome of one batch item. ServerVersion is set for
// version conflicts.
type ItemResult struct {
	Kind          string
	Index         int
	Key           string
	Status        string
	Reason        string
	ServerVersion int64
}

// BatchResult summarizes a batch. When Committed is false nothing was
// persisted and Reason names the failure that rolled it back.
type BatchResult struct {
	Committed      bool
	NotesSaved     int
	NotesFailed    int
	DrawingsSaved  int
	DrawingsFailed int
	Items          []ItemResult
	Reason         string
}

// errItemFailed rolls the batch transaction back after an item failure that
// is reported as data.
var errItemFailed = errors.New("batch item failed")

// BatchService applies note and drawing writes of one device as a single
// all-or-nothing transaction.
type BatchService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
	maxItems    int
	now         func() time.Time
	logger      logging.Logger
}

func NewBatchService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate, cfg *config.Config, l logging.Logger) *BatchService {
	return &BatchService{
		db:          db,
		repomanager: m,
		gate:        gate,
		maxItems:    cfg.MaxBatchItems,
		now:         time.Now,
		logger:      l.With("module", "batch_service"),
	}
}

func noteKey(w NoteWrite) string {
	return w.RecordID
}

func drawingKey(w DrawingWrite) string {
	return fmt.Sprintf("%s/%s/%s", w.Key.BookID, w.Key.Date.Format(timex.DateLayout), w.Key.ViewMode)
}

// Save runs every note write and then every drawing write in one
// transaction. The first failing item stops the batch: items before it are
// reported reverted and items after it not attempted.
//
// Oversized or malformed batches are rejected before the transaction opens.
// Datastore failures return an error wrapping common.ErrTransactionFailure.
func (s *BatchService) Save(ctx context.Context, deviceID string, notes []NoteWrite, drawings []DrawingWrite) (*BatchResult, error) {
	if n := len(notes) + len(drawings); n > s.maxItems {
		return nil, fmt.Errorf("%d items exceed the limit of %d: %w", n, s.maxItems, common.ErrBatchTooLarge)
	}
	for i, w := range notes {
		if err := w.validate(); err != nil {
			return nil, fmt.Errorf("note %d: %w", i, err)
		}
	}
	for i, w := range drawings {
		if err := w.validate(); err != nil {
			return nil, fmt.Errorf("drawing %d: %w", i, err)
		}
	}

	items := make([]ItemResult, 0, len(notes)+len(drawings))
	for i, w := range notes {
		items = append(items, ItemResult{Kind: KindNote, Index: i, Key: noteKey(w), Status: StatusNotAttempted})
	}
	for i, w := range drawings {
		items = append(items, ItemResult{Kind: KindDrawing, Index: i, Key: drawingKey(w), Status: StatusNotAttempted})
	}

	failed := -1
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for i, w := range notes {
			if _, err := upsertNote(ctx, tx, s.repomanager, s.gate, deviceID, w); err != nil {
				return s.itemFailure(items, i, err, &failed)
			}
			items[i].Status = StatusSaved
		}
		for i, w := range drawings {
			pos := len(notes) + i
			if _, err := upsertDrawing(ctx, tx, s.repomanager, s.gate, deviceID, w); err != nil {
				return s.itemFailure(items, pos, err, &failed)
			}
			items[pos].Status = StatusSaved
		}
		return s.repomanager.Devices(tx).TouchLastSync(ctx, deviceID, s.now())
	})

	switch {
	case err == nil:
		s.logger.Debug(ctx, "batch committed", "device_id", deviceID, "notes", len(notes), "drawings", len(drawings))
		return &BatchResult{
			Committed:     true,
			NotesSaved:    len(notes),
			DrawingsSaved: len(drawings),
			Items:         items,
		}, nil
	case errors.Is(err, errItemFailed):
		s.logger.Info(ctx, "batch rolled back", "device_id", deviceID,
			"item", items[failed].Key, "kind", items[failed].Kind, "reason", items[failed].Reason)
		for i := range items {
			if items[i].Status == StatusSaved {
				items[i].Status = StatusReverted
			}
		}
		return &BatchResult{
			NotesFailed:    len(notes),
			DrawingsFailed: len(drawings),
			Items:          items,
			Reason:         items[failed].Reason,
		}, nil
	default:
		s.logger.Error(ctx, "batch transaction failed", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrTransactionFailure, err)
	}
}

// itemFailure marks items[pos] failed when err is an outcome the client can
// act on. Any other error aborts the batch as a datastore failure.
func (s *BatchService) itemFailure(items []ItemResult, pos int, err error, failed *int) error {
	reason, version, ok := classifyItemError(err)
	if !ok {
		return err
	}
	items[pos].Status = StatusFailed
	items[pos].Reason = reason
	items[pos].ServerVersion = version
	*failed = pos
	return errItemFailed
}

func classifyItemError(err error) (reason string, version int64, ok bool) {
	if c, ok := versioned.AsConflict[models.Note](err); ok {
		return ReasonVersionConflict, c.Version, true
	}
	if c, ok := versioned.AsConflict[models.Drawing](err); ok {
		return ReasonVersionConflict, c.Version, true
	}
	switch {
	case errors.Is(err, common.ErrEntityGone):
		return ReasonEntityGone, 0, true
	case errors.Is(err, common.ErrUnauthorizedRecord):
		return ReasonUnauthorizedRecord, 0, true
	case errors.Is(err, common.ErrUnauthorizedBook):
		return ReasonUnauthorizedBook, 0, true
	case errors.Is(err, common.ErrorNotFound):
		return ReasonNotFound, 0, true
	case errors.Is(err, common.ErrValidation):
		return ReasonValidation, 0, true
	}
	return "", 0, false
}
