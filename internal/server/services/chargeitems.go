package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
	"github.com/google/uuid"
)

// ChargeItemWrite is a conditional charge item save. An empty ID creates a
// new item.
type ChargeItemWrite struct {
	ID              string
	RecordID        string
	EventID         *string
	Name            string
	Price           int64
	Received        int64
	ExpectedVersion *int64
}

func (w ChargeItemWrite) validate() error {
	if err := validateIDs(w.RecordID); err != nil {
		return err
	}
	if w.ID != "" {
		if err := validateIDs(w.ID); err != nil {
			return err
		}
	}
	if w.EventID != nil {
		if err := validateIDs(*w.EventID); err != nil {
			return err
		}
	}
	if strings.TrimSpace(w.Name) == "" {
		return validationf("charge item name is empty")
	}
	if w.Price < 0 || w.Received < 0 {
		return validationf("amounts must not be negative")
	}
	return nil
}

// ChargeItemService keeps the per-record billing ledger and the cached
// has_charge_items flag on the record's events.
type ChargeItemService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
}

func NewChargeItemService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate) *ChargeItemService {
	return &ChargeItemService{db: db, repomanager: m, gate: gate}
}

// Save creates or conditionally updates a charge item, then recomputes the
// record's flag.
func (s *ChargeItemService) Save(ctx context.Context, deviceID string, w ChargeItemWrite) (*models.ChargeItem, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}

	var out *models.ChargeItem
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.gate.AuthorizeRecord(ctx, tx, deviceID, w.RecordID); err != nil {
			return err
		}

		repo := s.repomanager.ChargeItems(tx)
		snap, err := repo.Snapshot(ctx, w.ID)
		if err != nil {
			return err
		}
		if snap != nil && snap.Row.RecordID != w.RecordID {
			return validationf("charge item %s belongs to another record", w.ID)
		}
		if err := s.checkEvent(ctx, tx, w); err != nil {
			return err
		}

		out, err = versioned.Write(ctx, repo, w.ID, w.ExpectedVersion, &models.ChargeItem{
			ID:       w.ID,
			RecordID: w.RecordID,
			EventID:  w.EventID,
			Name:     strings.TrimSpace(w.Name),
			Price:    w.Price,
			Received: w.Received,
		})
		if err != nil {
			return err
		}
		return recomputeHasChargeItems(ctx, tx, s.repomanager, w.RecordID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkEvent requires a tagged event to be live and to reference the same record.
func (s *ChargeItemService) checkEvent(ctx context.Context, tx dbx.DBTX, w ChargeItemWrite) error {
	if w.EventID == nil {
		return nil
	}
	e, err := s.repomanager.Events(tx).Get(ctx, *w.EventID)
	if err != nil {
		return err
	}
	if e.Deleted {
		return common.ErrorNotFound
	}
	if e.RecordID != w.RecordID {
		return validationf("event %s does not reference record %s", e.ID, w.RecordID)
	}
	return nil
}

// Delete soft-deletes a charge item and recomputes the record's flag.
func (s *ChargeItemService) Delete(ctx context.Context, deviceID, itemID string, expected *int64) (*models.ChargeItem, error) {
	if err := validateIDs(itemID); err != nil {
		return nil, err
	}

	var out *models.ChargeItem
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.ChargeItems(tx)

		snap, err := repo.Snapshot(ctx, itemID)
		if err != nil {
			return err
		}
		if snap == nil {
			return common.ErrorNotFound
		}
		recordID := snap.Row.RecordID
		if err := s.gate.AuthorizeRecord(ctx, tx, deviceID, recordID); err != nil {
			return err
		}

		out, err = versioned.Delete(ctx, repo, itemID, expected)
		if err != nil {
			return err
		}
		return recomputeHasChargeItems(ctx, tx, s.repomanager, recordID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the live charge items of a record.
func (s *ChargeItemService) List(ctx context.Context, deviceID, recordID string) ([]*models.ChargeItem, error) {
	if err := validateIDs(recordID); err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeRecord(ctx, nil, deviceID, recordID); err != nil {
		return nil, err
	}
	return s.repomanager.ChargeItems(s.db).ListByRecord(ctx, recordID)
}

// recomputeHasChargeItems derives the flag from the live ledger and writes it
// through to every live event of the record.
func recomputeHasChargeItems(ctx context.Context, tx dbx.DBTX, m repomanager.RepositoryManager, recordID string) error {
	items, err := m.ChargeItems(tx).ListByRecord(ctx, recordID)
	if err != nil {
		return err
	}
	_, err = m.Events(tx).SetHasChargeItems(ctx, recordID, len(items) > 0)
	return err
}
