package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/logging"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
	"github.com/google/uuid"
)

// RecordInput describes a record to link by its external number, or to
// create when no record the device may link carries that number.
type RecordInput struct {
	RecordNumber *string
	Name         string
	Phone        string
}

// CreateEventInput is the payload of EventService.Create. Exactly one of
// RecordID and Record must be set.
type CreateEventInput struct {
	BookID    string
	RecordID  string
	Record    *RecordInput
	Title     string
	Tags      []string
	StartTime time.Time
	EndTime   *time.Time
	IsChecked bool
}

// EventView is an event with its reschedule links resolved. A link whose
// target is missing or deleted is nil.
type EventView struct {
	Event     *models.Event
	Original  *models.Event
	Successor *models.Event
}

// EventService drives the event lifecycle: Active, Removed (reversible),
// Deleted (terminal), and Superseded once a reschedule has replaced it.
type EventService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
	logger      logging.Logger
}

func NewEventService(db *sql.DB, m repomanager.RepositoryManager, gate *Gate, l logging.Logger) *EventService {
	return &EventService{db: db, repomanager: m, gate: gate, logger: l.With("module", "event_service")}
}

func validateWindow(start time.Time, end *time.Time) error {
	if start.IsZero() {
		return validationf("start time is required")
	}
	if end != nil && end.Before(start) {
		return validationf("end time is before start time")
	}
	return nil
}

// Create inserts an event at version 1, linking or creating its record. The
// derived flags start from the record's current notes and charge items.
func (s *EventService) Create(ctx context.Context, deviceID string, in CreateEventInput) (*models.Event, error) {
	if err := validateIDs(in.BookID); err != nil {
		return nil, err
	}
	if (in.RecordID == "") == (in.Record == nil) {
		return nil, validationf("exactly one of record id and record attributes is required")
	}
	if in.RecordID != "" {
		if err := validateIDs(in.RecordID); err != nil {
			return nil, err
		}
	}
	if in.Record != nil && strings.TrimSpace(in.Record.Name) == "" {
		return nil, validationf("record name is empty")
	}
	if err := validateWindow(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}

	var out *models.Event
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.gate.AuthorizeBook(ctx, tx, deviceID, in.BookID); err != nil {
			return err
		}

		recordID, err := s.resolveRecord(ctx, tx, deviceID, in)
		if err != nil {
			return err
		}

		hasNote, err := s.repomanager.Notes(tx).HasLive(ctx, recordID)
		if err != nil {
			return err
		}
		hasItems, err := s.repomanager.ChargeItems(tx).HasLive(ctx, recordID)
		if err != nil {
			return err
		}

		out, err = s.repomanager.Events(tx).Create(ctx, &models.Event{
			ID:             uuid.NewString(),
			BookID:         in.BookID,
			RecordID:       recordID,
			Title:          strings.TrimSpace(in.Title),
			Tags:           NormalizeTags(in.Tags),
			StartTime:      in.StartTime,
			EndTime:        in.EndTime,
			HasNote:        hasNote,
			HasChargeItems: hasItems,
			IsChecked:      in.IsChecked,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resolveRecord links the event to an existing record or creates one. A
// record number only matches records the device may link; a number used by
// another tenant yields a fresh record.
func (s *EventService) resolveRecord(ctx context.Context, tx dbx.DBTX, deviceID string, in CreateEventInput) (string, error) {
	repo := s.repomanager.Records(tx)

	if in.RecordID != "" {
		if _, err := repo.Get(ctx, in.RecordID); err != nil {
			return "", err
		}
		if err := s.gate.AuthorizeRecordLink(ctx, tx, deviceID, in.RecordID); err != nil {
			return "", err
		}
		return in.RecordID, nil
	}

	if n := in.Record.RecordNumber; n != nil && *n != "" {
		rec, err := repo.FindLinkable(ctx, deviceID, *n)
		switch {
		case err == nil:
			return rec.ID, nil
		case !errors.Is(err, common.ErrorNotFound):
			return "", err
		}
	}

	rec, err := repo.Create(ctx, &models.Record{
		ID:           uuid.NewString(),
		RecordNumber: in.Record.RecordNumber,
		Name:         strings.TrimSpace(in.Record.Name),
		Phone:        strings.TrimSpace(in.Record.Phone),
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Get returns a live event with its links resolved.
func (s *EventService) Get(ctx context.Context, deviceID, eventID string) (*EventView, error) {
	if err := validateIDs(eventID); err != nil {
		return nil, err
	}

	repo := s.repomanager.Events(s.db)
	e, err := repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeBook(ctx, nil, deviceID, e.BookID); err != nil {
		return nil, err
	}
	if e.Deleted {
		return nil, common.ErrorNotFound
	}

	view := &EventView{Event: e}
	if view.Original, err = s.resolveLink(ctx, e.OriginalEventID); err != nil {
		return nil, err
	}
	if view.Successor, err = s.resolveLink(ctx, e.NewEventID); err != nil {
		return nil, err
	}
	return view, nil
}

// resolveLink treats links as weak: a missing or deleted target is nil.
func (s *EventService) resolveLink(ctx context.Context, id *string) (*models.Event, error) {
	if id == nil {
		return nil, nil
	}
	e, err := s.repomanager.Events(s.db).Get(ctx, *id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if e.Deleted {
		return nil, nil
	}
	return e, nil
}

// Update applies a partial patch and bumps the version. With expected set the
// patch only applies at that version.
func (s *EventService) Update(ctx context.Context, deviceID, eventID string, expected *int64, patch models.EventPatch) (*models.Event, error) {
	if err := validateIDs(eventID); err != nil {
		return nil, err
	}

	var out *models.Event
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := s.lockLive(ctx, tx, deviceID, eventID)
		if err != nil {
			return err
		}
		if expected != nil && *expected != e.Version {
			return &versioned.ConflictError[models.Event]{Current: e, Version: e.Version}
		}
		if err := applyPatch(e, patch); err != nil {
			return err
		}

		out, err = s.repomanager.Events(tx).Update(ctx, e)
		if err != nil {
			return err
		}
		if out == nil {
			return common.ErrEntityGone
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove marks the event removed with a reason. The record's note is untouched.
func (s *EventService) Remove(ctx context.Context, deviceID, eventID, reason string) (*models.Event, error) {
	removed := true
	reason = strings.TrimSpace(reason)
	return s.Update(ctx, deviceID, eventID, nil, models.EventPatch{IsRemoved: &removed, RemovalReason: &reason})
}

// Restore brings a removed event back. Superseded events cannot be restored.
func (s *EventService) Restore(ctx context.Context, deviceID, eventID string) (*models.Event, error) {
	removed := false
	return s.Update(ctx, deviceID, eventID, nil, models.EventPatch{IsRemoved: &removed})
}

func applyPatch(e *models.Event, p models.EventPatch) error {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Tags != nil {
		e.Tags = NormalizeTags(p.Tags)
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.ClearEndTime {
		e.EndTime = nil
	} else if p.EndTime != nil {
		e.EndTime = p.EndTime
	}
	if p.IsChecked != nil {
		e.IsChecked = *p.IsChecked
	}
	if p.IsRemoved != nil {
		if !*p.IsRemoved && e.Superseded() {
			return validationf("event %s was rescheduled and cannot be restored", e.ID)
		}
		e.IsRemoved = *p.IsRemoved
		if !e.IsRemoved {
			e.RemovalReason = ""
		}
	}
	if p.RemovalReason != nil && e.IsRemoved {
		e.RemovalReason = *p.RemovalReason
	}
	return validateWindow(e.StartTime, e.EndTime)
}

// Reschedule retires the event and creates its successor in one transaction.
// The old event is removed with reason and points forward to the new one; the
// new one starts at version 1 and points back.
func (s *EventService) Reschedule(ctx context.Context, deviceID, eventID string, start time.Time, end *time.Time, reason string) (*models.Event, *models.Event, error) {
	if err := validateIDs(eventID); err != nil {
		return nil, nil, err
	}
	if err := validateWindow(start, end); err != nil {
		return nil, nil, err
	}
	reason = strings.TrimSpace(reason)

	var oldEvent, newEvent *models.Event
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := s.lockLive(ctx, tx, deviceID, eventID)
		if err != nil {
			return err
		}
		if e.Superseded() {
			return validationf("event %s was already rescheduled", e.ID)
		}
		if e.IsRemoved {
			return validationf("event %s is removed", e.ID)
		}

		repo := s.repomanager.Events(tx)
		newID := uuid.NewString()

		oldEvent, err = repo.MarkSuperseded(ctx, e.ID, newID, reason)
		if err != nil {
			return err
		}
		if oldEvent == nil {
			return validationf("event %s was already rescheduled", e.ID)
		}

		newEvent, err = repo.Create(ctx, &models.Event{
			ID:              newID,
			BookID:          e.BookID,
			RecordID:        e.RecordID,
			Title:           e.Title,
			Tags:            e.Tags,
			StartTime:       start,
			EndTime:         end,
			HasChargeItems:  e.HasChargeItems,
			HasNote:         e.HasNote,
			OriginalEventID: &e.ID,
		})
		return err
	})
	if err != nil {
		s.logger.Warn(ctx, "reschedule rolled back", "device_id", deviceID, "event_id", eventID, "error", err)
		return nil, nil, err
	}
	s.logger.Info(ctx, "event rescheduled", "device_id", deviceID, "event_id", oldEvent.ID, "new_event_id", newEvent.ID)
	return oldEvent, newEvent, nil
}

// Delete soft-deletes the event. Links pointing at it are left as they are.
func (s *EventService) Delete(ctx context.Context, deviceID, eventID string) (*models.Event, error) {
	if err := validateIDs(eventID); err != nil {
		return nil, err
	}

	var out *models.Event
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.lockLive(ctx, tx, deviceID, eventID); err != nil {
			return err
		}
		var err error
		out, err = s.repomanager.Events(tx).SoftDelete(ctx, eventID)
		if err != nil {
			return err
		}
		if out == nil {
			return common.ErrEntityGone
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockLive loads and locks the event, rejecting deleted rows as gone, and
// authorizes its book.
func (s *EventService) lockLive(ctx context.Context, tx dbx.DBTX, deviceID, eventID string) (*models.Event, error) {
	e, err := s.repomanager.Events(tx).GetForUpdate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeBook(ctx, tx, deviceID, e.BookID); err != nil {
		return nil, err
	}
	if e.Deleted {
		return nil, common.ErrEntityGone
	}
	return e, nil
}
