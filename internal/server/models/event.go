package models

import "time"

// Event is a scheduled appointment in a book.
//
// HasChargeItems and HasNote are cached copies of record-level state and
// are maintained by write-through recompute. An event whose NewEventID is set
// has been superseded by a reschedule.
type Event struct {
	ID              string
	BookID          string
	RecordID        string
	Title           string
	Tags            []string
	StartTime       time.Time
	EndTime         *time.Time
	HasChargeItems  bool
	HasNote         bool
	IsRemoved       bool
	RemovalReason   string
	OriginalEventID *string
	NewEventID      *string
	IsChecked       bool
	Version         int64
	Deleted         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Superseded reports whether a reschedule has replaced this event.
func (e *Event) Superseded() bool {
	return e.NewEventID != nil
}

// EventPatch lists the fields an update may change. Nil fields are kept.
type EventPatch struct {
	Title     *string
	Tags      []string
	StartTime *time.Time
	EndTime   *time.Time
	// ClearEndTime drops the end time; EndTime is ignored when set.
	ClearEndTime bool
	IsChecked    *bool
	IsRemoved    *bool
	// RemovalReason is applied together with IsRemoved.
	RemovalReason *string
}
