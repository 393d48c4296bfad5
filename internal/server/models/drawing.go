package models

import (
	"fmt"
	"time"
)

// ViewMode is the calendar layout a drawing was made on.
type ViewMode string

const (
	ViewDay      ViewMode = "day"
	ViewMultiDay ViewMode = "multi-day"
	ViewWeek     ViewMode = "week"
)

// ParseViewMode validates a wire value.
func ParseViewMode(s string) (ViewMode, error) {
	switch v := ViewMode(s); v {
	case ViewDay, ViewMultiDay, ViewWeek:
		return v, nil
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}

// DrawingKey addresses a drawing. Date is a calendar date at midnight UTC.
type DrawingKey struct {
	BookID   string
	Date     time.Time
	ViewMode ViewMode
}

// Drawing is a freehand overlay of a calendar page. ID is internal and never
// used to address the drawing.
type Drawing struct {
	ID        string
	BookID    string
	Date      time.Time
	ViewMode  ViewMode
	Strokes   []Stroke
	Version   int64
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the composite identity of d.
func (d *Drawing) Key() DrawingKey {
	return DrawingKey{BookID: d.BookID, Date: d.Date, ViewMode: d.ViewMode}
}
