package models

import "time"

// Note is the handwritten note of a record. There is at most one live note
// per record; events reach it through their RecordID.
type Note struct {
	ID        string
	RecordID  string
	Pages     []Page
	Version   int64
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizePages returns pages, or wraps legacy single-page strokes into a
// one-element page list when pages is empty.
func NormalizePages(pages []Page, legacy []Stroke) []Page {
	if len(pages) == 0 && legacy != nil {
		return []Page{Page(legacy)}
	}
	if pages == nil {
		return []Page{}
	}
	return pages
}
