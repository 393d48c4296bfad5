package models

import "time"

// Record is a person or client shared by every event that references it.
type Record struct {
	ID           string
	RecordNumber *string
	Name         string
	Phone        string
	Version      int64
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
