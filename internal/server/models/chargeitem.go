package models

import "time"

// ChargeItem is a billable line of a record, optionally tagged to one event.
// Amounts are in minor currency units.
type ChargeItem struct {
	ID        string
	RecordID  string
	EventID   *string
	Name      string
	Price     int64
	Received  int64
	Version   int64
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
