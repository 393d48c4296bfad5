package models

import "time"

// Book is an appointment book owned by one device.
type Book struct {
	ID            string
	OwnerDeviceID string
	Name          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ArchivedAt    *time.Time
	Version       int64
	Deleted       bool
}

// BookAccess grants a non-owner device access to a book.
type BookAccess struct {
	BookID    string
	DeviceID  string
	GrantedAt time.Time
}
