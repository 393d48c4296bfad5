// Package models defines server-side data models persisted in the database.
package models

import "time"

// Device is a registered client installation. Devices are never hard-deleted;
// deactivation clears Active.
type Device struct {
	ID          string
	SecretToken string
	Name        string
	Platform    string
	Active      bool
	LastSyncAt  *time.Time
	CreatedAt   time.Time
}
