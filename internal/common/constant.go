// Package common contains shared constants and sentinel errors used across
// booksync components.
package common

// Metadata keys carrying the device credential pair on every authenticated call.
const (
	DeviceIDHeaderName     = "x-device-id"
	DeviceSecretHeaderName = "x-device-secret"
)

// DefaultEventTag replaces an empty category tag set at write time.
const DefaultEventTag = "other"
