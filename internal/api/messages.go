package api

import "time"

// Empty is the response of calls that return nothing.
type Empty struct{}

// Conflict is returned instead of an error when a conditional write met a
// different server version. Current is the server's row.
type Conflict[T any] struct {
	Version int64 `json:"version"`
	Current *T    `json:"current"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// Devices.

type RegisterDeviceRequest struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

// RegisterDeviceResponse carries the device secret. It is never returned again.
type RegisterDeviceResponse struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
}

// Books.

type Book struct {
	ID            string     `json:"id"`
	OwnerDeviceID string     `json:"owner_device_id"`
	Name          string     `json:"name"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type CreateBookRequest struct {
	Name string `json:"name"`
}

type UpdateBookRequest struct {
	BookID          string `json:"book_id"`
	Name            string `json:"name"`
	Archived        bool   `json:"archived"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type DeleteBookRequest struct {
	BookID          string `json:"book_id"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type BookResponse struct {
	Book     *Book           `json:"book,omitempty"`
	Conflict *Conflict[Book] `json:"conflict,omitempty"`
}

type BookAccessRequest struct {
	BookID   string `json:"book_id"`
	DeviceID string `json:"device_id"`
}

// Events.

type Event struct {
	ID              string     `json:"id"`
	BookID          string     `json:"book_id"`
	RecordID        string     `json:"record_id"`
	Title           string     `json:"title"`
	Tags            []string   `json:"tags"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	HasChargeItems  bool       `json:"has_charge_items"`
	HasNote         bool       `json:"has_note"`
	IsRemoved       bool       `json:"is_removed"`
	RemovalReason   string     `json:"removal_reason,omitempty"`
	OriginalEventID *string    `json:"original_event_id,omitempty"`
	NewEventID      *string    `json:"new_event_id,omitempty"`
	IsChecked       bool       `json:"is_checked"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RecordInput names a record to reuse by number or to create.
type RecordInput struct {
	RecordNumber *string `json:"record_number,omitempty"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone,omitempty"`
}

type CreateEventRequest struct {
	BookID    string       `json:"book_id"`
	RecordID  string       `json:"record_id,omitempty"`
	Record    *RecordInput `json:"record,omitempty"`
	Title     string       `json:"title"`
	Tags      []string     `json:"tags"`
	StartTime time.Time    `json:"start_time"`
	EndTime   *time.Time   `json:"end_time,omitempty"`
	IsChecked bool         `json:"is_checked"`
}

// UpdateEventRequest is a partial patch: absent fields keep their value.
type UpdateEventRequest struct {
	EventID         string     `json:"event_id"`
	ExpectedVersion *int64     `json:"expected_version,omitempty"`
	Title           *string    `json:"title,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	ClearEndTime    bool       `json:"clear_end_time,omitempty"`
	IsChecked       *bool      `json:"is_checked,omitempty"`
	IsRemoved       *bool      `json:"is_removed,omitempty"`
	RemovalReason   *string    `json:"removal_reason,omitempty"`
}

type EventRequest struct {
	EventID string `json:"event_id"`
}

type RemoveEventRequest struct {
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

type RescheduleEventRequest struct {
	EventID   string     `json:"event_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Reason    string     `json:"reason"`
}

type EventResponse struct {
	Event    *Event           `json:"event,omitempty"`
	Conflict *Conflict[Event] `json:"conflict,omitempty"`
}

// GetEventResponse resolves reschedule links. A link whose target is gone is
// omitted even though the id stays on the event.
type GetEventResponse struct {
	Event     *Event `json:"event"`
	Original  *Event `json:"original,omitempty"`
	Successor *Event `json:"successor,omitempty"`
}

type RescheduleEventResponse struct {
	Superseded *Event `json:"superseded"`
	Created    *Event `json:"created"`
}

// Strokes.

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Stroke struct {
	Points []Point `json:"points"`
	Width  float64 `json:"width"`
	Color  int64   `json:"color"`
	Kind   string  `json:"kind"`
}

// Notes.

type Note struct {
	ID        string     `json:"id"`
	RecordID  string     `json:"record_id"`
	Pages     [][]Stroke `json:"pages"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type RecordRequest struct {
	RecordID string `json:"record_id"`
}

// UpsertNoteRequest accepts either Pages or, from older clients, a single
// page as Strokes.
type UpsertNoteRequest struct {
	RecordID        string     `json:"record_id"`
	Pages           [][]Stroke `json:"pages,omitempty"`
	Strokes         []Stroke   `json:"strokes,omitempty"`
	ExpectedVersion *int64     `json:"expected_version,omitempty"`
}

type DeleteNoteRequest struct {
	RecordID        string `json:"record_id"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// NoteResponse has neither Note nor Conflict when a record has no note.
type NoteResponse struct {
	Note     *Note           `json:"note,omitempty"`
	Conflict *Conflict[Note] `json:"conflict,omitempty"`
}

type BatchGetNotesRequest struct {
	RecordIDs []string `json:"record_ids"`
}

type BatchGetNotesResponse struct {
	Notes []*Note `json:"notes"`
}

// Drawings.

// DrawingKey addresses a drawing. Date is "2006-01-02".
type DrawingKey struct {
	BookID   string `json:"book_id"`
	Date     string `json:"date"`
	ViewMode string `json:"view_mode"`
}

type Drawing struct {
	DrawingKey
	Strokes   []Stroke  `json:"strokes"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DrawingRequest struct {
	DrawingKey
}

type UpsertDrawingRequest struct {
	DrawingKey
	Strokes         []Stroke `json:"strokes"`
	ExpectedVersion *int64   `json:"expected_version,omitempty"`
}

type DeleteDrawingRequest struct {
	DrawingKey
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// DrawingResponse has neither Drawing nor Conflict when nothing was drawn.
type DrawingResponse struct {
	Drawing  *Drawing           `json:"drawing,omitempty"`
	Conflict *Conflict[Drawing] `json:"conflict,omitempty"`
}

type ListDrawingsRequest struct {
	BookID string `json:"book_id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type ListDrawingsResponse struct {
	Drawings []*Drawing `json:"drawings"`
}

// Charge items.

type ChargeItem struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"record_id"`
	EventID   *string   `json:"event_id,omitempty"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Received  int64     `json:"received"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveChargeItemRequest creates an item when ID is empty.
type SaveChargeItemRequest struct {
	ID              string  `json:"id,omitempty"`
	RecordID        string  `json:"record_id"`
	EventID         *string `json:"event_id,omitempty"`
	Name            string  `json:"name"`
	Price           int64   `json:"price"`
	Received        int64   `json:"received"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}

type DeleteChargeItemRequest struct {
	ID              string `json:"id"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type ChargeItemResponse struct {
	Item     *ChargeItem           `json:"item,omitempty"`
	Conflict *Conflict[ChargeItem] `json:"conflict,omitempty"`
}

type ListChargeItemsResponse struct {
	Items []*ChargeItem `json:"items"`
}

// Batch.

type BatchSaveRequest struct {
	Notes    []UpsertNoteRequest    `json:"notes"`
	Drawings []UpsertDrawingRequest `json:"drawings"`
}

// BatchItem reports one item. Status is saved, reverted, failed or
// not_attempted.
type BatchItem struct {
	Kind          string `json:"kind"`
	Index         int    `json:"index"`
	Key           string `json:"key"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	ServerVersion int64  `json:"server_version,omitempty"`
}

// BatchSaveResponse reports per-kind counts. When Committed is false nothing
// was persisted and Reason says why.
type BatchSaveResponse struct {
	Committed      bool        `json:"committed"`
	NotesSaved     int         `json:"notes_saved"`
	NotesFailed    int         `json:"notes_failed"`
	DrawingsSaved  int         `json:"drawings_saved"`
	DrawingsFailed int         `json:"drawings_failed"`
	Items          []BatchItem `json:"items"`
	Reason         string      `json:"reason,omitempty"`
}

// Backups.

type BackupUploadRequest struct {
	BookID string `json:"book_id"`
}

type BackupDownloadRequest struct {
	Key string `json:"key"`
}

type BackupTicket struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
