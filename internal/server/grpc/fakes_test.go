package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/booksync/internal/logging"
	"github.com/dmitrijs2005/booksync/internal/server/metrics"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/services"
)

// ---- fakes ----

type fakeGate struct {
	device    *models.Device
	err       error
	gotID     string
	gotSecret string
}

func (f *fakeGate) Authenticate(ctx context.Context, deviceID, secret string) (*models.Device, error) {
	f.gotID, f.gotSecret = deviceID, secret
	return f.device, f.err
}

type fakeDevices struct {
	device      *models.Device
	err         error
	deactivated string
}

func (f *fakeDevices) Register(ctx context.Context, name, platform string) (*models.Device, error) {
	return f.device, f.err
}
func (f *fakeDevices) Deactivate(ctx context.Context, deviceID string) error {
	f.deactivated = deviceID
	return f.err
}

type fakeBooks struct {
	book     *models.Book
	err      error
	expected *int64
	grant    [3]string
}

func (f *fakeBooks) Create(ctx context.Context, deviceID, name string) (*models.Book, error) {
	return f.book, f.err
}
func (f *fakeBooks) Update(ctx context.Context, deviceID, bookID string, expected *int64, name string, archived bool) (*models.Book, error) {
	f.expected = expected
	return f.book, f.err
}
func (f *fakeBooks) Delete(ctx context.Context, deviceID, bookID string, expected *int64) (*models.Book, error) {
	f.expected = expected
	return f.book, f.err
}
func (f *fakeBooks) GrantAccess(ctx context.Context, deviceID, bookID, targetDeviceID string) error {
	f.grant = [3]string{deviceID, bookID, targetDeviceID}
	return f.err
}
func (f *fakeBooks) RevokeAccess(ctx context.Context, deviceID, bookID, targetDeviceID string) error {
	f.grant = [3]string{deviceID, bookID, targetDeviceID}
	return f.err
}

type fakeEvents struct {
	event     *models.Event
	successor *models.Event
	view      *services.EventView
	err       error

	input  services.CreateEventInput
	patch  models.EventPatch
	reason string
}

func (f *fakeEvents) Create(ctx context.Context, deviceID string, in services.CreateEventInput) (*models.Event, error) {
	f.input = in
	return f.event, f.err
}
func (f *fakeEvents) Get(ctx context.Context, deviceID, eventID string) (*services.EventView, error) {
	return f.view, f.err
}
func (f *fakeEvents) Update(ctx context.Context, deviceID, eventID string, expected *int64, patch models.EventPatch) (*models.Event, error) {
	f.patch = patch
	return f.event, f.err
}
func (f *fakeEvents) Remove(ctx context.Context, deviceID, eventID, reason string) (*models.Event, error) {
	f.reason = reason
	return f.event, f.err
}
func (f *fakeEvents) Restore(ctx context.Context, deviceID, eventID string) (*models.Event, error) {
	return f.event, f.err
}
func (f *fakeEvents) Reschedule(ctx context.Context, deviceID, eventID string, start time.Time, end *time.Time, reason string) (*models.Event, *models.Event, error) {
	f.reason = reason
	return f.event, f.successor, f.err
}
func (f *fakeEvents) Delete(ctx context.Context, deviceID, eventID string) (*models.Event, error) {
	return f.event, f.err
}

type fakeNotes struct {
	note  *models.Note
	notes []*models.Note
	err   error
	write services.NoteWrite
	ids   []string
}

func (f *fakeNotes) Get(ctx context.Context, deviceID, recordID string) (*models.Note, error) {
	return f.note, f.err
}
func (f *fakeNotes) Upsert(ctx context.Context, deviceID string, w services.NoteWrite) (*models.Note, error) {
	f.write = w
	return f.note, f.err
}
func (f *fakeNotes) Delete(ctx context.Context, deviceID, recordID string, expected *int64) (*models.Note, error) {
	return f.note, f.err
}
func (f *fakeNotes) ListForDevice(ctx context.Context, deviceID string, recordIDs []string) ([]*models.Note, error) {
	f.ids = recordIDs
	return f.notes, f.err
}

type fakeDrawings struct {
	drawing  *models.Drawing
	drawings []*models.Drawing
	err      error
	write    services.DrawingWrite
	key      models.DrawingKey
	from, to time.Time
}

func (f *fakeDrawings) Get(ctx context.Context, deviceID string, key models.DrawingKey) (*models.Drawing, error) {
	f.key = key
	return f.drawing, f.err
}
func (f *fakeDrawings) Upsert(ctx context.Context, deviceID string, w services.DrawingWrite) (*models.Drawing, error) {
	f.write = w
	return f.drawing, f.err
}
func (f *fakeDrawings) Delete(ctx context.Context, deviceID string, key models.DrawingKey, expected *int64) (*models.Drawing, error) {
	f.key = key
	return f.drawing, f.err
}
func (f *fakeDrawings) ListRange(ctx context.Context, deviceID, bookID string, from, to time.Time) ([]*models.Drawing, error) {
	f.from, f.to = from, to
	return f.drawings, f.err
}

type fakeChargeItems struct {
	item  *models.ChargeItem
	items []*models.ChargeItem
	err   error
	write services.ChargeItemWrite
}

func (f *fakeChargeItems) Save(ctx context.Context, deviceID string, w services.ChargeItemWrite) (*models.ChargeItem, error) {
	f.write = w
	return f.item, f.err
}
func (f *fakeChargeItems) Delete(ctx context.Context, deviceID, itemID string, expected *int64) (*models.ChargeItem, error) {
	return f.item, f.err
}
func (f *fakeChargeItems) List(ctx context.Context, deviceID, recordID string) ([]*models.ChargeItem, error) {
	return f.items, f.err
}

type fakeBatch struct {
	result   *services.BatchResult
	err      error
	called   bool
	notes    []services.NoteWrite
	drawings []services.DrawingWrite
}

func (f *fakeBatch) Save(ctx context.Context, deviceID string, notes []services.NoteWrite, drawings []services.DrawingWrite) (*services.BatchResult, error) {
	f.called = true
	f.notes, f.drawings = notes, drawings
	return f.result, f.err
}

type fakeBackups struct {
	ticket *services.BackupTicket
	err    error
	arg    string
}

func (f *fakeBackups) RequestUpload(ctx context.Context, deviceID, bookID string) (*services.BackupTicket, error) {
	f.arg = bookID
	return f.ticket, f.err
}
func (f *fakeBackups) RequestDownload(ctx context.Context, deviceID, key string) (*services.BackupTicket, error) {
	f.arg = key
	return f.ticket, f.err
}

type fakes struct {
	gate        *fakeGate
	devices     *fakeDevices
	books       *fakeBooks
	events      *fakeEvents
	notes       *fakeNotes
	drawings    *fakeDrawings
	chargeItems *fakeChargeItems
	batch       *fakeBatch
	backups     *fakeBackups
}

const testDevice = "dev-1"

func newTestServer(address string) (*GRPCServer, *fakes, *metrics.Metrics) {
	f := &fakes{
		gate:        &fakeGate{device: &models.Device{ID: testDevice, Active: true}},
		devices:     &fakeDevices{},
		books:       &fakeBooks{},
		events:      &fakeEvents{},
		notes:       &fakeNotes{},
		drawings:    &fakeDrawings{},
		chargeItems: &fakeChargeItems{},
		batch:       &fakeBatch{},
		backups:     &fakeBackups{},
	}
	m := metrics.New()
	s := NewGRPCServer(address, logging.Nop{}, m, Services{
		Gate:        f.gate,
		Devices:     f.devices,
		Books:       f.books,
		Events:      f.events,
		Notes:       f.notes,
		Drawings:    f.drawings,
		ChargeItems: f.chargeItems,
		Batch:       f.batch,
		Backups:     f.backups,
	})
	return s, f, m
}

// authed returns a context as credentialsInterceptor leaves it.
func authed() context.Context {
	return context.WithValue(context.Background(), deviceIDKey, testDevice)
}

func ptr[T any](v T) *T { return &v }
