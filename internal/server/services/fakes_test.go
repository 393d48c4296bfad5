package services

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/dbx"
	"github.com/dmitrijs2005/booksync/internal/logging"
	"github.com/dmitrijs2005/booksync/internal/server/auth"
	"github.com/dmitrijs2005/booksync/internal/server/config"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/access"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/books"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/chargeitems"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/drawings"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/events"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/notes"
	"github.com/dmitrijs2005/booksync/internal/server/repositories/records"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory model of the schema. Repositories built on it
// follow the same row rules as the Postgres ones: conditional writes only
// touch live rows and bump the version by one.
type memStore struct {
	devices  map[string]*models.Device
	books    map[string]*models.Book
	grants   map[string]map[string]bool
	records  map[string]*models.Record
	events   map[string]*models.Event
	notes    map[string]*models.Note
	drawings map[models.DrawingKey]*models.Drawing
	items    map[string]*models.ChargeItem

	// fail injects an error into the named repository call.
	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		devices:  map[string]*models.Device{},
		books:    map[string]*models.Book{},
		grants:   map[string]map[string]bool{},
		records:  map[string]*models.Record{},
		events:   map[string]*models.Event{},
		notes:    map[string]*models.Note{},
		drawings: map[models.DrawingKey]*models.Drawing{},
		items:    map[string]*models.ChargeItem{},
		fail:     map[string]error{},
	}
}

func matches(version int64, deleted bool, expected *int64) bool {
	return !deleted && (expected == nil || *expected == version)
}

func cp[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (s *memStore) canAccessBook(deviceID, bookID string) bool {
	b, ok := s.books[bookID]
	if !ok || b.Deleted {
		return false
	}
	return b.OwnerDeviceID == deviceID || s.grants[bookID][deviceID]
}

func (s *memStore) canAccessRecord(deviceID, recordID string) bool {
	for _, e := range s.events {
		if e.RecordID == recordID && !e.Deleted && s.canAccessBook(deviceID, e.BookID) {
			return true
		}
	}
	return false
}

// canLinkRecord mirrors access.DeviceCanLinkRecord.
func (s *memStore) canLinkRecord(deviceID, recordID string) bool {
	if s.canAccessRecord(deviceID, recordID) {
		return true
	}
	seen := false
	for _, e := range s.events {
		if e.RecordID != recordID {
			continue
		}
		if !e.Deleted {
			return false
		}
		seen = seen || s.canAccessBook(deviceID, e.BookID)
	}
	return seen
}

// fakeRM vends repositories over one memStore regardless of the handle.
type fakeRM struct{ s *memStore }

func (m *fakeRM) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRM) Devices(dbx.DBTX) devices.Repository { return &fakeDevices{m.s} }
func (m *fakeRM) Books(dbx.DBTX) books.Repository { return &fakeBooks{m.s} }
func (m *fakeRM) Access(dbx.DBTX) access.Repository { return &fakeAccess{m.s} }
func (m *fakeRM) Records(dbx.DBTX) records.Repository { return &fakeRecords{m.s} }
func (m *fakeRM) Events(dbx.DBTX) events.Repository { return &fakeEvents{m.s} }
func (m *fakeRM) Notes(dbx.DBTX) notes.Repository { return &fakeNotes{m.s} }
func (m *fakeRM) Drawings(dbx.DBTX) drawings.Repository { return &fakeDrawings{m.s} }
func (m *fakeRM) ChargeItems(dbx.DBTX) chargeitems.Repository { return &fakeItems{m.s} }

type fakeDevices struct{ s *memStore }

func (r *fakeDevices) Create(_ context.Context, d *models.Device) (*models.Device, error) {
	if err := r.s.fail["devices.Create"]; err != nil {
		return nil, err
	}
	d.Active = true
	d.CreatedAt = time.Now()
	r.s.devices[d.ID] = cp(d)
	return d, nil
}

func (r *fakeDevices) Get(_ context.Context, id string) (*models.Device, error) {
	d, ok := r.s.devices[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cp(d), nil
}

func (r *fakeDevices) Deactivate(_ context.Context, id string) error {
	d, ok := r.s.devices[id]
	if !ok {
		return common.ErrorNotFound
	}
	d.Active = false
	return nil
}

func (r *fakeDevices) TouchLastSync(_ context.Context, id string, at time.Time) error {
	if err := r.s.fail["devices.TouchLastSync"]; err != nil {
		return err
	}
	d, ok := r.s.devices[id]
	if !ok {
		return common.ErrorNotFound
	}
	d.LastSyncAt = &at
	return nil
}

type fakeBooks struct{ s *memStore }

func (r *fakeBooks) Create(_ context.Context, b *models.Book) (*models.Book, error) {
	b.Version = 1
	r.s.books[b.ID] = cp(b)
	return cp(b), nil
}

func (r *fakeBooks) Get(_ context.Context, id string) (*models.Book, error) {
	b, ok := r.s.books[id]
	if !ok || b.Deleted {
		return nil, common.ErrorNotFound
	}
	return cp(b), nil
}

func (r *fakeBooks) UpdateIfVersion(_ context.Context, id string, expected *int64, p *models.Book) (*models.Book, error) {
	b, ok := r.s.books[id]
	if !ok || !matches(b.Version, b.Deleted, expected) {
		return nil, nil
	}
	b.Name = p.Name
	switch {
	case p.ArchivedAt == nil:
		b.ArchivedAt = nil
	case b.ArchivedAt == nil:
		b.ArchivedAt = p.ArchivedAt
	}
	b.Version++
	return cp(b), nil
}

func (r *fakeBooks) DeleteIfVersion(_ context.Context, id string, expected *int64) (*models.Book, error) {
	b, ok := r.s.books[id]
	if !ok || !matches(b.Version, b.Deleted, expected) {
		return nil, nil
	}
	b.Deleted = true
	b.Version++
	return cp(b), nil
}

func (r *fakeBooks) InsertFresh(_ context.Context, id string, p *models.Book) (*models.Book, error) {
	if _, ok := r.s.books[id]; ok {
		return nil, nil
	}
	p.ID, p.Version = id, 1
	r.s.books[id] = cp(p)
	return cp(p), nil
}

func (r *fakeBooks) Snapshot(_ context.Context, id string) (*versioned.Snapshot[models.Book], error) {
	b, ok := r.s.books[id]
	if !ok {
		return nil, nil
	}
	return &versioned.Snapshot[models.Book]{Row: cp(b), Version: b.Version, Deleted: b.Deleted}, nil
}

func (r *fakeBooks) GrantAccess(_ context.Context, bookID, deviceID string) error {
	if r.s.grants[bookID] == nil {
		r.s.grants[bookID] = map[string]bool{}
	}
	r.s.grants[bookID][deviceID] = true
	return nil
}

func (r *fakeBooks) RevokeAccess(_ context.Context, bookID, deviceID string) error {
	if !r.s.grants[bookID][deviceID] {
		return common.ErrorNotFound
	}
	delete(r.s.grants[bookID], deviceID)
	return nil
}

type fakeAccess struct{ s *memStore }

func (r *fakeAccess) CanAccessBook(_ context.Context, deviceID, bookID string) (bool, error) {
	if err := r.s.fail["access.CanAccessBook"]; err != nil {
		return false, err
	}
	return r.s.canAccessBook(deviceID, bookID), nil
}

func (r *fakeAccess) CanAccessRecord(_ context.Context, deviceID, recordID string) (bool, error) {
	return r.s.canAccessRecord(deviceID, recordID), nil
}

func (r *fakeAccess) CanLinkRecord(_ context.Context, deviceID, recordID string) (bool, error) {
	rec, ok := r.s.records[recordID]
	return ok && !rec.Deleted && r.s.canLinkRecord(deviceID, recordID), nil
}

type fakeRecords struct{ s *memStore }

func (r *fakeRecords) Create(_ context.Context, rec *models.Record) (*models.Record, error) {
	rec.Version = 1
	r.s.records[rec.ID] = cp(rec)
	return cp(rec), nil
}

func (r *fakeRecords) Get(_ context.Context, id string) (*models.Record, error) {
	rec, ok := r.s.records[id]
	if !ok || rec.Deleted {
		return nil, common.ErrorNotFound
	}
	return cp(rec), nil
}

func (r *fakeRecords) FindLinkable(_ context.Context, deviceID, number string) (*models.Record, error) {
	var orphan *models.Record
	for _, rec := range r.s.records {
		if rec.RecordNumber == nil || *rec.RecordNumber != number || rec.Deleted {
			continue
		}
		if r.s.canAccessRecord(deviceID, rec.ID) {
			return cp(rec), nil
		}
		if orphan == nil && r.s.canLinkRecord(deviceID, rec.ID) {
			orphan = rec
		}
	}
	if orphan == nil {
		return nil, common.ErrorNotFound
	}
	return cp(orphan), nil
}

type fakeEvents struct{ s *memStore }

func (r *fakeEvents) Create(_ context.Context, e *models.Event) (*models.Event, error) {
	if err := r.s.fail["events.Create"]; err != nil {
		return nil, err
	}
	e.Version = 1
	r.s.events[e.ID] = cp(e)
	return cp(e), nil
}

func (r *fakeEvents) Get(_ context.Context, id string) (*models.Event, error) {
	e, ok := r.s.events[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cp(e), nil
}

func (r *fakeEvents) GetForUpdate(ctx context.Context, id string) (*models.Event, error) {
	return r.Get(ctx, id)
}

func (r *fakeEvents) Update(_ context.Context, p *models.Event) (*models.Event, error) {
	e, ok := r.s.events[p.ID]
	if !ok || e.Deleted {
		return nil, nil
	}
	e.Title, e.Tags, e.StartTime, e.EndTime = p.Title, p.Tags, p.StartTime, p.EndTime
	e.IsRemoved, e.RemovalReason, e.IsChecked = p.IsRemoved, p.RemovalReason, p.IsChecked
	e.Version++
	return cp(e), nil
}

func (r *fakeEvents) MarkSuperseded(_ context.Context, id, newEventID, reason string) (*models.Event, error) {
	e, ok := r.s.events[id]
	if !ok || e.Deleted || e.NewEventID != nil {
		return nil, nil
	}
	e.IsRemoved, e.RemovalReason, e.NewEventID = true, reason, &newEventID
	e.Version++
	return cp(e), nil
}

func (r *fakeEvents) SoftDelete(_ context.Context, id string) (*models.Event, error) {
	e, ok := r.s.events[id]
	if !ok || e.Deleted {
		return nil, nil
	}
	e.Deleted = true
	e.Version++
	return cp(e), nil
}

func (r *fakeEvents) setFlag(recordID string, field func(*models.Event) *bool, value bool) int64 {
	var n int64
	for _, e := range r.s.events {
		if e.RecordID != recordID || e.Deleted || *field(e) == value {
			continue
		}
		*field(e) = value
		e.Version++
		n++
	}
	return n
}

func (r *fakeEvents) SetHasNote(_ context.Context, recordID string, value bool) (int64, error) {
	return r.setFlag(recordID, func(e *models.Event) *bool { return &e.HasNote }, value), nil
}

func (r *fakeEvents) SetHasChargeItems(_ context.Context, recordID string, value bool) (int64, error) {
	return r.setFlag(recordID, func(e *models.Event) *bool { return &e.HasChargeItems }, value), nil
}

type fakeNotes struct{ s *memStore }

func (r *fakeNotes) UpdateIfVersion(_ context.Context, recordID string, expected *int64, p *models.Note) (*models.Note, error) {
	if err := r.s.fail["notes.UpdateIfVersion"]; err != nil {
		return nil, err
	}
	n, ok := r.s.notes[recordID]
	if !ok || !matches(n.Version, n.Deleted, expected) {
		return nil, nil
	}
	n.Pages = p.Pages
	n.Version++
	return cp(n), nil
}

func (r *fakeNotes) DeleteIfVersion(_ context.Context, recordID string, expected *int64) (*models.Note, error) {
	n, ok := r.s.notes[recordID]
	if !ok || !matches(n.Version, n.Deleted, expected) {
		return nil, nil
	}
	n.Deleted = true
	n.Version++
	return cp(n), nil
}

func (r *fakeNotes) InsertFresh(_ context.Context, recordID string, p *models.Note) (*models.Note, error) {
	if _, ok := r.s.notes[recordID]; ok {
		return nil, nil
	}
	p.RecordID, p.Version = recordID, 1
	r.s.notes[recordID] = cp(p)
	return cp(p), nil
}

func (r *fakeNotes) Snapshot(_ context.Context, recordID string) (*versioned.Snapshot[models.Note], error) {
	n, ok := r.s.notes[recordID]
	if !ok {
		return nil, nil
	}
	return &versioned.Snapshot[models.Note]{Row: cp(n), Version: n.Version, Deleted: n.Deleted}, nil
}

func (r *fakeNotes) Get(_ context.Context, recordID string) (*models.Note, error) {
	n, ok := r.s.notes[recordID]
	if !ok || n.Deleted {
		return nil, nil
	}
	return cp(n), nil
}

func (r *fakeNotes) ListForDevice(_ context.Context, deviceID string, recordIDs []string) ([]*models.Note, error) {
	var out []*models.Note
	for _, id := range recordIDs {
		n, ok := r.s.notes[id]
		if ok && !n.Deleted && r.s.canAccessRecord(deviceID, id) {
			out = append(out, cp(n))
		}
	}
	return out, nil
}

func (r *fakeNotes) HasLive(_ context.Context, recordID string) (bool, error) {
	n, ok := r.s.notes[recordID]
	return ok && !n.Deleted, nil
}

type fakeDrawings struct{ s *memStore }

func (r *fakeDrawings) UpdateIfVersion(_ context.Context, k models.DrawingKey, expected *int64, p *models.Drawing) (*models.Drawing, error) {
	d, ok := r.s.drawings[k]
	if !ok || !matches(d.Version, d.Deleted, expected) {
		return nil, nil
	}
	d.Strokes = p.Strokes
	d.Version++
	return cp(d), nil
}

func (r *fakeDrawings) DeleteIfVersion(_ context.Context, k models.DrawingKey, expected *int64) (*models.Drawing, error) {
	d, ok := r.s.drawings[k]
	if !ok || !matches(d.Version, d.Deleted, expected) {
		return nil, nil
	}
	d.Deleted = true
	d.Version++
	return cp(d), nil
}

func (r *fakeDrawings) InsertFresh(_ context.Context, k models.DrawingKey, p *models.Drawing) (*models.Drawing, error) {
	if _, ok := r.s.drawings[k]; ok {
		return nil, nil
	}
	p.BookID, p.Date, p.ViewMode, p.Version = k.BookID, k.Date, k.ViewMode, 1
	r.s.drawings[k] = cp(p)
	return cp(p), nil
}

func (r *fakeDrawings) Snapshot(_ context.Context, k models.DrawingKey) (*versioned.Snapshot[models.Drawing], error) {
	d, ok := r.s.drawings[k]
	if !ok {
		return nil, nil
	}
	return &versioned.Snapshot[models.Drawing]{Row: cp(d), Version: d.Version, Deleted: d.Deleted}, nil
}

func (r *fakeDrawings) Get(_ context.Context, k models.DrawingKey) (*models.Drawing, error) {
	d, ok := r.s.drawings[k]
	if !ok || d.Deleted {
		return nil, nil
	}
	return cp(d), nil
}

func (r *fakeDrawings) ListRange(_ context.Context, deviceID, bookID string, from, to time.Time) ([]*models.Drawing, error) {
	if !r.s.canAccessBook(deviceID, bookID) {
		return nil, nil
	}
	var out []*models.Drawing
	for k, d := range r.s.drawings {
		if k.BookID == bookID && !d.Deleted && !k.Date.Before(from) && !k.Date.After(to) {
			out = append(out, cp(d))
		}
	}
	return out, nil
}

type fakeItems struct{ s *memStore }

func (r *fakeItems) UpdateIfVersion(_ context.Context, id string, expected *int64, p *models.ChargeItem) (*models.ChargeItem, error) {
	c, ok := r.s.items[id]
	if !ok || !matches(c.Version, c.Deleted, expected) {
		return nil, nil
	}
	c.EventID, c.Name, c.Price, c.Received = p.EventID, p.Name, p.Price, p.Received
	c.Version++
	return cp(c), nil
}

func (r *fakeItems) DeleteIfVersion(_ context.Context, id string, expected *int64) (*models.ChargeItem, error) {
	c, ok := r.s.items[id]
	if !ok || !matches(c.Version, c.Deleted, expected) {
		return nil, nil
	}
	c.Deleted = true
	c.Version++
	return cp(c), nil
}

func (r *fakeItems) InsertFresh(_ context.Context, id string, p *models.ChargeItem) (*models.ChargeItem, error) {
	if _, ok := r.s.items[id]; ok {
		return nil, nil
	}
	p.ID, p.Version = id, 1
	r.s.items[id] = cp(p)
	return cp(p), nil
}

func (r *fakeItems) Snapshot(_ context.Context, id string) (*versioned.Snapshot[models.ChargeItem], error) {
	c, ok := r.s.items[id]
	if !ok {
		return nil, nil
	}
	return &versioned.Snapshot[models.ChargeItem]{Row: cp(c), Version: c.Version, Deleted: c.Deleted}, nil
}

func (r *fakeItems) ListByRecord(_ context.Context, recordID string) ([]*models.ChargeItem, error) {
	var out []*models.ChargeItem
	for _, c := range r.s.items {
		if c.RecordID == recordID && !c.Deleted {
			out = append(out, cp(c))
		}
	}
	return out, nil
}

func (r *fakeItems) HasLive(ctx context.Context, recordID string) (bool, error) {
	items, _ := r.ListByRecord(ctx, recordID)
	return len(items) > 0, nil
}

// env bundles a sqlmock handle for transaction boundaries with the
// in-memory store the repositories read and write.
type env struct {
	t     *testing.T
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *memStore
	rm    *fakeRM
	cfg   *config.Config
	gate  *Gate
	logs  *bytes.Buffer
	log   logging.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MaxBatchItems = 10

	store := newMemStore()
	rm := &fakeRM{s: store}
	logs := &bytes.Buffer{}
	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &env{t: t, db: db, mock: mock, store: store, rm: rm, cfg: cfg, gate: NewGate(db, rm, cfg), logs: logs, log: log}
}

func (e *env) expectTx() {
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
}

func (e *env) expectRollback() {
	e.mock.ExpectBegin()
	e.mock.ExpectRollback()
}

func (e *env) addDevice(active bool) *models.Device {
	e.t.Helper()
	id := uuid.NewString()
	secret, err := auth.GenerateDeviceSecret(id, []byte(e.cfg.SecretKey))
	require.NoError(e.t, err)
	d := &models.Device{ID: id, SecretToken: secret, Name: "tablet", Active: active}
	e.store.devices[id] = d
	return d
}

func (e *env) addBook(ownerID string) *models.Book {
	b := &models.Book{ID: uuid.NewString(), OwnerDeviceID: ownerID, Name: "Clinic", Version: 1}
	e.store.books[b.ID] = b
	return b
}

func (e *env) addRecord() *models.Record {
	r := &models.Record{ID: uuid.NewString(), Name: "R1", Version: 1}
	e.store.records[r.ID] = r
	return r
}

func (e *env) addEvent(bookID, recordID string) *models.Event {
	ev := &models.Event{
		ID:        uuid.NewString(),
		BookID:    bookID,
		RecordID:  recordID,
		Title:     "checkup",
		Tags:      []string{common.DefaultEventTag},
		StartTime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Version:   1,
	}
	e.store.events[ev.ID] = ev
	return ev
}

func ptr[T any](v T) *T { return &v }
