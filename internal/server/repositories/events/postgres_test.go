package events

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventCols = []string{"id", "book_id", "record_id", "title", "tags", "start_time", "end_time", "has_charge_items", "has_note",
	"is_removed", "removal_reason", "original_event_id", "new_event_id", "is_checked", "version", "deleted", "created_at", "updated_at"}

var (
	start = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	end   = time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func eventRow(id string, version int64, newEventID any) *sqlmock.Rows {
	return sqlmock.NewRows(eventCols).AddRow(id, "b-1", "r-1", "Checkup", []byte(`["exam","other"]`), start, end,
		false, true, newEventID != nil, "", nil, newEventID, false, version, false, start, start)
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+events\s*\(id,\s*book_id,\s*record_id,\s*title,\s*tags,.*\$5::jsonb.*RETURNING\s+id,`).
		WithArgs("e-1", "b-1", "r-1", "Checkup", `["exam","other"]`, start, end, false, true, false, "", nil, false).
		WillReturnRows(eventRow("e-1", 1, nil))

	in := &models.Event{ID: "e-1", BookID: "b-1", RecordID: "r-1", Title: "Checkup", Tags: []string{"exam", "other"},
		StartTime: start, EndTime: &end, HasNote: true}
	got, err := repo.Create(context.Background(), in)
	require.NoError(t, err)

	want := &models.Event{ID: "e-1", BookID: "b-1", RecordID: "r-1", Title: "Checkup", Tags: []string{"exam", "other"},
		StartTime: start, EndTime: &end, HasNote: true, Version: 1, CreatedAt: start, UpdatedAt: start}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+events\s+WHERE\s+id\s*=\s*\$1$`).WithArgs("e-1").WillReturnRows(eventRow("e-1", 4, "e-2"))
	mock.ExpectQuery(`(?s)FROM\s+events\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE$`).WithArgs("e-9").WillReturnError(sql.ErrNoRows)

	got, err := repo.Get(context.Background(), "e-1")
	require.NoError(t, err)
	require.NotNil(t, got.NewEventID)
	assert.Equal(t, "e-2", *got.NewEventID)
	assert.True(t, got.Superseded())

	_, err = repo.GetForUpdate(context.Background(), "e-9")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_BadTags(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+events`).WillReturnRows(sqlmock.NewRows(eventCols).AddRow("e-1", "b-1", "r-1", "t", []byte(`{`), start, nil,
		false, false, false, "", nil, nil, false, 1, false, start, start))

	_, err := repo.Get(context.Background(), "e-1")
	require.ErrorContains(t, err, "decode tags of event e-1")
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+events\s+SET\s+title\s*=\s*\$2,\s*tags\s*=\s*\$3::jsonb.*WHERE\s+id\s*=\s*\$1\s+AND\s+deleted\s*=\s*false`
	mock.ExpectQuery(q).WithArgs("e-1", "Checkup", `["exam","other"]`, start, nil, false, "", true).
		WillReturnRows(eventRow("e-1", 2, nil))
	mock.ExpectQuery(q).WillReturnError(sql.ErrNoRows)

	e := &models.Event{ID: "e-1", Title: "Checkup", Tags: []string{"exam", "other"}, StartTime: start, IsChecked: true}
	got, err := repo.Update(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	got, err = repo.Update(context.Background(), e)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMarkSuperseded(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+events\s+SET\s+is_removed\s*=\s*true,\s*removal_reason\s*=\s*\$3,\s*new_event_id\s*=\s*\$2.*new_event_id\s+IS\s+NULL`).
		WithArgs("e-1", "e-2", "patient delay").
		WillReturnRows(eventRow("e-1", 2, "e-2"))

	got, err := repo.MarkSuperseded(context.Background(), "e-1", "e-2", "patient delay")
	require.NoError(t, err)
	assert.True(t, got.IsRemoved)
	assert.Equal(t, "e-2", *got.NewEventID)
}

func TestSoftDelete_Missing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+events\s+SET\s+deleted\s*=\s*true`).WithArgs("e-1").WillReturnError(sql.ErrNoRows)

	got, err := repo.SoftDelete(context.Background(), "e-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetFlags(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+events\s+SET\s+has_note\s*=\s*\$2.*has_note\s+IS\s+DISTINCT\s+FROM\s+\$2$`).
		WithArgs("r-1", true).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`(?s)^UPDATE\s+events\s+SET\s+has_charge_items\s*=\s*\$2.*has_charge_items\s+IS\s+DISTINCT\s+FROM\s+\$2$`).
		WithArgs("r-1", false).WillReturnError(errors.New("boom"))

	n, err := repo.SetHasNote(context.Background(), "r-1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = repo.SetHasChargeItems(context.Background(), "r-1", false)
	require.ErrorContains(t, err, "db error: boom")
}
