package chargeitems

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemCols = []string{"id", "record_id", "event_id", "name", "price", "received", "version", "deleted", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func itemRows(version int64, deleted bool) *sqlmock.Rows {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(itemCols).AddRow("c-1", "r-1", "e-1", "Consultation", 5000, 2000, version, deleted, now, now)
}

func TestUpdateIfVersion(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+charge_items\s+SET\s+event_id\s*=\s*\$2,\s*name\s*=\s*\$3,\s*price\s*=\s*\$4,\s*received\s*=\s*\$5.*\(\$6::bigint\s+IS\s+NULL\s+OR\s+version\s*=\s*\$6\)`).
		WithArgs("c-1", "e-1", "Consultation", int64(5000), int64(2000), int64(1)).
		WillReturnRows(itemRows(2, false))

	ev := "e-1"
	v := int64(1)
	got, err := repo.UpdateIfVersion(context.Background(), "c-1", &v,
		&models.ChargeItem{EventID: &ev, Name: "Consultation", Price: 5000, Received: 2000})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	require.NotNil(t, got.EventID)
	assert.Equal(t, "e-1", *got.EventID)
}

func TestInsertFreshAndSnapshot(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+charge_items.*ON\s+CONFLICT\s+\(id\)\s+DO\s+NOTHING`).
		WithArgs("c-1", "r-1", nil, "Consultation", int64(5000), int64(0)).
		WillReturnRows(itemRows(1, false))
	mock.ExpectQuery(`(?s)FROM\s+charge_items\s+WHERE\s+id\s*=\s*\$1$`).WithArgs("c-9").WillReturnError(sql.ErrNoRows)

	got, err := repo.InsertFresh(context.Background(), "c-1", &models.ChargeItem{RecordID: "r-1", Name: "Consultation", Price: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	snap, err := repo.Snapshot(context.Background(), "c-9")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestDeleteIfVersion(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+charge_items\s+SET\s+deleted\s*=\s*true`).WithArgs("c-1", nil).
		WillReturnRows(itemRows(3, true))

	got, err := repo.DeleteIfVersion(context.Background(), "c-1", nil)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
}

func TestListByRecord(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)FROM\s+charge_items\s+WHERE\s+record_id\s*=\s*\$1\s+AND\s+deleted\s*=\s*false\s+ORDER\s+BY`
	mock.ExpectQuery(q).WithArgs("r-1").WillReturnRows(itemRows(1, false))
	mock.ExpectQuery(q).WithArgs("r-2").WillReturnError(errors.New("boom"))

	got, err := repo.ListByRecord(context.Background(), "r-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5000), got[0].Price)

	_, err = repo.ListByRecord(context.Background(), "r-2")
	require.ErrorContains(t, err, "failed to select charge items: boom")
}

func TestHasLive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+EXISTS\s+\(SELECT\s+1\s+FROM\s+charge_items`).WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.HasLive(context.Background(), "r-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
