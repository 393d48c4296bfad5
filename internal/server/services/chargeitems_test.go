package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/dmitrijs2005/booksync/internal/server/models"
	"github.com/dmitrijs2005/booksync/internal/server/versioned"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	*env
	svc    *ChargeItemService
	owner  *models.Device
	rec    *models.Record
	e1, e2 *models.Event
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	e := newEnv(t)
	owner := e.addDevice(true)
	book := e.addBook(owner.ID)
	rec := e.addRecord()
	return &ledgerFixture{
		env:   e,
		svc:   NewChargeItemService(e.db, e.rm, e.gate),
		owner: owner,
		rec:   rec,
		e1:    e.addEvent(book.ID, rec.ID),
		e2:    e.addEvent(book.ID, rec.ID),
	}
}

func TestChargeItemService_FlagFollowsLedger(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.expectTx()
	item, err := f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{RecordID: f.rec.ID, EventID: &f.e1.ID, Name: "x-ray", Price: 4000})
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Version)
	assert.True(t, f.e1.HasChargeItems)
	assert.True(t, f.e2.HasChargeItems)
	v := f.e1.Version

	f.expectTx()
	item, err = f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{ID: item.ID, RecordID: f.rec.ID, Name: "x-ray", Price: 4000, Received: 4000, ExpectedVersion: ptr(int64(1))})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), item.Received)
	assert.Equal(t, v, f.e1.Version, "an unchanged flag leaves events alone")

	f.expectTx()
	_, err = f.svc.Delete(ctx, f.owner.ID, item.ID, ptr(int64(2)))
	require.NoError(t, err)
	assert.False(t, f.e1.HasChargeItems)
	assert.False(t, f.e2.HasChargeItems)

	f.expectTx()
	_, err = f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{RecordID: f.rec.ID, Name: "follow-up", Price: 1500})
	require.NoError(t, err)
	assert.True(t, f.e1.HasChargeItems)
	assert.True(t, f.e2.HasChargeItems)

	items, err := f.svc.List(ctx, f.owner.ID, f.rec.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "follow-up", items[0].Name)
}

func TestChargeItemService_Save_Refusals(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	stranger := f.addDevice(true)
	otherRec := f.addRecord()
	otherEvent := f.addEvent(f.e1.BookID, otherRec.ID)

	_, err := f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{RecordID: f.rec.ID, Name: " "})
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{RecordID: f.rec.ID, Name: "x", Price: -1})
	require.ErrorIs(t, err, common.ErrValidation)

	f.expectRollback()
	_, err = f.svc.Save(ctx, stranger.ID, ChargeItemWrite{RecordID: f.rec.ID, Name: "x"})
	require.ErrorIs(t, err, common.ErrUnauthorizedRecord)

	f.expectRollback()
	_, err = f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{RecordID: f.rec.ID, EventID: &otherEvent.ID, Name: "x"})
	require.ErrorIs(t, err, common.ErrValidation)

	f.expectRollback()
	_, err = f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{RecordID: f.rec.ID, EventID: ptr(uuid.NewString()), Name: "x"})
	require.ErrorIs(t, err, common.ErrorNotFound)

	f.store.items["7b0c0d9e-61a4-4d6b-9a1e-2f1f0c3b9d11"] = &models.ChargeItem{ID: "7b0c0d9e-61a4-4d6b-9a1e-2f1f0c3b9d11", RecordID: otherRec.ID, Name: "y", Version: 1}
	f.expectRollback()
	_, err = f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{ID: "7b0c0d9e-61a4-4d6b-9a1e-2f1f0c3b9d11", RecordID: f.rec.ID, Name: "x"})
	require.ErrorIs(t, err, common.ErrValidation, "an item never moves between records")
}

func TestChargeItemService_Save_StrangerIsRejectedFirst(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	stranger := f.addDevice(true)
	otherRec := f.addRecord()
	f.addEvent(f.e1.BookID, otherRec.ID)

	movedID := uuid.NewString()
	f.store.items[movedID] = &models.ChargeItem{ID: movedID, RecordID: otherRec.ID, Name: "y", Version: 1}

	tests := []struct {
		name string
		w    ChargeItemWrite
	}{
		{name: "item of another record", w: ChargeItemWrite{ID: movedID, RecordID: f.rec.ID, Name: "x"}},
		{name: "missing event", w: ChargeItemWrite{RecordID: f.rec.ID, EventID: ptr(uuid.NewString()), Name: "x"}},
		{name: "event of another record", w: ChargeItemWrite{RecordID: otherRec.ID, EventID: &f.e1.ID, Name: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.expectRollback()
			_, err := f.svc.Save(ctx, stranger.ID, tt.w)
			require.ErrorIs(t, err, common.ErrUnauthorizedRecord)
		})
	}
	assert.Equal(t, otherRec.ID, f.store.items[movedID].RecordID)
}

func TestChargeItemService_Conflicts(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.expectTx()
	item, err := f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{RecordID: f.rec.ID, Name: "x-ray", Price: 4000})
	require.NoError(t, err)

	f.expectTx()
	_, err = f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{ID: item.ID, RecordID: f.rec.ID, Name: "x-ray", Price: 4500, ExpectedVersion: ptr(int64(1))})
	require.NoError(t, err)

	f.expectRollback()
	_, err = f.svc.Save(ctx, f.owner.ID, ChargeItemWrite{ID: item.ID, RecordID: f.rec.ID, Name: "x-ray", Price: 3000, ExpectedVersion: ptr(int64(1))})
	ce, ok := versioned.AsConflict[models.ChargeItem](err)
	require.True(t, ok)
	assert.Equal(t, int64(2), ce.Version)
	assert.Equal(t, int64(4500), ce.Current.Price)

	f.expectRollback()
	_, err = f.svc.Delete(ctx, f.owner.ID, item.ID, ptr(int64(1)))
	require.ErrorIs(t, err, common.ErrVersionConflict)

	f.expectRollback()
	_, err = f.svc.Delete(ctx, f.owner.ID, uuid.NewString(), nil)
	require.ErrorIs(t, err, common.ErrorNotFound)
}
