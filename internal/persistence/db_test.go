package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/vendsim/internal/state"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadStateEmptyDatabase(t *testing.T) {
	db := openTestDB(t)

	st, err := db.LoadState()
	require.NoError(t, err)
	assert.Nil(t, st, "fresh database has no snapshot")
}

func TestSaveAndLoadStateRoundTrip(t *testing.T) {
	db := openTestDB(t)

	st := state.New(50_000)
	st.Period = 12
	st.MissedPayments = 2
	st.AddStorage(state.StorageItem{Name: "cola can", Quantity: 20, UnitCost: 60, Size: state.SizeSmall})
	require.NoError(t, st.StockSlot(0, "cola can", 8))
	require.NoError(t, st.SetPrice(0, 120))
	st.Credit(state.TxSale, 840, "sold 7 cans")
	st.AccrueUncollected(360)
	w := st.HireWorker("Dana", state.RoleRestocker, 800)
	m := st.SendMessage("acme", "more cans please")
	st.MarkProcessed(m.ID)
	st.AddEvent("sale", "slot 0 sold 7 cans")

	require.NoError(t, db.SaveState(st))

	loaded, err := db.LoadState()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, st.Balance, loaded.Balance)
	assert.Equal(t, st.UncollectedCash, loaded.UncollectedCash)
	assert.Equal(t, 12, loaded.Period)
	assert.Equal(t, 2, loaded.MissedPayments)
	assert.Equal(t, st.Slots, loaded.Slots)
	assert.Equal(t, st.Storage, loaded.Storage)
	require.Len(t, loaded.Workers, 1)
	assert.Equal(t, w.ID, loaded.Workers[0].ID)
	require.Len(t, loaded.Messages, 1)
	assert.True(t, loaded.Processed[m.ID], "resolution marks survive restarts")
	require.Len(t, loaded.Ledger, 1)
	assert.Equal(t, state.TxSale, loaded.Ledger[0].Kind)
}

func TestSaveStateReplacesPreviousSnapshot(t *testing.T) {
	db := openTestDB(t)

	st := state.New(1_000)
	require.NoError(t, db.SaveState(st))

	st.Credit(state.TxSale, 500, "first sale")
	st.Period = 3
	require.NoError(t, db.SaveState(st))

	loaded, err := db.LoadState()
	require.NoError(t, err)
	assert.Equal(t, state.Cents(1_500), loaded.Balance)
	assert.Equal(t, 3, loaded.Period)
	assert.Len(t, loaded.Ledger, 1, "full replace, not append")
}

func TestRecentEvents(t *testing.T) {
	db := openTestDB(t)

	st := state.New(0)
	st.AddEvent("sale", "first")
	st.AddEvent("fee", "second")
	st.AddEvent("delivery", "third")
	require.NoError(t, db.SaveState(st))

	events, err := db.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Description, "newest first")
	assert.Equal(t, "second", events[1].Description)
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveMeta("seed", "424242"))
	v, err := db.GetMeta("seed")
	require.NoError(t, err)
	assert.Equal(t, "424242", v)

	require.NoError(t, db.SaveMeta("seed", "7"))
	v, err = db.GetMeta("seed")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
}
