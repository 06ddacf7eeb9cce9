package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateLayout(t *testing.T) {
	st := New(50_000)

	require.Len(t, st.Slots, SlotCount)
	small, medium, large := 0, 0, 0
	for _, s := range st.Slots {
		switch s.Size {
		case SizeSmall:
			small++
		case SizeMedium:
			medium++
		case SizeLarge:
			large++
		}
	}
	assert.Equal(t, 6, small)
	assert.Equal(t, 4, medium)
	assert.Equal(t, 2, large)
	assert.Equal(t, Cents(50_000), st.Balance)
	assert.Zero(t, st.UncollectedCash)
}

func TestDebitRejectsOverdraft(t *testing.T) {
	st := New(100)

	err := st.Debit(TxPurchase, 150, "too much")
	var funds *InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, Cents(150), funds.Needed)
	assert.Equal(t, Cents(100), funds.Available)

	// Rejected charges leave no trace.
	assert.Equal(t, Cents(100), st.Balance)
	assert.Empty(t, st.Ledger)
}

func TestLedgerRecordsEveryMovement(t *testing.T) {
	st := New(1_000)
	st.Credit(TxSale, 300, "sold things")
	require.NoError(t, st.Debit(TxFee, 200, "fee"))

	require.Len(t, st.Ledger, 2)
	assert.Equal(t, Cents(300), st.Ledger[0].Amount)
	assert.Equal(t, Cents(-200), st.Ledger[1].Amount)
	assert.Equal(t, Cents(1_100), st.Balance)
}

func TestCollectCashMovesEverything(t *testing.T) {
	st := New(0)
	st.AccrueUncollected(750)

	assert.Equal(t, Cents(750), st.CollectCash())
	assert.Equal(t, Cents(750), st.Balance)
	assert.Zero(t, st.UncollectedCash)

	// Collecting an empty box is a no-op, not a ledger entry.
	before := len(st.Ledger)
	assert.Zero(t, st.CollectCash())
	assert.Len(t, st.Ledger, before)
}

func TestMarkProcessedIsAtMostOnce(t *testing.T) {
	st := New(0)
	m := st.SendMessage("supplier@acme", "20 cola cans please")

	require.Len(t, st.UnresolvedOutbound(), 1)
	assert.True(t, st.MarkProcessed(m.ID))
	assert.False(t, st.MarkProcessed(m.ID))
	assert.Empty(t, st.UnresolvedOutbound())
}

func TestUnresolvedOutboundSkipsInbound(t *testing.T) {
	st := New(0)
	st.Deliver("supplier@acme", "your order shipped")
	st.SendMessage("supplier@acme", "thanks")

	out := st.UnresolvedOutbound()
	require.Len(t, out, 1)
	assert.True(t, out[0].Outbound)
}

func TestNetWorthValuesInventoryAtCost(t *testing.T) {
	st := New(10_000)
	st.AddStorage(StorageItem{Name: "cola can", Quantity: 10, UnitCost: 60, Size: SizeSmall})
	require.NoError(t, st.StockSlot(0, "cola can", 4))
	require.NoError(t, st.SetPrice(0, 500)) // sale price must not affect the score

	// 10000 + 6*60 storage + 4*60 slot
	assert.Equal(t, Cents(10_600), st.NetWorth())
}

func TestNetWorthInvariantUnderStockMoves(t *testing.T) {
	st := New(5_000)
	st.AddStorage(StorageItem{Name: "energy drink", Quantity: 8, UnitCost: 120, Size: SizeMedium})
	before := st.NetWorth()

	require.NoError(t, st.StockSlot(6, "energy drink", 5))
	assert.Equal(t, before, st.NetWorth())

	require.NoError(t, st.UnstockSlot(6, 2))
	assert.Equal(t, before, st.NetWorth())

	require.NoError(t, st.UnstockSlot(6, 0))
	assert.Equal(t, before, st.NetWorth())
}

func TestTermination(t *testing.T) {
	st := New(0)
	st.MissedPayments = 9
	assert.False(t, st.Terminated(10))
	st.MissedPayments = 10
	assert.True(t, st.Terminated(10))
}

func TestTrimEvents(t *testing.T) {
	st := New(0)
	for i := 0; i < 30; i++ {
		st.AddEvent("test", "event")
	}
	st.TrimEvents(10)
	assert.Len(t, st.Events, 10)
}

func TestPruneHistory(t *testing.T) {
	st := New(0)

	// Period 0: one resolved thread, one that never got an answer.
	resolved := st.SendMessage("acme", "20 cans please")
	st.MarkProcessed(resolved.ID)
	st.Deliver("acme", "confirmed, shipping soon")
	unresolved := st.SendMessage("ghost supply", "anyone there?")

	delivered := st.PlaceOrder([]OrderItem{
		{Name: "cola can", Quantity: 20, UnitCost: 55, Size: SizeSmall},
	}, 1_100, 1)
	delivered.Delivered = true
	pending := st.PlaceOrder([]OrderItem{
		{Name: "sandwich", Quantity: 6, UnitCost: 200, Size: SizeLarge},
	}, 1_200, 1)

	st.Period = 5
	recent := st.Deliver("payroll", "wages paid")

	st.PruneHistory(3)

	require.Len(t, st.Messages, 2)
	assert.Equal(t, unresolved.ID, st.Messages[0].ID, "unresolved mail survives any age")
	assert.Equal(t, recent.ID, st.Messages[1].ID, "recent mail survives")
	assert.NotContains(t, st.Processed, resolved.ID, "pruned mail releases its resolution marker")

	require.Len(t, st.PendingOrders, 1)
	assert.Equal(t, pending.ID, st.PendingOrders[0].ID, "undelivered orders survive any age")
}

func TestPruneHistoryNoopEarly(t *testing.T) {
	st := New(0)
	m := st.SendMessage("acme", "hello")
	st.MarkProcessed(m.ID)
	st.Period = 2

	st.PruneHistory(3)
	assert.Len(t, st.Messages, 1, "retention window not yet reached")
}
