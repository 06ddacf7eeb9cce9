package economy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/vendsim/internal/state"
)

// fixedSource pins the demand noise to its neutral midpoint.
type fixedSource struct{ v float64 }

func (f fixedSource) Float64() float64 { return f.v }

// countingProvider returns canned params and counts invocations per product.
type countingProvider struct {
	params Params
	err    error
	calls  map[string]int
}

func (p *countingProvider) DemandParams(_ context.Context, product string, _ state.Cents) (Params, error) {
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[product]++
	return p.params, p.err
}

func stockedState(t *testing.T, qty int, price state.Cents) *state.State {
	t.Helper()
	st := state.New(10_000)
	st.AddStorage(state.StorageItem{Name: "cola can", Quantity: qty, UnitCost: 60, Size: state.SizeSmall})
	require.NoError(t, st.StockSlot(0, "cola can", qty))
	if price > 0 {
		require.NoError(t, st.SetPrice(0, price))
	}
	return st
}

func TestSimulateSkipsUnpricedAndEmptySlots(t *testing.T) {
	provider := &countingProvider{params: Params{ReferencePrice: 120, BaseDemand: 10, Elasticity: 1}}
	model := NewModel(NewParamCache(provider), fixedSource{0.5}, 1)

	st := stockedState(t, 10, 0) // stocked but never priced
	sales := model.Simulate(context.Background(), st)

	assert.Empty(t, sales)
	assert.Equal(t, state.Cents(10_000), st.Balance)
	assert.Empty(t, provider.calls, "unpriced slots never consult the provider")
}

func TestSimulateSplitsRevenue(t *testing.T) {
	provider := &countingProvider{params: Params{ReferencePrice: 120, BaseDemand: 10, Elasticity: 1}}
	model := NewModel(NewParamCache(provider), fixedSource{0.5}, 1)

	st := stockedState(t, 50, 120) // at reference price: full base demand
	balanceBefore := st.Balance

	sales := model.Simulate(context.Background(), st)
	require.Len(t, sales, 1)

	sale := sales[0]
	assert.Positive(t, sale.Quantity)
	assert.Equal(t, state.Cents(sale.Quantity)*120, sale.Revenue)
	assert.Equal(t, sale.Revenue, sale.ToBalance+sale.ToUncollected)
	assert.InDelta(t, float64(sale.Revenue)*InstantShare, float64(sale.ToBalance), 1)

	assert.Equal(t, balanceBefore+sale.ToBalance, st.Balance)
	assert.Equal(t, sale.ToUncollected, st.UncollectedCash)
	assert.Equal(t, 50-sale.Quantity, st.Slots[0].Quantity)
}

func TestSimulateNeverOversells(t *testing.T) {
	// Demand far above the 3 units on hand.
	provider := &countingProvider{params: Params{ReferencePrice: 120, BaseDemand: 50, Elasticity: 1}}
	model := NewModel(NewParamCache(provider), fixedSource{0.5}, 1)

	st := stockedState(t, 3, 100)
	sales := model.Simulate(context.Background(), st)

	require.Len(t, sales, 1)
	assert.Equal(t, 3, sales[0].Quantity)
	assert.Zero(t, st.Slots[0].Quantity)
}

func TestSimulatePriceGouging(t *testing.T) {
	// Elasticity 5 at double the reference price drives demand to zero.
	provider := &countingProvider{params: Params{ReferencePrice: 100, BaseDemand: 10, Elasticity: 5}}
	model := NewModel(NewParamCache(provider), fixedSource{0.5}, 1)

	st := stockedState(t, 10, 200)
	sales := model.Simulate(context.Background(), st)

	assert.Empty(t, sales)
	assert.Equal(t, 10, st.Slots[0].Quantity)
}

func TestParamCacheMemoizes(t *testing.T) {
	provider := &countingProvider{params: Params{ReferencePrice: 120, BaseDemand: 10, Elasticity: 1}}
	cache := NewParamCache(provider)

	ctx := context.Background()
	first := cache.Get(ctx, "cola can", 60)
	second := cache.Get(ctx, "cola can", 60)
	cache.Get(ctx, "energy drink", 120)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls["cola can"], "one provider call per product")
	assert.Equal(t, 1, provider.calls["energy drink"])
}

func TestParamCacheMemoizesFallbackOnError(t *testing.T) {
	provider := &countingProvider{err: errors.New("backend down")}
	cache := NewParamCache(provider)

	ctx := context.Background()
	got := cache.Get(ctx, "cola can", 60)
	assert.Equal(t, FallbackParams(60), got)

	// The failure is memoized, not retried.
	cache.Get(ctx, "cola can", 60)
	assert.Equal(t, 1, provider.calls["cola can"])
}

func TestClampParamsBoundsProviderOutput(t *testing.T) {
	wild := Params{ReferencePrice: -5, BaseDemand: 9000, Elasticity: 0}
	clamped := clampParams(wild, 60)

	assert.Equal(t, state.Cents(120), clamped.ReferencePrice)
	assert.Equal(t, 50.0, clamped.BaseDemand)
	assert.Equal(t, 0.1, clamped.Elasticity)
}

func TestFallbackParamsWithoutCost(t *testing.T) {
	p := FallbackParams(0)
	assert.Equal(t, state.Cents(250), p.ReferencePrice)
}

func TestVarietyFactorCapped(t *testing.T) {
	assert.Equal(t, 1.0, varietyFactor(0))
	assert.Equal(t, 1.0, varietyFactor(1))
	assert.InDelta(t, 1.24, varietyFactor(5), 1e-9)
	assert.Equal(t, varietyFactor(5), varietyFactor(9), "diversity beyond the cap buys nothing")
}

func TestSeasonalFactorBounded(t *testing.T) {
	model := NewModel(NewParamCache(nil), fixedSource{0.5}, 42)
	for period := 0; period < 400; period++ {
		f := model.seasonalFactor(period)
		assert.GreaterOrEqual(t, f, 0.85)
		assert.LessOrEqual(t, f, 1.15)
	}
}

func TestSeasonalFactorReproducible(t *testing.T) {
	a := NewModel(NewParamCache(nil), fixedSource{0.5}, 42)
	b := NewModel(NewParamCache(nil), fixedSource{0.5}, 42)
	for period := 0; period < 50; period++ {
		assert.Equal(t, a.seasonalFactor(period), b.seasonalFactor(period))
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$1,234.56", FormatCents(123_456))
	assert.Equal(t, "$0", FormatCents(0))
}
