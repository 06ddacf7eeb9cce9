package economy

import (
	"context"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/vendsim/internal/entropy"
	"github.com/talgya/vendsim/internal/state"
)

// InstantShare is the fraction of sale revenue settled straight to the
// balance; the remainder accrues to uncollected cash until an explicit
// collection.
const InstantShare = 0.70

// varietyCap is where product diversity stops rewarding demand.
const varietyCap = 5

// dayFactors modulate demand across the period-of-week cycle. Weekends sell
// noticeably better.
var dayFactors = [7]float64{0.90, 0.95, 1.00, 1.00, 1.05, 1.25, 1.20}

// Sale records one slot's sales for a period.
type Sale struct {
	Position      int         `json:"position"`
	Product       string      `json:"product"`
	Quantity      int         `json:"quantity"`
	Price         state.Cents `json:"price"`
	Revenue       state.Cents `json:"revenue"`
	ToBalance     state.Cents `json:"to_balance"`
	ToUncollected state.Cents `json:"to_uncollected"`
}

// Model computes and applies per-period demand across all stocked slots.
type Model struct {
	cache  *ParamCache
	rand   entropy.Source
	season opensimplex.Noise
}

// NewModel creates a demand model over an explicit parameter cache and
// randomness source. The season curve is seeded so the whole run is
// reproducible from one seed.
func NewModel(cache *ParamCache, src entropy.Source, seed int64) *Model {
	return &Model{
		cache:  cache,
		rand:   src,
		season: opensimplex.NewNormalized(seed),
	}
}

// Simulate runs one period of demand over every stocked slot, applies the
// revenue splits and quantity decrements to the aggregate, and returns the
// sales list. Slots with zero quantity or zero price never sell.
func (m *Model) Simulate(ctx context.Context, st *state.State) []Sale {
	variety := varietyFactor(st.DistinctStockedProducts())
	day := dayFactors[st.Period%len(dayFactors)]
	season := m.seasonalFactor(st.Period)

	var sales []Sale
	for i := range st.Slots {
		slot := &st.Slots[i]
		if slot.Product == "" || slot.Quantity <= 0 || slot.Price <= 0 {
			continue
		}

		params := m.cache.Get(ctx, slot.Product, slot.UnitCost)

		ref := float64(params.ReferencePrice)
		priceImpact := 1 - params.Elasticity*(float64(slot.Price)-ref)/ref
		if priceImpact < 0 {
			priceImpact = 0
		}

		noise := entropy.Uniform(m.rand, 0.9, 1.1)
		predicted := params.BaseDemand * priceImpact * day * season * variety * noise

		qty := int(math.Round(predicted))
		if qty < 0 {
			qty = 0
		}
		if qty > slot.Quantity {
			qty = slot.Quantity
		}
		if qty == 0 {
			continue
		}

		revenue := state.Cents(qty) * slot.Price
		instant := state.Cents(math.Round(float64(revenue) * InstantShare))
		deferred := revenue - instant

		slot.Quantity -= qty
		st.Credit(state.TxSale, instant,
			fmt.Sprintf("sold %d × %s @ %s", qty, slot.Product, FormatCents(slot.Price)))
		st.AccrueUncollected(deferred)
		st.AddEvent("sale", fmt.Sprintf("slot %d sold %d × %s for %s",
			slot.Position, qty, slot.Product, FormatCents(revenue)))

		sales = append(sales, Sale{
			Position:      slot.Position,
			Product:       slot.Product,
			Quantity:      qty,
			Price:         slot.Price,
			Revenue:       revenue,
			ToBalance:     instant,
			ToUncollected: deferred,
		})
	}

	return sales
}

// varietyFactor rewards product diversity up to varietyCap distinct
// products, flat beyond it — fragmenting slots past the cap buys nothing.
func varietyFactor(distinct int) float64 {
	if distinct < 1 {
		return 1
	}
	if distinct > varietyCap {
		distinct = varietyCap
	}
	return 1 + 0.06*float64(distinct-1)
}

// seasonalFactor samples a smooth noise curve over the period index, bounded
// to ±15% around neutral.
func (m *Model) seasonalFactor(period int) float64 {
	// One season cycle spans roughly 30 periods.
	n := m.season.Eval2(float64(period)/30.0, 0.5) // normalized to [0, 1]
	return 0.85 + 0.30*n
}

// FormatCents renders a money amount as dollars for logs, messages, and
// prompts.
func FormatCents(c state.Cents) string {
	return "$" + humanize.CommafWithDigits(float64(c)/100, 2)
}
