// Package economy implements the demand/pricing model: per-product demand
// parameters, price elasticity, contextual multipliers, and revenue splits.
package economy

import (
	"context"
	"log/slog"

	"github.com/talgya/vendsim/internal/state"
)

// Params are the per-product demand parameters.
type Params struct {
	ReferencePrice state.Cents `json:"reference_price"`
	BaseDemand     float64     `json:"base_demand"` // units/period at the reference price
	Elasticity     float64     `json:"elasticity"`
}

// ParamsProvider computes a parameter set for a product. The LLM-backed
// provider lives in internal/llm; tests substitute fakes.
type ParamsProvider interface {
	DemandParams(ctx context.Context, product string, unitCost state.Cents) (Params, error)
}

// ParamCache memoizes provider results by product name. It is scoped to one
// simulation instance and passed in explicitly — never a package global — so
// concurrent simulations and tests stay isolated. The provider is invoked at
// most once per distinct product name for the cache's lifetime; a provider
// failure memoizes the deterministic fallback instead of retrying.
type ParamCache struct {
	provider ParamsProvider
	params   map[string]Params
}

// NewParamCache creates an empty cache over a provider. A nil provider
// always yields fallback parameters.
func NewParamCache(provider ParamsProvider) *ParamCache {
	return &ParamCache{
		provider: provider,
		params:   make(map[string]Params),
	}
}

// Get returns the memoized parameters for a product, computing them on first
// use.
func (c *ParamCache) Get(ctx context.Context, product string, unitCost state.Cents) Params {
	if p, ok := c.params[product]; ok {
		return p
	}

	p, err := c.compute(ctx, product, unitCost)
	if err != nil {
		slog.Debug("demand params fallback", "product", product, "error", err)
		p = FallbackParams(unitCost)
	}
	p = clampParams(p, unitCost)
	c.params[product] = p
	return p
}

func (c *ParamCache) compute(ctx context.Context, product string, unitCost state.Cents) (Params, error) {
	if c.provider == nil {
		return FallbackParams(unitCost), nil
	}
	return c.provider.DemandParams(ctx, product, unitCost)
}

// FallbackParams derives deterministic parameters when the backend is
// unavailable: a 100% markup reference price and mid-range demand.
func FallbackParams(unitCost state.Cents) Params {
	ref := unitCost * 2
	if ref <= 0 {
		ref = 250
	}
	return Params{
		ReferencePrice: ref,
		BaseDemand:     8,
		Elasticity:     1.2,
	}
}

// clampParams bounds whatever the provider returned into sane ranges.
func clampParams(p Params, unitCost state.Cents) Params {
	if p.ReferencePrice <= 0 {
		p.ReferencePrice = FallbackParams(unitCost).ReferencePrice
	}
	if p.BaseDemand < 0.5 {
		p.BaseDemand = 0.5
	}
	if p.BaseDemand > 50 {
		p.BaseDemand = 50
	}
	if p.Elasticity < 0.1 {
		p.Elasticity = 0.1
	}
	if p.Elasticity > 5 {
		p.Elasticity = 5
	}
	return p
}
