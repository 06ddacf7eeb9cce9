// Demand parameter generation — one Haiku call per distinct product name,
// memoized by the economy package's ParamCache.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/talgya/vendsim/internal/economy"
	"github.com/talgya/vendsim/internal/state"
)

// MarketOracle implements economy.ParamsProvider over the Haiku client.
type MarketOracle struct {
	client *Client
}

// NewMarketOracle creates the parameter provider. A nil client yields a
// provider whose calls error, which the cache answers with deterministic
// fallback parameters.
func NewMarketOracle(client *Client) *MarketOracle {
	return &MarketOracle{client: client}
}

const marketSystemPrompt = `You estimate consumer demand for products sold from a vending machine.
Given a product and its wholesale unit cost, estimate:
- reference_price_cents: the typical retail price a buyer expects
- base_demand: units sold per day at the reference price in a decent location (0.5-50)
- elasticity: price sensitivity (0.5 = staple, inelastic; 3 = luxury, very elastic)

Respond with ONLY valid JSON:
{"reference_price_cents": 250, "base_demand": 8.0, "elasticity": 1.4}`

// DemandParams estimates demand parameters for one product.
func (o *MarketOracle) DemandParams(ctx context.Context, product string, unitCost state.Cents) (economy.Params, error) {
	if !o.client.Enabled() {
		return economy.Params{}, fmt.Errorf("LLM client not configured")
	}

	prompt := fmt.Sprintf("Product: %s\nWholesale unit cost: %d cents", product, unitCost)
	raw, err := o.client.Complete(ctx, marketSystemPrompt, prompt, 200)
	if err != nil {
		return economy.Params{}, fmt.Errorf("demand params for %q: %w", product, err)
	}

	var reply struct {
		ReferencePriceCents int64   `json:"reference_price_cents"`
		BaseDemand          float64 `json:"base_demand"`
		Elasticity          float64 `json:"elasticity"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &reply); err != nil {
		return economy.Params{}, fmt.Errorf("parse demand params (raw: %s): %w", raw, err)
	}

	return economy.Params{
		ReferencePrice: state.Cents(reply.ReferencePriceCents),
		BaseDemand:     reply.BaseDemand,
		Elasticity:     reply.Elasticity,
	}, nil
}
