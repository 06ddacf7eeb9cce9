// Correspondence resolution — a bounded counterparty simulator. One Haiku
// call per message, hard-capped, with guardrails clamping its three allowed
// effects: a charge, a future delivery, a reply.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/talgya/vendsim/internal/engine"
	"github.com/talgya/vendsim/internal/state"
)

// Mailroom implements engine.MailResolver over the Haiku client.
type Mailroom struct {
	client *Client
}

// NewMailroom creates the correspondence resolver. A nil client yields a
// resolver whose calls error; the engine then synthesizes fallback replies.
func NewMailroom(client *Client) *Mailroom {
	return &Mailroom{client: client}
}

const mailSystemPrompt = `You play the counterparty (a supplier, landlord, or service company) receiving a
message from a small vending machine business. Decide how the counterparty responds.

You have exactly three possible effects, all optional:
1. Charge the business (only if they clearly ordered something with a stated or implied price).
2. Ship goods (creates a future delivery of the charged items).
3. Reply with a short message.

Pricing guidance: snacks/drinks wholesale at 30-150 cents per unit. Quote
realistic totals. If the message is just an inquiry, reply with information
and charge nothing.

Respond with ONLY valid JSON:
{
  "charge_cents": 0,
  "items": [{"name": "cola can", "quantity": 50, "unit_cost_cents": 60, "size": "small"}],
  "reply": "Thanks for your order — 50 cola cans will arrive in two days."
}

"size" is one of "small", "medium", "large". Empty "items" and zero
"charge_cents" are fine for inquiries. Keep the reply under three sentences.`

// maxItemQty bounds a single order line against runaway hallucinated orders.
const maxItemQty = 500

// Resolve decides the counterparty's response to one outgoing message.
func (r *Mailroom) Resolve(ctx context.Context, m engine.MailContext) (engine.MailDecision, error) {
	if !r.client.Enabled() {
		return engine.MailDecision{}, fmt.Errorf("LLM client not configured")
	}

	prompt := fmt.Sprintf("Message addressed to: %s\nBusiness balance: %d cents\n\nMessage:\n%s",
		m.To, m.Balance, m.Body)

	raw, err := r.client.Complete(ctx, mailSystemPrompt, prompt, 500)
	if err != nil {
		return engine.MailDecision{}, fmt.Errorf("resolve mail: %w", err)
	}

	var reply struct {
		ChargeCents int64 `json:"charge_cents"`
		Items       []struct {
			Name          string `json:"name"`
			Quantity      int    `json:"quantity"`
			UnitCostCents int64  `json:"unit_cost_cents"`
			Size          string `json:"size"`
		} `json:"items"`
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &reply); err != nil {
		return engine.MailDecision{}, fmt.Errorf("parse mail decision (raw: %s): %w", raw, err)
	}

	decision := engine.MailDecision{
		Charge:      state.Cents(reply.ChargeCents),
		Reply:       reply.Reply,
		Counterpart: m.To,
	}
	if decision.Charge < 0 {
		decision.Charge = 0
	}

	for _, it := range reply.Items {
		if it.Name == "" || it.Quantity <= 0 {
			continue
		}
		qty := it.Quantity
		if qty > maxItemQty {
			qty = maxItemQty
		}
		cost := state.Cents(it.UnitCostCents)
		if cost < 1 {
			cost = 1
		}
		decision.Items = append(decision.Items, state.OrderItem{
			Name:     it.Name,
			Quantity: qty,
			UnitCost: cost,
			Size:     state.ParseSize(it.Size),
		})
	}

	// Shipments without a charge are a counterparty error — drop the goods,
	// keep the reply.
	if decision.Charge == 0 {
		decision.Items = nil
	}

	return decision, nil
}
