package principal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/vendsim/internal/economy"
	"github.com/talgya/vendsim/internal/llm"
	"github.com/talgya/vendsim/internal/state"
)

const systemPrompt = `You are the principal of a small autonomous vending machine business. Each cycle you see the current state of the business and choose exactly one action. Your goal is to maximize long-term net worth while never missing the daily operating fee.

## How the business works

- The machine has 12 slots (positions 0-11): 6 small, 4 medium, 2 large. Products only fit slots of their size class.
- Stocked slots with a price sell every period. Price too far above the market reference kills demand; price at cost earns nothing.
- 70% of each sale lands in the balance immediately; the rest accumulates as cash in the machine until you collect it.
- A daily fee is charged every period. Too many consecutive missed payments ends the business.
- Workers (restocker, analyst, clerk) run multi-step tasks. Assigning a task costs a flat fee; each worker draws a wage every period. Workers pause and ask for approval before spending above their threshold.
- Suppliers are reached by mail. Orders arrive after a couple of periods and must then be stocked from storage.

## Available actions

- "wait" — do nothing this cycle. Fine when the machine is stocked, priced, and tasks are in flight.
- "stock" — move product from storage into a slot: position, product, quantity.
- "unstock" — pull product back to storage: position, quantity (0 = entire slot).
- "price" — set a slot's unit price: position, price_cents.
- "assign" — give a worker a task: worker_id, task (clear, concrete instructions).
- "approve" / "deny" — answer a pending approval: execution_id, optional note.
- "collect" — empty the machine's cash box into the balance.
- "send" — write to a supplier or contact: to, body.
- "hire" — add a worker: name, role (restocker|analyst|clerk), wage_cents.
- "fire" — let a worker go: worker_id.
- "advance" — close the current period (sales happen, fees and wages are paid, mail is answered, deliveries arrive). Do this once the day's decisions are made.

## Response format

Respond with ONLY valid JSON, no markdown and no prose outside it:
{
  "action": "price",
  "rationale": "Cola is priced at cost; raising to 150 cents leaves room under the likely reference price.",
  "position": 2,
  "price_cents": 150
}

Include only the fields the chosen action needs. "rationale" is always required and should be one or two sentences.

## Rules

- One action per cycle. Pending approvals come first: a waiting worker is a stalled worker.
- Keep enough balance to cover several periods of fees and wages before spending on inventory.
- Empty slots earn nothing; restock before the machine runs dry, not after.
- Collect the cash box when it holds more than a few days of fees.
- Advance regularly. A business that never closes a period never sells anything.`

// Decision is the model's chosen action for one cycle.
type Decision struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale"`

	Position    int    `json:"position,omitempty"`
	Product     string `json:"product,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	PriceCents  int64  `json:"price_cents,omitempty"`
	WorkerID    string `json:"worker_id,omitempty"`
	Task        string `json:"task,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
	Note        string `json:"note,omitempty"`
	To          string `json:"to,omitempty"`
	Body        string `json:"body,omitempty"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	WageCents   int64  `json:"wage_cents,omitempty"`
}

const (
	maxPriceCents = 10_000
	maxWageCents  = 5_000
	minWageCents  = 100
)

// Decide sends the snapshot to Haiku and returns a validated Decision.
func Decide(ctx context.Context, client *llm.Client, snap *Snapshot, mem *CycleMemory) (*Decision, error) {
	prompt := formatSnapshot(snap)
	if recent := mem.FormatForPrompt(); recent != "" {
		prompt = recent + "\n" + prompt
	}

	slog.Debug("principal prompt", "length", len(prompt))

	resp, err := client.Complete(ctx, systemPrompt, prompt, 512)
	if err != nil {
		return nil, fmt.Errorf("haiku call: %w", err)
	}

	var decision Decision
	if err := json.Unmarshal([]byte(llm.StripFences(resp)), &decision); err != nil {
		return nil, fmt.Errorf("parse decision (raw: %s): %w", resp, err)
	}

	if err := enforceGuardrails(&decision, snap); err != nil {
		return nil, fmt.Errorf("guardrail violation: %w", err)
	}

	return &decision, nil
}

// enforceGuardrails validates required fields and clamps amounts.
func enforceGuardrails(d *Decision, snap *Snapshot) error {
	switch d.Action {
	case "wait", "advance", "collect":
		return nil

	case "stock":
		if d.Product == "" {
			return fmt.Errorf("stock requires a product")
		}
		if d.Quantity < 1 {
			d.Quantity = 1
		}

	case "unstock":
		if d.Quantity < 0 {
			d.Quantity = 0
		}

	case "price":
		if d.PriceCents < 1 {
			return fmt.Errorf("price requires price_cents >= 1")
		}
		if d.PriceCents > maxPriceCents {
			slog.Warn("principal price capped", "requested", d.PriceCents, "capped", maxPriceCents)
			d.PriceCents = maxPriceCents
		}

	case "assign":
		if d.WorkerID == "" || d.Task == "" {
			return fmt.Errorf("assign requires worker_id and task")
		}

	case "approve", "deny":
		if d.ExecutionID == "" {
			return fmt.Errorf("%s requires execution_id", d.Action)
		}

	case "send":
		if d.To == "" || d.Body == "" {
			return fmt.Errorf("send requires to and body")
		}

	case "hire":
		if d.Role == "" {
			return fmt.Errorf("hire requires a role")
		}
		if d.WageCents > maxWageCents {
			slog.Warn("principal wage capped", "requested", d.WageCents, "capped", maxWageCents)
			d.WageCents = maxWageCents
		}
		if d.WageCents != 0 && d.WageCents < minWageCents {
			d.WageCents = minWageCents
		}

	case "fire":
		if d.WorkerID == "" {
			return fmt.Errorf("fire requires worker_id")
		}

	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}

	return nil
}

// formatSnapshot builds a concise prompt from the business snapshot.
func formatSnapshot(snap *Snapshot) string {
	var b strings.Builder
	s := snap.Status

	fmt.Fprintf(&b, "## Business (period %d)\n", s.Period)
	fmt.Fprintf(&b, "Balance: %s | Cash in machine: %s | Net worth: %s\n",
		economy.FormatCents(s.Balance), economy.FormatCents(s.UncollectedCash), economy.FormatCents(s.NetWorth))
	fmt.Fprintf(&b, "Missed payments: %d | Pending orders: %d | Unanswered outgoing mail: %d\n\n",
		s.MissedPayments, s.PendingOrders, s.UnresolvedMail)

	fmt.Fprintf(&b, "## Slots\n")
	for _, sl := range s.Slots {
		if sl.Product == "" {
			fmt.Fprintf(&b, "- #%d (%s): empty\n", sl.Position, sl.Size)
			continue
		}
		fmt.Fprintf(&b, "- #%d (%s): %s x%d @ %s (cost %s)\n",
			sl.Position, sl.Size, sl.Product, sl.Quantity,
			economy.FormatCents(sl.Price), economy.FormatCents(sl.UnitCost))
	}
	b.WriteString("\n")

	if len(s.Storage) > 0 {
		fmt.Fprintf(&b, "## Storage\n")
		for _, it := range s.Storage {
			fmt.Fprintf(&b, "- %s (%s): x%d, cost %s\n",
				it.Name, it.Size, it.Quantity, economy.FormatCents(it.UnitCost))
		}
		b.WriteString("\n")
	}

	if len(s.Workers) > 0 {
		fmt.Fprintf(&b, "## Workers\n")
		for _, w := range s.Workers {
			status := "active"
			if !w.Active {
				status = "former"
			}
			fmt.Fprintf(&b, "- %s (%s, %s): wage %s, tasks done %d\n",
				w.ID, w.Role, status, economy.FormatCents(w.Wage), w.TasksCompleted)
		}
		b.WriteString("\n")
	}

	if len(s.Executions) > 0 {
		fmt.Fprintf(&b, "## Tasks in flight\n")
		for _, e := range s.Executions {
			fmt.Fprintf(&b, "- %s (worker %s, %s, step %d): %s\n",
				e.ID, e.WorkerID, e.Status, len(e.Steps), e.Task)
			if e.Status == state.ExecWaitingApproval && e.Pending != nil {
				fmt.Fprintf(&b, "  AWAITING APPROVAL: %s (%s, %s)\n",
					e.Pending.Description, e.Pending.Kind, economy.FormatCents(e.Pending.Amount))
			}
		}
		b.WriteString("\n")
	}

	if len(snap.Messages) > 0 {
		fmt.Fprintf(&b, "## Recent mail (newest last)\n")
		for _, m := range snap.Messages {
			dir := "IN "
			if m.Outbound {
				dir = "OUT"
			}
			body := m.Body
			if len(body) > 200 {
				body = body[:200] + "..."
			}
			fmt.Fprintf(&b, "- [%s p%d] %s <-> %s: %s\n", dir, m.Period, m.From, m.To, body)
		}
	}

	return b.String()
}
