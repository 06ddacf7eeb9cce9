package principal

import "fmt"

// Act executes a decision against the tool endpoints. Wait decisions are a
// no-op; everything else maps to one POST.
func (c *Client) Act(d *Decision) error {
	switch d.Action {
	case "wait":
		return nil

	case "advance":
		return c.post("/api/v1/advance", nil, nil)

	case "collect":
		return c.post("/api/v1/collect", nil, nil)

	case "stock":
		return c.post("/api/v1/stock", map[string]any{
			"position": d.Position,
			"product":  d.Product,
			"quantity": d.Quantity,
		}, nil)

	case "unstock":
		return c.post("/api/v1/unstock", map[string]any{
			"position": d.Position,
			"quantity": d.Quantity,
		}, nil)

	case "price":
		return c.post("/api/v1/price", map[string]any{
			"position":    d.Position,
			"price_cents": d.PriceCents,
		}, nil)

	case "assign":
		return c.post("/api/v1/assign", map[string]any{
			"worker_id": d.WorkerID,
			"task":      d.Task,
		}, nil)

	case "approve":
		return c.post("/api/v1/approve", map[string]any{
			"execution_id": d.ExecutionID,
			"note":         d.Note,
		}, nil)

	case "deny":
		return c.post("/api/v1/deny", map[string]any{
			"execution_id": d.ExecutionID,
			"note":         d.Note,
		}, nil)

	case "send":
		return c.post("/api/v1/send", map[string]any{
			"to":   d.To,
			"body": d.Body,
		}, nil)

	case "hire":
		return c.post("/api/v1/hire", map[string]any{
			"name":       d.Name,
			"role":       d.Role,
			"wage_cents": d.WageCents,
		}, nil)

	case "fire":
		return c.post("/api/v1/fire", map[string]any{
			"worker_id": d.WorkerID,
		}, nil)
	}

	return fmt.Errorf("unknown action %q", d.Action)
}

// Tick runs one scheduler step for all live worker tasks.
func (c *Client) Tick() error {
	return c.post("/api/v1/tick", nil, nil)
}
