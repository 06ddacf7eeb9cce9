// Worker sub-agent steps — one Haiku call per scheduler tick per running
// execution. The sub-agent answers with a single JSON object classifying the
// step as progress, a terminal result, or an approval request.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talgya/vendsim/internal/scheduler"
	"github.com/talgya/vendsim/internal/state"
)

// Workforce implements scheduler.Backend over the Haiku client.
type Workforce struct {
	client *Client
}

// NewWorkforce creates the sub-agent backend. A nil client yields a backend
// whose every step errors, which the scheduler converts to failed executions.
func NewWorkforce(client *Client) *Workforce {
	return &Workforce{client: client}
}

// stepReply is the JSON contract a sub-agent answers with.
type stepReply struct {
	Type        string `json:"type"` // "progress", "result", "approval"
	Note        string `json:"note,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
}

// Step advances one execution by one unit of work.
func (w *Workforce) Step(ctx context.Context, req scheduler.StepRequest) (scheduler.StepOutcome, error) {
	if !w.client.Enabled() {
		return scheduler.StepOutcome{}, fmt.Errorf("LLM client not configured")
	}

	system := buildWorkerSystemPrompt(req.Role, req.Task)
	messages := transcript(req)

	raw, err := w.client.Chat(ctx, system, messages, 400)
	if err != nil {
		return scheduler.StepOutcome{}, fmt.Errorf("worker step: %w", err)
	}

	return parseStepReply(raw)
}

func buildWorkerSystemPrompt(role state.Role, task string) string {
	profile := scheduler.ProfileFor(role)

	var caps []string
	for _, c := range profile.Capabilities {
		caps = append(caps, c.String())
	}

	return fmt.Sprintf(`You are a %s working for a small vending machine business.
%s

Your assignment: %s

You work one small step at a time. Your capabilities are limited to: %s.
Any payment of %d cents or more, and any action outside your capabilities,
requires the principal's approval before you act.

Respond with ONLY one JSON object (no markdown, no prose outside the JSON):
- A unit of progress:   {"type": "progress", "note": "what you just did"}
- The finished task:    {"type": "result", "summary": "what you accomplished"}
- An approval request:  {"type": "approval", "kind": "payment", "description": "what and why", "amount_cents": 1500}

Use "result" as soon as the task is genuinely done. Keep notes to one or two
sentences.`,
		role, profile.Brief, task, strings.Join(caps, ", "), profile.ApprovalThreshold)
}

// transcript rebuilds the step history as alternating user/assistant turns,
// ending with the current prompt.
func transcript(req scheduler.StepRequest) []Message {
	var messages []Message
	for _, s := range req.History {
		messages = append(messages,
			Message{Role: "user", Content: s.Input},
			Message{Role: "assistant", Content: s.Output},
		)
	}
	return append(messages, Message{Role: "user", Content: req.Prompt})
}

func parseStepReply(raw string) (scheduler.StepOutcome, error) {
	var reply stepReply
	if err := json.Unmarshal([]byte(StripFences(raw)), &reply); err != nil {
		return scheduler.StepOutcome{}, fmt.Errorf("parse step reply (raw: %s): %w", raw, err)
	}

	switch reply.Type {
	case "approval":
		kind := reply.Kind
		if kind == "" {
			kind = "action"
		}
		amount := state.Cents(reply.AmountCents)
		if amount < 0 {
			amount = 0
		}
		return scheduler.StepOutcome{
			Kind: scheduler.OutcomeApproval,
			Approval: &state.ApprovalRequest{
				Kind:        kind,
				Description: reply.Description,
				Amount:      amount,
			},
		}, nil

	case "progress":
		return scheduler.StepOutcome{Kind: scheduler.OutcomeProgress, Text: reply.Note}, nil

	default:
		// Anything else is a terminal textual result.
		text := reply.Summary
		if text == "" {
			text = reply.Note
		}
		if text == "" {
			text = strings.TrimSpace(raw)
		}
		return scheduler.StepOutcome{Kind: scheduler.OutcomeResult, Text: text}, nil
	}
}
