package state

import (
	"time"

	"github.com/google/uuid"
)

// State is the single mutable aggregate for one simulation run. The
// orchestrator owns it exclusively; callers reach it only through the
// orchestrator's serialized entry points.
type State struct {
	Balance         Cents           `json:"balance"`
	UncollectedCash Cents           `json:"uncollected_cash"`
	Storage         []StorageItem   `json:"storage"`
	Slots           [SlotCount]Slot `json:"slots"`
	Workers         []*Worker       `json:"workers"`
	Executions      []*Execution    `json:"executions"`
	TaskHistory     []CompletedTask `json:"task_history"`
	PendingOrders   []*PendingOrder `json:"pending_orders"`
	Messages        []*Message      `json:"messages"`
	MissedPayments  int             `json:"missed_payments"`
	Period          int             `json:"period"`
	Ledger          []Transaction   `json:"ledger"`
	Events          []Event         `json:"events"`

	// Resolved message ids. Entry precedes resolution work, guaranteeing
	// at-most-once processing even when the resolver fails midway.
	Processed map[string]bool `json:"processed"`
}

// DefaultSlotLayout is the fixed machine configuration: six small, four
// medium, two large positions.
func DefaultSlotLayout() [SlotCount]Slot {
	var slots [SlotCount]Slot
	for i := range slots {
		slots[i].Position = i
		switch {
		case i < 6:
			slots[i].Size = SizeSmall
		case i < 10:
			slots[i].Size = SizeMedium
		default:
			slots[i].Size = SizeLarge
		}
	}
	return slots
}

// New creates a fresh aggregate with the given starting balance.
func New(startingBalance Cents) *State {
	return &State{
		Balance:   startingBalance,
		Slots:     DefaultSlotLayout(),
		Processed: make(map[string]bool),
	}
}

// appendTx records a ledger entry. The ledger is append-only.
func (s *State) appendTx(kind TxKind, amount Cents, description string) {
	s.Ledger = append(s.Ledger, Transaction{
		Kind:        kind,
		Amount:      amount,
		Description: description,
		Period:      s.Period,
		At:          time.Now().UTC(),
	})
}

// Credit adds to the instant-settlement balance and records the entry.
func (s *State) Credit(kind TxKind, amount Cents, description string) {
	s.Balance += amount
	s.appendTx(kind, amount, description)
}

// Debit removes from the balance, rejecting the charge outright when funds
// are short. Recurring fee and wage sites do not use Debit — they degrade
// instead of erroring.
func (s *State) Debit(kind TxKind, amount Cents, description string) error {
	if amount > s.Balance {
		return &InsufficientFundsError{Needed: amount, Available: s.Balance}
	}
	s.Balance -= amount
	s.appendTx(kind, -amount, description)
	return nil
}

// AccrueUncollected adds revenue to the manual-collection channel. It stays
// there until an explicit CollectCash.
func (s *State) AccrueUncollected(amount Cents) {
	s.UncollectedCash += amount
}

// CollectCash moves all uncollected cash into the balance and returns the
// amount moved.
func (s *State) CollectCash() Cents {
	collected := s.UncollectedCash
	if collected == 0 {
		return 0
	}
	s.UncollectedCash = 0
	s.Credit(TxCollection, collected, "cash collection from machine")
	return collected
}

// SendMessage queues an outbound message for resolution at the next period
// boundary and returns it.
func (s *State) SendMessage(to, body string) *Message {
	m := &Message{
		ID:       uuid.NewString(),
		From:     "business",
		To:       to,
		Body:     body,
		Period:   s.Period,
		Outbound: true,
	}
	s.Messages = append(s.Messages, m)
	return m
}

// Deliver appends an inbound message (reply or notification) to the inbox.
func (s *State) Deliver(from, body string) *Message {
	m := &Message{
		ID:     uuid.NewString(),
		From:   from,
		To:     "business",
		Body:   body,
		Period: s.Period,
	}
	s.Messages = append(s.Messages, m)
	return m
}

// MarkProcessed records a message id as resolved. Returns false if it was
// already resolved — the caller must then skip it.
func (s *State) MarkProcessed(id string) bool {
	if s.Processed[id] {
		return false
	}
	s.Processed[id] = true
	return true
}

// UnresolvedOutbound returns outbound messages not yet resolved, oldest first.
func (s *State) UnresolvedOutbound() []*Message {
	var out []*Message
	for _, m := range s.Messages {
		if m.Outbound && !s.Processed[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

// AddEvent records a structured event for logs and persistence.
func (s *State) AddEvent(category, description string) {
	s.Events = append(s.Events, Event{
		Period:      s.Period,
		Category:    category,
		Description: description,
	})
}

// TrimEvents keeps the most recent max events to prevent unbounded growth.
func (s *State) TrimEvents(max int) {
	if len(s.Events) > max {
		s.Events = s.Events[len(s.Events)-max:]
	}
}

// PruneHistory drops resolved messages and delivered orders more than keep
// periods old, along with their Processed entries. Unresolved mail and
// undelivered orders are kept regardless of age; the ledger is append-only
// and never pruned.
func (s *State) PruneHistory(keep int) {
	cutoff := s.Period - keep
	if cutoff <= 0 {
		return
	}

	msgs := s.Messages[:0]
	for _, m := range s.Messages {
		resolved := !m.Outbound || s.Processed[m.ID]
		if resolved && m.Period < cutoff {
			delete(s.Processed, m.ID)
			continue
		}
		msgs = append(msgs, m)
	}
	s.Messages = msgs

	orders := s.PendingOrders[:0]
	for _, o := range s.PendingOrders {
		if o.Delivered && o.DeliverAtPeriod < cutoff {
			continue
		}
		orders = append(orders, o)
	}
	s.PendingOrders = orders
}
