// Package engine orchestrates the simulation: it owns the aggregate, serializes
// every mutating entry point behind one mutex, and runs the period pipeline.
package engine

import (
	"context"
	"sync"

	"github.com/talgya/vendsim/internal/economy"
	"github.com/talgya/vendsim/internal/scheduler"
	"github.com/talgya/vendsim/internal/state"
)

// Config carries the economic constants of one simulation run.
type Config struct {
	DailyFee            state.Cents
	MissedPaymentLimit  int
	DeliveryLeadPeriods int
	MaxEvents           int
	// HistoryRetention is how many periods of resolved mail and delivered
	// orders to keep before pruning.
	HistoryRetention int
}

// MailContext is what a resolver sees about an outgoing message.
type MailContext struct {
	To      string
	Body    string
	Period  int
	Balance state.Cents
}

// MailDecision is the bounded set of effects a correspondence resolution may
// have: at most one charge, one future delivery, and one reply.
type MailDecision struct {
	Charge      state.Cents
	ChargeMemo  string
	Items       []state.OrderItem
	Reply       string
	Counterpart string
}

// MailResolver resolves one outgoing message. It may fail or time out; the
// engine then synthesizes a fallback reply so the message still terminates.
type MailResolver interface {
	Resolve(ctx context.Context, m MailContext) (MailDecision, error)
}

// Sim is the single-writer owner of the simulation aggregate. The principal
// driver and the HTTP tool layer go through Sim; nothing else holds a
// long-lived reference to the state.
type Sim struct {
	mu     sync.Mutex
	st     *state.State
	sched  *scheduler.Scheduler
	demand *economy.Model
	mail   MailResolver
	cfg    Config
}

// NewSim wires the aggregate, scheduler, demand model, and mail resolver
// into one orchestrator.
func NewSim(st *state.State, sched *scheduler.Scheduler, demand *economy.Model, mail MailResolver, cfg Config) *Sim {
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = 1000
	}
	if cfg.HistoryRetention == 0 {
		cfg.HistoryRetention = 50
	}
	return &Sim{st: st, sched: sched, demand: demand, mail: mail, cfg: cfg}
}

// Tick advances all running worker executions by one unit of work. Called
// once per principal step.
func (s *Sim) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Tick(ctx)
}

// AssignTask delegates a task to a worker. The returned execution is a
// detached copy; the live one stays behind the lock.
func (s *Sim) AssignTask(workerID, task string) (*state.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.sched.Assign(workerID, task)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// ApproveExecution resolves a pending approval positively.
func (s *Sim) ApproveExecution(execID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Approve(execID, note)
}

// DenyExecution resolves a pending approval negatively.
func (s *Sim) DenyExecution(execID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Deny(execID, note)
}

// StockSlot loads product from storage into a machine slot.
func (s *Sim) StockSlot(pos int, product string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.StockSlot(pos, product, qty)
}

// UnstockSlot moves slot stock back into storage.
func (s *Sim) UnstockSlot(pos, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UnstockSlot(pos, qty)
}

// SetPrice sets a stocked slot's sale price.
func (s *Sim) SetPrice(pos int, price state.Cents) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetPrice(pos, price)
}

// CollectCash settles the machine's uncollected cash into the balance.
func (s *Sim) CollectCash() state.Cents {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CollectCash()
}

// SendMessage queues an outbound message for resolution at the next period
// boundary. Returns a detached copy.
func (s *Sim) SendMessage(to, body string) state.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.st.SendMessage(to, body)
}

// HireWorker adds an active worker and returns a detached copy of it.
func (s *Sim) HireWorker(name string, role state.Role, wage state.Cents) state.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.st.HireWorker(name, role, wage)
}

// FireWorker deactivates a worker.
func (s *Sim) FireWorker(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.FireWorker(id)
}

// Snapshot hands a read-only view of the aggregate to fn while holding the
// lock. fn must not retain the state.
func (s *Sim) Snapshot(fn func(st *state.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// Terminated reports whether the business has gone bankrupt.
func (s *Sim) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Terminated(s.cfg.MissedPaymentLimit)
}
