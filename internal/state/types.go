// Package state holds the vending business aggregate and its entity types.
// All mutation goes through the owning orchestrator, which serializes access;
// nothing in this package locks.
package state

import "time"

// Cents is a money amount in integer cents. All balances, prices, and ledger
// amounts use this type — floats never touch money.
type Cents int64

// SizeClass categorizes products by the machine slot size they fit.
type SizeClass uint8

const (
	SizeSmall SizeClass = iota
	SizeMedium
	SizeLarge
)

var sizeNames = [...]string{"small", "medium", "large"}

func (s SizeClass) String() string {
	if int(s) < len(sizeNames) {
		return sizeNames[s]
	}
	return "unknown"
}

// ParseSize maps a size-class name to its value, defaulting to small for
// anything unrecognized.
func ParseSize(name string) SizeClass {
	for i, n := range sizeNames {
		if n == name {
			return SizeClass(i)
		}
	}
	return SizeSmall
}

// SlotCount is the fixed number of machine slots.
const SlotCount = 12

// StorageItem is inventory held in back storage, not yet loaded into a slot.
type StorageItem struct {
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"`
	UnitCost Cents     `json:"unit_cost"`
	Size     SizeClass `json:"size"`
}

// Slot is one machine position. Product is empty when unstocked. The slot's
// Size must equal the stocked product's size class — checked at stocking
// time, never violated afterwards.
type Slot struct {
	Position int       `json:"position"`
	Size     SizeClass `json:"size"`
	Product  string    `json:"product,omitempty"`
	Quantity int       `json:"quantity"`
	UnitCost Cents     `json:"unit_cost"`
	Price    Cents     `json:"price"`
}

// Role is the closed set of delegate worker roles. Capabilities and approval
// thresholds per role live in the scheduler's capability table.
type Role uint8

const (
	RoleRestocker Role = iota
	RoleAnalyst
	RoleClerk
)

var roleNames = [...]string{"restocker", "analyst", "clerk"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// Worker is a role-restricted delegate agent the principal can assign tasks to.
type Worker struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Role           Role   `json:"role"`
	Wage           Cents  `json:"wage"` // per period
	Active         bool   `json:"active"`
	HiredAtPeriod  int    `json:"hired_at_period"`
	FiredAtPeriod  *int   `json:"fired_at_period,omitempty"`
	TasksCompleted int    `json:"tasks_completed"`
	TotalCostPaid  Cents  `json:"total_cost_paid"`
}

// ExecStatus is the lifecycle state of a worker execution. Transitions are
// monotonic: running → {waiting_approval, completed, failed} and
// waiting_approval → running. Completed and failed are absorbing.
type ExecStatus uint8

const (
	ExecRunning ExecStatus = iota
	ExecWaitingApproval
	ExecCompleted
	ExecFailed
)

var execStatusNames = [...]string{"running", "waiting_approval", "completed", "failed"}

func (s ExecStatus) String() string {
	if int(s) < len(execStatusNames) {
		return execStatusNames[s]
	}
	return "unknown"
}

// Terminal reports whether the status is absorbing.
func (s ExecStatus) Terminal() bool {
	return s == ExecCompleted || s == ExecFailed
}

// ApprovalRequest records a gated action awaiting a principal decision.
type ApprovalRequest struct {
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Amount      Cents     `json:"amount,omitempty"` // zero when not a payment
	RequestedAt time.Time `json:"requested_at"`
}

// Step is one unit of sub-agent work within an execution.
type Step struct {
	Index  int       `json:"index"`
	Input  string    `json:"input"`
	Output string    `json:"output"`
	At     time.Time `json:"at"`
}

// Execution is a worker's in-flight task. At most one per worker at a time.
type Execution struct {
	ID              string           `json:"id"`
	WorkerID        string           `json:"worker_id"`
	Task            string           `json:"task"`
	Status          ExecStatus       `json:"status"`
	Steps           []Step           `json:"steps"`
	MaxSteps        int              `json:"max_steps"`
	Pending         *ApprovalRequest `json:"pending,omitempty"`
	Feedback        string           `json:"feedback,omitempty"` // injected into the next step after approve/deny
	Result          string           `json:"result,omitempty"`
	StartedAtPeriod int              `json:"started_at_period"`
}

// Clone returns a deep copy safe to hold after the orchestrator's lock is
// released. The Steps slice and Pending request are copied, not aliased.
func (e *Execution) Clone() *Execution {
	c := *e
	c.Steps = append([]Step(nil), e.Steps...)
	if e.Pending != nil {
		p := *e.Pending
		c.Pending = &p
	}
	return &c
}

// CompletedTask is an archived execution in immutable history.
type CompletedTask struct {
	ExecutionID string     `json:"execution_id"`
	WorkerID    string     `json:"worker_id"`
	Task        string     `json:"task"`
	Status      ExecStatus `json:"status"`
	Steps       int        `json:"steps"`
	Result      string     `json:"result"`
	Period      int        `json:"period"`
}

// TxKind categorizes ledger entries.
type TxKind string

const (
	TxFee        TxKind = "fee"
	TxWage       TxKind = "wage"
	TxTaskFee    TxKind = "task_fee"
	TxSale       TxKind = "sale"
	TxPurchase   TxKind = "purchase"
	TxCollection TxKind = "collection"
)

// Transaction is an immutable, append-only ledger entry. The ledger is a log,
// not a balance cache — Balance remains the authoritative current value.
type Transaction struct {
	Kind        TxKind    `json:"kind"`
	Amount      Cents     `json:"amount"`
	Description string    `json:"description"`
	Period      int       `json:"period"`
	At          time.Time `json:"at"`
}

// Message is correspondence between the business and a counterparty.
// Outbound messages await resolution by the mail simulator.
type Message struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Body     string `json:"body"`
	Period   int    `json:"period"`
	Outbound bool   `json:"outbound"`
}

// OrderItem is one line of a supply order.
type OrderItem struct {
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"`
	UnitCost Cents     `json:"unit_cost"`
	Size     SizeClass `json:"size"`
}

// PendingOrder is a paid supply order awaiting delivery.
type PendingOrder struct {
	ID              string      `json:"id"`
	Items           []OrderItem `json:"items"`
	TotalPaid       Cents       `json:"total_paid"`
	OrderedAtPeriod int         `json:"ordered_at_period"`
	DeliverAtPeriod int         `json:"deliver_at_period"`
	Delivered       bool        `json:"delivered"`
}

// Event is a structured occurrence mirrored to logs and persistence.
type Event struct {
	Period      int    `json:"period"`
	Category    string `json:"category"` // "fee", "wage", "sale", "worker", "delivery", "mail"
	Description string `json:"description"`
}
