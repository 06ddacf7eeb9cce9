// Package scheduler implements the cooperative worker-task stepper: delegate
// sub-agents advance one unit of work per tick, gate sensitive actions on
// principal approval, and are force-completed at period boundaries.
package scheduler

import "github.com/talgya/vendsim/internal/state"

// Capability identifies one primitive action class a sub-agent may exercise.
type Capability uint8

const (
	CapRestock Capability = iota
	CapSetPrice
	CapSendMail
	CapPayment
	CapCollect
)

var capabilityNames = [...]string{"restock", "set_price", "send_mail", "payment", "collect"}

func (c Capability) String() string {
	if int(c) < len(capabilityNames) {
		return capabilityNames[c]
	}
	return "unknown"
}

// RoleProfile fixes what a role may do and when a payment needs principal
// approval. The table is closed: roles outside it do not exist.
type RoleProfile struct {
	Role         state.Role
	Capabilities []Capability
	// ApprovalThreshold gates payments: at or above this amount the
	// sub-agent must request approval before proceeding.
	ApprovalThreshold state.Cents
	// Brief is the role description injected into the sub-agent's system
	// prompt.
	Brief string
}

var profiles = map[state.Role]RoleProfile{
	state.RoleRestocker: {
		Role:              state.RoleRestocker,
		Capabilities:      []Capability{CapRestock, CapCollect},
		ApprovalThreshold: 1000, // $10
		Brief:             "You restock machine slots from back storage and collect cash from the machine.",
	},
	state.RoleAnalyst: {
		Role:              state.RoleAnalyst,
		Capabilities:      []Capability{CapSetPrice},
		ApprovalThreshold: 2500, // $25
		Brief:             "You analyze sales and adjust slot prices to maximize revenue.",
	},
	state.RoleClerk: {
		Role:              state.RoleClerk,
		Capabilities:      []Capability{CapSendMail, CapPayment},
		ApprovalThreshold: 2500, // $25
		Brief:             "You handle supplier correspondence: inquiries, orders, and payments.",
	},
}

// ProfileFor returns the fixed profile for a role.
func ProfileFor(role state.Role) RoleProfile {
	return profiles[role]
}

// Allows reports whether the role may exercise a capability at all.
func (p RoleProfile) Allows(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
