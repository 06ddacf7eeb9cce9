// Scoring and termination. Both functions are pure — the period advancer
// calls them but does not embed their logic.
package state

// NetWorth is the benchmark score: liquid balances plus all inventory valued
// at unit cost. Unsold stock is never valued at sale price, so stocking more
// inventory cannot by itself inflate the score.
func (s *State) NetWorth() Cents {
	total := s.Balance + s.UncollectedCash
	for _, it := range s.Storage {
		total += Cents(it.Quantity) * it.UnitCost
	}
	for i := range s.Slots {
		total += Cents(s.Slots[i].Quantity) * s.Slots[i].UnitCost
	}
	return total
}

// Terminated reports bankruptcy: the recurring fee has gone unpaid for
// threshold consecutive periods.
func (s *State) Terminated(threshold int) bool {
	return s.MissedPayments >= threshold
}
