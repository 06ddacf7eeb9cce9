package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/vendsim/internal/economy"
	"github.com/talgya/vendsim/internal/state"
)

// chargeFee deducts the recurring operating fee when covered, otherwise
// leaves the balance untouched and increments the missed-payment streak.
// Never errors.
func (s *Sim) chargeFee() (paid bool, amount state.Cents) {
	fee := s.cfg.DailyFee
	if s.st.Balance >= fee {
		if err := s.st.Debit(state.TxFee, fee, "recurring operating fee"); err != nil {
			// Unreachable: balance was just checked.
			panic(err)
		}
		s.st.MissedPayments = 0
		s.st.AddEvent("fee", "operating fee paid: "+economy.FormatCents(fee))
		return true, fee
	}

	s.st.MissedPayments++
	s.st.AddEvent("fee", fmt.Sprintf("operating fee MISSED (%d consecutive)", s.st.MissedPayments))
	slog.Warn("operating fee missed",
		"period", s.st.Period,
		"balance", economy.FormatCents(s.st.Balance),
		"fee", economy.FormatCents(fee),
		"consecutive", s.st.MissedPayments,
	)
	return false, fee
}

// payWages attempts each active worker's wage independently. A shortfall
// queues a notification message instead of aborting — one underpaid worker
// never blocks the others or the rest of the pipeline.
func (s *Sim) payWages() []WageOutcome {
	var outcomes []WageOutcome
	for _, w := range s.st.Workers {
		if !w.Active {
			continue
		}

		out := WageOutcome{WorkerID: w.ID, Name: w.Name, Amount: w.Wage}
		err := s.st.Debit(state.TxWage, w.Wage, fmt.Sprintf("wage for %s (%s)", w.Name, w.Role))
		if err == nil {
			out.Paid = true
			w.TotalCostPaid += w.Wage
		} else {
			s.st.Deliver("payroll", fmt.Sprintf(
				"Unable to pay %s's wage of %s this period — insufficient funds. Morale may suffer.",
				w.Name, economy.FormatCents(w.Wage)))
			s.st.AddEvent("wage", fmt.Sprintf("wage missed for %s", w.Name))
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}
