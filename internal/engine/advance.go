// Period advancement — the fixed once-per-period pipeline. Step ordering is
// load-bearing: fees and wages resolve before demand simulation, so a starved
// business cannot earn its way out of a missed payment in the period it
// missed it.
package engine

import (
	"context"
	"log/slog"

	"github.com/talgya/vendsim/internal/economy"
	"github.com/talgya/vendsim/internal/state"
)

// WageOutcome records one worker's wage attempt for the period report.
type WageOutcome struct {
	WorkerID string      `json:"worker_id"`
	Name     string      `json:"name"`
	Amount   state.Cents `json:"amount"`
	Paid     bool        `json:"paid"`
}

// PeriodReport aggregates one period's outcomes for the principal's next
// prompt context.
type PeriodReport struct {
	Period         int            `json:"period"` // the period that just closed
	Finalized      int            `json:"finalized_executions"`
	FeePaid        bool           `json:"fee_paid"`
	FeeAmount      state.Cents    `json:"fee_amount"`
	MissedPayments int            `json:"missed_payments"`
	Wages          []WageOutcome  `json:"wages"`
	MailResolved   int            `json:"mail_resolved"`
	Deliveries     []string       `json:"deliveries"`
	Sales          []economy.Sale `json:"sales"`
	NetWorth       state.Cents    `json:"net_worth"`
	Terminated     bool           `json:"terminated"`
}

// AdvancePeriod runs the period pipeline once, synchronously:
// finalize executions, charge the recurring fee, pay wages, resolve
// correspondence, apply due deliveries, simulate demand, advance the clock.
// It never fails on funding shortfalls — those degrade per the error design.
func (s *Sim) AdvancePeriod(ctx context.Context) *PeriodReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &PeriodReport{Period: s.st.Period}

	// 1. Workers cannot carry unfinished work across the boundary.
	report.Finalized = s.sched.FinalizeAtPeriodBoundary()

	// 2. Recurring fee.
	report.FeePaid, report.FeeAmount = s.chargeFee()

	// 3. Wages, partial-failure semantics.
	report.Wages = s.payWages()

	// 4. Correspondence, at-most-once per message.
	report.MailResolved = s.resolveMail(ctx)

	// 5. Due deliveries.
	report.Deliveries = s.applyDeliveries()

	// 6. Demand across all stocked slots.
	report.Sales = s.demand.Simulate(ctx, s.st)

	// 7. Clock, then bound the history the aggregate carries.
	s.st.Period++
	s.st.TrimEvents(s.cfg.MaxEvents)
	s.st.PruneHistory(s.cfg.HistoryRetention)

	report.MissedPayments = s.st.MissedPayments
	report.NetWorth = s.st.NetWorth()
	report.Terminated = s.st.Terminated(s.cfg.MissedPaymentLimit)

	unitsSold := 0
	for _, sale := range report.Sales {
		unitsSold += sale.Quantity
	}
	slog.Info("period closed",
		"period", report.Period,
		"fee_paid", report.FeePaid,
		"missed_payments", report.MissedPayments,
		"executions_cut", report.Finalized,
		"mail_resolved", report.MailResolved,
		"deliveries", len(report.Deliveries),
		"units_sold", unitsSold,
		"balance", economy.FormatCents(s.st.Balance),
		"uncollected", economy.FormatCents(s.st.UncollectedCash),
		"net_worth", economy.FormatCents(report.NetWorth),
		"terminated", report.Terminated,
	)

	return report
}
