package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/vendsim/internal/economy"
	"github.com/talgya/vendsim/internal/state"
)

// resolveMail resolves every unresolved outgoing message. A message's id is
// marked processed before any resolution work, so a resolver crash can never
// cause a second resolution later — at-most-once, always terminal.
func (s *Sim) resolveMail(ctx context.Context) int {
	resolved := 0
	for _, m := range s.st.UnresolvedOutbound() {
		if !s.st.MarkProcessed(m.ID) {
			continue
		}
		s.resolveOne(ctx, m)
		resolved++
	}
	return resolved
}

func (s *Sim) resolveOne(ctx context.Context, m *state.Message) {
	decision, err := s.mail.Resolve(ctx, MailContext{
		To:      m.To,
		Body:    m.Body,
		Period:  s.st.Period,
		Balance: s.st.Balance,
	})
	if err != nil {
		// Correspondence is guaranteed to reach a terminal state: synthesize
		// a generic reply rather than dropping the message.
		slog.Warn("mail resolution failed, synthesizing reply", "message", m.ID, "error", err)
		s.st.Deliver(m.To, "We apologize — we were unable to process your message at this time. Please try again.")
		s.st.AddEvent("mail", "resolution failed for message to "+m.To)
		return
	}

	s.applyMailDecision(m, decision)
}

// applyMailDecision applies the resolver's bounded effects: charge, future
// delivery, reply. A rejected charge cancels the delivery but still replies.
func (s *Sim) applyMailDecision(m *state.Message, d MailDecision) {
	from := d.Counterpart
	if from == "" {
		from = m.To
	}

	if d.Charge > 0 {
		memo := d.ChargeMemo
		if memo == "" {
			memo = "supplier charge for order placed with " + from
		}
		if err := s.st.Debit(state.TxPurchase, d.Charge, memo); err != nil {
			var funds *state.InsufficientFundsError
			if errors.As(err, &funds) {
				s.st.Deliver(from, fmt.Sprintf(
					"Your order of %s could not be processed: payment declined (available %s). No charge was made.",
					economy.FormatCents(funds.Needed), economy.FormatCents(funds.Available)))
				s.st.AddEvent("mail", "order payment declined for "+from)
				return
			}
			panic(err)
		}
	}

	if len(d.Items) > 0 {
		order := s.st.PlaceOrder(d.Items, d.Charge, s.st.Period+s.cfg.DeliveryLeadPeriods)
		s.st.AddEvent("mail", fmt.Sprintf("order %s placed with %s, delivery at period %d",
			order.ID[:8], from, order.DeliverAtPeriod))
	}

	reply := d.Reply
	if reply == "" {
		reply = "Thank you for your message. We have processed your request."
	}
	s.st.Deliver(from, reply)
}
