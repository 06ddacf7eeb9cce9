package engine

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// applyDeliveries merges every due pending order into storage, matching by
// name and size class, and notifies the principal.
func (s *Sim) applyDeliveries() []string {
	var applied []string
	for _, o := range s.st.DueOrders() {
		s.st.MergeDelivery(o)

		var lines []string
		for _, it := range o.Items {
			lines = append(lines, fmt.Sprintf("%s × %s (%s)",
				humanize.Comma(int64(it.Quantity)), it.Name, it.Size))
		}
		desc := fmt.Sprintf("order %s delivered: %s", o.ID[:8], strings.Join(lines, ", "))
		s.st.Deliver("logistics", "Delivery arrived — "+strings.Join(lines, ", ")+". Items moved to storage.")
		s.st.AddEvent("delivery", desc)
		applied = append(applied, desc)
	}
	return applied
}
