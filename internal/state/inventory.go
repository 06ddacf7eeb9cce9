// Two-tier inventory: back storage and machine slots. Moves between tiers
// preserve unit cost, so net worth is invariant under stocking and unstocking.
package state

import "github.com/google/uuid"

// findStorage returns the storage item matching name and size, or nil.
func (s *State) findStorage(name string, size SizeClass) *StorageItem {
	for i := range s.Storage {
		it := &s.Storage[i]
		if it.Name == name && it.Size == size {
			return it
		}
	}
	return nil
}

// AddStorage merges quantity into storage, matching by name and size class.
// Unit cost is replaced by the incoming cost on merge (latest purchase wins).
func (s *State) AddStorage(item StorageItem) {
	if existing := s.findStorage(item.Name, item.Size); existing != nil {
		existing.Quantity += item.Quantity
		existing.UnitCost = item.UnitCost
		return
	}
	s.Storage = append(s.Storage, item)
}

// slotAt validates a slot position.
func (s *State) slotAt(pos int) (*Slot, error) {
	if pos < 0 || pos >= SlotCount {
		return nil, Validationf("BAD_SLOT", "slot position %d out of range [0,%d)", pos, SlotCount)
	}
	return &s.Slots[pos], nil
}

// StockSlot moves qty units of a named product from storage into a slot.
// The slot must be empty or already hold the same product, and the slot's
// size class must match the product's.
func (s *State) StockSlot(pos int, name string, qty int) error {
	slot, err := s.slotAt(pos)
	if err != nil {
		return err
	}
	if qty <= 0 {
		return Validationf("BAD_QUANTITY", "stock quantity must be positive, got %d", qty)
	}

	item := s.findStorage(name, slot.Size)
	if item == nil {
		// Product may exist in storage under a different size class.
		for i := range s.Storage {
			if s.Storage[i].Name == name {
				return Validationf("SIZE_MISMATCH",
					"product %q is %s, slot %d takes %s", name, s.Storage[i].Size, pos, slot.Size)
			}
		}
		return Validationf("UNKNOWN_PRODUCT", "no %q in storage", name)
	}
	if item.Quantity < qty {
		return Validationf("BAD_QUANTITY", "only %d of %q in storage, wanted %d", item.Quantity, name, qty)
	}
	if slot.Product != "" && slot.Product != name {
		return Validationf("SLOT_OCCUPIED", "slot %d already holds %q", pos, slot.Product)
	}

	item.Quantity -= qty
	slot.Product = name
	slot.Quantity += qty
	slot.UnitCost = item.UnitCost
	s.compactStorage()
	return nil
}

// UnstockSlot moves qty units from a slot back into storage at the same unit
// cost. qty of 0 means the whole slot.
func (s *State) UnstockSlot(pos, qty int) error {
	slot, err := s.slotAt(pos)
	if err != nil {
		return err
	}
	if slot.Product == "" {
		return Validationf("EMPTY_SLOT", "slot %d is empty", pos)
	}
	if qty == 0 {
		qty = slot.Quantity
	}
	if qty < 0 || qty > slot.Quantity {
		return Validationf("BAD_QUANTITY", "slot %d holds %d, cannot remove %d", pos, slot.Quantity, qty)
	}

	s.AddStorage(StorageItem{
		Name:     slot.Product,
		Quantity: qty,
		UnitCost: slot.UnitCost,
		Size:     slot.Size,
	})
	slot.Quantity -= qty
	if slot.Quantity == 0 {
		slot.Product = ""
		slot.UnitCost = 0
		slot.Price = 0
	}
	return nil
}

// SetPrice sets the sale price for a stocked slot.
func (s *State) SetPrice(pos int, price Cents) error {
	slot, err := s.slotAt(pos)
	if err != nil {
		return err
	}
	if slot.Product == "" {
		return Validationf("EMPTY_SLOT", "slot %d is empty", pos)
	}
	if price < 0 {
		return Validationf("BAD_PRICE", "price must be non-negative, got %d", price)
	}
	slot.Price = price
	return nil
}

// PlaceOrder records a paid supply order for future delivery.
func (s *State) PlaceOrder(items []OrderItem, total Cents, deliverAt int) *PendingOrder {
	o := &PendingOrder{
		ID:              uuid.NewString(),
		Items:           items,
		TotalPaid:       total,
		OrderedAtPeriod: s.Period,
		DeliverAtPeriod: deliverAt,
	}
	s.PendingOrders = append(s.PendingOrders, o)
	return o
}

// DueOrders returns undelivered orders due at or before the current period.
func (s *State) DueOrders() []*PendingOrder {
	var due []*PendingOrder
	for _, o := range s.PendingOrders {
		if !o.Delivered && o.DeliverAtPeriod <= s.Period {
			due = append(due, o)
		}
	}
	return due
}

// MergeDelivery merges a due order's items into storage and marks it delivered.
func (s *State) MergeDelivery(o *PendingOrder) {
	for _, it := range o.Items {
		s.AddStorage(StorageItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			UnitCost: it.UnitCost,
			Size:     it.Size,
		})
	}
	o.Delivered = true
}

// DistinctStockedProducts counts distinct product names across slots with
// stock remaining. Drives the variety factor in the demand model.
func (s *State) DistinctStockedProducts() int {
	seen := make(map[string]bool)
	for i := range s.Slots {
		if s.Slots[i].Product != "" && s.Slots[i].Quantity > 0 {
			seen[s.Slots[i].Product] = true
		}
	}
	return len(seen)
}

// compactStorage drops zero-quantity storage lines.
func (s *State) compactStorage() {
	kept := s.Storage[:0]
	for _, it := range s.Storage {
		if it.Quantity > 0 {
			kept = append(kept, it)
		}
	}
	s.Storage = kept
}
