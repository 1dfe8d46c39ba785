package cart

import (
	"strings"

	"public-order-engine/internal/menu"
	"public-order-engine/internal/order"
	"public-order-engine/internal/pricing"
	"public-order-engine/internal/selection"

	"github.com/google/uuid"
)

// Line is one product entry in the cart. Name, UnitPrice, Pricing,
// Unavailable and Reason are derived from the current menu snapshot and the
// line's selections and are only written by derive.
type Line struct {
	ID         string                `json:"id"`
	ProductID  string                `json:"productId"`
	Quantity   int                   `json:"quantity"`
	Notes      string                `json:"notes"`
	Selections []selection.Selection `json:"selections"`

	Name        string         `json:"name"`
	UnitPrice   int64          `json:"unitPrice"`
	Pricing     pricing.Result `json:"pricing"`
	Unavailable bool           `json:"unavailable"`
	Reason      string         `json:"reason,omitempty"`
}

func (l Line) Total() int64 {
	if l.Unavailable {
		return 0
	}
	return l.UnitPrice * int64(l.Quantity)
}

// Cart is not safe for concurrent use; the session loop owns it.
type Cart struct {
	lines []Line
	newID func() string
}

func New() *Cart {
	return &Cart{newID: uuid.NewString}
}

// Restore rebuilds a cart from previously saved lines and derives them
// against snap.
func Restore(lines []Line, snap *menu.Snapshot) *Cart {
	c := New()
	for _, l := range lines {
		if l.Quantity <= 0 || l.ID == "" {
			continue
		}
		l.Selections = selection.Clone(l.Selections)
		c.lines = append(c.lines, l)
	}
	if snap != nil {
		c.Reconcile(snap)
	}
	return c
}

// Add validates the configuration against the current product definition
// before creating the line. Invalid configurations are rejected instead of
// being added as unavailable.
func (c *Cart) Add(snap *menu.Snapshot, productID string, quantity int, notes string, selections []selection.Selection) (Line, *order.Error) {
	if snap == nil {
		return Line{}, order.ValidationError(order.ErrMenuNotLoaded, "The menu is still loading", nil)
	}
	product, ok := snap.Product(productID)
	if !ok {
		return Line{}, order.NotFoundError(order.ErrProductNotFound, "Product not found")
	}
	if quantity < 1 {
		return Line{}, order.ValidationError(order.ErrValidation, "Quantity must be at least 1", nil)
	}
	res := selection.Validate(product, selections)
	if !res.Valid {
		return Line{}, order.ValidationError(order.ErrValidation, res.Reason, map[string]any{"groups": res.Groups})
	}

	line := Line{
		ID:         c.newID(),
		ProductID:  productID,
		Quantity:   quantity,
		Notes:      strings.TrimSpace(notes),
		Selections: selection.Clone(selections),
	}
	line = derive(line, snap)
	c.lines = append(c.lines, line)
	return line, nil
}

// SetQuantity removes the line when quantity drops to zero or below.
func (c *Cart) SetQuantity(lineID string, quantity int) *order.Error {
	idx := c.index(lineID)
	if idx < 0 {
		return order.NotFoundError(order.ErrLineNotFound, "Cart item not found")
	}
	if quantity <= 0 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
		return nil
	}
	c.lines[idx].Quantity = quantity
	return nil
}

func (c *Cart) SetNotes(lineID, notes string) *order.Error {
	idx := c.index(lineID)
	if idx < 0 {
		return order.NotFoundError(order.ErrLineNotFound, "Cart item not found")
	}
	c.lines[idx].Notes = strings.TrimSpace(notes)
	return nil
}

// Toggle flips one option on an existing line and re-derives it. A refused
// toggle leaves the line untouched and returns a message for the customer.
func (c *Cart) Toggle(snap *menu.Snapshot, lineID, groupID, itemID string) (string, *order.Error) {
	idx := c.index(lineID)
	if idx < 0 {
		return "", order.NotFoundError(order.ErrLineNotFound, "Cart item not found")
	}
	product, ok := snap.Product(c.lines[idx].ProductID)
	if !ok {
		return "", order.ValidationError(order.ErrLineUnavailable, "This item is no longer available", nil)
	}
	next, msg := selection.Toggle(product, c.lines[idx].Selections, groupID, itemID)
	if msg != "" {
		return msg, nil
	}
	line := c.lines[idx]
	line.Selections = next
	c.lines[idx] = derive(line, snap)
	return "", nil
}

func (c *Cart) Remove(lineID string) bool {
	idx := c.index(lineID)
	if idx < 0 {
		return false
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	return true
}

// RemoveUnavailable drops every unavailable line and reports how many were
// removed.
func (c *Cart) RemoveUnavailable() int {
	kept := c.lines[:0]
	removed := 0
	for _, l := range c.lines {
		if l.Unavailable {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	for i := len(kept); i < len(c.lines); i++ {
		c.lines[i] = Line{}
	}
	c.lines = kept
	return removed
}

// Reconcile re-derives every line against snap and reports whether anything
// changed. Lines are never deleted here.
func (c *Cart) Reconcile(snap *menu.Snapshot) bool {
	changed := false
	for i, l := range c.lines {
		next := derive(l, snap)
		if !sameDerived(l, next) {
			changed = true
		}
		c.lines[i] = next
	}
	return changed
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) Line(lineID string) (Line, bool) {
	idx := c.index(lineID)
	if idx < 0 {
		return Line{}, false
	}
	return copyLine(c.lines[idx]), true
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	for i, l := range c.lines {
		out[i] = copyLine(l)
	}
	return out
}

func (c *Cart) Subtotal() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.Total()
	}
	return total
}

func (c *Cart) Summary() order.CartSummary {
	s := order.CartSummary{Lines: len(c.lines), Subtotal: c.Subtotal()}
	for _, l := range c.lines {
		if l.Unavailable {
			s.Unavailable++
		}
	}
	return s
}

// Items converts the cart into order payload items. Empty selection groups
// are left out of the payload.
func (c *Cart) Items() []order.ItemPayload {
	items := make([]order.ItemPayload, 0, len(c.lines))
	for _, l := range c.lines {
		item := order.ItemPayload{ProductID: l.ProductID, Quantity: l.Quantity}
		if l.Notes != "" {
			notes := l.Notes
			item.Notes = &notes
		}
		for _, sel := range l.Selections {
			if len(sel.ItemIDs) == 0 {
				continue
			}
			item.Options = append(item.Options, selection.Selection{GroupID: sel.GroupID, ItemIDs: append([]string(nil), sel.ItemIDs...)})
		}
		items = append(items, item)
	}
	return items
}

func (c *Cart) index(lineID string) int {
	for i, l := range c.lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

func copyLine(l Line) Line {
	l.Selections = selection.Clone(l.Selections)
	return l
}
