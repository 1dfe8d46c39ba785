package cart

import (
	"public-order-engine/internal/menu"
	"public-order-engine/internal/pricing"
	"public-order-engine/internal/selection"
)

const (
	ReasonProductRemoved = "This item was removed from the menu"
	ReasonNoOptions      = "This item no longer has options"
)

// derive recomputes the derived fields of a line from the snapshot and the
// line's own selections. The display name of a missing product is kept so
// the customer can still recognise the line.
func derive(l Line, snap *menu.Snapshot) Line {
	product, ok := snap.Product(l.ProductID)
	if !ok {
		l.Unavailable = true
		l.Reason = ReasonProductRemoved
		l.UnitPrice = 0
		l.Pricing = pricing.Result{}
		return l
	}

	l.Name = product.Name
	if len(product.OptionGroups) == 0 && len(l.Selections) > 0 {
		l.Unavailable = true
		l.Reason = ReasonNoOptions
		l.UnitPrice = 0
		l.Pricing = pricing.Result{}
		return l
	}

	res := selection.Validate(product, l.Selections)
	if !res.Valid {
		l.Unavailable = true
		l.Reason = res.Reason
		l.UnitPrice = 0
		l.Pricing = pricing.Result{}
		return l
	}

	l.Unavailable = false
	l.Reason = ""
	l.Pricing = res.Pricing
	l.UnitPrice = res.Pricing.UnitPrice
	return l
}

func sameDerived(a, b Line) bool {
	return a.Name == b.Name &&
		a.UnitPrice == b.UnitPrice &&
		a.Pricing == b.Pricing &&
		a.Unavailable == b.Unavailable &&
		a.Reason == b.Reason
}
