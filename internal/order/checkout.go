package order

import (
	"fmt"
	"strings"

	"public-order-engine/internal/menu"
)

// Customer is the identity remembered between orders when the customer opts
// in.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Checkout holds the customer, delivery and payment fields of the order
// form.
type Checkout struct {
	CustomerName     string `json:"customerName"`
	CustomerPhone    string `json:"customerPhone"`
	OrderType        string `json:"orderType"`
	Notes            string `json:"notes"`
	PaymentMethod    string `json:"paymentMethod"`
	ChangeForCents   *int64 `json:"changeForCents,omitempty"`
	DeliveryAreaID   string `json:"deliveryAreaId"`
	AddressLine      string `json:"addressLine"`
	AddressRef       string `json:"addressRef"`
	TableID          string `json:"tableId"`
	RememberCustomer bool   `json:"rememberCustomer"`
}

// CartSummary is what checkout validation needs to know about the cart.
type CartSummary struct {
	Lines       int   `json:"lines"`
	Unavailable int   `json:"unavailable"`
	Subtotal    int64 `json:"subtotal"`
}

func (c Checkout) Customer() Customer {
	return Customer{Name: strings.TrimSpace(c.CustomerName), Phone: strings.TrimSpace(c.CustomerPhone)}
}

func (c Checkout) WithCustomer(cust Customer) Checkout {
	c.CustomerName = cust.Name
	c.CustomerPhone = cust.Phone
	return c
}

// DeliveryFee is zero unless the order is a delivery to a known area.
func (c Checkout) DeliveryFee(snap *menu.Snapshot) int64 {
	if t, _ := ParseType(c.OrderType); t != TypeDelivery {
		return 0
	}
	area, ok := snap.DeliveryArea(strings.TrimSpace(c.DeliveryAreaID))
	if !ok {
		return 0
	}
	return area.Fee
}

func (c Checkout) Total(snap *menu.Snapshot, subtotal int64) int64 {
	return subtotal + c.DeliveryFee(snap)
}

// Validate runs every local check that must pass before a submission is
// allowed to reach the network.
func (c Checkout) Validate(snap *menu.Snapshot, cart CartSummary) *Error {
	if snap == nil {
		return ValidationError(ErrMenuNotLoaded, "The menu is still loading", nil)
	}
	if cart.Lines == 0 {
		return ValidationError(ErrCartEmpty, "Add at least one item to your order", nil)
	}
	if cart.Unavailable > 0 {
		return ValidationError(ErrLineUnavailable, "Some items are no longer available. Remove them to continue", map[string]any{"unavailable": cart.Unavailable})
	}
	if !snap.Store.IsOpen {
		return ValidationError(ErrStoreClosed, "The store is closed right now", nil)
	}

	orderType, ok := ParseType(c.OrderType)
	if !ok {
		return ValidationError(ErrValidation, "Valid order type is required (DELIVERY, TAKEAWAY or DINE_IN)", nil)
	}

	cust := c.Customer()
	switch orderType {
	case TypeDelivery:
		if cust.Name == "" || cust.Phone == "" {
			return ValidationError(ErrValidation, "Customer name and phone are required for delivery", nil)
		}
		if strings.TrimSpace(c.DeliveryAreaID) == "" {
			return ValidationError(ErrValidation, "Delivery area is required", nil)
		}
		if _, ok := snap.DeliveryArea(strings.TrimSpace(c.DeliveryAreaID)); !ok {
			return ValidationError(ErrValidation, "Delivery area is not served by this store", nil)
		}
		if strings.TrimSpace(c.AddressLine) == "" {
			return ValidationError(ErrValidation, "Delivery address is required", nil)
		}
	case TypeTakeaway:
		if cust.Name == "" {
			return ValidationError(ErrValidation, "Customer name is required", nil)
		}
	case TypeDineIn:
		if strings.TrimSpace(c.TableID) == "" {
			return ValidationError(ErrValidation, "Table is required for dine-in orders", nil)
		}
	}

	method := strings.ToUpper(strings.TrimSpace(c.PaymentMethod))
	if method == "" {
		if orderType != TypeDineIn {
			return ValidationError(ErrValidation, "Payment method is required", nil)
		}
	} else if !snap.Payment.Accepts(method) {
		return ValidationError(ErrValidation, fmt.Sprintf("Payment method %s is not accepted", method), nil)
	}

	if c.ChangeForCents != nil {
		if method != PaymentCash {
			return ValidationError(ErrValidation, "Change is only available for cash payments", nil)
		}
		if total := c.Total(snap, cart.Subtotal); *c.ChangeForCents < total {
			return ValidationError(ErrValidation, "Change amount must cover the order total", map[string]any{"total": total})
		}
	}

	return nil
}

// Build assembles the submission payload. Fields that do not apply to the
// order type are left out.
func (c Checkout) Build(clientOrderID string, items []ItemPayload) Payload {
	orderType, _ := ParseType(c.OrderType)
	p := Payload{
		ClientOrderID: clientOrderID,
		CustomerName:  optional(c.CustomerName),
		CustomerPhone: optional(c.CustomerPhone),
		OrderType:     orderType,
		Notes:         optional(c.Notes),
		Items:         items,
	}
	if method := strings.ToUpper(strings.TrimSpace(c.PaymentMethod)); method != "" {
		p.PaymentMethod = &method
		if method == PaymentCash && c.ChangeForCents != nil {
			change := *c.ChangeForCents
			p.ChangeForCents = &change
		}
	}
	switch orderType {
	case TypeDelivery:
		p.DeliveryAreaID = optional(c.DeliveryAreaID)
		p.AddressLine = optional(c.AddressLine)
		p.AddressRef = optional(c.AddressRef)
	case TypeDineIn:
		p.TableID = optional(c.TableID)
	}
	return p
}

// Reset clears the per-order fields after a successful submission. The
// customer identity survives only when RememberCustomer is set.
func (c Checkout) Reset() Checkout {
	next := Checkout{OrderType: c.OrderType, RememberCustomer: c.RememberCustomer}
	if c.RememberCustomer {
		next.CustomerName = c.CustomerName
		next.CustomerPhone = c.CustomerPhone
	}
	return next
}
