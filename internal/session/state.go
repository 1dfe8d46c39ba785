package session

import (
	"public-order-engine/internal/cart"
	"public-order-engine/internal/menu"
	"public-order-engine/internal/order"
	"public-order-engine/internal/submit"
)

// State is the read model rendered by the UI.
type State struct {
	Store       menu.Store     `json:"store"`
	MenuLoaded  bool           `json:"menuLoaded"`
	MenuVersion int            `json:"menuVersion"`
	Cart        CartView       `json:"cart"`
	Checkout    order.Checkout `json:"checkout"`
	Totals      Totals         `json:"totals"`
	Submission  submit.Status  `json:"submission"`
}

type CartView struct {
	Lines       []cart.Line `json:"lines"`
	Unavailable int         `json:"unavailable"`
}

type Totals struct {
	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"deliveryFee"`
	Total       int64 `json:"total"`
}

func (s *Session) state() State {
	summary := s.cart.Summary()
	st := State{
		MenuLoaded:  s.snap != nil,
		MenuVersion: s.menuVersion,
		Cart: CartView{
			Lines:       s.cart.Lines(),
			Unavailable: summary.Unavailable,
		},
		Checkout:   s.checkout,
		Submission: s.ctrl.Status(),
	}
	st.Totals.Subtotal = summary.Subtotal
	if s.snap != nil {
		st.Store = s.snap.Store
		st.Totals.DeliveryFee = s.checkout.DeliveryFee(s.snap)
	}
	st.Totals.Total = st.Totals.Subtotal + st.Totals.DeliveryFee
	return st
}
