package session

import (
	"context"

	"public-order-engine/internal/cart"
	"public-order-engine/internal/menu"
	"public-order-engine/internal/order"
	"public-order-engine/internal/queue"
	"public-order-engine/internal/selection"

	"go.uber.org/zap"
)

func fail(e *order.Error) error {
	if e == nil {
		return nil
	}
	return e
}

// ApplyMenu replaces the snapshot and reconciles the cart in one loop step.
func (s *Session) ApplyMenu(snap menu.Snapshot) {
	s.post(func() { s.applyMenu(snap) })
}

func (s *Session) applyMenu(snap menu.Snapshot) {
	s.snap = &snap
	s.menuVersion++
	changed := s.cart.Reconcile(s.snap)
	summary := s.cart.Summary()
	s.log.Info("menu applied",
		zap.Int("version", s.menuVersion),
		zap.Int("products", len(s.snap.Products())),
		zap.Bool("cartChanged", changed),
		zap.Int("unavailableLines", summary.Unavailable),
	)
	s.publish(queue.Event{Type: queue.EventMenuApplied})
}

// OnlineRegained forwards a connectivity event to the submission controller.
func (s *Session) OnlineRegained() {
	s.post(s.ctrl.OnlineRegained)
}

func (s *Session) State(ctx context.Context) (State, error) {
	var st State
	err := s.Do(ctx, func() { st = s.state() })
	return st, err
}

// Menu returns the current snapshot. Snapshots are replaced, never mutated,
// so the returned value is safe to read off the loop.
func (s *Session) Menu(ctx context.Context) (*menu.Snapshot, error) {
	var snap *menu.Snapshot
	if err := s.Do(ctx, func() { snap = s.snap }); err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, order.ValidationError(order.ErrMenuNotLoaded, "The menu is still loading", nil)
	}
	return snap, nil
}

// Quote validates a configuration and prices it without touching the cart.
func (s *Session) Quote(ctx context.Context, productID string, sels []selection.Selection) (selection.Result, error) {
	snap, err := s.Menu(ctx)
	if err != nil {
		return selection.Result{}, err
	}
	product, ok := snap.Product(productID)
	if !ok {
		return selection.Result{}, order.NotFoundError(order.ErrProductNotFound, "Product not found")
	}
	return selection.Validate(product, sels), nil
}

// ToggleQuote applies one option tap to a configuration that is not in the
// cart yet and returns the new selections with their quote.
func (s *Session) ToggleQuote(ctx context.Context, productID string, sels []selection.Selection, groupID, itemID string) ([]selection.Selection, string, selection.Result, error) {
	snap, err := s.Menu(ctx)
	if err != nil {
		return nil, "", selection.Result{}, err
	}
	product, ok := snap.Product(productID)
	if !ok {
		return nil, "", selection.Result{}, order.NotFoundError(order.ErrProductNotFound, "Product not found")
	}
	next, notice := selection.Toggle(product, sels, groupID, itemID)
	return next, notice, selection.Validate(product, next), nil
}

func (s *Session) AddLine(ctx context.Context, productID string, quantity int, notes string, sels []selection.Selection) (cart.Line, error) {
	var line cart.Line
	var oerr *order.Error
	err := s.update(ctx, func() {
		line, oerr = s.cart.Add(s.snap, productID, quantity, notes, sels)
	})
	if err != nil {
		return cart.Line{}, err
	}
	return line, fail(oerr)
}

// UpdateLine changes quantity and/or notes. A quantity of zero removes the
// line.
func (s *Session) UpdateLine(ctx context.Context, lineID string, quantity *int, notes *string) error {
	var oerr *order.Error
	err := s.update(ctx, func() {
		if _, ok := s.cart.Line(lineID); !ok {
			oerr = order.NotFoundError(order.ErrLineNotFound, "Cart item not found")
			return
		}
		if notes != nil {
			if oerr = s.cart.SetNotes(lineID, *notes); oerr != nil {
				return
			}
		}
		if quantity != nil {
			oerr = s.cart.SetQuantity(lineID, *quantity)
		}
	})
	if err != nil {
		return err
	}
	return fail(oerr)
}

func (s *Session) ToggleOption(ctx context.Context, lineID, groupID, itemID string) (string, error) {
	var notice string
	var oerr *order.Error
	err := s.update(ctx, func() {
		notice, oerr = s.cart.Toggle(s.snap, lineID, groupID, itemID)
	})
	if err != nil {
		return "", err
	}
	return notice, fail(oerr)
}

func (s *Session) RemoveLine(ctx context.Context, lineID string) error {
	removed := false
	if err := s.update(ctx, func() { removed = s.cart.Remove(lineID) }); err != nil {
		return err
	}
	if !removed {
		return order.NotFoundError(order.ErrLineNotFound, "Cart item not found")
	}
	return nil
}

func (s *Session) RemoveUnavailable(ctx context.Context) (int, error) {
	var n int
	err := s.update(ctx, func() { n = s.cart.RemoveUnavailable() })
	return n, err
}

// UpdateCheckout replaces the checkout form.
func (s *Session) UpdateCheckout(ctx context.Context, c order.Checkout) error {
	return s.update(ctx, func() { s.checkout = c })
}

// Submit validates the cart and the checkout form and starts a submission.
// It returns the clientOrderId; the outcome arrives through State.
func (s *Session) Submit(ctx context.Context) (string, error) {
	var id string
	var oerr *order.Error
	err := s.update(ctx, func() {
		if s.ctrl.Pending() {
			oerr = order.ConflictError(order.ErrSubmissionPending, "An order is already being sent")
			return
		}
		if oerr = s.checkout.Validate(s.snap, s.cart.Summary()); oerr != nil {
			return
		}
		payload := s.checkout.Build("", s.cart.Items())
		id, oerr = s.ctrl.Submit(ctx, payload)
	})
	if err != nil {
		return "", err
	}
	return id, fail(oerr)
}

func (s *Session) Cancel(ctx context.Context) error {
	var oerr *order.Error
	if err := s.update(ctx, func() { oerr = s.ctrl.Cancel(ctx) }); err != nil {
		return err
	}
	return fail(oerr)
}

// Dismiss clears a finished submission's outcome.
func (s *Session) Dismiss(ctx context.Context) error {
	return s.update(ctx, s.ctrl.Dismiss)
}
