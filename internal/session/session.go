package session

import (
	"context"
	"errors"
	"time"

	"public-order-engine/internal/cart"
	"public-order-engine/internal/menu"
	"public-order-engine/internal/order"
	"public-order-engine/internal/pending"
	"public-order-engine/internal/persist"
	"public-order-engine/internal/queue"
	"public-order-engine/internal/storage"
	"public-order-engine/internal/submit"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("session: closed")

const storeOpTimeout = 5 * time.Second

// OrderAPI creates orders upstream.
type OrderAPI interface {
	CreateOrder(ctx context.Context, slug string, payload order.Payload) (order.ServerOrder, error)
}

// Broadcaster receives a State after every change.
type Broadcaster interface {
	Broadcast(data any)
}

// EventSink receives order and menu lifecycle events.
type EventSink interface {
	Publish(ev queue.Event)
}

type Options struct {
	StoreSlug     string
	RetryInterval time.Duration
	RetryWindow   time.Duration
	Now           func() time.Time
	NewID         func() string
}

// Session owns everything the customer is composing for one store. All of
// its state is read and written on a single goroutine (Run); callers reach
// it through Do and post.
type Session struct {
	slug   string
	log    *zap.Logger
	api    OrderAPI
	now    func() time.Time
	hub    Broadcaster
	events EventSink

	customers *pending.CustomerStore
	drafts    persist.Record[[]cart.Line]

	cmds      chan func()
	done      chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc

	// loop-owned
	snap        *menu.Snapshot
	menuVersion int
	cart        *cart.Cart
	checkout    order.Checkout
	ctrl        *submit.Controller
}

func New(opts Options, port storage.Port, api OrderAPI, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	runCtx, runCancel := context.WithCancel(context.Background())
	s := &Session{
		slug:      opts.StoreSlug,
		log:       log.Named("session"),
		api:       api,
		now:       opts.Now,
		customers: pending.NewCustomerStore(port),
		drafts:    persist.NewRecord[[]cart.Line](port, "cart"),
		cmds:      make(chan func()),
		done:      make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
		cart:      cart.New(),
		checkout:  order.Checkout{OrderType: string(order.TypeTakeaway)},
	}
	s.ctrl = submit.New(opts.StoreSlug, pending.NewStore(port), loopSender{s}, loopScheduler{s}, log, submit.Options{
		RetryInterval: opts.RetryInterval,
		RetryWindow:   opts.RetryWindow,
		Now:           opts.Now,
		NewID:         opts.NewID,
	}, submit.Hooks{
		OnSuccess:    s.orderAccepted,
		OnTransition: s.submissionChanged,
	})
	return s
}

// SetBroadcaster and SetEventSink must be called before Run.
func (s *Session) SetBroadcaster(b Broadcaster) { s.hub = b }
func (s *Session) SetEventSink(e EventSink)     { s.events = e }

// Run restores saved state, resumes any pending submission and then serves
// commands until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.runCancel()

	s.boot(ctx)

	for {
		select {
		case <-ctx.Done():
			s.ctrl.Close()
			return ctx.Err()
		case fn := <-s.cmds:
			fn()
		}
	}
}

func (s *Session) boot(ctx context.Context) {
	if cust, ok, err := s.customers.Read(ctx, s.slug); err != nil {
		s.log.Warn("read remembered customer failed", zap.Error(err))
	} else if ok {
		s.checkout = s.checkout.WithCustomer(cust)
		s.checkout.RememberCustomer = true
	}

	if lines, ok, err := s.drafts.Read(ctx, s.slug); err != nil {
		s.log.Warn("read cart draft failed", zap.Error(err))
	} else if ok {
		s.cart = cart.Restore(lines, s.snap)
		s.log.Info("cart draft restored", zap.Int("lines", s.cart.Len()))
	}

	if err := s.ctrl.Boot(ctx); err != nil {
		s.log.Error("resume pending order failed", zap.Error(err))
	}
	s.broadcast()
}

// Do runs fn on the loop and waits for it.
func (s *Session) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.cmds <- wrapped:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// update is Do for commands that change state: the cart draft is saved and
// subscribers are notified afterwards.
func (s *Session) update(ctx context.Context, fn func()) error {
	return s.Do(ctx, func() {
		fn()
		s.changed()
	})
}

// post queues fn on the loop without waiting for it to run. It must not be
// called from the loop itself.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- func() { fn(); s.changed() }:
	case <-s.done:
	}
}

func (s *Session) changed() {
	s.saveDraft()
	s.broadcast()
}

func (s *Session) saveDraft() {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	var err error
	if s.cart.Len() == 0 {
		err = s.drafts.Remove(ctx, s.slug)
	} else {
		err = s.drafts.Write(ctx, s.slug, s.cart.Lines())
	}
	if err != nil {
		s.log.Warn("save cart draft failed", zap.Error(err))
	}
}

func (s *Session) broadcast() {
	if s.hub != nil {
		s.hub.Broadcast(s.state())
	}
}

func (s *Session) publish(ev queue.Event) {
	if s.events == nil {
		return
	}
	ev.StoreSlug = s.slug
	ev.OccurredAt = s.now().UTC()
	s.events.Publish(ev)
}

func (s *Session) orderAccepted(created order.ServerOrder) {
	s.cart.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()
	if s.checkout.RememberCustomer {
		if err := s.customers.Write(ctx, s.slug, s.checkout.Customer()); err != nil {
			s.log.Warn("remember customer failed", zap.Error(err))
		}
	} else if err := s.customers.Remove(ctx, s.slug); err != nil {
		s.log.Warn("forget customer failed", zap.Error(err))
	}
	s.checkout = s.checkout.Reset()
}

func (s *Session) submissionChanged(from, to submit.State, st submit.Status) {
	ev := queue.Event{
		ClientOrderID: st.ClientOrderID,
		State:         string(to),
		Attempts:      st.Attempts,
	}
	switch to {
	case submit.StateSubmitting:
		ev.Type = queue.EventOrderSubmitted
	case submit.StateRetryWait:
		if from == to {
			return
		}
		ev.Type = queue.EventOrderRetrying
	case submit.StateSuccess:
		ev.Type = queue.EventOrderAccepted
		if st.Order != nil {
			ev.OrderID = string(st.Order.ID)
		}
	case submit.StateFailed:
		ev.Type = queue.EventOrderRejected
		if st.Error != nil {
			ev.Reason = st.Error.Message
		}
	case submit.StateAbandoned:
		ev.Type = queue.EventOrderAbandoned
	default:
		return
	}
	s.publish(ev)
}
