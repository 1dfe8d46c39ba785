package submit

import (
	"context"
	"time"

	"public-order-engine/internal/order"
	"public-order-engine/internal/pending"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle       State = "IDLE"
	StateSubmitting State = "SUBMITTING"
	StateRetryWait  State = "RETRY_WAIT"
	StateRetrying   State = "RETRYING"
	StateSuccess    State = "SUCCESS"
	StateFailed     State = "FAILED"
	StateAbandoned  State = "ABANDONED"
)

const (
	DefaultRetryInterval = 5 * time.Second
	DefaultRetryWindow   = 2 * time.Minute

	NoticeWillRetry     = "We could not reach the store. Your order will be sent automatically."
	NoticeWaitingOnline = "Still offline. Your order will be sent as soon as the connection is back."

	storeOpTimeout = 5 * time.Second
)

// Sender performs one delivery attempt and reports its outcome through done.
// done must run on the same goroutine that drives the Controller. The
// returned cancel aborts the attempt.
type Sender interface {
	Send(o pending.Order, done func(Outcome)) (cancel func())
}

// Scheduler runs fn after d on the goroutine that drives the Controller.
type Scheduler interface {
	After(d time.Duration, fn func()) (stop func())
}

type Options struct {
	RetryInterval time.Duration
	RetryWindow   time.Duration
	Now           func() time.Time
	NewID         func() string
}

type Hooks struct {
	// OnSuccess runs after the pending record is cleared.
	OnSuccess func(order.ServerOrder)
	// OnTransition runs after every state change.
	OnTransition func(from, to State, st Status)
}

type Status struct {
	State         State              `json:"state"`
	ClientOrderID string             `json:"clientOrderId,omitempty"`
	Attempts      int                `json:"attempts"`
	CreatedAt     *time.Time         `json:"createdAt,omitempty"`
	InFlight      bool               `json:"inFlight"`
	RetryArmed    bool               `json:"retryArmed"`
	Notice        string             `json:"notice,omitempty"`
	Error         *order.Error       `json:"error,omitempty"`
	Order         *order.ServerOrder `json:"order,omitempty"`
}

// Controller drives one store's submissions:
//
//	Idle -> Submitting -> (Success | RetryWait) -> Retrying -> (Success | RetryWait | Abandoned)
//
// plus Failed for orders the server rejected. It is not safe for concurrent
// use; every method, and every callback it hands to Sender and Scheduler,
// must run on a single goroutine.
type Controller struct {
	slug   string
	store  *pending.Store
	sender Sender
	sched  Scheduler
	log    *zap.Logger
	opts   Options
	hooks  Hooks

	state       State
	current     *pending.Order
	lastID      string
	inFlight    bool
	seq         uint64
	cancelSend  func()
	timerGen    uint64
	stopTimer   func()
	onlineArmed bool
	// unresolved is set while the store could not be read at boot; a stored
	// order may still exist and must not be overwritten.
	unresolved bool
	notice      string
	err         *order.Error
	last        *order.ServerOrder
}

func New(slug string, store *pending.Store, sender Sender, sched Scheduler, log *zap.Logger, opts Options, hooks Hooks) *Controller {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.RetryWindow <= 0 {
		opts.RetryWindow = DefaultRetryWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		slug:   slug,
		store:  store,
		sender: sender,
		sched:  sched,
		log:    log.Named("submit"),
		opts:   opts,
		hooks:  hooks,
		state:  StateIdle,
	}
}

// Boot resumes a submission left behind by a previous run. A stored order is
// retried immediately, even when its retry window has already passed. When
// the store cannot be read, new submissions are refused until a later read
// succeeds.
func (c *Controller) Boot(ctx context.Context) error {
	if _, err := c.resolve(ctx); err != nil {
		c.unresolved = true
		return err
	}
	return nil
}

// resolve retries the boot read. It reports whether a stored order was
// found and resumed.
func (c *Controller) resolve(ctx context.Context) (bool, error) {
	o, ok, err := c.store.Read(ctx, c.slug)
	if err != nil {
		return false, err
	}
	c.unresolved = false
	if ok {
		c.resume(o)
	}
	return ok, nil
}

func (c *Controller) resume(o pending.Order) {
	c.log.Info("resuming pending order",
		zap.String("clientOrderId", o.ClientOrderID),
		zap.Int("attempts", o.Attempts),
		zap.Duration("age", o.Elapsed(c.opts.Now())),
	)
	c.current = &o
	c.lastID = o.ClientOrderID
	c.onlineArmed = true
	c.notice = ""
	c.err = nil
	c.last = nil
	c.transition(StateRetrying)
	c.attempt()
}

// Submit starts a new submission. The order is persisted before the first
// network call. A second submission while one is pending is refused.
func (c *Controller) Submit(ctx context.Context, payload order.Payload) (string, *order.Error) {
	if c.current != nil {
		return "", order.ConflictError(order.ErrSubmissionPending, "An order is already being sent")
	}
	if c.unresolved {
		found, err := c.resolve(ctx)
		if err != nil {
			c.log.Warn("read pending order failed", zap.Error(err))
			return "", order.StorageError("Could not check for an order saved on this device. Please try again")
		}
		if found {
			return "", order.ConflictError(order.ErrSubmissionPending, "An order is already being sent")
		}
	}

	id := c.opts.NewID()
	payload.ClientOrderID = id
	o := pending.Order{
		ClientOrderID: id,
		Payload:       payload,
		CreatedAt:     c.opts.Now().UTC(),
		StoreSlug:     c.slug,
	}
	if err := c.store.Write(ctx, o); err != nil {
		c.log.Error("persist pending order failed", zap.String("clientOrderId", id), zap.Error(err))
		return "", order.StorageError("Could not save the order on this device. Please try again")
	}

	c.current = &o
	c.lastID = id
	c.onlineArmed = true
	c.notice = ""
	c.err = nil
	c.last = nil
	c.transition(StateSubmitting)
	c.attempt()
	return id, nil
}

// OnlineRegained retries a waiting order right away. It stays effective after
// the timer-driven retries have stopped.
func (c *Controller) OnlineRegained() {
	if c.unresolved && c.current == nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()
		if found, err := c.resolve(ctx); err != nil || found {
			return
		}
	}
	if c.current == nil || !c.onlineArmed || c.inFlight || c.state != StateRetryWait {
		return
	}
	c.log.Info("connectivity regained, retrying", zap.String("clientOrderId", c.current.ClientOrderID))
	c.disarmTimer()
	c.transition(StateRetrying)
	c.attempt()
}

// Cancel abandons the pending order. An attempt in flight is aborted and its
// late result ignored.
func (c *Controller) Cancel(ctx context.Context) *order.Error {
	if c.current == nil {
		return order.NotFoundError(order.ErrNothingPending, "There is no order being sent")
	}
	id := c.current.ClientOrderID
	c.teardown()
	if err := c.store.Remove(ctx, c.slug); err != nil {
		c.log.Warn("remove pending order failed", zap.String("clientOrderId", id), zap.Error(err))
	}
	c.notice = ""
	c.log.Info("pending order abandoned", zap.String("clientOrderId", id))
	c.transition(StateAbandoned)
	return nil
}

// Dismiss returns a finished controller to Idle, clearing the last outcome.
func (c *Controller) Dismiss() {
	if c.current != nil {
		return
	}
	c.err = nil
	c.last = nil
	c.lastID = ""
	c.notice = ""
	if c.state != StateIdle {
		c.transition(StateIdle)
	}
}

// Close stops timers and aborts any attempt without touching the stored
// order, so the next Boot picks it up.
func (c *Controller) Close() {
	c.disarmTimer()
	c.abortInFlight()
	c.onlineArmed = false
}

func (c *Controller) Pending() bool {
	return c.current != nil
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Status() Status {
	st := Status{
		State:         c.state,
		ClientOrderID: c.lastID,
		InFlight:      c.inFlight,
		RetryArmed:    c.stopTimer != nil,
		Notice:        c.notice,
		Error:         c.err,
		Order:         c.last,
	}
	if c.current != nil {
		createdAt := c.current.CreatedAt
		st.Attempts = c.current.Attempts
		st.CreatedAt = &createdAt
	}
	return st
}

func (c *Controller) attempt() {
	c.inFlight = true
	c.seq++
	seq := c.seq
	o := *c.current
	c.log.Debug("sending order", zap.String("clientOrderId", o.ClientOrderID), zap.Int("attempts", o.Attempts))

	cancel := c.sender.Send(o, func(out Outcome) { c.handleResult(seq, out) })
	// done may already have run inside Send.
	if c.inFlight && c.seq == seq {
		c.cancelSend = cancel
	}
}

func (c *Controller) handleResult(seq uint64, out Outcome) {
	if seq != c.seq || !c.inFlight || c.current == nil {
		c.log.Debug("ignoring stale result", zap.String("outcome", string(out.Kind)))
		return
	}
	c.inFlight = false
	c.cancelSend = nil

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	id := c.current.ClientOrderID
	switch out.Kind {
	case OutcomeSuccess:
		c.teardown()
		if err := c.store.Remove(ctx, c.slug); err != nil {
			c.log.Warn("remove pending order failed", zap.String("clientOrderId", id), zap.Error(err))
		}
		created := out.Order
		c.last = &created
		c.notice = ""
		c.err = nil
		c.log.Info("order accepted", zap.String("clientOrderId", id), zap.String("orderId", string(created.ID)))
		c.transition(StateSuccess)
		if c.hooks.OnSuccess != nil {
			c.hooks.OnSuccess(created)
		}

	case OutcomeTerminal:
		c.teardown()
		if err := c.store.Remove(ctx, c.slug); err != nil {
			c.log.Warn("remove pending order failed", zap.String("clientOrderId", id), zap.Error(err))
		}
		c.notice = ""
		c.err = order.RejectedError(out.Reason)
		c.log.Warn("order rejected", zap.String("clientOrderId", id), zap.String("reason", out.Reason))
		c.transition(StateFailed)

	default:
		c.current.Attempts++
		if err := c.store.Write(ctx, *c.current); err != nil {
			c.log.Warn("persist attempt counter failed", zap.String("clientOrderId", id), zap.Error(err))
		}
		c.log.Info("order delivery failed, will retry",
			zap.String("clientOrderId", id),
			zap.Int("attempts", c.current.Attempts),
			zap.String("reason", out.Reason),
		)
		c.transition(StateRetryWait)
		c.armTimer()
	}
}

func (c *Controller) armTimer() {
	c.disarmTimer()
	if c.windowElapsed() {
		c.notice = NoticeWaitingOnline
		c.log.Info("retry window elapsed, waiting for connectivity", zap.String("clientOrderId", c.current.ClientOrderID))
		return
	}
	c.notice = NoticeWillRetry
	c.timerGen++
	gen := c.timerGen
	c.stopTimer = c.sched.After(c.opts.RetryInterval, func() { c.timerFired(gen) })
}

func (c *Controller) timerFired(gen uint64) {
	if gen != c.timerGen {
		return
	}
	c.stopTimer = nil
	if c.current == nil || c.inFlight || c.state != StateRetryWait {
		return
	}
	if c.windowElapsed() {
		c.notice = NoticeWaitingOnline
		c.log.Info("retry window elapsed, waiting for connectivity", zap.String("clientOrderId", c.current.ClientOrderID))
		c.notifyTransition(c.state, c.state)
		return
	}
	c.transition(StateRetrying)
	c.attempt()
}

func (c *Controller) windowElapsed() bool {
	return c.current.Elapsed(c.opts.Now()) >= c.opts.RetryWindow
}

func (c *Controller) disarmTimer() {
	c.timerGen++
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

func (c *Controller) abortInFlight() {
	if c.cancelSend != nil {
		c.cancelSend()
		c.cancelSend = nil
	}
	c.seq++
	c.inFlight = false
}

func (c *Controller) teardown() {
	c.disarmTimer()
	c.abortInFlight()
	c.onlineArmed = false
	c.current = nil
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	c.notifyTransition(from, to)
}

func (c *Controller) notifyTransition(from, to State) {
	if c.hooks.OnTransition != nil {
		c.hooks.OnTransition(from, to, c.Status())
	}
}
