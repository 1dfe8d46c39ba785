package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"public-order-engine/internal/menu"
	"public-order-engine/internal/order"
	"public-order-engine/internal/pending"
	"public-order-engine/internal/publicapi"
	"public-order-engine/internal/queue"
	"public-order-engine/internal/selection"
	"public-order-engine/internal/storage"
	"public-order-engine/internal/submit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const burgerMenu = `{
	"store": {"slug": "burgers", "name": "Burgers", "isOpen": true},
	"categories": [{"id": "main", "name": "Main", "products": [
		{"id": "burger", "name": "Burger", "priceCents": 1000, "pricingRule": "SUM",
		 "optionGroups": [{"id": "extras", "name": "Extras", "selectionType": "MULTI",
			"items": [{"id": "bacon", "name": "Bacon", "priceCents": 200, "active": true}]}]},
		{"id": "soda", "name": "Soda", "priceCents": 500}
	]}],
	"payment": {"acceptedMethods": ["CASH", "PIX"]}
}`

const sodaOnlyMenu = `{
	"store": {"slug": "burgers", "name": "Burgers", "isOpen": true},
	"categories": [{"id": "main", "name": "Main", "products": [
		{"id": "soda", "name": "Soda", "priceCents": 500}
	]}],
	"payment": {"acceptedMethods": ["CASH"]}
}`

func decodeMenu(t *testing.T, raw string) menu.Snapshot {
	t.Helper()
	snap, err := menu.Decode([]byte(raw), "")
	require.NoError(t, err)
	return snap
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []order.Payload
	respond func(n int) (order.ServerOrder, error)
}

func (f *fakeAPI) CreateOrder(_ context.Context, _ string, p order.Payload) (order.ServerOrder, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	n := len(f.calls)
	f.mu.Unlock()
	return f.respond(n)
}

func (f *fakeAPI) payloads() []order.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]order.Payload(nil), f.calls...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recordingSink) Publish(ev queue.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type countingHub struct {
	mu   sync.Mutex
	last any
	n    int
}

func (h *countingHub) Broadcast(data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	h.n++
}

type running struct {
	s      *Session
	cancel context.CancelFunc
	done   chan struct{}
}

func start(t *testing.T, port storage.Port, api OrderAPI) *running {
	t.Helper()
	s := New(Options{StoreSlug: "burgers", RetryInterval: time.Hour, RetryWindow: 2 * time.Minute}, port, api, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{s: s, cancel: cancel, done: make(chan struct{})}
	go func() {
		_ = s.Run(ctx)
		close(r.done)
	}()
	t.Cleanup(r.stop)
	return r
}

func (r *running) stop() {
	r.cancel()
	<-r.done
}

func waitState(t *testing.T, s *Session, want submit.State) State {
	t.Helper()
	var st State
	require.Eventually(t, func() bool {
		var err error
		st, err = s.State(context.Background())
		return err == nil && st.Submission.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func takeaway(name string) order.Checkout {
	return order.Checkout{CustomerName: name, OrderType: "TAKEAWAY", PaymentMethod: "CASH", RememberCustomer: true}
}

func TestAddSubmitSuccessEmptiesCart(t *testing.T) {
	ctx := context.Background()
	port := storage.NewMemory()
	api := &fakeAPI{respond: func(int) (order.ServerOrder, error) {
		return order.ServerOrder{ID: "991", ShortCode: "B7"}, nil
	}}
	sink := &recordingSink{}
	hub := &countingHub{}

	s := New(Options{StoreSlug: "burgers"}, port, api, nil)
	s.SetEventSink(sink)
	s.SetBroadcaster(hub)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = s.Run(runCtx) }()

	s.ApplyMenu(decodeMenu(t, burgerMenu))

	line, err := s.AddLine(ctx, "burger", 2, "no onions", []selection.Selection{{GroupID: "extras", ItemIDs: []string{"bacon"}}})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), line.UnitPrice)

	st, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2400), st.Totals.Total)
	assert.True(t, st.MenuLoaded)

	require.NoError(t, s.UpdateCheckout(ctx, takeaway("Ana")))
	id, err := s.Submit(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st = waitState(t, s, submit.StateSuccess)
	assert.Empty(t, st.Cart.Lines)
	assert.Equal(t, "Ana", st.Checkout.CustomerName)
	assert.Equal(t, "B7", st.Submission.Order.ShortCode)
	assert.Equal(t, id, st.Submission.ClientOrderID)

	calls := api.payloads()
	require.Len(t, calls, 1)
	assert.Equal(t, id, calls[0].ClientOrderID)
	require.Len(t, calls[0].Items, 1)
	assert.Equal(t, 2, calls[0].Items[0].Quantity)

	_, ok, err := pending.NewStore(port).Read(ctx, "burgers")
	require.NoError(t, err)
	assert.False(t, ok)

	cust, ok, err := pending.NewCustomerStore(port).Read(ctx, "burgers")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ana", cust.Name)

	assert.Equal(t, []string{queue.EventMenuApplied, queue.EventOrderSubmitted, queue.EventOrderAccepted}, sink.types())
	hub.mu.Lock()
	assert.Greater(t, hub.n, 3)
	hub.mu.Unlock()
}

func TestRemovedProductBlocksSubmit(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{respond: func(int) (order.ServerOrder, error) { return order.ServerOrder{ID: "1"}, nil }}
	r := start(t, storage.NewMemory(), api)
	s := r.s

	s.ApplyMenu(decodeMenu(t, burgerMenu))
	_, err := s.AddLine(ctx, "burger", 1, "", nil)
	require.NoError(t, err)
	_, err = s.AddLine(ctx, "soda", 1, "", nil)
	require.NoError(t, err)
	require.NoError(t, s.UpdateCheckout(ctx, takeaway("Ana")))

	s.ApplyMenu(decodeMenu(t, sodaOnlyMenu))
	st, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Cart.Unavailable)
	assert.Len(t, st.Cart.Lines, 2)
	assert.Equal(t, int64(500), st.Totals.Subtotal)

	_, err = s.Submit(ctx)
	var oerr *order.Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, order.ErrLineUnavailable, oerr.Code)
	assert.Empty(t, api.payloads())

	n, err := s.RemoveUnavailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Submit(ctx)
	require.NoError(t, err)
	waitState(t, s, submit.StateSuccess)
}

func TestPendingOrderSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	port := storage.NewMemory()

	offline := &fakeAPI{respond: func(int) (order.ServerOrder, error) {
		return order.ServerOrder{}, &publicapi.TransportError{Op: "create order", Timeout: true}
	}}
	first := start(t, port, offline)
	first.s.ApplyMenu(decodeMenu(t, burgerMenu))
	_, err := first.s.AddLine(ctx, "soda", 3, "", nil)
	require.NoError(t, err)
	require.NoError(t, first.s.UpdateCheckout(ctx, takeaway("Bia")))
	id, err := first.s.Submit(ctx)
	require.NoError(t, err)

	st := waitState(t, first.s, submit.StateRetryWait)
	assert.Equal(t, submit.NoticeWillRetry, st.Submission.Notice)
	assert.Equal(t, 1, st.Submission.Attempts)
	first.stop()

	online := &fakeAPI{respond: func(int) (order.ServerOrder, error) { return order.ServerOrder{ID: "77"}, nil }}
	second := start(t, port, online)

	// Boot retries right away, before any menu arrives.
	st = waitState(t, second.s, submit.StateSuccess)
	assert.Empty(t, st.Cart.Lines)

	calls := online.payloads()
	require.Len(t, calls, 1)
	assert.Equal(t, id, calls[0].ClientOrderID)
	assert.Equal(t, 3, calls[0].Items[0].Quantity)
}

func TestCartDraftRestoredAndReconciled(t *testing.T) {
	ctx := context.Background()
	port := storage.NewMemory()
	api := &fakeAPI{respond: func(int) (order.ServerOrder, error) { return order.ServerOrder{ID: "1"}, nil }}

	first := start(t, port, api)
	first.s.ApplyMenu(decodeMenu(t, burgerMenu))
	_, err := first.s.AddLine(ctx, "burger", 1, "", nil)
	require.NoError(t, err)
	first.stop()

	second := start(t, port, api)
	st, err := second.s.State(ctx)
	require.NoError(t, err)
	require.Len(t, st.Cart.Lines, 1)
	assert.False(t, st.MenuLoaded)

	second.s.ApplyMenu(decodeMenu(t, sodaOnlyMenu))
	st, err = second.s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Cart.Unavailable)
}

func TestCommandsBeforeMenu(t *testing.T) {
	ctx := context.Background()
	r := start(t, storage.NewMemory(), &fakeAPI{})

	_, err := r.s.AddLine(ctx, "burger", 1, "", nil)
	var oerr *order.Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, order.ErrMenuNotLoaded, oerr.Code)

	err = r.s.Cancel(ctx)
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, order.ErrNothingPending, oerr.Code)

	err = r.s.RemoveLine(ctx, "missing")
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, order.ErrLineNotFound, oerr.Code)
}

func TestDoAfterStopReturnsErrClosed(t *testing.T) {
	r := start(t, storage.NewMemory(), &fakeAPI{})
	r.stop()
	_, err := r.s.State(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
