package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type published struct {
	exchange string
	key      string
	payload  any
}

type fakeBroker struct {
	mu   sync.Mutex
	got  []published
	fail bool
}

func (b *fakeBroker) PublishJSON(_ context.Context, exchange, key string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("channel closed")
	}
	b.got = append(b.got, published{exchange: exchange, key: key, payload: payload})
	return nil
}

func (b *fakeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublisherRoutesByStoreAndType(t *testing.T) {
	broker := &fakeBroker{}
	p := NewPublisher(broker, "ordering.events", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Publish(Event{Type: EventOrderAccepted, StoreSlug: "pizzaria", ClientOrderID: "c-1", OrderID: "991"})
	waitFor(t, func() bool { return broker.count() == 1 })

	broker.mu.Lock()
	got := broker.got[0]
	broker.mu.Unlock()
	if got.exchange != "ordering.events" {
		t.Fatalf("unexpected exchange %s", got.exchange)
	}
	if got.key != "pizzaria.order.accepted" {
		t.Fatalf("unexpected routing key %s", got.key)
	}
	ev, ok := got.payload.(Event)
	if !ok {
		t.Fatalf("unexpected payload %T", got.payload)
	}
	if ev.OccurredAt.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestPublisherKeepsRunningAfterFailure(t *testing.T) {
	broker := &fakeBroker{fail: true}
	p := NewPublisher(broker, "x", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Publish(Event{Type: EventOrderSubmitted, StoreSlug: "s"})
	waitFor(t, func() bool { return len(p.events) == 0 })

	broker.mu.Lock()
	broker.fail = false
	broker.mu.Unlock()

	p.Publish(Event{Type: EventOrderSubmitted, StoreSlug: "s"})
	waitFor(t, func() bool { return broker.count() >= 1 })
}

func TestPublishNeverBlocks(t *testing.T) {
	p := NewPublisher(&fakeBroker{}, "x", nil)
	for i := 0; i < defaultBuffer*2; i++ {
		p.Publish(Event{Type: EventMenuApplied, StoreSlug: "s"})
	}
	if len(p.events) != defaultBuffer {
		t.Fatalf("expected buffer to cap at %d, got %d", defaultBuffer, len(p.events))
	}
}
