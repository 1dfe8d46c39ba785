package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	EventOrderSubmitted = "order.submitted"
	EventOrderRetrying  = "order.retry_scheduled"
	EventOrderAccepted  = "order.accepted"
	EventOrderRejected  = "order.rejected"
	EventOrderAbandoned = "order.abandoned"
	EventMenuApplied    = "menu.applied"

	defaultBuffer  = 64
	publishTimeout = 5 * time.Second
)

// Event is a lifecycle notification for downstream consumers such as a
// kitchen display or analytics.
type Event struct {
	Type          string    `json:"type"`
	StoreSlug     string    `json:"storeSlug"`
	ClientOrderID string    `json:"clientOrderId,omitempty"`
	OrderID       string    `json:"orderId,omitempty"`
	State         string    `json:"state,omitempty"`
	Attempts      int       `json:"attempts,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// RoutingKey is "<store>.<type>", e.g. "pizzaria.order.accepted".
func (e Event) RoutingKey() string {
	return e.StoreSlug + "." + e.Type
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error
}

// Publisher forwards events to the broker from its own goroutine so callers
// never wait on the network. Events are dropped when the buffer is full.
type Publisher struct {
	client   jsonPublisher
	exchange string
	log      *zap.Logger
	events   chan Event
}

func NewPublisher(client jsonPublisher, exchange string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		client:   client,
		exchange: exchange,
		log:      log.Named("events"),
		events:   make(chan Event, defaultBuffer),
	}
}

func (p *Publisher) Publish(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case p.events <- ev:
	default:
		p.log.Warn("event buffer full, dropping event", zap.String("type", ev.Type))
	}
}

// Run publishes buffered events until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := p.client.PublishJSON(pubCtx, p.exchange, ev.RoutingKey(), ev)
			cancel()
			if err != nil {
				p.log.Warn("publish event failed",
					zap.String("type", ev.Type),
					zap.String("routingKey", ev.RoutingKey()),
					zap.Error(err),
				)
			}
		}
	}
}
