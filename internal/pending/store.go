package pending

import (
	"context"
	"time"

	"public-order-engine/internal/order"
	"public-order-engine/internal/persist"
	"public-order-engine/internal/storage"
)

// Order is an in-flight submission kept until the server confirms it, the
// server rejects it, or the customer cancels it.
type Order struct {
	ClientOrderID string        `json:"clientOrderId"`
	Payload       order.Payload `json:"payload"`
	CreatedAt     time.Time     `json:"createdAt"`
	Attempts      int           `json:"attempts"`
	StoreSlug     string        `json:"storeSlug"`
}

func (o Order) Elapsed(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// Store holds at most one pending order per store slug. Expiry is decided by
// the submission controller, not here.
type Store struct {
	rec persist.Record[Order]
}

func NewStore(port storage.Port) *Store {
	return &Store{rec: persist.NewRecord[Order](port, "pending-order")}
}

func (s *Store) Write(ctx context.Context, o Order) error {
	return s.rec.Write(ctx, o.StoreSlug, o)
}

func (s *Store) Read(ctx context.Context, storeSlug string) (Order, bool, error) {
	o, ok, err := s.rec.Read(ctx, storeSlug)
	if err != nil || !ok {
		return Order{}, false, err
	}
	if o.StoreSlug == "" {
		o.StoreSlug = storeSlug
	}
	return o, true, nil
}

func (s *Store) Remove(ctx context.Context, storeSlug string) error {
	return s.rec.Remove(ctx, storeSlug)
}
