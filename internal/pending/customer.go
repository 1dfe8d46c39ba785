package pending

import (
	"context"

	"public-order-engine/internal/order"
	"public-order-engine/internal/persist"
	"public-order-engine/internal/storage"
)

// CustomerStore remembers the customer identity per store when the customer
// asks for it.
type CustomerStore struct {
	rec persist.Record[order.Customer]
}

func NewCustomerStore(port storage.Port) *CustomerStore {
	return &CustomerStore{rec: persist.NewRecord[order.Customer](port, "customer")}
}

func (s *CustomerStore) Write(ctx context.Context, storeSlug string, c order.Customer) error {
	return s.rec.Write(ctx, storeSlug, c)
}

func (s *CustomerStore) Read(ctx context.Context, storeSlug string) (order.Customer, bool, error) {
	return s.rec.Read(ctx, storeSlug)
}

func (s *CustomerStore) Remove(ctx context.Context, storeSlug string) error {
	return s.rec.Remove(ctx, storeSlug)
}
