package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"public-order-engine/internal/storage"
)

// Record is a typed, JSON-encoded value stored under "<kind>:<scope>". It is
// the write-before-network, read-on-boot pattern shared by the pending order
// and the remembered customer.
type Record[T any] struct {
	port storage.Port
	kind string
}

func NewRecord[T any](port storage.Port, kind string) Record[T] {
	return Record[T]{port: port, kind: kind}
}

func (r Record[T]) Key(scope string) string {
	return r.kind + ":" + scope
}

func (r Record[T]) Write(ctx context.Context, scope string, value T) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.kind, err)
	}
	if err := r.port.Put(ctx, r.Key(scope), body); err != nil {
		return fmt.Errorf("write %s: %w", r.Key(scope), err)
	}
	return nil
}

// Read returns ok=false when nothing is stored. A record that no longer
// decodes is deleted and reported as absent.
func (r Record[T]) Read(ctx context.Context, scope string) (value T, ok bool, err error) {
	body, err := r.port.Get(ctx, r.Key(scope))
	if errors.Is(err, storage.ErrNotFound) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("read %s: %w", r.Key(scope), err)
	}
	if err := json.Unmarshal(body, &value); err != nil {
		var zero T
		_ = r.port.Delete(ctx, r.Key(scope))
		return zero, false, nil
	}
	return value, true, nil
}

func (r Record[T]) Remove(ctx context.Context, scope string) error {
	if err := r.port.Delete(ctx, r.Key(scope)); err != nil {
		return fmt.Errorf("remove %s: %w", r.Key(scope), err)
	}
	return nil
}
