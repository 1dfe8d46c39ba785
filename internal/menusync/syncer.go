package menusync

import (
	"context"
	"io"
	"time"

	"public-order-engine/internal/menu"

	"go.uber.org/zap"
)

const (
	EventMenuUpdated      = "menu_updated"
	DefaultReconnectDelay = 3 * time.Second
)

// Source is the upstream menu API.
type Source interface {
	FetchMenu(ctx context.Context, slug string) (menu.Snapshot, error)
	OpenMenuStream(ctx context.Context, slug string) (io.ReadCloser, error)
}

// Syncer keeps a store's menu fresh: one fetch on start, one per
// menu_updated event and one after every reconnect. Fetches never overlap.
type Syncer struct {
	src   Source
	slug  string
	delay time.Duration
	log   *zap.Logger
}

func New(src Source, slug string, reconnectDelay time.Duration, log *zap.Logger) *Syncer {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{
		src:   src,
		slug:  slug,
		delay: reconnectDelay,
		log:   log.Named("menusync").With(zap.String("store", slug)),
	}
}

// Run blocks until ctx is done. apply receives every fetched snapshot and is
// expected to hand it to the session loop.
func (s *Syncer) Run(ctx context.Context, apply func(menu.Snapshot)) error {
	for {
		s.refresh(ctx, apply)

		err := s.follow(ctx, apply)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = io.EOF
		}
		s.log.Warn("menu stream lost, reconnecting", zap.Error(err), zap.Duration("delay", s.delay))

		t := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Refresh fetches the menu once and applies it.
func (s *Syncer) Refresh(ctx context.Context, apply func(menu.Snapshot)) error {
	snap, err := s.src.FetchMenu(ctx, s.slug)
	if err != nil {
		return err
	}
	apply(snap)
	return nil
}

func (s *Syncer) refresh(ctx context.Context, apply func(menu.Snapshot)) {
	if err := s.Refresh(ctx, apply); err != nil && ctx.Err() == nil {
		s.log.Warn("menu fetch failed", zap.Error(err))
	}
}

func (s *Syncer) follow(ctx context.Context, apply func(menu.Snapshot)) error {
	body, err := s.src.OpenMenuStream(ctx, s.slug)
	if err != nil {
		return err
	}
	defer body.Close()
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	s.log.Info("menu stream connected")
	return readEvents(body, func(ev Event) {
		if ev.Name != EventMenuUpdated {
			return
		}
		s.log.Debug("menu updated upstream", zap.String("eventId", ev.ID))
		s.refresh(ctx, apply)
	})
}
