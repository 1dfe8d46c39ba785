package session

import (
	"context"
	"time"

	"public-order-engine/internal/pending"
	"public-order-engine/internal/submit"
)

// loopSender runs each attempt on its own goroutine and hands the outcome
// back to the loop.
type loopSender struct {
	s *Session
}

func (l loopSender) Send(o pending.Order, done func(submit.Outcome)) func() {
	ctx, cancel := context.WithCancel(l.s.runCtx)
	go func() {
		defer cancel()
		created, err := l.s.api.CreateOrder(ctx, l.s.slug, o.Payload)
		out := submit.Classify(created, err)
		l.s.post(func() { done(out) })
	}()
	return cancel
}

type loopScheduler struct {
	s *Session
}

func (l loopScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { l.s.post(fn) })
	return func() { t.Stop() }
}
