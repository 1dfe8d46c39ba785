package netwatch

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultInterval = 5 * time.Second

// Prober reports whether the upstream is reachable.
type Prober func(ctx context.Context) error

// TCPProbe dials address and closes the connection straight away.
func TCPProbe(address string, timeout time.Duration) Prober {
	dialer := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context) error {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// AddressFromURL turns an upstream base URL into a host:port to probe.
func AddressFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Watcher polls a Prober and reports offline to online transitions.
type Watcher struct {
	probe    Prober
	interval time.Duration
	log      *zap.Logger
	online   atomic.Bool
}

func New(probe Prober, interval time.Duration, log *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{probe: probe, interval: interval, log: log.Named("netwatch")}
	w.online.Store(true)
	return w
}

func (w *Watcher) Online() bool {
	return w.online.Load()
}

// Run probes until ctx is done, calling onOnline each time the upstream
// becomes reachable again.
func (w *Watcher) Run(ctx context.Context, onOnline func()) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.check(ctx, onOnline)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) check(ctx context.Context, onOnline func()) {
	probeCtx, cancel := context.WithTimeout(ctx, w.interval)
	err := w.probe(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		if w.online.Swap(false) {
			w.log.Warn("upstream unreachable", zap.Error(err))
		}
		return
	}
	if !w.online.Swap(true) {
		w.log.Info("upstream reachable again")
		onOnline()
	}
}
