package notifications

import (
	"context"
	"log/slog"
	"time"
)

type ProtectedNotifierConfig struct {
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	HalfOpenMaxCalls int
	Logger           *slog.Logger
}

// ProtectedNotifier bounds each publish with a timeout and stops calling a
// broker that keeps failing. While the circuit is open NotifyUserEvent
// returns ErrCircuitOpen without touching the inner notifier, which makes
// the notify job retry later with backoff.
type ProtectedNotifier struct {
	inner   Notifier
	timeout time.Duration
	breaker *breaker
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	b := newBreaker(cfg.FailureThreshold, cfg.Cooldown, cfg.HalfOpenMaxCalls)
	if log := cfg.Logger; log != nil {
		b.onChange = func(from, to breakerState) {
			log.Warn("notifier circuit state changed", "from", string(from), "to", string(to))
		}
	}

	return &ProtectedNotifier{inner: inner, timeout: cfg.Timeout, breaker: b}
}

func (n *ProtectedNotifier) NotifyUserEvent(ctx context.Context, ev UserEvent) error {
	if !n.breaker.admit() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := n.inner.NotifyUserEvent(sendCtx, ev)
	n.breaker.record(err)
	return err
}

// State is closed, open or half_open.
func (n *ProtectedNotifier) State() string {
	return string(n.breaker.current())
}
