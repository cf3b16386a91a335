// Package relay implements the run-update fan-out layer: a registry of
// WebSocket subscribers per run, a poll-and-diff engine over the
// verification service's pull-only API, and a broadcaster that pushes state
// changes to every subscriber without each client polling on its own.
package relay

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Relay owns the registry, broadcaster, and poller as one explicitly
// constructed unit. Multiple isolated instances can coexist, which the
// tests rely on; nothing lives at package scope.
type Relay struct {
	Registry    *Registry
	Broadcaster *Broadcaster
	Poller      *Poller
}

// Option adjusts relay timing, mainly for tests.
type Option func(*Poller)

func WithPollInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

func WithEvictDelay(d time.Duration) Option {
	return func(p *Poller) { p.evictDelay = d }
}

func New(fetcher RunFetcher, log *zap.Logger, opts ...Option) *Relay {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, log)
	poller := NewPoller(registry, broadcaster, fetcher, log)
	for _, opt := range opts {
		opt(poller)
	}
	return &Relay{
		Registry:    registry,
		Broadcaster: broadcaster,
		Poller:      poller,
	}
}

// Start begins background polling.
func (r *Relay) Start(ctx context.Context) {
	r.Poller.Start(ctx)
}

// Stop halts polling and cancels pending snapshot evictions. Idempotent.
func (r *Relay) Stop() {
	r.Poller.Stop()
	r.Registry.Close()
}
