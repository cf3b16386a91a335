package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/claimwatch/claimwatch/internal/models"
)

const (
	// DefaultPollInterval is how often watched runs are fetched from the
	// verification service.
	DefaultPollInterval = 2 * time.Second
	// DefaultEvictDelay is how long a completed run's snapshot is kept
	// after its final broadcast.
	DefaultEvictDelay = 5 * time.Second
)

// RunFetcher is the pull-only interface of the verification service, as the
// poller consumes it.
type RunFetcher interface {
	GetRun(ctx context.Context, runID string) (models.Run, error)
}

// Poller bridges the verifier's pull-only API to the push model: one global
// timer fetches every watched run, diffs against the cached snapshot, and
// broadcasts only on meaningful change.
type Poller struct {
	registry    *Registry
	broadcaster *Broadcaster
	fetcher     RunFetcher
	interval    time.Duration
	evictDelay  time.Duration
	log         *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(registry *Registry, broadcaster *Broadcaster, fetcher RunFetcher, log *zap.Logger) *Poller {
	return &Poller{
		registry:    registry,
		broadcaster: broadcaster,
		fetcher:     fetcher,
		interval:    DefaultPollInterval,
		evictDelay:  DefaultEvictDelay,
		log:         log,
	}
}

// Start launches the poll loop. Calling Start while running is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	p.log.Info("poller started", zap.Duration("interval", p.interval))
}

// Stop halts the poll loop and waits for the in-flight tick to finish.
// Stopping a poller that isn't running is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.log.Info("poller stopped")
}

// loop runs one tick per interval. A tick completes before the next timer
// fire is processed, so broadcasts for one run are strictly ordered.
func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce fetches every active run concurrently. Each fetch carries its
// own error handling, so one unreachable run never starves the others.
func (p *Poller) pollOnce(ctx context.Context) {
	runIDs := p.registry.ActiveRunIDs()
	if len(runIDs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, runID := range runIDs {
		if models.IsDemoRunID(runID) {
			continue
		}
		wg.Add(1)
		go func(runID string) {
			defer wg.Done()
			p.pollRun(ctx, runID)
		}(runID)
	}
	wg.Wait()
}

func (p *Poller) pollRun(ctx context.Context, runID string) {
	run, err := p.fetcher.GetRun(ctx, runID)
	if err != nil {
		// No new information this tick; the next tick retries.
		p.log.Debug("poll fetch failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	run.RunID = runID

	prev, ok := p.registry.Snapshot(runID)
	if ok && !prev.Changed(run) {
		return
	}

	p.registry.SetSnapshot(runID, run.Clone())
	p.broadcaster.Broadcast(runID, run.Clone())

	if run.Status == models.StatusCompleted {
		p.registry.ScheduleEviction(runID, p.evictDelay)
	}
}
