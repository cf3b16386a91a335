package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claimwatch/claimwatch/internal/models"
)

// Registry maps run IDs to the clients subscribed to them, and caches the
// last state broadcast for each run so the poller can suppress redundant
// broadcasts. Entirely in-memory, single process.
type Registry struct {
	mu          sync.Mutex
	subscribers map[string]map[uuid.UUID]*models.Client
	snapshots   map[string]models.Run
	evictions   map[string]*time.Timer
}

func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[string]map[uuid.UUID]*models.Client),
		snapshots:   make(map[string]models.Run),
		evictions:   make(map[string]*time.Timer),
	}
}

// Subscribe adds client to the subscriber set for runID, creating the set
// if absent. Subscribing the same client twice is a no-op.
func (r *Registry) Subscribe(runID string, client *models.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subscribers[runID]
	if !ok {
		set = make(map[uuid.UUID]*models.Client)
		r.subscribers[runID] = set
	}
	set[client.Id] = client
}

// Unsubscribe removes client from runID's set. When the set empties, the
// set and the cached snapshot are both dropped.
func (r *Registry) Unsubscribe(runID string, client *models.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(runID, client)
}

// OnDisconnect sweeps client out of every subscription it belongs to.
func (r *Registry) OnDisconnect(client *models.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for runID := range r.subscribers {
		r.removeLocked(runID, client)
	}
}

func (r *Registry) removeLocked(runID string, client *models.Client) {
	set, ok := r.subscribers[runID]
	if !ok {
		return
	}
	delete(set, client.Id)
	if len(set) == 0 {
		delete(r.subscribers, runID)
		r.dropSnapshotLocked(runID)
	}
}

// ActiveRunIDs returns every run that currently has at least one
// subscriber. The poll loop uses it to avoid fetching runs nobody watches.
func (r *Registry) ActiveRunIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.subscribers))
	for runID := range r.subscribers {
		ids = append(ids, runID)
	}
	return ids
}

func (r *Registry) SubscriberCount(runID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers[runID])
}

// Subscribers returns the current members of runID's set as a slice copy,
// safe to iterate while other goroutines subscribe and unsubscribe.
func (r *Registry) Subscribers(runID string) []*models.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subscribers[runID]
	out := make([]*models.Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// Snapshot returns the last-broadcast state for runID, if any.
func (r *Registry) Snapshot(runID string) (models.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.snapshots[runID]
	return run, ok
}

// SetSnapshot records run as the state all current subscribers have seen.
// A pending eviction for runID is cancelled; a fresh snapshot means the run
// changed again after completion was observed.
func (r *Registry) SetSnapshot(runID string, run models.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.evictions[runID]; ok {
		t.Stop()
		delete(r.evictions, runID)
	}
	r.snapshots[runID] = run
}

// ScheduleEviction drops runID's snapshot after delay regardless of whether
// subscribers remain, bounding memory for completed runs whose clients
// linger. Rescheduling replaces the pending timer.
func (r *Registry) ScheduleEviction(runID string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.evictions[runID]; ok {
		t.Stop()
	}
	r.evictions[runID] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.snapshots, runID)
		delete(r.evictions, runID)
	})
}

func (r *Registry) dropSnapshotLocked(runID string) {
	if t, ok := r.evictions[runID]; ok {
		t.Stop()
		delete(r.evictions, runID)
	}
	delete(r.snapshots, runID)
}

// Close cancels any pending eviction timers. Called on relay shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for runID, t := range r.evictions {
		t.Stop()
		delete(r.evictions, runID)
	}
}
