package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/claimwatch/claimwatch/internal/models"
)

type fakeConn struct {
	frames [][]byte
	fail   bool
}

func (f *fakeConn) WriteMessage(mt int, data []byte) error {
	if f.fail {
		return assert.AnError
	}
	f.frames = append(f.frames, data)
	return nil
}

func newTestClient() (*models.Client, *fakeConn) {
	conn := &fakeConn{}
	return models.NewClient(conn), conn
}

func TestSubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry()
	client, _ := newTestClient()

	r.Subscribe("run_abc", client)
	r.Subscribe("run_abc", client)

	assert.Equal(t, 1, r.SubscriberCount("run_abc"))
	assert.Len(t, r.Subscribers("run_abc"), 1)
}

func TestUnsubscribeCleansUpEmptyRun(t *testing.T) {
	r := NewRegistry()
	client, _ := newTestClient()

	r.Subscribe("run_abc", client)
	r.SetSnapshot("run_abc", models.Run{RunID: "run_abc", Status: models.StatusInProgress})
	r.Unsubscribe("run_abc", client)

	assert.Empty(t, r.ActiveRunIDs())
	_, ok := r.Snapshot("run_abc")
	assert.False(t, ok)
}

func TestUnsubscribeKeepsRunWithRemainingSubscribers(t *testing.T) {
	r := NewRegistry()
	a, _ := newTestClient()
	b, _ := newTestClient()

	r.Subscribe("run_abc", a)
	r.Subscribe("run_abc", b)
	r.SetSnapshot("run_abc", models.Run{RunID: "run_abc"})
	r.Unsubscribe("run_abc", a)

	assert.Equal(t, 1, r.SubscriberCount("run_abc"))
	_, ok := r.Snapshot("run_abc")
	assert.True(t, ok)
}

func TestOnDisconnectSweepsAllRuns(t *testing.T) {
	r := NewRegistry()
	client, _ := newTestClient()
	other, _ := newTestClient()

	r.Subscribe("run_a", client)
	r.Subscribe("run_b", client)
	r.Subscribe("run_b", other)

	r.OnDisconnect(client)

	assert.ElementsMatch(t, []string{"run_b"}, r.ActiveRunIDs())
	assert.Equal(t, 1, r.SubscriberCount("run_b"))
	assert.Equal(t, 0, r.SubscriberCount("run_a"))
}

func TestUnsubscribeUnknownRunIsNoOp(t *testing.T) {
	r := NewRegistry()
	client, _ := newTestClient()
	r.Unsubscribe("run_missing", client)
	assert.Empty(t, r.ActiveRunIDs())
}

func TestScheduledEvictionDropsSnapshot(t *testing.T) {
	r := NewRegistry()
	client, _ := newTestClient()
	r.Subscribe("run_abc", client)
	r.SetSnapshot("run_abc", models.Run{RunID: "run_abc", Status: models.StatusCompleted})

	r.ScheduleEviction("run_abc", 20*time.Millisecond)

	// Subscriber stays connected; the snapshot still goes away.
	assert.Eventually(t, func() bool {
		_, ok := r.Snapshot("run_abc")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, r.SubscriberCount("run_abc"))
}

func TestSetSnapshotCancelsPendingEviction(t *testing.T) {
	r := NewRegistry()
	client, _ := newTestClient()
	r.Subscribe("run_abc", client)
	r.SetSnapshot("run_abc", models.Run{RunID: "run_abc", Status: models.StatusCompleted})
	r.ScheduleEviction("run_abc", 20*time.Millisecond)

	// The run changed again before the eviction fired.
	r.SetSnapshot("run_abc", models.Run{RunID: "run_abc", Status: models.StatusInProgress})

	time.Sleep(50 * time.Millisecond)
	_, ok := r.Snapshot("run_abc")
	assert.True(t, ok)
}
