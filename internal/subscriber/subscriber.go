// Package subscriber is the client-side counterpart of the relay: it keeps
// one WebSocket subscription per run alive across disconnects and falls
// back to direct HTTP polling whenever the push channel is down, so the
// caller always has exactly one source of run updates.
package subscriber

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/claimwatch/claimwatch/internal/models"
)

// State of the push connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

const (
	// DefaultReconnectDelay is the fixed backoff between reconnect
	// attempts.
	DefaultReconnectDelay = 3 * time.Second
	// DefaultPollInterval is the fallback polling period while the push
	// channel is down.
	DefaultPollInterval = 2 * time.Second
)

// RunFetcher performs the direct status fetch used for fallback polling.
type RunFetcher interface {
	GetRun(ctx context.Context, runID string) (models.Run, error)
}

// UpdateFunc receives every run state delivered to the subscriber,
// regardless of which delivery path produced it.
type UpdateFunc func(run models.Run)

// Subscriber follows one run at a time. It is an explicit state machine:
// Disconnected -> Connecting -> Connected, back to Disconnected on any
// transport failure, with a fixed-delay reconnect while enabled. The
// fallback poller runs exactly when the push channel is not Connected and
// the run is not completed; demo runs never touch the push channel at all.
type Subscriber struct {
	WSURL          string
	Fetcher        RunFetcher
	OnUpdate       UpdateFunc
	ReconnectDelay time.Duration
	PollInterval   time.Duration
	Log            *zap.Logger

	mu        sync.Mutex
	state     State
	runID     string
	enabled   bool
	completed bool
	conn      *websocket.Conn
	reconnect *time.Timer
	pollStop  chan struct{}
	wg        sync.WaitGroup
}

func New(wsURL string, fetcher RunFetcher, onUpdate UpdateFunc, log *zap.Logger) *Subscriber {
	return &Subscriber{
		WSURL:          wsURL,
		Fetcher:        fetcher,
		OnUpdate:       onUpdate,
		ReconnectDelay: DefaultReconnectDelay,
		PollInterval:   DefaultPollInterval,
		Log:            log,
	}
}

// Follow starts delivering updates for runID. A previous run's
// subscription, reconnect timer, and fallback poller are torn down first.
func (s *Subscriber) Follow(runID string) {
	s.mu.Lock()
	if s.enabled && s.runID == runID {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	s.runID = runID
	s.enabled = true
	s.completed = false

	if models.IsDemoRunID(runID) {
		// Demo runs have no backend job; direct fetch is the only path.
		s.startFallbackLocked()
		s.mu.Unlock()
		return
	}
	s.startFallbackLocked()
	s.connectLocked()
	s.mu.Unlock()
}

// Close disables the subscription and releases every timer and connection.
// Safe to call more than once.
func (s *Subscriber) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// State reports the push-connection state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Polling reports whether the fallback poller is currently active.
func (s *Subscriber) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollStop != nil
}

func (s *Subscriber) teardownLocked() {
	s.enabled = false
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	s.stopFallbackLocked()
	if s.conn != nil {
		if s.state == StateConnected && s.runID != "" {
			msg, _ := json.Marshal(models.ControlMessage{Type: models.TypeUnsubscribe, RunID: s.runID})
			_ = s.conn.WriteMessage(websocket.TextMessage, msg)
		}
		_ = s.conn.Close()
		s.conn = nil
	}
	s.state = StateDisconnected
}

// connectLocked moves Disconnected -> Connecting and dials in the
// background so callers never block on the network.
func (s *Subscriber) connectLocked() {
	if !s.enabled || s.state != StateDisconnected {
		return
	}
	s.state = StateConnecting
	runID := s.runID
	s.wg.Add(1)
	go s.dial(runID)
}

func (s *Subscriber) dial(runID string) {
	defer s.wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(s.WSURL, nil)

	s.mu.Lock()
	if !s.enabled || s.runID != runID {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.Log.Debug("websocket dial failed", zap.String("run_id", runID), zap.Error(err))
		s.onDisconnectLocked()
		s.mu.Unlock()
		return
	}

	msg, _ := json.Marshal(models.ControlMessage{Type: models.TypeSubscribe, RunID: runID})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		conn.Close()
		s.onDisconnectLocked()
		s.mu.Unlock()
		return
	}

	s.conn = conn
	s.state = StateConnected
	s.stopFallbackLocked()
	s.Log.Debug("websocket connected", zap.String("run_id", runID))
	s.wg.Add(1)
	go s.readLoop(conn, runID)
	s.mu.Unlock()
}

func (s *Subscriber) readLoop(conn *websocket.Conn, runID string) {
	defer s.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg models.UpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Log.Warn("ignoring malformed update", zap.Error(err))
			continue
		}
		if msg.Type != models.TypeRunUpdate || msg.RunID != runID {
			continue
		}

		s.deliver(runID, msg.Data)

		s.mu.Lock()
		done := s.completed
		s.mu.Unlock()
		if done {
			return
		}
	}

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.onDisconnectLocked()
	}
	s.mu.Unlock()
}

// deliver hands one state to the caller and, on completion, shuts the
// whole subscription down: no more reconnects, no more polling.
func (s *Subscriber) deliver(runID string, run models.Run) {
	s.mu.Lock()
	if !s.enabled || s.runID != runID || s.completed {
		s.mu.Unlock()
		return
	}
	onUpdate := s.OnUpdate
	if run.Status == models.StatusCompleted {
		s.completed = true
		s.teardownLocked()
	}
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate(run)
	}
}

// onDisconnectLocked moves to Disconnected, revives the fallback poller,
// and arms the fixed-delay reconnect while the subscription stays enabled.
func (s *Subscriber) onDisconnectLocked() {
	s.state = StateDisconnected
	if !s.enabled || s.completed {
		return
	}
	s.startFallbackLocked()

	runID := s.runID
	if s.reconnect != nil {
		s.reconnect.Stop()
	}
	s.reconnect = time.AfterFunc(s.ReconnectDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.enabled || s.runID != runID {
			return
		}
		s.reconnect = nil
		s.connectLocked()
	})
}

// startFallbackLocked begins direct polling unless the push channel is
// already Connected or the poller is already running. Together with
// stopFallbackLocked on connect, this keeps exactly one delivery path
// active at any instant.
func (s *Subscriber) startFallbackLocked() {
	if s.pollStop != nil || s.state == StateConnected || s.completed {
		return
	}
	stop := make(chan struct{})
	s.pollStop = stop
	runID := s.runID
	s.wg.Add(1)
	go s.pollLoop(runID, stop)
}

func (s *Subscriber) stopFallbackLocked() {
	if s.pollStop != nil {
		close(s.pollStop)
		s.pollStop = nil
	}
}

func (s *Subscriber) pollLoop(runID string, stop chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.PollInterval)
			run, err := s.Fetcher.GetRun(ctx, runID)
			cancel()
			if err != nil {
				s.Log.Debug("fallback poll failed", zap.String("run_id", runID), zap.Error(err))
				continue
			}
			s.deliver(runID, run)
			select {
			case <-stop:
				return
			default:
			}
		}
	}
}
