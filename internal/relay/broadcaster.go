package relay

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/claimwatch/claimwatch/internal/models"
)

// Broadcaster pushes run updates to every subscriber of a run. It knows
// nothing about run semantics; it serializes the envelope once and relays
// it to whatever connections the registry holds.
type Broadcaster struct {
	registry *Registry
	log      *zap.Logger
}

func NewBroadcaster(registry *Registry, log *zap.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: log}
}

// Broadcast sends run to every open subscriber of runID. Connections whose
// writes fail are skipped; the disconnect handler owns their cleanup.
func (b *Broadcaster) Broadcast(runID string, run models.Run) {
	clients := b.registry.Subscribers(runID)
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(models.UpdateMessage{
		Type:  models.TypeRunUpdate,
		RunID: runID,
		Data:  run,
	})
	if err != nil {
		b.log.Error("marshal run update", zap.String("run_id", runID), zap.Error(err))
		return
	}

	sent := 0
	for _, client := range clients {
		if client.Closed() {
			continue
		}
		if err := client.Send(payload); err != nil {
			b.log.Debug("drop broadcast to closed connection",
				zap.String("run_id", runID),
				zap.String("client_id", client.Id.String()))
			continue
		}
		sent++
	}
	b.log.Debug("broadcast run update",
		zap.String("run_id", runID),
		zap.String("status", run.Status),
		zap.Int("subscribers", sent))
}
