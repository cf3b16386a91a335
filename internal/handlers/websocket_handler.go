package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/claimwatch/claimwatch/internal/models"
	"github.com/claimwatch/claimwatch/internal/relay"
)

// WebSocketHandler is the server side of the persistent-connection
// protocol: it accepts connections, parses subscribe/unsubscribe control
// messages, and keeps the registry in sync with connection lifecycle.
type WebSocketHandler struct {
	Registry *relay.Registry
	Log      *zap.Logger
}

func NewWebSocketHandler(registry *relay.Registry, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{Registry: registry, Log: log}
}

func (h *WebSocketHandler) WebSocketMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleWebSocket runs the read loop for one connection. A new connection
// starts with no subscriptions; every subscription it gains is swept when
// the loop exits.
func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	defer func() {
		_ = c.Close()
	}()

	client := models.NewClient(c)
	h.Log.Debug("websocket connected", zap.String("client_id", client.Id.String()))

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			break
		}
		h.handleControlMessage(client, data)
	}

	h.Registry.OnDisconnect(client)
	h.Log.Debug("websocket disconnected", zap.String("client_id", client.Id.String()))
}

// handleControlMessage applies one inbound frame. Malformed payloads and
// unknown types are logged and ignored; they never close the connection.
func (h *WebSocketHandler) handleControlMessage(client *models.Client, data []byte) {
	var msg models.ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.Log.Warn("ignoring malformed control message", zap.Error(err))
		return
	}
	if msg.RunID == "" {
		h.Log.Warn("ignoring control message without runId", zap.String("type", msg.Type))
		return
	}

	switch msg.Type {
	case models.TypeSubscribe:
		if models.IsDemoRunID(msg.RunID) {
			// Demo runs are served entirely client-side; they never get a
			// live subscription.
			h.Log.Warn("ignoring subscribe to demo run", zap.String("run_id", msg.RunID))
			return
		}
		h.Registry.Subscribe(msg.RunID, client)
		h.Log.Info("subscribed",
			zap.String("run_id", msg.RunID),
			zap.String("client_id", client.Id.String()))
	case models.TypeUnsubscribe:
		h.Registry.Unsubscribe(msg.RunID, client)
		h.Log.Info("unsubscribed",
			zap.String("run_id", msg.RunID),
			zap.String("client_id", client.Id.String()))
	default:
		h.Log.Warn("ignoring unknown control message type", zap.String("type", msg.Type))
	}
}
