package models

// Message types on the WebSocket wire.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeRunUpdate   = "run_update"
)

// ControlMessage is an inbound client frame: subscribe or unsubscribe to a
// run. Anything that doesn't parse into a known type is logged and ignored.
type ControlMessage struct {
	Type  string `json:"type"`
	RunID string `json:"runId"`
}

// UpdateMessage is the outbound envelope pushed to every subscriber of a
// run when its state changes.
type UpdateMessage struct {
	Type  string `json:"type"`
	RunID string `json:"runId"`
	Data  Run    `json:"data"`
}
