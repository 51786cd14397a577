package messages

import "encoding/json"

// ClientMessage is a text frame from the UI front end.
type ClientMessage struct {
	Type    string          `json:"type"` // "audio", "control"
	Payload json.RawMessage `json:"payload"`
}

// AudioPayload carries a capture chunk for clients that cannot send binary frames.
type AudioPayload struct {
	Data string `json:"data"` // Base64-encoded 16 kHz PCM
}

// ControlPayload carries a user action.
type ControlPayload struct {
	Action string `json:"action"` // "connect", "disconnect", "ping"
}

// TypeControl marks a UI control message. Audio uses TypeAudio.
const TypeControl = "control"

// Control actions
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
	ActionPing       = "ping"
)
