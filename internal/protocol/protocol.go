package protocol

import "encoding/json"

// Message types (server -> client).
const (
	TypeConnectionEstablished = "connection_established"
	TypeActionConfirmed       = "action_confirmed"
	TypeGameState             = "game_state"
	TypeError                 = "error"
)

// Action names (client -> server).
const (
	ActionMove    = "move"
	ActionHarvest = "harvest"
	ActionCraft   = "craft"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
