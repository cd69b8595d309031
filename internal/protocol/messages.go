package protocol

// ConnectionEstablishedMsg is sent once, immediately after a client's agent
// has been placed into the world.
type ConnectionEstablishedMsg struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id"`
	Message string `json:"message,omitempty"`
}

// CommandMsg (client -> server).
type CommandMsg struct {
	Action string        `json:"action"`
	Params CommandParams `json:"params"`
}

// CommandParams carries per-action parameters. Only move uses any today;
// harvest and craft send an empty object.
type CommandParams struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// ActionConfirmedMsg acknowledges a single applied command. Success=false is
// a normal policy outcome (blocked move, empty harvest, missing materials),
// not an error.
type ActionConfirmedMsg struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Success bool   `json:"success"`
}

// GameStateMsg is the per-client snapshot: the connection's own agent plus a
// shared world summary. Broadcast to every client after each tick.
type GameStateMsg struct {
	Type       string     `json:"type"`
	Tick       uint64     `json:"tick"`
	AgentState AgentState `json:"agent_state"`
	WorldInfo  WorldInfo  `json:"world_info"`
}

type AgentState struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	X         int            `json:"x"`
	Y         int            `json:"y"`
	Inventory map[string]int `json:"inventory"`
}

type WorldInfo struct {
	Dimensions     [2]int `json:"dimensions"`
	TotalEntities  int    `json:"total_entities"`
	TotalAgents    int    `json:"total_agents"`
	TotalResources int    `json:"total_resources"`
}

// ErrorMsg reports a protocol-level problem (malformed JSON, unknown action,
// unregistered sender) to the offending client only.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
