package protocol

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("test fixture is not valid JSON: %v", err)
	}
	return v
}

func TestValidateCommand_Accepts(t *testing.T) {
	cases := []string{
		`{"action": "move", "params": {"dx": 1, "dy": 0}}`,
		`{"action": "move", "params": {"dx": -1, "dy": -1}}`,
		`{"action": "harvest"}`,
		`{"action": "harvest", "params": {}}`,
		`{"action": "craft"}`,
	}
	for _, raw := range cases {
		if err := ValidateCommand(decode(t, raw)); err != nil {
			t.Errorf("%s: unexpected rejection: %v", raw, err)
		}
	}
}

func TestValidateCommand_Rejects(t *testing.T) {
	cases := []string{
		`{}`,
		`{"action": "fly"}`,
		`{"action": "move"}`,
		`{"action": "move", "params": {"dx": 1}}`,
		`{"action": "move", "params": {"dx": "east", "dy": 0}}`,
		`{"action": "move", "params": {"dx": 0.5, "dy": 0}}`,
		`{"action": 7}`,
	}
	for _, raw := range cases {
		if err := ValidateCommand(decode(t, raw)); err == nil {
			t.Errorf("%s: expected rejection", raw)
		}
	}
}

func TestIsUnknownAction(t *testing.T) {
	err := ValidateCommand(decode(t, `{"action": "fly"}`))
	if err == nil {
		t.Fatalf("fixture should fail validation")
	}
	if !IsUnknownAction(err) {
		t.Fatalf("enum failure should classify as unknown action: %v", err)
	}

	err = ValidateCommand(decode(t, `{"action": "move", "params": {"dx": "east", "dy": 0}}`))
	if err == nil {
		t.Fatalf("fixture should fail validation")
	}
	if IsUnknownAction(err) {
		t.Fatalf("a params failure is not an unknown action: %v", err)
	}
}

func TestMessageShapes(t *testing.T) {
	gs := GameStateMsg{
		Type: TypeGameState,
		Tick: 7,
		AgentState: AgentState{
			ID: "A000001", Name: "RemoteAgent_1", X: 3, Y: 2,
			Inventory: map[string]int{"ORE": 5},
		},
		WorldInfo: WorldInfo{Dimensions: [2]int{20, 20}, TotalEntities: 2, TotalAgents: 1, TotalResources: 1},
	}
	b, err := json.Marshal(gs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	v := decode(t, string(b)).(map[string]any)
	if v["type"] != TypeGameState {
		t.Fatalf("wire type: %v", v["type"])
	}
	agent := v["agent_state"].(map[string]any)
	if agent["id"] != "A000001" || agent["x"].(float64) != 3 {
		t.Fatalf("agent_state wire shape: %v", agent)
	}
	info := v["world_info"].(map[string]any)
	if len(info["dimensions"].([]any)) != 2 {
		t.Fatalf("world_info wire shape: %v", info)
	}

	// Move params keep the dx/dy wire names, and a zero component must still
	// be present on the wire or the schema rejects the move.
	cb, err := json.Marshal(CommandMsg{Action: ActionMove, Params: CommandParams{DX: 1, DY: 0}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := ValidateCommand(decode(t, string(cb))); err != nil {
		t.Fatalf("a marshaled command must satisfy the schema: %v", err)
	}
}
