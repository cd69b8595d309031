package world

import (
	"fmt"
	"sort"

	"proxiverse.dev/internal/protocol"
)

// applyCommand mutates the world for one queued client command and emits the
// action_confirmed acknowledgment to that connection. A false success is a
// normal policy outcome; only an unrecognized action is a protocol error.
func (w *World) applyCommand(agent *Entity, cl *clientState, cmd protocol.CommandMsg) {
	var success bool
	switch cmd.Action {
	case protocol.ActionMove:
		success = w.moveAgent(agent, cmd.Params.DX, cmd.Params.DY)
	case protocol.ActionHarvest:
		success = w.harvest(agent)
	case protocol.ActionCraft:
		success = w.economy.CraftComponent(agent.Agent)
	default:
		// The transport validates commands before enqueueing, so this is a
		// second line of defense.
		w.send(cl, protocol.ErrorMsg{Type: protocol.TypeError, Message: fmt.Sprintf("Unknown action: %s", cmd.Action)})
		return
	}
	w.send(cl, protocol.ActionConfirmedMsg{Type: protocol.TypeActionConfirmed, Action: cmd.Action, Success: success})
}

// moveAgent relocates by (dx,dy). Blocked when the target is out of bounds
// or holds another agent; resources are walked over, never displaced. This
// is the caller-level occupancy policy the Grid itself stays agnostic of.
func (w *World) moveAgent(agent *Entity, dx, dy int) bool {
	target := Position{X: agent.Pos.X + dx, Y: agent.Pos.Y + dy}
	if !w.grid.InBounds(target) {
		return false
	}
	if occupant, ok := w.grid.AgentAt(target); ok && occupant.ID != agent.ID {
		return false
	}
	return w.grid.MoveEntity(agent.ID, target)
}

// harvest takes up to the per-action cap from one resource at the agent's
// cell, crediting the inventory. When several resources share the cell the
// one with the lowest id is chosen; cell slice order is not stable under
// swap-and-pop, the id order is. A depleted resource leaves the world.
func (w *World) harvest(agent *Entity) bool {
	var target *Entity
	for _, e := range w.grid.EntitiesAt(agent.Pos) {
		if e.Kind != KindResource {
			continue
		}
		if target == nil || e.ID < target.ID {
			target = e
		}
	}
	if target == nil {
		return false
	}
	taken := target.Resource.Harvest(w.cfg.HarvestPerAction)
	if taken > 0 {
		agent.Agent.Inventory.Add(target.Resource.Kind, taken)
	}
	if target.Resource.Depleted() {
		w.grid.RemoveEntity(target.ID)
	}
	return taken > 0
}

// ResourcesAt lists the resource stacks at a position, lowest id first.
// Used by tests and the replay inspector.
func (w *World) ResourcesAt(pos Position) []*Entity {
	var out []*Entity
	for _, e := range w.grid.EntitiesAt(pos) {
		if e.Kind == KindResource {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
