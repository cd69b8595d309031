package world

import "time"

// step is one complete tick: leaves, joins, the action drain, the tick
// advance, economic policy, then the broadcast. Every action is applied
// exactly once, strictly before the tick advances, so the broadcast always
// shows a consistent post-action, post-tick world.
func (w *World) step(joins []JoinRequest, leaves []EntityID, actions []ActionEnvelope) {
	stepStart := time.Now()

	recordedLeaves := make([]EntityID, 0, len(leaves))
	for _, id := range leaves {
		if w.handleLeave(id) {
			recordedLeaves = append(recordedLeaves, id)
		}
	}

	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		if rec, ok := w.handleJoin(req); ok {
			recordedJoins = append(recordedJoins, rec)
		}
	}

	// Drain actions in arrival order. Each ack goes out before this tick's
	// broadcast on the same per-connection channel, so clients observe
	// action_confirmed followed by game_state.
	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		cl := w.clients[env.AgentID]
		agent, ok := w.grid.Entity(env.AgentID)
		if !ok || agent.Kind != KindAgent {
			// The agent left earlier this drain; the session is gone too, so
			// there is nobody to notify.
			continue
		}
		recorded = append(recorded, RecordedAction{AgentID: env.AgentID, Cmd: env.Cmd})
		w.applyCommand(agent, cl, env.Cmd)
	}

	newTick := w.tick.Add(1)

	// Economic policy. ShouldSpawnThisTick is the per-tick counter side
	// effect and must run exactly once here.
	if w.economy.ShouldSpawnThisTick() {
		spawned := w.economy.SpawnResources(w.grid)
		if len(spawned) > 0 && w.logger != nil {
			w.logger.Printf("tick %d: spawned %d resources", newTick, len(spawned))
		}
	}

	// Broadcast the post-tick snapshot to every connected client,
	// personalized with that connection's agent.
	for id, cl := range w.clients {
		agent, ok := w.grid.Entity(id)
		if !ok {
			continue
		}
		w.send(cl, w.buildGameState(newTick, agent))
	}

	digest := w.stateDigest(newTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:    newTick,
			Joins:   recordedJoins,
			Leaves:  recordedLeaves,
			Actions: recorded,
			Digest:  digest,
		})
	}

	w.metrics.Store(WorldMetrics{
		Tick:      newTick,
		Agents:    w.grid.CountByKind(KindAgent),
		Resources: w.grid.CountByKind(KindResource),
		Clients:   len(w.clients),
		Queues: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS: float64(time.Since(stepStart).Microseconds()) / 1000.0,
	})
}
