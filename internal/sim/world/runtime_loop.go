package world

import (
	"context"
	"time"
)

// Run owns every world mutation. Joins, leaves and actions are buffered as
// they arrive and drained in arrival order at the tick boundary; status
// requests are answered inline since they only read.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(w.cfg.TickMs) * time.Millisecond)
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []EntityID
	var pendingActions []ActionEnvelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case req := <-w.stateReq:
			req.Resp <- w.statusSnapshot()
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick with the same ordering
// semantics as the server loop. Intended for deterministic replays and tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []EntityID, actions []ActionEnvelope) (tick uint64, digest string) {
	w.step(joins, leaves, actions)
	tick = w.tick.Load()
	return tick, w.stateDigest(tick)
}

// sendLatest enqueues without blocking; when the client's buffer is full the
// oldest message is dropped. A slow client can never stall the tick loop.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
