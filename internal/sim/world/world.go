package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync/atomic"

	"proxiverse.dev/internal/protocol"
)

type Config struct {
	Width  int
	Height int

	TickMs int

	SpawnEveryTicks  int
	MaxResources     int
	SpawnQuantityMin int
	SpawnQuantityMax int

	HarvestPerAction int

	CraftOreCost  int
	CraftFuelCost int
	CraftYield    int

	Seed int64
}

// JoinRequest registers a new connection. The world creates an agent, binds
// it to Out, and answers on Resp at the next tick boundary.
type JoinRequest struct {
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	AgentID EntityID
	Name    string
	Err     string
}

// ActionEnvelope is one queued client command, tagged with the session's
// agent identity by the transport.
type ActionEnvelope struct {
	AgentID EntityID
	Cmd     protocol.CommandMsg
}

// StatusRequest is answered inside the world loop, giving read-only surfaces
// a consistent snapshot without touching shared state.
type StatusRequest struct {
	Resp chan StatusSnapshot
}

type StatusSnapshot struct {
	Tick      uint64 `json:"tick"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Entities  int    `json:"entities"`
	Agents    int    `json:"agents"`
	Resources int    `json:"resources"`
	Clients   int    `json:"clients"`
}

type RecordedJoin struct {
	AgentID EntityID `json:"agent_id"`
	Name    string   `json:"name"`
}

type RecordedAction struct {
	AgentID EntityID            `json:"agent_id"`
	Cmd     protocol.CommandMsg `json:"cmd"`
}

// TickLogEntry is one journal line per tick: everything needed to replay the
// tick deterministically, plus the post-tick state digest.
type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []EntityID       `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Digest  string           `json:"digest"`
}

// AuditEntry is an operator-facing diagnostic record: lifecycle events,
// rejected joins, and invariant violations.
type AuditEntry struct {
	Tick   uint64   `json:"tick"`
	Actor  string   `json:"actor,omitempty"`
	Event  string   `json:"event"` // "JOIN", "LEAVE", "JOIN_REJECTED", "INVARIANT"
	Pos    [2]int   `json:"pos,omitempty"`
	Detail string   `json:"detail,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

type WorldMetrics struct {
	Tick      uint64      `json:"tick"`
	Agents    int         `json:"agents"`
	Resources int         `json:"resources"`
	Clients   int         `json:"clients"`
	Queues    QueueDepths `json:"queue_depths"`
	StepMS    float64     `json:"step_ms"`
}

type clientState struct {
	Out chan []byte
}

// World is the single-threaded authoritative simulation. All state below is
// owned by the Run goroutine; the only outside access points are the
// channels and the atomically published tick/metrics.
type World struct {
	cfg     Config
	logger  *log.Logger
	grid    *Grid
	economy *Economy

	tick atomic.Uint64

	clients map[EntityID]*clientState

	inbox    chan ActionEnvelope
	join     chan JoinRequest
	leave    chan EntityID
	stateReq chan StatusRequest
	stop     chan struct{}

	nextAgentNum    atomic.Uint64
	nextResourceNum atomic.Uint64

	// Optional journals (may be nil).
	tickLogger  TickLogger
	auditLogger AuditLogger

	metrics atomic.Value // WorldMetrics
}

func New(cfg Config, logger *log.Logger) (*World, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("world dimensions must be positive, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.TickMs <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %dms", cfg.TickMs)
	}
	w := &World{
		cfg:      cfg,
		logger:   logger,
		grid:     NewGrid(cfg.Width, cfg.Height),
		clients:  map[EntityID]*clientState{},
		inbox:    make(chan ActionEnvelope, 256),
		join:     make(chan JoinRequest, 16),
		leave:    make(chan EntityID, 16),
		stateReq: make(chan StatusRequest, 4),
		stop:     make(chan struct{}),
	}
	w.grid.SetFaultHook(func(err error) {
		w.audit(AuditEntry{Tick: w.tick.Load(), Event: "INVARIANT", Detail: err.Error()})
		if logger != nil {
			logger.Printf("INVARIANT VIOLATION: %v", err)
		}
	})
	rng := rand.New(rand.NewSource(cfg.Seed))
	w.economy = NewEconomy(EconomyConfig{
		SpawnEveryTicks:  cfg.SpawnEveryTicks,
		MaxResources:     cfg.MaxResources,
		SpawnQuantityMin: cfg.SpawnQuantityMin,
		SpawnQuantityMax: cfg.SpawnQuantityMax,
		CraftOreCost:     cfg.CraftOreCost,
		CraftFuelCost:    cfg.CraftFuelCost,
		CraftYield:       cfg.CraftYield,
	}, rng, w.newResourceID)
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- EntityID       { return w.leave }
func (w *World) Status() chan<- StatusRequest { return w.stateReq }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Metrics() WorldMetrics { return w.metrics.Load().(WorldMetrics) }

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) newAgentID() EntityID {
	return EntityID(fmt.Sprintf("A%06d", w.nextAgentNum.Add(1)))
}

func (w *World) newResourceID() EntityID {
	return EntityID(fmt.Sprintf("R%06d", w.nextResourceNum.Add(1)))
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger != nil {
		_ = w.auditLogger.WriteAudit(e)
	}
}

// spawnPosition finds the cell for a joining agent: the grid center, or the
// first agent-free in-bounds cell scanning Chebyshev rings outward from it.
// Returns false when every cell already holds an agent.
func (w *World) spawnPosition() (Position, bool) {
	center := Position{X: w.cfg.Width / 2, Y: w.cfg.Height / 2}
	if _, occupied := w.grid.AgentAt(center); !occupied {
		return center, true
	}
	maxRadius := w.cfg.Width
	if w.cfg.Height > maxRadius {
		maxRadius = w.cfg.Height
	}
	for radius := 1; radius <= maxRadius; radius++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if max(abs(dx), abs(dy)) != radius {
					continue
				}
				pos := Position{X: center.X + dx, Y: center.Y + dy}
				if !w.grid.InBounds(pos) {
					continue
				}
				if _, occupied := w.grid.AgentAt(pos); !occupied {
					return pos, true
				}
			}
		}
	}
	return Position{}, false
}

func (w *World) handleJoin(req JoinRequest) (RecordedJoin, bool) {
	pos, ok := w.spawnPosition()
	if !ok {
		w.audit(AuditEntry{Tick: w.tick.Load(), Event: "JOIN_REJECTED", Detail: "no agent-free cell"})
		if req.Resp != nil {
			req.Resp <- JoinResponse{Err: "world is full"}
		}
		return RecordedJoin{}, false
	}
	id := w.newAgentID()
	name := fmt.Sprintf("RemoteAgent_%d", w.nextAgentNum.Load())
	agent := NewAgent(id, name)
	if !w.grid.AddEntity(agent, pos) {
		if req.Resp != nil {
			req.Resp <- JoinResponse{Err: "spawn failed"}
		}
		return RecordedJoin{}, false
	}
	w.clients[id] = &clientState{Out: req.Out}
	w.audit(AuditEntry{Tick: w.tick.Load(), Actor: string(id), Event: "JOIN", Pos: [2]int{pos.X, pos.Y}})
	if w.logger != nil {
		w.logger.Printf("client connected: %s (%s) at (%d,%d)", name, id, pos.X, pos.Y)
	}
	if req.Resp != nil {
		req.Resp <- JoinResponse{AgentID: id, Name: name}
	}
	return RecordedJoin{AgentID: id, Name: name}, true
}

// handleLeave removes the agent and its connection state. Safe to call for
// ids that already left; the second call is a no-op.
func (w *World) handleLeave(id EntityID) bool {
	e, ok := w.grid.Entity(id)
	if !ok || e.Kind != KindAgent {
		delete(w.clients, id)
		return false
	}
	pos := e.Pos
	if !w.grid.RemoveEntity(id) {
		return false
	}
	delete(w.clients, id)
	w.audit(AuditEntry{Tick: w.tick.Load(), Actor: string(id), Event: "LEAVE", Pos: [2]int{pos.X, pos.Y}})
	if w.logger != nil {
		w.logger.Printf("agent %s disconnected and removed", id)
	}
	return true
}

func (w *World) statusSnapshot() StatusSnapshot {
	return StatusSnapshot{
		Tick:      w.tick.Load(),
		Width:     w.cfg.Width,
		Height:    w.cfg.Height,
		Entities:  w.grid.Len(),
		Agents:    w.grid.CountByKind(KindAgent),
		Resources: w.grid.CountByKind(KindResource),
		Clients:   len(w.clients),
	}
}

func (w *World) worldInfo() protocol.WorldInfo {
	return protocol.WorldInfo{
		Dimensions:     [2]int{w.cfg.Width, w.cfg.Height},
		TotalEntities:  w.grid.Len(),
		TotalAgents:    w.grid.CountByKind(KindAgent),
		TotalResources: w.grid.CountByKind(KindResource),
	}
}

func (w *World) buildGameState(tick uint64, agent *Entity) protocol.GameStateMsg {
	return protocol.GameStateMsg{
		Type: protocol.TypeGameState,
		Tick: tick,
		AgentState: protocol.AgentState{
			ID:        string(agent.ID),
			Name:      agent.Agent.Name,
			X:         agent.Pos.X,
			Y:         agent.Pos.Y,
			Inventory: agent.Agent.Inventory.Clone(),
		},
		WorldInfo: w.worldInfo(),
	}
}

func (w *World) send(cl *clientState, v any) {
	if cl == nil || cl.Out == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	sendLatest(cl.Out, b)
}

// stateDigest hashes the full entity state at the given tick. Two worlds fed
// the same join/leave/action stream from the same seed produce equal digests.
func (w *World) stateDigest(tick uint64) string {
	ids := make([]string, 0, w.grid.Len())
	for id := range w.grid.registry {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	h := sha256.New()
	fmt.Fprintf(h, "tick=%d\n", tick)
	for _, id := range ids {
		e := w.grid.registry[EntityID(id)]
		switch e.Kind {
		case KindResource:
			fmt.Fprintf(h, "R %s %d,%d %s %d\n", id, e.Pos.X, e.Pos.Y, e.Resource.Kind, e.Resource.Quantity)
		case KindAgent:
			kinds := make([]string, 0, len(e.Agent.Inventory))
			for k := range e.Agent.Inventory {
				kinds = append(kinds, string(k))
			}
			sort.Strings(kinds)
			fmt.Fprintf(h, "A %s %d,%d %s", id, e.Pos.X, e.Pos.Y, e.Agent.Name)
			for _, k := range kinds {
				fmt.Fprintf(h, " %s=%d", k, e.Agent.Inventory[ResourceKind(k)])
			}
			fmt.Fprintln(h)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
