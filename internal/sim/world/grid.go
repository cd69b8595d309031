package world

import "fmt"

// Grid is the spatial index: a width x height array of cells plus an entity
// registry. The registry's Entity.Pos is the single source of truth for
// "where is X" and always agrees with cell membership.
//
// The Grid is occupancy-agnostic: agent-vs-agent collision policy belongs to
// the caller, so the same structure serves both movement and spawn logic.
// All methods are pure data-structure work with no I/O and no locking; only
// the world goroutine may touch a Grid.
type Grid struct {
	width  int
	height int

	cells    [][]EntityID // y*width+x -> member ids
	registry map[EntityID]*Entity

	// onFault, when set, receives grid/registry disagreements. The offending
	// mutation is rejected; the hook exists so the owner can route the fault
	// to an operator-facing channel instead of it being absorbed.
	onFault func(error)
}

func NewGrid(width, height int) *Grid {
	return &Grid{
		width:    width,
		height:   height,
		cells:    make([][]EntityID, width*height),
		registry: make(map[EntityID]*Entity),
	}
}

func (g *Grid) SetFaultHook(fn func(error)) { g.onFault = fn }

func (g *Grid) fault(err error) {
	if g.onFault != nil {
		g.onFault(err)
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) InBounds(pos Position) bool {
	return pos.X >= 0 && pos.X < g.width && pos.Y >= 0 && pos.Y < g.height
}

func (g *Grid) cellAt(pos Position) int { return pos.Y*g.width + pos.X }

// AddEntity places an entity. Fails if pos is out of bounds or the id is
// already registered.
func (g *Grid) AddEntity(e *Entity, pos Position) bool {
	if !g.InBounds(pos) {
		return false
	}
	if _, exists := g.registry[e.ID]; exists {
		g.fault(fmt.Errorf("double registration of entity %s", e.ID))
		return false
	}
	e.Pos = pos
	cell := g.cellAt(pos)
	e.cellIdx = len(g.cells[cell])
	g.cells[cell] = append(g.cells[cell], e.ID)
	g.registry[e.ID] = e
	return true
}

// RemoveEntity removes an entity from its cell and the registry. Fails if
// the id is unknown.
func (g *Grid) RemoveEntity(id EntityID) bool {
	e, ok := g.registry[id]
	if !ok {
		return false
	}
	if !g.detach(e) {
		return false
	}
	delete(g.registry, id)
	return true
}

// MoveEntity relocates an entity. Fails if newPos is out of bounds or the id
// is unknown. Grid and registry are updated together, so the bidirectional
// invariant holds at every return.
func (g *Grid) MoveEntity(id EntityID, newPos Position) bool {
	e, ok := g.registry[id]
	if !ok {
		return false
	}
	if !g.InBounds(newPos) {
		return false
	}
	if !g.detach(e) {
		return false
	}
	e.Pos = newPos
	cell := g.cellAt(newPos)
	e.cellIdx = len(g.cells[cell])
	g.cells[cell] = append(g.cells[cell], e.ID)
	return true
}

// detach removes e from its current cell with a swap-and-pop. Returns false
// (mutation rejected) when the cell record disagrees with the registry.
func (g *Grid) detach(e *Entity) bool {
	cell := g.cellAt(e.Pos)
	members := g.cells[cell]
	last := len(members) - 1
	if e.cellIdx < 0 || e.cellIdx > last || members[e.cellIdx] != e.ID {
		g.fault(fmt.Errorf("grid/registry disagreement: entity %s not at indexed slot of cell %v", e.ID, e.Pos))
		return false
	}
	moved := members[last]
	members[e.cellIdx] = moved
	g.cells[cell] = members[:last]
	if moved != e.ID {
		g.registry[moved].cellIdx = e.cellIdx
	}
	e.cellIdx = -1
	return true
}

func (g *Grid) Entity(id EntityID) (*Entity, bool) {
	e, ok := g.registry[id]
	return e, ok
}

// EntitiesAt returns a defensive copy of the entities at pos; out-of-bounds
// positions yield nil.
func (g *Grid) EntitiesAt(pos Position) []*Entity {
	if !g.InBounds(pos) {
		return nil
	}
	members := g.cells[g.cellAt(pos)]
	if len(members) == 0 {
		return nil
	}
	out := make([]*Entity, 0, len(members))
	for _, id := range members {
		out = append(out, g.registry[id])
	}
	return out
}

// EntitiesByKind scans the registry. Linear, fine at a few hundred cells.
func (g *Grid) EntitiesByKind(kind EntityKind) []*Entity {
	var out []*Entity
	for _, e := range g.registry {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (g *Grid) CountByKind(kind EntityKind) int {
	n := 0
	for _, e := range g.registry {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (g *Grid) Len() int { return len(g.registry) }

// EntitiesNear unions EntitiesAt over the Chebyshev-radius neighborhood.
func (g *Grid) EntitiesNear(pos Position, radius int) []*Entity {
	var out []*Entity
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			out = append(out, g.EntitiesAt(Position{X: pos.X + dx, Y: pos.Y + dy})...)
		}
	}
	return out
}

// AgentAt returns the agent occupying pos, if any. After any completed move
// a cell holds at most one agent, enforced by the action layer.
func (g *Grid) AgentAt(pos Position) (*Entity, bool) {
	for _, e := range g.EntitiesAt(pos) {
		if e.Kind == KindAgent {
			return e, true
		}
	}
	return nil, false
}

// CheckConsistency walks the registry and grid in both directions. A non-nil
// error means the bidirectional invariant is broken and must be surfaced to
// the operator, never absorbed.
func (g *Grid) CheckConsistency() error {
	for id, e := range g.registry {
		if !g.InBounds(e.Pos) {
			return fmt.Errorf("entity %s registered at out-of-bounds %v", id, e.Pos)
		}
		cell := g.cellAt(e.Pos)
		if e.cellIdx < 0 || e.cellIdx >= len(g.cells[cell]) || g.cells[cell][e.cellIdx] != id {
			return fmt.Errorf("entity %s not a member of its indexed cell %v", id, e.Pos)
		}
	}
	total := 0
	for cell, members := range g.cells {
		for _, id := range members {
			e, ok := g.registry[id]
			if !ok {
				return fmt.Errorf("cell %d holds unregistered entity %s", cell, id)
			}
			if g.cellAt(e.Pos) != cell {
				return fmt.Errorf("entity %s in cell %d but indexed at %v", id, cell, e.Pos)
			}
		}
		total += len(members)
	}
	if total != len(g.registry) {
		return fmt.Errorf("cell membership count %d != registry size %d", total, len(g.registry))
	}
	return nil
}
