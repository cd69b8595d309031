package world

// EntityID is an opaque identifier, stable for the entity's lifetime.
// Agents are numbered A000001..., resources R000001...; sequential ids keep
// replays deterministic.
type EntityID string

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ResourceKind enumerates the tradeable materials.
type ResourceKind string

const (
	Ore        ResourceKind = "ORE"
	Fuel       ResourceKind = "FUEL"
	Components ResourceKind = "COMPONENTS"
)

type EntityKind int

const (
	KindResource EntityKind = iota + 1
	KindAgent
)

func (k EntityKind) String() string {
	switch k {
	case KindResource:
		return "RESOURCE"
	case KindAgent:
		return "AGENT"
	default:
		return "UNKNOWN"
	}
}

// Entity is a tagged variant: exactly one of Resource/Agent is non-nil,
// matching Kind. Pos is maintained by the Grid and is the position index
// entry for this entity.
type Entity struct {
	ID   EntityID
	Kind EntityKind
	Pos  Position

	Resource *ResourceData
	Agent    *AgentData

	// cellIdx is this entity's slot in its cell's member slice, kept by the
	// Grid for O(1) swap-and-pop removal.
	cellIdx int
}

type ResourceData struct {
	Kind     ResourceKind
	Quantity int
}

// Harvest removes up to amount units and returns what was actually taken.
// Quantity never goes negative.
func (r *ResourceData) Harvest(amount int) int {
	if amount < 0 {
		return 0
	}
	taken := amount
	if taken > r.Quantity {
		taken = r.Quantity
	}
	r.Quantity -= taken
	return taken
}

func (r *ResourceData) Depleted() bool { return r.Quantity <= 0 }

type AgentData struct {
	Name      string
	Inventory Inventory
}

// Inventory maps resource kind to a non-negative count; absent key means 0
// and counts that reach 0 are pruned.
type Inventory map[ResourceKind]int

func (inv Inventory) Count(kind ResourceKind) int { return inv[kind] }

func (inv Inventory) Add(kind ResourceKind, n int) {
	if n <= 0 {
		return
	}
	inv[kind] += n
}

// Remove debits up to n units and returns the amount actually removed.
func (inv Inventory) Remove(kind ResourceKind, n int) int {
	if n <= 0 {
		return 0
	}
	have := inv[kind]
	removed := n
	if removed > have {
		removed = have
	}
	if removed == 0 {
		return 0
	}
	if have == removed {
		delete(inv, kind)
	} else {
		inv[kind] = have - removed
	}
	return removed
}

// Clone returns a copy safe to hand to encoders outside the world goroutine.
func (inv Inventory) Clone() map[string]int {
	out := make(map[string]int, len(inv))
	for k, v := range inv {
		out[string(k)] = v
	}
	return out
}

func NewResource(id EntityID, kind ResourceKind, quantity int) *Entity {
	return &Entity{
		ID:       id,
		Kind:     KindResource,
		Resource: &ResourceData{Kind: kind, Quantity: quantity},
	}
}

func NewAgent(id EntityID, name string) *Entity {
	return &Entity{
		ID:    id,
		Kind:  KindAgent,
		Agent: &AgentData{Name: name, Inventory: Inventory{}},
	}
}
