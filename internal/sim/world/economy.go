package world

import "math/rand"

// EconomyConfig mirrors the tuning surface the engine needs.
type EconomyConfig struct {
	SpawnEveryTicks  int
	MaxResources     int
	SpawnQuantityMin int
	SpawnQuantityMax int
	CraftOreCost     int
	CraftFuelCost    int
	CraftYield       int
}

// Economy is the policy layer: periodic resource spawning and crafting.
// It holds no world state beyond its spawn counter and seeded rng, and
// mutates the world only through the Grid contract.
type Economy struct {
	cfg EconomyConfig
	rng *rand.Rand

	spawnCounter int
	nextResource func() EntityID
}

func NewEconomy(cfg EconomyConfig, rng *rand.Rand, nextResourceID func() EntityID) *Economy {
	return &Economy{cfg: cfg, rng: rng, nextResource: nextResourceID}
}

// ShouldSpawnThisTick advances the spawn counter and reports whether the
// spawn interval elapsed. Calling it is itself the per-tick side effect, so
// it must run exactly once per world tick.
func (ec *Economy) ShouldSpawnThisTick() bool {
	ec.spawnCounter++
	if ec.spawnCounter >= ec.cfg.SpawnEveryTicks {
		ec.spawnCounter = 0
		return true
	}
	return false
}

// SpawnResources tops the world up toward MaxResources, placing each new
// deposit on a uniformly drawn empty cell (no entities of any kind), without
// replacement. Empty-cell enumeration is O(width*height) per call; that is
// the scaling limit of this design and acceptable at a few hundred cells.
func (ec *Economy) SpawnResources(g *Grid) []*Entity {
	current := g.CountByKind(KindResource)
	if current >= ec.cfg.MaxResources {
		return nil
	}

	var empty []Position
	for x := 0; x < g.Width(); x++ {
		for y := 0; y < g.Height(); y++ {
			pos := Position{X: x, Y: y}
			if len(g.EntitiesAt(pos)) == 0 {
				empty = append(empty, pos)
			}
		}
	}
	if len(empty) == 0 {
		return nil
	}

	toSpawn := ec.cfg.MaxResources - current
	if toSpawn > len(empty) {
		toSpawn = len(empty)
	}

	spawned := make([]*Entity, 0, toSpawn)
	for i := 0; i < toSpawn; i++ {
		// Draw without replacement: swap the pick to the tail and shrink.
		j := ec.rng.Intn(len(empty))
		pos := empty[j]
		empty[j] = empty[len(empty)-1]
		empty = empty[:len(empty)-1]

		kind := Ore
		if ec.rng.Intn(2) == 1 {
			kind = Fuel
		}
		quantity := ec.cfg.SpawnQuantityMin + ec.rng.Intn(ec.cfg.SpawnQuantityMax-ec.cfg.SpawnQuantityMin+1)

		res := NewResource(ec.nextResource(), kind, quantity)
		if g.AddEntity(res, pos) {
			spawned = append(spawned, res)
		}
	}
	return spawned
}

// CraftComponent converts materials into components at the configured ratio.
// Either the full debit and credit happen, or nothing does.
func (ec *Economy) CraftComponent(a *AgentData) bool {
	if a.Inventory.Count(Ore) < ec.cfg.CraftOreCost || a.Inventory.Count(Fuel) < ec.cfg.CraftFuelCost {
		return false
	}
	a.Inventory.Remove(Ore, ec.cfg.CraftOreCost)
	a.Inventory.Remove(Fuel, ec.cfg.CraftFuelCost)
	a.Inventory.Add(Components, ec.cfg.CraftYield)
	return true
}
