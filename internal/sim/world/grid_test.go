package world

import (
	"fmt"
	"testing"
)

func TestGrid_AddRemoveMoveConsistency(t *testing.T) {
	g := NewGrid(5, 5)

	if ok := g.AddEntity(NewAgent("A000001", "a1"), Position{X: 6, Y: 0}); ok {
		t.Fatalf("add out of bounds should fail")
	}

	a := NewAgent("A000001", "a1")
	if !g.AddEntity(a, Position{X: 2, Y: 2}) {
		t.Fatalf("add failed")
	}
	if g.AddEntity(NewAgent("A000001", "dup"), Position{X: 1, Y: 1}) {
		t.Fatalf("duplicate id should be rejected")
	}

	r1 := NewResource("R000001", Ore, 10)
	r2 := NewResource("R000002", Fuel, 10)
	if !g.AddEntity(r1, Position{X: 2, Y: 2}) || !g.AddEntity(r2, Position{X: 2, Y: 2}) {
		t.Fatalf("resources should stack on one cell")
	}
	if err := g.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}

	// Swap-and-pop: removing the middle member must keep the others indexed.
	if !g.RemoveEntity(r1.ID) {
		t.Fatalf("remove failed")
	}
	if err := g.CheckConsistency(); err != nil {
		t.Fatalf("consistency after remove: %v", err)
	}

	if g.MoveEntity(a.ID, Position{X: -1, Y: 0}) {
		t.Fatalf("move out of bounds should fail")
	}
	if !g.MoveEntity(a.ID, Position{X: 4, Y: 4}) {
		t.Fatalf("move failed")
	}
	if err := g.CheckConsistency(); err != nil {
		t.Fatalf("consistency after move: %v", err)
	}
	if got, _ := g.Entity(a.ID); got.Pos != (Position{X: 4, Y: 4}) {
		t.Fatalf("position index not updated: %v", got.Pos)
	}
	found := false
	for _, e := range g.EntitiesAt(Position{X: 4, Y: 4}) {
		if e.ID == a.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("entity not at its indexed cell")
	}

	if g.RemoveEntity("A999999") {
		t.Fatalf("remove of unknown id should fail")
	}
	if g.MoveEntity("A999999", Position{X: 0, Y: 0}) {
		t.Fatalf("move of unknown id should fail")
	}
}

func TestGrid_ConsistencyUnderRandomishSequence(t *testing.T) {
	g := NewGrid(4, 4)
	var ids []EntityID
	for i := 0; i < 12; i++ {
		id := EntityID(fmt.Sprintf("R%06d", i+1))
		if !g.AddEntity(NewResource(id, Ore, 5), Position{X: i % 4, Y: (i / 4) % 4}) {
			t.Fatalf("add %s failed", id)
		}
		ids = append(ids, id)
	}
	for i, id := range ids {
		if i%3 == 0 {
			if !g.RemoveEntity(id) {
				t.Fatalf("remove %s failed", id)
			}
		} else {
			if !g.MoveEntity(id, Position{X: (i * 7) % 4, Y: (i * 5) % 4}) {
				t.Fatalf("move %s failed", id)
			}
		}
		if err := g.CheckConsistency(); err != nil {
			t.Fatalf("after op %d: %v", i, err)
		}
	}
}

func TestGrid_EntitiesAtReturnsCopy(t *testing.T) {
	g := NewGrid(3, 3)
	if !g.AddEntity(NewResource("R000001", Ore, 5), Position{X: 1, Y: 1}) {
		t.Fatalf("add failed")
	}
	list := g.EntitiesAt(Position{X: 1, Y: 1})
	list[0] = nil
	again := g.EntitiesAt(Position{X: 1, Y: 1})
	if len(again) != 1 || again[0] == nil {
		t.Fatalf("EntitiesAt must return a defensive copy")
	}
}

func TestGrid_EntitiesNearChebyshev(t *testing.T) {
	g := NewGrid(5, 5)
	positions := []Position{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {2, 4}}
	for i, pos := range positions {
		id := EntityID(fmt.Sprintf("R%06d", i+1))
		if !g.AddEntity(NewResource(id, Fuel, 1), pos) {
			t.Fatalf("add at %v failed", pos)
		}
	}
	// Radius 1 around (2,2): (1,1), (2,2), (3,3). Diagonals count.
	near := g.EntitiesNear(Position{X: 2, Y: 2}, 1)
	if len(near) != 3 {
		t.Fatalf("want 3 entities within Chebyshev radius 1, got %d", len(near))
	}
	// Radius 2 additionally reaches (0,0) and (2,4).
	near = g.EntitiesNear(Position{X: 2, Y: 2}, 2)
	if len(near) != 5 {
		t.Fatalf("want 5 entities within radius 2, got %d", len(near))
	}
}

func TestGrid_FaultHookFiresOnDoubleRegistration(t *testing.T) {
	g := NewGrid(3, 3)
	var faults []error
	g.SetFaultHook(func(err error) { faults = append(faults, err) })

	if !g.AddEntity(NewAgent("A000001", "a"), Position{X: 0, Y: 0}) {
		t.Fatalf("add failed")
	}
	if g.AddEntity(NewAgent("A000001", "b"), Position{X: 1, Y: 1}) {
		t.Fatalf("double registration must be rejected")
	}
	if len(faults) != 1 {
		t.Fatalf("fault hook should fire once, got %d", len(faults))
	}
}
