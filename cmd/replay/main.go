package main

import (
	"flag"
	"log"
	"os"

	persistlog "proxiverse.dev/internal/persistence/log"
	"proxiverse.dev/internal/sim/tuning"
	"proxiverse.dev/internal/sim/world"
)

// Replays a tick journal against a fresh world with the same tuning and seed
// and verifies every per-tick digest. A mismatch means either the journal or
// the simulation's determinism is broken.
func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory containing the tick journal")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		seed       = flag.Int64("seed", 1337, "seed the server ran with")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	entries, err := persistlog.ReadTickEntries(*dataDir)
	if err != nil {
		logger.Fatalf("read tick journal: %v", err)
	}
	if len(entries) == 0 {
		logger.Fatalf("no tick entries under %s", *dataDir)
	}

	w, err := world.New(world.Config{
		Width:            tune.WorldWidth,
		Height:           tune.WorldHeight,
		TickMs:           tune.TickMs,
		SpawnEveryTicks:  tune.SpawnEveryTicks,
		MaxResources:     tune.MaxResources,
		SpawnQuantityMin: tune.SpawnQuantityMin,
		SpawnQuantityMax: tune.SpawnQuantityMax,
		HarvestPerAction: tune.HarvestPerAction,
		CraftOreCost:     tune.Craft.OreCost,
		CraftFuelCost:    tune.Craft.FuelCost,
		CraftYield:       tune.Craft.Yield,
		Seed:             *seed,
	}, nil)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	mismatches := 0
	for _, entry := range entries {
		joins := make([]world.JoinRequest, len(entry.Joins))
		for i := range entry.Joins {
			joins[i] = world.JoinRequest{}
		}
		actions := make([]world.ActionEnvelope, 0, len(entry.Actions))
		for _, a := range entry.Actions {
			actions = append(actions, world.ActionEnvelope{AgentID: a.AgentID, Cmd: a.Cmd})
		}

		tick, digest := w.StepOnce(joins, entry.Leaves, actions)
		if tick != entry.Tick {
			logger.Fatalf("tick drift: journal=%d replay=%d", entry.Tick, tick)
		}
		if digest != entry.Digest {
			mismatches++
			logger.Printf("tick %d: digest mismatch\n  journal %s\n  replay  %s", tick, entry.Digest, digest)
		}
	}

	if mismatches > 0 {
		logger.Fatalf("replay FAILED: %d/%d ticks diverged", mismatches, len(entries))
	}
	logger.Printf("replay ok: %d ticks, digests match", len(entries))
}
