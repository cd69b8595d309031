package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the configuration surface consumed by the simulation core.
type Tuning struct {
	WorldWidth  int `yaml:"world_width"`
	WorldHeight int `yaml:"world_height"`

	TickMs int `yaml:"tick_ms"`

	SpawnEveryTicks  int `yaml:"spawn_every_ticks"`
	MaxResources     int `yaml:"max_resources"`
	SpawnQuantityMin int `yaml:"spawn_quantity_min"`
	SpawnQuantityMax int `yaml:"spawn_quantity_max"`

	HarvestPerAction int `yaml:"harvest_per_action"`

	Craft Craft `yaml:"craft"`
}

// Craft is the crafting ratio: OreCost ORE + FuelCost FUEL -> Yield COMPONENTS.
type Craft struct {
	OreCost  int `yaml:"ore_cost"`
	FuelCost int `yaml:"fuel_cost"`
	Yield    int `yaml:"yield"`
}

func Defaults() Tuning {
	return Tuning{
		WorldWidth:       20,
		WorldHeight:      20,
		TickMs:           500,
		SpawnEveryTicks:  10,
		MaxResources:     50,
		SpawnQuantityMin: 20,
		SpawnQuantityMax: 100,
		HarvestPerAction: 10,
		Craft:            Craft{OreCost: 1, FuelCost: 1, Yield: 1},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.WorldWidth <= 0 || t.WorldHeight <= 0 {
		return fmt.Errorf("world dimensions must be positive, got %dx%d", t.WorldWidth, t.WorldHeight)
	}
	if t.TickMs <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", t.TickMs)
	}
	if t.SpawnEveryTicks <= 0 {
		return fmt.Errorf("spawn_every_ticks must be positive, got %d", t.SpawnEveryTicks)
	}
	if t.MaxResources < 0 {
		return fmt.Errorf("max_resources must be non-negative, got %d", t.MaxResources)
	}
	if t.SpawnQuantityMin <= 0 || t.SpawnQuantityMax < t.SpawnQuantityMin {
		return fmt.Errorf("spawn quantity range invalid: [%d,%d]", t.SpawnQuantityMin, t.SpawnQuantityMax)
	}
	if t.HarvestPerAction <= 0 {
		return fmt.Errorf("harvest_per_action must be positive, got %d", t.HarvestPerAction)
	}
	if t.Craft.OreCost <= 0 || t.Craft.FuelCost <= 0 || t.Craft.Yield <= 0 {
		return fmt.Errorf("craft ratio must be positive: %+v", t.Craft)
	}
	return nil
}
