package config

import (
	"sort"

	"github.com/san-kum/driftsim/internal/probe"
	"github.com/san-kum/driftsim/internal/schema"
)

var allStrategies = []string{probe.Naive, probe.Kahan, probe.Neumaier}

var Presets = map[string]*Config{
	"frames60": {
		Name: "frames60", Direction: schema.VectorDoc{X: 1, Y: 2, Z: 3}, Scale: 1.0 / 60.0,
		Steps: 100_000, Samples: 50, Strategies: allStrategies,
	},
	"frames60-long": {
		Name: "frames60-long", Direction: schema.VectorDoc{X: 1, Y: 2, Z: 3}, Scale: 1.0 / 60.0,
		Steps: 100_000_000, Samples: 100, Strategies: allStrategies,
	},
	"stall": {
		Name: "stall", Direction: schema.VectorDoc{X: 1, Y: 1, Z: 1}, Scale: 1.0,
		Initial: schema.VectorDoc{X: 1e16, Y: 1e16, Z: 1e16},
		Steps:   1_000_000, Samples: 20, Strategies: allStrategies,
	},
	"microstep": {
		Name: "microstep", Direction: schema.VectorDoc{X: 340.29, Y: -9.81, Z: 0.001}, Scale: 1e-6,
		Initial: schema.VectorDoc{X: 6.371e6, Y: 0, Z: -1},
		Steps:   10_000_000, Samples: 50, Strategies: allStrategies,
	},
	"tenth": {
		Name: "tenth", Direction: schema.VectorDoc{X: 0.1, Y: 0.1, Z: 0.1}, Scale: 1.0,
		Steps: 1_000_000, Samples: 20, Strategies: allStrategies,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
