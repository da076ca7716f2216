package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/driftsim/internal/probe"
	"github.com/san-kum/driftsim/internal/schema"
)

const (
	DefaultScale   = 1.0 / 60.0
	DefaultSteps   = 100_000
	DefaultSamples = 50
)

type Config struct {
	Name       string           `yaml:"name"`
	Direction  schema.VectorDoc `yaml:"direction"`
	Scale      float64          `yaml:"scale"`
	Initial    schema.VectorDoc `yaml:"initial"`
	Steps      int              `yaml:"steps"`
	Samples    int              `yaml:"samples"`
	Strategies []string         `yaml:"strategies"`
	Workers    int              `yaml:"workers"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:       "frames60",
		Direction:  schema.VectorDoc{X: 1, Y: 2, Z: 3},
		Scale:      DefaultScale,
		Steps:      DefaultSteps,
		Samples:    DefaultSamples,
		Strategies: []string{probe.Naive, probe.Kahan, probe.Neumaier},
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver decodes the file at path on top of a copy of base, so keys the
// file leaves out keep their base values.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// MaxWorkers returns the largest worker count requested by cfgs, or 0 when
// none sets one.
func MaxWorkers(cfgs []*Config) int {
	n := 0
	for _, c := range cfgs {
		n = max(n, c.Workers)
	}
	return n
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Scenario converts the config into a runnable probe scenario.
func (c *Config) Scenario() probe.Scenario {
	strategies := make([]string, len(c.Strategies))
	copy(strategies, c.Strategies)
	return probe.Scenario{
		Name:       c.Name,
		Direction:  c.Direction.Vec3(),
		Scale:      c.Scale,
		Initial:    c.Initial.Vec3(),
		Steps:      c.Steps,
		Samples:    c.Samples,
		Strategies: strategies,
	}
}

// Clone returns a deep copy, so presets can be modified safely.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Strategies = append([]string(nil), c.Strategies...)
	return &cp
}
