package probe

import (
	"fmt"
	"sort"

	"github.com/san-kum/driftsim/internal/drift"
	"github.com/san-kum/driftsim/internal/vecmath"
)

const (
	Naive    = "naive"
	Kahan    = "kahan"
	Neumaier = "neumaier"
)

// Strategy is one way of summing a stream of vectors.
type Strategy interface {
	Name() string
	AddScaled(dir vecmath.Vec3, scale float64)
	Resolve() vecmath.Vec3
	Reset()
}

var strategies = map[string]func(initial vecmath.Vec3) Strategy{
	Naive:    func(initial vecmath.Vec3) Strategy { return &naiveSum{sum: initial} },
	Kahan:    func(initial vecmath.Vec3) Strategy { return &kahanSum{sum: initial} },
	Neumaier: func(initial vecmath.Vec3) Strategy { return &compensated{acc: drift.WithInitial(initial)} },
}

// NewStrategy returns a fresh strategy whose running sum starts at initial.
func NewStrategy(name string, initial vecmath.Vec3) (Strategy, error) {
	fn, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return fn(initial), nil
}

// Strategies lists the registered strategy names in sorted order.
func Strategies() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type naiveSum struct {
	sum vecmath.Vec3
}

func (n *naiveSum) Name() string { return Naive }
func (n *naiveSum) AddScaled(dir vecmath.Vec3, scale float64) {
	n.sum = n.sum.Add(dir.Scale(scale))
}
func (n *naiveSum) Resolve() vecmath.Vec3 { return n.sum }
func (n *naiveSum) Reset()                { n.sum = vecmath.Zero }

// kahanSum is classic Kahan summation without the magnitude comparison.
// It loses the addend's contribution whenever the addend outweighs the sum.
type kahanSum struct {
	sum, c vecmath.Vec3
}

func (k *kahanSum) Name() string { return Kahan }

func (k *kahanSum) AddScaled(dir vecmath.Vec3, scale float64) {
	d := dir.Scale(scale)
	k.sum.X, k.c.X = kahanStep(k.sum.X, k.c.X, d.X)
	k.sum.Y, k.c.Y = kahanStep(k.sum.Y, k.c.Y, d.Y)
	k.sum.Z, k.c.Z = kahanStep(k.sum.Z, k.c.Z, d.Z)
}

func kahanStep(sum, c, v float64) (float64, float64) {
	y := v - c
	t := sum + y
	return t, (t - sum) - y
}

func (k *kahanSum) Resolve() vecmath.Vec3 { return k.sum.Sub(k.c) }
func (k *kahanSum) Reset()                { k.sum, k.c = vecmath.Zero, vecmath.Zero }

type compensated struct {
	acc *drift.Accumulator
}

func (c *compensated) Name() string { return Neumaier }
func (c *compensated) AddScaled(dir vecmath.Vec3, scale float64) {
	c.acc.AddScaled(dir, scale)
}
func (c *compensated) Resolve() vecmath.Vec3 { return c.acc.Resolve() }
func (c *compensated) Reset()                { c.acc.Reset() }
