package drift

import "github.com/san-kum/driftsim/internal/vecmath"

// Accumulator sums vectors with per-component compensation.
// The zero value is an empty accumulator.
type Accumulator struct {
	x, y, z Neumaier
}

// New returns an accumulator with zero sum and compensation.
func New() *Accumulator {
	return &Accumulator{}
}

// WithInitial returns an accumulator whose sum starts at initial.
func WithInitial(initial vecmath.Vec3) *Accumulator {
	return &Accumulator{
		x: NewNeumaier(initial.X),
		y: NewNeumaier(initial.Y),
		z: NewNeumaier(initial.Z),
	}
}

// Add accumulates delta component by component.
func (a *Accumulator) Add(delta vecmath.Vec3) {
	a.x.Add(delta.X)
	a.y.Add(delta.Y)
	a.z.Add(delta.Z)
}

// AddScaled accumulates dir*scale. The product is rounded once in plain
// float64 before it reaches the compensated sum; the multiplication itself
// is not compensated.
func (a *Accumulator) AddScaled(dir vecmath.Vec3, scale float64) {
	a.Add(dir.Scale(scale))
}

// Resolve returns sum + compensation. It does not modify the accumulator,
// so it may be called every frame without affecting later accuracy.
func (a *Accumulator) Resolve() vecmath.Vec3 {
	return vecmath.Vec3{X: a.x.Total(), Y: a.y.Total(), Z: a.z.Total()}
}

// Sum returns the running sum without compensation.
func (a *Accumulator) Sum() vecmath.Vec3 {
	return vecmath.Vec3{X: a.x.Sum(), Y: a.y.Sum(), Z: a.z.Sum()}
}

// Compensation returns the correction not yet captured in Sum.
func (a *Accumulator) Compensation() vecmath.Vec3 {
	return vecmath.Vec3{X: a.x.Compensation(), Y: a.y.Compensation(), Z: a.z.Compensation()}
}

// Reset discards all accumulated state, sum and compensation together.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// Clone returns an independent copy.
func (a *Accumulator) Clone() *Accumulator {
	c := *a
	return &c
}
