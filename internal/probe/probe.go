package probe

import (
	"context"
	"math"
	"math/big"

	"github.com/san-kum/driftsim/internal/drift"
	"github.com/san-kum/driftsim/internal/vecmath"
)

// ctxCheckInterval is how many steps run between context checks.
const ctxCheckInterval = 4096

// referencePrec is wide enough to hold any sum of float64 terms exactly
// for the step counts a probe can run.
const referencePrec = 2560

// Scenario repeatedly adds Direction*Scale to Initial.
type Scenario struct {
	Name       string
	Direction  vecmath.Vec3
	Scale      float64
	Initial    vecmath.Vec3
	Steps      int
	Samples    int
	Strategies []string

	// StartStep and Checkpoint resume a neumaier run from a saved state.
	// Initial still describes step 0 for the reference.
	StartStep  int
	Checkpoint []byte
}

// Delta is the per-step addend as the accumulators see it.
func (s Scenario) Delta() vecmath.Vec3 {
	return s.Direction.Scale(s.Scale)
}

// StrategyNames returns the strategies the scenario runs, in run order.
func (s Scenario) StrategyNames() []string {
	if len(s.Strategies) == 0 {
		return []string{Naive, Kahan, Neumaier}
	}
	return s.Strategies
}

type Sample struct {
	Step      int
	Reference vecmath.Vec3
	Values    map[string]vecmath.Vec3
	AbsError  map[string]float64
	RelError  map[string]float64
}

type Result struct {
	Scenario   Scenario
	Samples    []Sample
	Final      map[string]vecmath.Vec3
	Metrics    map[string]float64
	StepsTaken int

	// Set when the neumaier strategy ran.
	Checkpoint  []byte
	Digest      drift.Digest
	StateDigest drift.Digest
}

// Run executes the scenario and collects every sample.
func Run(ctx context.Context, sc Scenario) (*Result, error) {
	return RunWithCallback(ctx, sc, nil)
}

// RunWithCallback executes the scenario and passes each sample to fn as it
// is taken. Returning false from fn stops the run early; the partial result
// is still returned.
func RunWithCallback(ctx context.Context, sc Scenario, fn func(Sample) bool) (*Result, error) {
	if err := Validate(sc); err != nil {
		return nil, err
	}

	strats, acc, err := buildStrategies(sc)
	if err != nil {
		return nil, err
	}

	metrics := make([]Metric, 0, len(strats)*3)
	for _, s := range strats {
		metrics = append(metrics, DefaultMetrics(s.Name())...)
	}

	result := &Result{
		Scenario: sc,
		Samples:  make([]Sample, 0, sc.Samples),
		Final:    make(map[string]vecmath.Vec3, len(strats)),
		Metrics:  make(map[string]float64, len(metrics)),
	}

	if err := ctx.Err(); err != nil {
		finish(result, strats, acc, metrics)
		return result, err
	}

	ref := newReference(sc)
	schedule := sampleSteps(sc.Steps, sc.Samples)
	next := 0

	for step := 1; step <= sc.Steps; step++ {
		if step%ctxCheckInterval == 0 {
			select {
			case <-ctx.Done():
				finish(result, strats, acc, metrics)
				return result, ctx.Err()
			default:
			}
		}

		for _, s := range strats {
			s.AddScaled(sc.Direction, sc.Scale)
		}
		result.StepsTaken = step

		if next < len(schedule) && schedule[next] == step {
			next++
			sample := takeSample(ref, sc.StartStep+step, strats)
			for _, m := range metrics {
				m.Observe(sample)
			}
			result.Samples = append(result.Samples, sample)
			if fn != nil && !fn(sample) {
				break
			}
		}
	}

	finish(result, strats, acc, metrics)
	return result, nil
}

func buildStrategies(sc Scenario) ([]Strategy, *drift.Accumulator, error) {
	if sc.Checkpoint != nil {
		acc, err := drift.Restore(sc.Checkpoint)
		if err != nil {
			return nil, nil, err
		}
		return []Strategy{&compensated{acc: acc}}, acc, nil
	}

	var acc *drift.Accumulator
	strats := make([]Strategy, 0, len(sc.StrategyNames()))
	for _, name := range sc.StrategyNames() {
		s, err := NewStrategy(name, sc.Initial)
		if err != nil {
			return nil, nil, err
		}
		if c, ok := s.(*compensated); ok {
			acc = c.acc
		}
		strats = append(strats, s)
	}
	return strats, acc, nil
}

func finish(result *Result, strats []Strategy, acc *drift.Accumulator, metrics []Metric) {
	for _, s := range strats {
		result.Final[s.Name()] = s.Resolve()
	}
	for _, m := range metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	if acc != nil {
		result.Checkpoint, _ = acc.MarshalBinary()
		result.Digest = drift.Hash(acc.Resolve())
		result.StateDigest = drift.HashState(acc)
	}
}

func takeSample(ref *reference, step int, strats []Strategy) Sample {
	exact := ref.at(step)
	sample := Sample{
		Step:      step,
		Reference: exact.rounded(),
		Values:    make(map[string]vecmath.Vec3, len(strats)),
		AbsError:  make(map[string]float64, len(strats)),
		RelError:  make(map[string]float64, len(strats)),
	}
	for _, s := range strats {
		v := s.Resolve()
		abs, rel := exact.errorOf(v)
		sample.Values[s.Name()] = v
		sample.AbsError[s.Name()] = abs
		sample.RelError[s.Name()] = rel
	}
	return sample
}

// sampleSteps spreads n sample points evenly over [1, steps], always
// ending at steps.
func sampleSteps(steps, n int) []int {
	if n > steps {
		n = steps
	}
	out := make([]int, 0, n)
	last := 0
	for k := 1; k <= n; k++ {
		step := int(int64(k) * int64(steps) / int64(n))
		if step > last {
			out = append(out, step)
			last = step
		}
	}
	return out
}

// reference computes Initial + n*Delta exactly.
type reference struct {
	initial [3]*big.Float
	delta   [3]*big.Float
}

type exactVec [3]*big.Float

func newReference(sc Scenario) *reference {
	d := sc.Delta()
	r := &reference{}
	for i, c := range [3]float64{sc.Initial.X, sc.Initial.Y, sc.Initial.Z} {
		r.initial[i] = new(big.Float).SetPrec(referencePrec).SetFloat64(c)
	}
	for i, c := range [3]float64{d.X, d.Y, d.Z} {
		r.delta[i] = new(big.Float).SetPrec(referencePrec).SetFloat64(c)
	}
	return r
}

func (r *reference) at(step int) exactVec {
	n := new(big.Float).SetPrec(referencePrec).SetInt64(int64(step))
	var out exactVec
	for i := range out {
		v := new(big.Float).SetPrec(referencePrec).Mul(r.delta[i], n)
		out[i] = v.Add(v, r.initial[i])
	}
	return out
}

func (e exactVec) rounded() vecmath.Vec3 {
	x, _ := e[0].Float64()
	y, _ := e[1].Float64()
	z, _ := e[2].Float64()
	return vecmath.New(x, y, z)
}

// errorOf returns the largest absolute and relative component error of v.
func (e exactVec) errorOf(v vecmath.Vec3) (maxAbs, maxRel float64) {
	for i, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return math.Inf(1), math.Inf(1)
		}
		diff := new(big.Float).SetPrec(referencePrec).SetFloat64(c)
		diff.Sub(diff, e[i])
		abs, _ := new(big.Float).Abs(diff).Float64()
		maxAbs = math.Max(maxAbs, abs)

		mag, _ := new(big.Float).Abs(e[i]).Float64()
		rel := abs
		if mag != 0 {
			rel = abs / mag
		}
		maxRel = math.Max(maxRel, rel)
	}
	return maxAbs, maxRel
}
