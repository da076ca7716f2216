package probe

import "math"

// Metric folds the samples of one strategy into a single number.
type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// DefaultMetrics returns the metrics recorded for every strategy in a run.
func DefaultMetrics(strategy string) []Metric {
	return []Metric{
		NewMaxAbsError(strategy),
		NewMaxRelError(strategy),
		NewFinalULPs(strategy),
	}
}

func metricName(strategy, metric string) string {
	return strategy + "." + metric
}

type MaxAbsError struct {
	strategy string
	max      float64
}

func NewMaxAbsError(strategy string) *MaxAbsError {
	return &MaxAbsError{strategy: strategy}
}

func (m *MaxAbsError) Name() string { return metricName(m.strategy, "max_abs_error") }

func (m *MaxAbsError) Observe(s Sample) {
	if v, ok := s.AbsError[m.strategy]; ok {
		m.max = math.Max(m.max, v)
	}
}

func (m *MaxAbsError) Value() float64 { return m.max }
func (m *MaxAbsError) Reset()         { m.max = 0 }

type MaxRelError struct {
	strategy string
	max      float64
}

func NewMaxRelError(strategy string) *MaxRelError {
	return &MaxRelError{strategy: strategy}
}

func (m *MaxRelError) Name() string { return metricName(m.strategy, "max_rel_error") }

func (m *MaxRelError) Observe(s Sample) {
	if v, ok := s.RelError[m.strategy]; ok {
		m.max = math.Max(m.max, v)
	}
}

func (m *MaxRelError) Value() float64 { return m.max }
func (m *MaxRelError) Reset()         { m.max = 0 }

// FinalULPs is the error at the last observed sample, in units in the last
// place of the reference's largest component.
type FinalULPs struct {
	strategy string
	ulps     float64
}

func NewFinalULPs(strategy string) *FinalULPs {
	return &FinalULPs{strategy: strategy}
}

func (m *FinalULPs) Name() string { return metricName(m.strategy, "final_ulps") }

func (m *FinalULPs) Observe(s Sample) {
	if _, ok := s.AbsError[m.strategy]; ok {
		m.ulps = s.ULPs(m.strategy)
	}
}

func (m *FinalULPs) Value() float64 { return m.ulps }
func (m *FinalULPs) Reset()         { m.ulps = 0 }

// ULPs expresses a strategy's absolute error in units in the last place of
// the reference's largest component.
func (s Sample) ULPs(strategy string) float64 {
	return math.Min(s.AbsError[strategy]/ULP(s.Reference.Abs().MaxComponent()), math.MaxFloat64)
}

// ULP returns the gap between |x| and the next larger float64.
func ULP(x float64) float64 {
	x = math.Abs(x)
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return math.NaN()
	}
	return math.Nextafter(x, math.Inf(1)) - x
}
