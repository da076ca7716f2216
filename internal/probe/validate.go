package probe

import (
	"fmt"
	"math"
)

// Validate reports the first reason sc cannot run.
func Validate(sc Scenario) error {
	fail := func(field, reason string) error {
		return &ScenarioError{Scenario: sc.Name, Field: field, Reason: reason}
	}

	if sc.Steps <= 0 {
		return fail("steps", "must be positive")
	}
	if sc.Samples <= 0 {
		return fail("samples", "must be positive")
	}
	if sc.StartStep < 0 {
		return fail("start_step", "must not be negative")
	}
	if !sc.Direction.IsFinite() {
		return fail("direction", "must be finite")
	}
	if math.IsNaN(sc.Scale) || math.IsInf(sc.Scale, 0) {
		return fail("scale", "must be finite")
	}
	if !sc.Initial.IsFinite() {
		return fail("initial", "must be finite")
	}

	for _, name := range sc.StrategyNames() {
		if _, ok := strategies[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
		}
	}
	if sc.Checkpoint != nil {
		names := sc.StrategyNames()
		if len(sc.Strategies) > 0 && (len(names) != 1 || names[0] != Neumaier) {
			return fail("strategies", "only neumaier can resume from a checkpoint")
		}
	} else if sc.StartStep != 0 {
		return fail("start_step", "requires a checkpoint")
	}

	total := float64(sc.StartStep) + float64(sc.Steps)
	bound := sc.Initial.Abs().Add(sc.Delta().Abs().Scale(total))
	if !bound.IsFinite() {
		return fail("steps", "reference value overflows float64")
	}
	return nil
}
