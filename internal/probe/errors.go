package probe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidScenario indicates a scenario that cannot be run.
	ErrInvalidScenario = errors.New("probe: invalid scenario")

	// ErrUnknownStrategy indicates a strategy name with no registered constructor.
	ErrUnknownStrategy = errors.New("probe: unknown strategy")
)

// ScenarioError names the field that failed validation.
type ScenarioError struct {
	Scenario string
	Field    string
	Reason   string
}

func (e *ScenarioError) Error() string {
	name := e.Scenario
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s: %s: %s %s", ErrInvalidScenario, name, e.Field, e.Reason)
}

func (e *ScenarioError) Unwrap() error {
	return ErrInvalidScenario
}
