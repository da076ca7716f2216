package probe

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent scenarios concurrently. Each scenario owns its
// own strategies, so no state is shared between goroutines.
type Ensemble struct {
	scenarios []Scenario
	workers   int
}

// NewEnsemble limits concurrency to workers; zero or less means GOMAXPROCS.
func NewEnsemble(scenarios []Scenario, workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{scenarios: scenarios, workers: workers}
}

// Run returns results in scenario order. The first failure cancels the rest.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(e.scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, sc := range e.scenarios {
		i, sc := i, sc
		g.Go(func() error {
			res, err := Run(ctx, sc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
