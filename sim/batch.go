package sim

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/wealthsim/config"
	"github.com/pthm-cable/wealthsim/telemetry"
)

// RunBatch runs one independent simulation per seed concurrently. Results
// are in seed order. The first failure cancels the remaining runs.
func RunBatch(ctx context.Context, cfg *config.Config, seeds []uint64) ([][]telemetry.StepReport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	results := make([][]telemetry.StepReport, len(seeds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, seed := range seeds {
		g.Go(func() error {
			reports, err := Run(ctx, cfg, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = reports
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FinalGini returns the wealth Gini of the last report of each run. Empty
// runs report 0.
func FinalGini(runs [][]telemetry.StepReport) []float64 {
	out := make([]float64, len(runs))
	for i, reports := range runs {
		if n := len(reports); n > 0 {
			out[i] = reports[n-1].GiniIndex
		}
	}
	return out
}
