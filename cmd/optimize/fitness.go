package main

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/wealthsim/config"
	"github.com/pthm-cable/wealthsim/sim"
)

// failedFitness is returned when a candidate cannot be simulated. It is
// worse than any reachable Gini distance.
const failedFitness = 10.0

// FitnessEvaluator runs batches of simulations and scores how far their final
// wealth Gini lands from a target.
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []uint64
	baseConfig *config.Config
	target     float64

	mu           sync.Mutex
	bestFitness  float64
	bestConfig   *config.Config
	lastMeanGini float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, seeds []uint64, baseCfg *config.Config, target float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		seeds:       seeds,
		baseConfig:  baseCfg,
		target:      target,
		bestFitness: math.Inf(1),
	}
}

// BestConfig returns the config of the best evaluation so far.
func (fe *FitnessEvaluator) BestConfig() *config.Config {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestConfig
}

// LastMeanGini returns the mean final Gini of the most recent evaluation.
func (fe *FitnessEvaluator) LastMeanGini() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMeanGini
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Fitness is the mean absolute distance of the final Gini from the target
// plus the fraction of seeds whose population died out.
func (fe *FitnessEvaluator) Evaluate(ctx context.Context, x []float64) float64 {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)

	runs, err := sim.RunBatch(ctx, cfg, fe.seeds)
	if err != nil {
		slog.Warn("evaluation failed", "error", err)
		return failedFitness
	}

	ginis := sim.FinalGini(runs)
	dist := make([]float64, len(ginis))
	for i, g := range ginis {
		dist[i] = math.Abs(g - fe.target)
	}

	collapsed := 0
	for _, reports := range runs {
		if n := len(reports); n > 0 && reports[n-1].Population == 0 {
			collapsed++
		}
	}

	fitness := stat.Mean(dist, nil)
	if len(runs) > 0 {
		fitness += float64(collapsed) / float64(len(runs))
	}
	meanGini := stat.Mean(ginis, nil)

	fe.mu.Lock()
	fe.lastMeanGini = meanGini
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.bestConfig = cfg
	}
	fe.mu.Unlock()

	return fitness
}
