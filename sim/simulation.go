// Package sim runs the wealth simulation: it seeds the population and
// sequences every step system once per time step.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/pthm-cable/wealthsim/agents"
	"github.com/pthm-cable/wealthsim/config"
	"github.com/pthm-cable/wealthsim/systems"
	"github.com/pthm-cable/wealthsim/telemetry"
)

// SeedMinAge and SeedMaxAge bound the uniform age of seeded agents.
const (
	SeedMinAge = 18
	SeedMaxAge = 100
)

// ErrNonFinite is returned when wealth overflows float64 and a step report
// can no longer be represented.
var ErrNonFinite = errors.New("wealth is no longer finite")

// Options configures a Simulation beyond its Config.
type Options struct {
	Seed          uint64
	LogStats      bool                     // Log every step report at info level
	Output        *telemetry.OutputManager // Nil disables file output
	StatsCallback func(telemetry.StepReport)
}

// Simulation holds the state of one run. It is not safe for concurrent use;
// run independent simulations in separate goroutines instead.
type Simulation struct {
	cfg  *config.Config
	seed uint64
	rng  *rand.Rand

	pop       *agents.Population
	statePool float64
	step      int

	rates           systems.DemographicRates
	inheritanceRate float64
	popManager      *systems.PopulationManager
	trader          *systems.TradeEngine
	taxer           *systems.TaxCalculator

	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	perfWindow    int
	bookmarks     *telemetry.BookmarkDetector
	bookmarkLog   []telemetry.Bookmark
	output        *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.StepReport)
}

// New validates cfg and creates a seeded simulation. The config is copied.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	tel := cfg.Telemetry

	s := &Simulation{
		cfg:             cfg,
		seed:            opts.Seed,
		rng:             rng,
		pop:             agents.NewPopulation(),
		statePool:       cfg.StateCollections,
		rates:           systems.DemographicRatesFromConfig(cfg),
		inheritanceRate: cfg.InheritanceRate(),
		popManager:      systems.NewPopulationManager(rng, cfg.Population.DoubleCull),
		trader:          systems.NewTradeEngine(rng, systems.DefaultTradeParams()),
		taxer:           systems.NewTaxCalculator(rng, systems.TaxParamsFromConfig(cfg)),
		collector:       telemetry.NewCollector(cfg.NumTimeSteps),
		perf:            telemetry.NewPerfCollector(tel.PerfWindow),
		perfWindow:      max(tel.PerfWindow, 1),
		bookmarks:       telemetry.NewBookmarkDetector(tel.BookmarkHistorySize, tel.Bookmarks),
		output:          opts.Output,
		logStats:        opts.LogStats,
		statsCallback:   opts.StatsCallback,
	}
	s.seedPopulation()
	return s, nil
}

// seedPopulation splits the configured total evenly over the deciles. The
// integer-division remainder is dropped.
func (s *Simulation) seedPopulation() {
	perDecile := s.cfg.TotalPopulation / agents.NumDeciles
	for d := 1; d <= agents.NumDeciles; d++ {
		wealth := s.cfg.WealthPerDecile[d-1]
		for i := 0; i < perDecile; i++ {
			age := SeedMinAge + s.rng.IntN(SeedMaxAge-SeedMinAge+1)
			s.pop.Spawn(d, wealth, wealth, age, agents.StatusAlive)
		}
	}
	slog.Debug("population seeded", "agents", s.pop.Len(), "per_decile", perDecile, "seed", s.seed)
}

// Step advances the simulation by one time step and returns its report.
func (s *Simulation) Step() telemetry.StepReport {
	t := s.step
	s.perf.StartStep()

	s.perf.StartPhase(systems.PhasePopulation)
	change := s.popManager.Update(s.pop, s.rates, t == s.cfg.Population.FirstStepIndex)

	s.perf.StartPhase(systems.PhaseTrade)
	trades := s.trader.Trade(s.pop)

	s.perf.StartPhase(systems.PhaseTax)
	tax := s.taxer.Apply(s.pop)

	s.perf.StartPhase(systems.PhaseDeciles)
	cutoffs, matrix := systems.Reclassify(s.pop)

	s.perf.StartPhase(systems.PhaseInheritance)
	var inh systems.InheritanceSummary
	s.statePool, inh = systems.DistributeInheritance(s.pop, s.statePool, s.inheritanceRate)

	s.perf.StartPhase(systems.PhaseRedistribution)
	redist := systems.RedistributeTax(s.pop)

	s.perf.StartPhase(systems.PhaseMetrics)
	report := s.collector.Flush(telemetry.StepInput{
		Time:           t,
		Population:     s.pop,
		StatePool:      s.statePool,
		Cutoffs:        cutoffs,
		Matrix:         matrix,
		Redistribution: redist,
	})

	s.perf.StartPhase(systems.PhaseCleanup)
	pruned := s.cleanup()

	s.perf.EndStep()
	s.step++

	slog.Debug("step complete",
		"time", t,
		"births", change.Births,
		"deaths", change.Deaths,
		"migrations", change.Migrations,
		"culled", change.Culled,
		"pairs", trades.Pairs,
		"trades", trades.Executed,
		"taxed", tax.Taxed,
		"estates", inh.Estates,
		"share", redist.Share,
		"pruned", pruned,
	)

	s.flushTelemetry(report)
	return report
}

// cleanup prunes the dead (and migrants when configured), resets statuses
// to Alive and ages everyone by one year. Returns the number pruned.
func (s *Simulation) cleanup() int {
	removeMigrants := s.cfg.Population.RemoveMigrants
	pruned := s.pop.RemoveWhere(func(a *agents.Agent) bool {
		return a.Status == agents.StatusDead || (removeMigrants && a.Status == agents.StatusMigrated)
	})
	for _, a := range s.pop.Agents() {
		a.Status = agents.StatusAlive
		a.Age++
	}
	return pruned
}

// flushTelemetry hands the report to the callback, the output files and the
// bookmark detector.
func (s *Simulation) flushTelemetry(report telemetry.StepReport) {
	if s.statsCallback != nil {
		s.statsCallback(report)
	}
	if s.logStats {
		report.LogStats()
	}

	if err := s.output.WriteStep(report); err != nil {
		slog.Error("failed to write step", "error", err)
	}
	if s.step%s.perfWindow == 0 || s.Done() {
		perfStats := s.perf.Stats()
		if s.logStats {
			slog.Info("perf", "stats", perfStats)
		}
		if err := s.output.WritePerf(perfStats, report.Time); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	for _, bm := range s.bookmarks.Check(report) {
		s.bookmarkLog = append(s.bookmarkLog, bm)
		if s.logStats {
			bm.LogBookmark()
		}
		if err := s.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}
}

// Done reports whether every configured step has run.
func (s *Simulation) Done() bool {
	return s.step >= s.cfg.NumTimeSteps
}

// RunContext steps until done, checking ctx between steps. It stops with
// ErrNonFinite at the first step whose report holds an Inf or NaN total.
func (s *Simulation) RunContext(ctx context.Context) ([]telemetry.StepReport, error) {
	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation stopped at step %d: %w", s.step, err)
		}
		if report := s.Step(); !report.Finite() {
			return nil, fmt.Errorf("%w at step %d", ErrNonFinite, report.Time)
		}
	}
	return s.Reports(), nil
}

// Run executes a full simulation of cfg with the given seed and returns the
// reports of every step in time order.
func Run(ctx context.Context, cfg *config.Config, seed uint64) ([]telemetry.StepReport, error) {
	s, err := New(cfg, Options{Seed: seed})
	if err != nil {
		return nil, err
	}
	return s.RunContext(ctx)
}

// Reports returns the reports produced so far.
func (s *Simulation) Reports() []telemetry.StepReport {
	return s.collector.Reports()
}

// Bookmarks returns the bookmarks triggered so far.
func (s *Simulation) Bookmarks() []telemetry.Bookmark {
	return s.bookmarkLog
}

// Totals returns counters accumulated over the steps run so far.
func (s *Simulation) Totals() telemetry.RunTotals {
	return s.collector.Totals()
}

// PerfStats returns timing over the recent perf window.
func (s *Simulation) PerfStats() telemetry.PerfStats {
	return s.perf.Stats()
}

// Population returns the live population.
func (s *Simulation) Population() *agents.Population {
	return s.pop
}

// StatePool returns the cumulative state collections.
func (s *Simulation) StatePool() float64 {
	return s.statePool
}

// StepIndex returns the index of the next step to run.
func (s *Simulation) StepIndex() int {
	return s.step
}

// Seed returns the random seed of the run.
func (s *Simulation) Seed() uint64 {
	return s.seed
}

// Config returns the run configuration.
func (s *Simulation) Config() *config.Config {
	return s.cfg
}

// Snapshot packages the run for saving and replay.
func (s *Simulation) Snapshot(runID string) *telemetry.Snapshot {
	return &telemetry.Snapshot{
		Version:   telemetry.SnapshotVersion,
		RunID:     runID,
		RNGSeed:   s.seed,
		Config:    s.cfg,
		Reports:   s.Reports(),
		Bookmarks: s.bookmarkLog,
	}
}
