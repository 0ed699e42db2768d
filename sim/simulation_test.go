package sim

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/pthm-cable/wealthsim/agents"
	"github.com/pthm-cable/wealthsim/config"
	"github.com/pthm-cable/wealthsim/telemetry"
)

func testConfig(population, steps int) *config.Config {
	cfg := config.MustDefault()
	cfg.TotalPopulation = population
	cfg.NumTimeSteps = steps
	return cfg
}

func zeroDemographics(cfg *config.Config) {
	for i := range cfg.BirthRate {
		cfg.BirthRate[i] = 0
		cfg.DeathRate[i] = 0
		cfg.NetMigration[i] = 0
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(5, 1)
	if _, err := New(cfg, Options{}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(nil, Options{}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("nil config err = %v", err)
	}
}

func TestNew_SeedsEvenly(t *testing.T) {
	cfg := testConfig(105, 0)
	s, err := New(cfg, Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}

	pop := s.Population()
	if pop.Len() != 100 {
		t.Fatalf("seeded %d agents, want 100 (remainder dropped)", pop.Len())
	}
	idx := pop.BuildDecileIndex()
	for d := 1; d <= agents.NumDeciles; d++ {
		members := idx.Members(d)
		if len(members) != 10 {
			t.Errorf("decile %d has %d agents, want 10", d, len(members))
		}
		for _, a := range members {
			if a.Wealth != cfg.WealthPerDecile[d-1] || a.InitialWealth != a.Wealth {
				t.Errorf("agent %d wealth %v, want %v", a.ID, a.Wealth, cfg.WealthPerDecile[d-1])
			}
			if a.Age < SeedMinAge || a.Age > SeedMaxAge {
				t.Errorf("agent %d age %d out of range", a.ID, a.Age)
			}
			if a.ParentA != agents.NoParent || a.ParentB != agents.NoParent {
				t.Errorf("seeded agent %d has parents", a.ID)
			}
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := testConfig(300, 6)
	a, err := Run(context.Background(), cfg, 99)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(context.Background(), cfg, 99)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different reports")
	}

	c, err := Run(context.Background(), cfg, 100)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical reports")
	}
}

func TestRun_ReportInvariants(t *testing.T) {
	reports, err := Run(context.Background(), testConfig(500, 8), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 8 {
		t.Fatalf("got %d reports, want 8", len(reports))
	}

	prevPool := -1.0
	for i, r := range reports {
		if r.Time != i {
			t.Errorf("report %d has time %d", i, r.Time)
		}

		sum := 0
		for _, d := range r.Deciles {
			sum += d.Population
		}
		if sum != r.Population {
			t.Errorf("step %d: decile sizes sum %d, living %d", i, sum, r.Population)
		}

		for prev := range r.DecileTransitionMatrix.Matrix {
			if rs := r.DecileTransitionMatrix.Matrix.RowSum(prev); math.Abs(rs-100) > 1e-6 {
				t.Errorf("step %d: row %d sums to %v", i, prev, rs)
			}
		}

		if r.StateCollections < prevPool {
			t.Errorf("step %d: state pool fell from %v to %v", i, prevPool, r.StateCollections)
		}
		prevPool = r.StateCollections
	}
}

func TestRun_ZeroRatesKeepSize(t *testing.T) {
	cfg := testConfig(100, 1)
	zeroDemographics(cfg)

	s, err := New(cfg, Options{Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	reports, err := s.RunContext(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if reports[0].Population != 100 || s.Population().Len() != 100 {
		t.Errorf("population = %d/%d, want 100", reports[0].Population, s.Population().Len())
	}
	if reports[0].Births != 0 || reports[0].Deaths != 0 {
		t.Errorf("births/deaths = %d/%d", reports[0].Births, reports[0].Deaths)
	}
}

func TestStep_SameDecileScenario(t *testing.T) {
	cfg := testConfig(20, 1)
	zeroDemographics(cfg)
	for i := range cfg.WealthPerDecile {
		cfg.WealthPerDecile[i] = 100
	}

	s, err := New(cfg, Options{Seed: 11})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range s.Population().Agents() {
		a.Decile = 1
	}

	r := s.Step()

	if r.Trades != 10 {
		t.Errorf("trades = %d, want 10", r.Trades)
	}
	if r.Population != 20 {
		t.Errorf("population = %d, want 20", r.Population)
	}
	if r.GiniIndex < 0 {
		t.Errorf("gini = %v", r.GiniIndex)
	}
}

func TestRun_PopulationCollapseCompletes(t *testing.T) {
	cfg := testConfig(50, 4)
	zeroDemographics(cfg)
	for i := range cfg.DeathRate {
		cfg.DeathRate[i] = 1
	}

	reports, err := Run(context.Background(), cfg, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 4 {
		t.Fatalf("got %d reports, want 4", len(reports))
	}
	for _, r := range reports {
		if r.Population != 0 {
			t.Errorf("step %d population = %d, want 0", r.Time, r.Population)
		}
	}
	last := reports[3]
	if last.TotalWealth != 0 || last.GiniIndex != 0 || !last.RatioTopBottom.IsInf() {
		t.Errorf("empty step report = %+v", last)
	}
}

func TestRunContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testConfig(100, 3), 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunContext_WealthOverflow(t *testing.T) {
	cfg := testConfig(10, 3000)
	zeroDemographics(cfg)

	reports, err := Run(context.Background(), cfg, 3)
	if !errors.Is(err, ErrNonFinite) {
		t.Fatalf("err = %v, want ErrNonFinite", err)
	}
	if reports != nil {
		t.Errorf("got %d reports from an overflowed run", len(reports))
	}
}

func TestCleanup(t *testing.T) {
	for _, remove := range []bool{false, true} {
		cfg := testConfig(20, 0)
		cfg.Population.RemoveMigrants = remove
		s, err := New(cfg, Options{})
		if err != nil {
			t.Fatal(err)
		}
		all := s.Population().Agents()
		all[0].Status = agents.StatusDead
		all[1].Status = agents.StatusMigrated
		all[2].Status = agents.StatusNewborn
		age := all[3].Age

		pruned := s.cleanup()

		want := 1
		if remove {
			want = 2
		}
		if pruned != want {
			t.Errorf("remove=%v: pruned %d, want %d", remove, pruned, want)
		}
		for _, a := range s.Population().Agents() {
			if a.Status != agents.StatusAlive {
				t.Errorf("agent %d status %v after cleanup", a.ID, a.Status)
			}
		}
		if got := s.Population().Get(all[3].ID).Age; got != age+1 {
			t.Errorf("age = %d, want %d", got, age+1)
		}
	}
}

func TestStatsCallbackAndSnapshot(t *testing.T) {
	var seen []int
	s, err := New(testConfig(100, 3), Options{
		Seed:          4,
		StatsCallback: func(r telemetry.StepReport) { seen = append(seen, r.Time) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunContext(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(seen, []int{0, 1, 2}) {
		t.Errorf("callback times = %v", seen)
	}
	snap := s.Snapshot("abc")
	if snap.RNGSeed != 4 || snap.RunID != "abc" || len(snap.Reports) != 3 {
		t.Errorf("snapshot = %+v", snap)
	}
	if s.Totals().Steps != 3 {
		t.Errorf("totals steps = %d", s.Totals().Steps)
	}
}
