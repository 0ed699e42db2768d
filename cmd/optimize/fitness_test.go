package main

import (
	"context"
	"math"
	"testing"

	"github.com/pthm-cable/wealthsim/config"
)

func TestParamVector_NormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-12 {
			t.Errorf("%s: %v != %v", pv.Specs[i].Name, back[i], raw[i])
		}
	}
}

func TestParamVector_Clamp(t *testing.T) {
	pv := NewParamVector()
	got := pv.Clamp([]float64{-1, 5, 1})
	want := []float64{0, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("clamp[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParamVector_ApplyToConfig(t *testing.T) {
	pv := NewParamVector()
	cfg := config.MustDefault()
	base := cfg.Clone()

	pv.ApplyToConfig(cfg, []float64{0.3, 2, 0.5})

	if cfg.CGTax != 0.3 {
		t.Errorf("cg_tax = %v", cfg.CGTax)
	}
	for d := range cfg.SavingsRate {
		want := math.Min(base.SavingsRate[d]*2, 1)
		if cfg.SavingsRate[d] != want {
			t.Errorf("savings[%d] = %v, want %v", d, cfg.SavingsRate[d], want)
		}
		if cfg.RateOfReturn[d] != base.RateOfReturn[d]*0.5 {
			t.Errorf("return[%d] = %v", d, cfg.RateOfReturn[d])
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("applied config invalid: %v", err)
	}
}

func TestFitnessEvaluator_Evaluate(t *testing.T) {
	cfg := config.MustDefault()
	cfg.TotalPopulation = 200
	cfg.NumTimeSteps = 3

	fe := NewFitnessEvaluator(NewParamVector(), []uint64{1, 2}, cfg, 0.4)
	x := fe.params.DefaultVector()

	a := fe.Evaluate(context.Background(), x)
	if a < 0 || math.IsNaN(a) || a >= failedFitness {
		t.Fatalf("fitness = %v", a)
	}
	if g := fe.LastMeanGini(); g < 0 || g > 1 {
		t.Errorf("mean gini = %v", g)
	}
	if fe.BestConfig() == nil {
		t.Error("best config not recorded")
	}

	if b := fe.Evaluate(context.Background(), x); b != a {
		t.Errorf("same params scored %v then %v", a, b)
	}
}

func TestFitnessEvaluator_CancelledContext(t *testing.T) {
	cfg := config.MustDefault()
	cfg.TotalPopulation = 100
	cfg.NumTimeSteps = 2

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fe := NewFitnessEvaluator(NewParamVector(), []uint64{1}, cfg, 0.4)
	if got := fe.Evaluate(ctx, fe.params.DefaultVector()); got != failedFitness {
		t.Errorf("fitness = %v, want %v", got, failedFitness)
	}
}
