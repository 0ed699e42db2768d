package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/wealthsim/agents"
)

func filled(v float64) []float64 {
	out := make([]float64, agents.NumDeciles)
	for i := range out {
		out[i] = v
	}
	return out
}

func testTaxParams() TaxParams {
	return TaxParams{
		RateOfReturn:      filled(0.1),
		SavingsRate:       filled(0.5),
		UnemploymentRate:  filled(0.5),
		WageLow:           filled(100),
		WageHigh:          filled(100),
		CGTaxRate:         0.2,
		IncomeBrackets:    []float64{0, 0.1, 0.2, 0.3},
		WealthTaxSchedule: filled(0.1),
	}
}

func pairUp(a, b *agents.Agent, gainA, gainB float64) {
	recordTrade(a, b.ID, gainA)
	recordTrade(b, a.ID, gainB)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBracketsRate(t *testing.T) {
	b := Brackets{P25: 10, P50: 20, P75: 30}
	rates := []float64{0, 0.1, 0.2, 0.3}
	tests := []struct {
		gain float64
		want float64
	}{
		{-5, 0}, {9.99, 0}, {10, 0.1}, {19, 0.1}, {20, 0.2}, {29, 0.2}, {30, 0.3}, {1e6, 0.3},
	}
	for _, tt := range tests {
		if got := b.Rate(tt.gain, rates); got != tt.want {
			t.Errorf("Rate(%v) = %v, want %v", tt.gain, got, tt.want)
		}
	}
}

func TestApply_SettlesPairByHand(t *testing.T) {
	pop := agents.NewPopulation()
	a := pop.Spawn(1, 1000, 1000, 30, agents.StatusAlive)
	b := pop.Spawn(1, 500, 500, 30, agents.StatusAlive)
	pairUp(a, b, 50, 10)

	sum := NewTaxCalculator(testRNG(), testTaxParams()).Apply(pop)

	// Gains [10, 50]: P25=20, P50=30, P75=40.
	if !approx(sum.Brackets.P25, 20) || !approx(sum.Brackets.P50, 30) || !approx(sum.Brackets.P75, 40) {
		t.Fatalf("brackets = %+v", sum.Brackets)
	}
	if sum.Taxed != 2 {
		t.Errorf("taxed = %d, want 2", sum.Taxed)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"a wages", a.Step.Wages, 50},
		{"a income tax", a.Step.IncomeTax, 30},
		{"a savings", a.Step.Savings, 35},
		{"a cg tax", a.Step.CGTax, 20},
		{"a net return", a.Step.NetReturn, 1015},
		{"a wealth tax", a.Step.WealthTax, 100},
		{"a wealth", a.Wealth, 1915},
		{"a change", a.Step.WealthChange, 915},
		{"b income tax", b.Step.IncomeTax, 0},
		{"b savings", b.Step.Savings, 30},
		{"b cg tax", b.Step.CGTax, 10},
		{"b wealth", b.Wealth, 970},
		{"b prior", b.Step.PriorWealth, 500},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApply_ZeroTaxesDeductNothing(t *testing.T) {
	pop := agents.NewPopulation()
	for i := 0; i < 40; i++ {
		pop.Spawn(1+i%4, float64(100+10*i), 100, 30, agents.StatusAlive)
	}
	rng := testRNG()
	NewTradeEngine(rng, DefaultTradeParams()).Trade(pop)

	params := testTaxParams()
	params.CGTaxRate = 0
	params.IncomeBrackets = []float64{0, 0, 0, 0}
	params.WealthTaxSchedule = filled(0)
	params.WageLow = filled(50)
	params.WageHigh = filled(150)
	NewTaxCalculator(rng, params).Apply(pop)

	for _, a := range pop.Agents() {
		if !a.Step.Traded {
			continue
		}
		if a.Step.TotalTax() != 0 {
			t.Errorf("agent %d paid %v tax", a.ID, a.Step.TotalTax())
		}
		wantIncome := a.Step.TradeGain + a.Step.Wages
		if !approx(a.Step.TotalIncome, wantIncome) {
			t.Errorf("agent %d income = %v, want %v", a.ID, a.Step.TotalIncome, wantIncome)
		}
		want := 2*a.Step.PriorWealth + max(0, wantIncome*0.5)
		if !approx(a.Wealth, want) {
			t.Errorf("agent %d wealth = %v, want %v", a.ID, a.Wealth, want)
		}
	}
}

func TestApply_UntradedUnchanged(t *testing.T) {
	pop := agents.NewPopulation()
	a := pop.Spawn(3, 700, 700, 30, agents.StatusDead)
	NewTaxCalculator(testRNG(), testTaxParams()).Apply(pop)
	if a.Wealth != 700 || a.Step.TotalTax() != 0 || a.Step.Wages != 0 {
		t.Errorf("untraded agent touched: wealth=%v step=%+v", a.Wealth, a.Step)
	}
}

func TestApply_NegativeIncomeNotTaxed(t *testing.T) {
	pop := agents.NewPopulation()
	a := pop.Spawn(1, 100, 100, 30, agents.StatusAlive)
	b := pop.Spawn(1, 100, 100, 30, agents.StatusAlive)
	pairUp(a, b, -500, 0)

	params := testTaxParams()
	params.IncomeBrackets = []float64{0.3, 0.3, 0.3, 0.3}
	NewTaxCalculator(testRNG(), params).Apply(pop)

	if a.Step.IncomeTax != 0 {
		t.Errorf("income tax on negative income = %v", a.Step.IncomeTax)
	}
	if a.Step.Savings != 0 {
		t.Errorf("savings from negative income = %v, want 0", a.Step.Savings)
	}
}
