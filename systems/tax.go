package systems

import (
	"math/rand/v2"

	"github.com/pthm-cable/wealthsim/agents"
	"github.com/pthm-cable/wealthsim/config"
)

// TaxParams holds the per-decile economic parameters and tax schedules.
// Per-decile slices are indexed by decile-1.
type TaxParams struct {
	RateOfReturn      []float64
	SavingsRate       []float64
	UnemploymentRate  []float64
	WageLow           []float64
	WageHigh          []float64
	CGTaxRate         float64
	IncomeBrackets    []float64 // Rates below P25, below P50, below P75, above
	WealthTaxSchedule []float64
}

// TaxParamsFromConfig extracts tax parameters, resolving which wealth tax
// schedule is in effect.
func TaxParamsFromConfig(cfg *config.Config) TaxParams {
	return TaxParams{
		RateOfReturn:      cfg.RateOfReturn,
		SavingsRate:       cfg.SavingsRate,
		UnemploymentRate:  cfg.UnemploymentRate,
		WageLow:           cfg.WageBandLow,
		WageHigh:          cfg.WageBandHigh,
		CGTaxRate:         cfg.CGTax,
		IncomeBrackets:    cfg.Tax.IncomeBracketRates,
		WealthTaxSchedule: cfg.WealthTaxSchedule(),
	}
}

// Brackets are the trade-gain quartile edges of one step.
type Brackets struct {
	P25, P50, P75 float64
}

// Rate returns the income tax rate for a trade gain.
func (b Brackets) Rate(gain float64, rates []float64) float64 {
	switch {
	case gain < b.P25:
		return rates[0]
	case gain < b.P50:
		return rates[1]
	case gain < b.P75:
		return rates[2]
	}
	return rates[3]
}

// TaxSummary reports the brackets used and how many agents were taxed.
type TaxSummary struct {
	Brackets Brackets
	Taxed    int
}

// TaxCalculator settles wages, taxes and savings for every traded agent.
type TaxCalculator struct {
	rng    *rand.Rand
	Params TaxParams
}

// NewTaxCalculator creates a calculator drawing wages from rng.
func NewTaxCalculator(rng *rand.Rand, params TaxParams) *TaxCalculator {
	return &TaxCalculator{rng: rng, Params: params}
}

// ComputeBrackets returns the quartiles of all recorded trade gains.
func ComputeBrackets(pop *agents.Population) Brackets {
	var gains []float64
	for _, a := range pop.Agents() {
		if a.Step.Traded {
			gains = append(gains, a.Step.TradeGain)
		}
	}
	sorted := sortedFinite(gains)
	return Brackets{
		P25: Percentile(sorted, 0.25),
		P50: Percentile(sorted, 0.50),
		P75: Percentile(sorted, 0.75),
	}
}

// Apply settles every valid trade pair once, in ascending ID order of the
// lower member, and updates each member's wealth.
func (c *TaxCalculator) Apply(pop *agents.Population) TaxSummary {
	sum := TaxSummary{Brackets: ComputeBrackets(pop)}

	for _, a := range pop.Agents() {
		if !a.Step.Traded || a.Step.TradePartner < a.ID {
			continue
		}
		b := pop.Get(a.Step.TradePartner)
		if b == nil || !b.Step.Traded {
			continue
		}
		wageA := c.drawWage(a.Decile)
		wageB := c.drawWage(b.Decile)
		c.settle(a, wageA, sum.Brackets)
		c.settle(b, wageB, sum.Brackets)
		sum.Taxed += 2
	}
	return sum
}

func (c *TaxCalculator) drawWage(decile int) float64 {
	s := decileSlot(decile)
	return uniform(c.rng, c.Params.WageLow[s], c.Params.WageHigh[s]) * (1 - c.Params.UnemploymentRate[s])
}

func (c *TaxCalculator) settle(a *agents.Agent, wage float64, brackets Brackets) {
	s := decileSlot(a.Decile)
	st := &a.Step
	prior := a.Wealth

	st.PriorWealth = prior
	st.Wages = wage
	st.TotalIncome = st.TradeGain + wage

	if st.TotalIncome > 0 {
		st.IncomeTax = brackets.Rate(st.TradeGain, c.Params.IncomeBrackets) * st.TotalIncome
	}
	net := st.TotalIncome - st.IncomeTax
	st.Savings = max(0, net*c.Params.SavingsRate[s])

	st.CGTax = prior * c.Params.RateOfReturn[s] * c.Params.CGTaxRate
	st.NetReturn = prior + st.Savings - st.CGTax
	st.WealthTax = prior * c.Params.WealthTaxSchedule[s]

	a.Wealth = prior + st.NetReturn - st.WealthTax
	st.WealthChange = a.Wealth - prior
}
