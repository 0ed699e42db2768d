package systems

import (
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/wealthsim/agents"
)

// TradeParams holds the stochastic trade model constants.
type TradeParams struct {
	RiskAversionMin float64 // Lower bound of the share of wealth put at risk
	RiskAversionMax float64 // Upper bound of the share of wealth put at risk
	ReturnMean      float64 // Mean pooled return rate
	ReturnStdDev    float64 // Std dev of pooled return rate (untruncated)
	MinProbability  float64 // Trades execute when 1/(|dA-dB|+1) exceeds this
}

// DefaultTradeParams returns the standard trade model.
func DefaultTradeParams() TradeParams {
	return TradeParams{
		RiskAversionMin: 0.25,
		RiskAversionMax: 0.75,
		ReturnMean:      0.1,
		ReturnStdDev:    0.2,
		MinProbability:  0.25,
	}
}

// TradeSummary counts what one Trade call did.
type TradeSummary struct {
	Pairs     int // Valid pairs (both Alive)
	Executed  int // Pairs whose deciles were close enough to generate gains
	TotalGain float64
}

// TradeEngine randomly pairs agents and draws investment gains.
type TradeEngine struct {
	rng    *rand.Rand
	Params TradeParams
}

// NewTradeEngine creates an engine drawing from rng.
func NewTradeEngine(rng *rand.Rand, params TradeParams) *TradeEngine {
	return &TradeEngine{rng: rng, Params: params}
}

// TradeProbability returns 1/(|dA-dB|+1).
func TradeProbability(dA, dB int) float64 {
	diff := dA - dB
	if diff < 0 {
		diff = -diff
	}
	return 1 / float64(diff+1)
}

// Trade permutes the whole population, pairs consecutive agents and records
// a gain for both sides of every pair whose members are Alive. An odd agent
// out is left unpaired.
func (e *TradeEngine) Trade(pop *agents.Population) TradeSummary {
	all := pop.Agents()
	perm := e.rng.Perm(len(all))

	var sum TradeSummary
	for i := 0; i+1 < len(perm); i += 2 {
		a := all[perm[i]]
		b := all[perm[i+1]]
		if a.Status != agents.StatusAlive || b.Status != agents.StatusAlive {
			continue
		}

		indicator := 0.0
		if TradeProbability(a.Decile, b.Decile) > e.Params.MinProbability {
			indicator = 1
		}

		riskA := uniform(e.rng, e.Params.RiskAversionMin, e.Params.RiskAversionMax)
		riskB := uniform(e.rng, e.Params.RiskAversionMin, e.Params.RiskAversionMax)
		investA := uniform(e.rng, 0, a.Wealth*riskA)
		investB := uniform(e.rng, 0, b.Wealth*riskB)
		pooled := investA + investB + 1
		rate := normal(e.rng, e.Params.ReturnMean, e.Params.ReturnStdDev)

		gainA := indicator * (1 + rate) * pooled * (investA / pooled)
		gainB := indicator * (1 + rate) * pooled * (investB / pooled)

		recordTrade(a, b.ID, gainA)
		recordTrade(b, a.ID, gainB)

		sum.Pairs++
		if indicator > 0 {
			sum.Executed++
		}
		if !math.IsNaN(gainA + gainB) {
			sum.TotalGain += gainA + gainB
		}
	}
	return sum
}

func recordTrade(a *agents.Agent, partner agents.ID, gain float64) {
	a.Step.Traded = true
	a.Step.TradePartner = partner
	a.Step.TradeGain = gain
}
