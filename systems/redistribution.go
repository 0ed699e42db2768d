package systems

import (
	"math"

	"github.com/pthm-cable/wealthsim/agents"
)

// RedistributionSummary reports one redistribution pass.
type RedistributionSummary struct {
	TotalTax float64
	Eligible int
	Share    float64
}

// RedistributeTax pools every tax collected this step and adds an equal share
// to each non-Dead agent with finite wealth.
func RedistributeTax(pop *agents.Population) RedistributionSummary {
	var sum RedistributionSummary
	for _, a := range pop.Agents() {
		sum.TotalTax += a.Step.TotalTax()
		if eligibleForShare(a) {
			sum.Eligible++
		}
	}
	if sum.Eligible == 0 {
		return sum
	}

	sum.Share = sum.TotalTax / float64(sum.Eligible)
	for _, a := range pop.Agents() {
		if eligibleForShare(a) {
			a.Wealth += sum.Share
			a.Step.TaxShare = sum.Share
		}
	}
	return sum
}

func eligibleForShare(a *agents.Agent) bool {
	return a.Living() && !math.IsNaN(a.Wealth) && !math.IsInf(a.Wealth, 0)
}
