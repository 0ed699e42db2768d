package systems

import "github.com/pthm-cable/wealthsim/agents"

// DefaultInheritanceRate is the estate tax applied unless configured rates
// are honored.
const DefaultInheritanceRate = 0.3

// InheritanceSummary reports one inheritance pass.
type InheritanceSummary struct {
	Estates      int
	ToChildren   float64
	ToState      float64
	TaxCollected float64
}

// DistributeInheritance taxes every Dead agent's estate and splits the rest
// equally among the agents naming it as a parent. Estates without children
// go to the state pool, which is returned. Must run before the dead are
// pruned. Non-positive estates are written off.
func DistributeInheritance(pop *agents.Population, statePool, rate float64) (float64, InheritanceSummary) {
	var sum InheritanceSummary
	children := pop.BuildChildIndex()

	for _, a := range pop.Agents() {
		if a.Status != agents.StatusDead {
			continue
		}
		sum.Estates++
		if a.Wealth <= 0 {
			continue
		}

		tax := a.Wealth * rate
		net := a.Wealth - tax
		a.Step.InheritanceTax = tax
		sum.TaxCollected += tax
		a.Wealth = 0

		kids := children[a.ID]
		if len(kids) == 0 {
			statePool += net
			sum.ToState += net
			continue
		}

		share := net / float64(len(kids))
		for _, id := range kids {
			if child := pop.Get(id); child != nil {
				child.Wealth += share
				sum.ToChildren += share
			}
		}
	}
	return statePool, sum
}
