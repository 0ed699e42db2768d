package telemetry

import (
	"github.com/pthm-cable/wealthsim/agents"
	"github.com/pthm-cable/wealthsim/systems"
)

// StepInput is everything the aggregator needs from one step. Population
// must still carry the statuses set during the step.
type StepInput struct {
	Time           int
	Population     *agents.Population
	StatePool      float64
	Cutoffs        []systems.Cutoff
	Matrix         systems.TransitionMatrix
	Redistribution systems.RedistributionSummary
}

type decileAccum struct {
	stats   DecileStats
	wealth  []float64
	present bool
}

// Summarize aggregates one step into a StepReport. Dead agents count toward
// deaths and taxes of their last decile but not toward population or wealth.
func Summarize(in StepInput) StepReport {
	var acc [agents.NumDeciles]decileAccum
	var living []float64
	traded := 0

	if in.Population != nil {
		for _, a := range in.Population.Agents() {
			if a.Decile < 1 || a.Decile > agents.NumDeciles {
				continue
			}
			d := &acc[a.Decile-1]
			d.present = true
			st := &a.Step

			d.stats.IncomeTax += st.IncomeTax
			d.stats.CGTax += st.CGTax
			d.stats.WealthTax += st.WealthTax
			d.stats.InheritanceTax += st.InheritanceTax

			switch a.Status {
			case agents.StatusDead:
				d.stats.Deaths++
				continue
			case agents.StatusNewborn:
				d.stats.Births++
			case agents.StatusMigrated:
				d.stats.Migrations++
			}

			if st.Traded {
				traded++
			}
			d.stats.Population++
			d.stats.TotalWealth += a.Wealth
			d.stats.TotalWealthChange += st.WealthChange
			d.stats.TotalIncome += st.TotalIncome
			d.stats.TotalSavings += st.Savings
			d.wealth = append(d.wealth, a.Wealth)
			living = append(living, a.Wealth)
		}
	}

	r := StepReport{
		Time:                   in.Time,
		Population:             len(living),
		StateCollections:       in.StatePool,
		WealthByDecile:         DecileMap{},
		WealthTaxByDecile:      DecileMap{},
		IncomeTaxByDecile:      DecileMap{},
		InheritanceTaxByDecile: DecileMap{},
		CGTaxByDecile:          DecileMap{},
		DecileCutoffs:          CutoffSet{Time: in.Time, Cutoffs: in.Cutoffs},
		DecileTransitionMatrix: TransitionSet{Time: in.Time, Matrix: in.Matrix},
		Trades:                 traded / 2,
		RedistributionShare:    in.Redistribution.Share,
		GiniIndex:              Gini(living),
	}
	if r.DecileCutoffs.Cutoffs == nil {
		r.DecileCutoffs.Cutoffs = []systems.Cutoff{}
	}
	if r.DecileTransitionMatrix.Matrix == nil {
		r.DecileTransitionMatrix.Matrix = systems.TransitionMatrix{}
	}

	var decileWealth, decileIncome []float64
	var top, bottom, bottomHalf float64

	for i := range acc {
		d := &acc[i]
		if !d.present {
			continue
		}
		decile := i + 1
		s := &d.stats
		s.Time = in.Time
		s.Decile = decile
		if s.Population > 0 {
			n := float64(s.Population)
			s.AvgWealth, s.WealthStdDev = ComputeWealthStats(d.wealth)
			s.AvgWealthChange = s.TotalWealthChange / n
			s.AvgIncome = s.TotalIncome / n
			s.AvgSavings = s.TotalSavings / n
			s.Gini = Gini(d.wealth)
			r.WealthByDecile[decile] = s.AvgWealth
		}

		r.WealthTaxByDecile[decile] = s.WealthTax
		r.IncomeTaxByDecile[decile] = s.IncomeTax
		r.InheritanceTaxByDecile[decile] = s.InheritanceTax
		r.CGTaxByDecile[decile] = s.CGTax

		r.TotalWealthTax += s.WealthTax
		r.TotalIncomeTax += s.IncomeTax
		r.TotalInheritanceTax += s.InheritanceTax
		r.TotalCGTax += s.CGTax
		r.TotalWealth += s.TotalWealth
		r.Births += s.Births
		r.Deaths += s.Deaths
		r.Migrations += s.Migrations

		decileWealth = append(decileWealth, s.TotalWealth)
		decileIncome = append(decileIncome, s.TotalIncome)
		switch {
		case decile == 1:
			bottom = s.TotalWealth
			bottomHalf += s.TotalWealth
		case decile <= 5:
			bottomHalf += s.TotalWealth
		case decile == agents.NumDeciles:
			top = s.TotalWealth
		}
		r.Deciles = append(r.Deciles, *s)
	}

	r.WealthShareTop = share(top, r.TotalWealth)
	r.WealthShareBottom = share(bottom, r.TotalWealth)
	r.WealthShareBottomHalf = share(bottomHalf, r.TotalWealth)
	r.RatioTopBottom = NewRatio(top, bottom)
	r.RatioTopBottomHalf = NewRatio(top, bottomHalf)

	r.GiniOverallWealth = Gini(decileWealth)
	if traded > 0 {
		g := Gini(decileIncome)
		r.GiniOverallIncome = &g
	}

	if tax := r.TotalTax(); tax > 0 {
		r.TaxShareWealth = r.TotalWealthTax / tax
		r.TaxShareCG = r.TotalCGTax / tax
		r.TaxShareIncome = r.TotalIncomeTax / tax
		r.TaxShareInheritance = r.TotalInheritanceTax / tax
	}
	return r
}

// share returns part/total, or 0 when the quotient is undefined or the
// total has overflowed.
func share(part, total float64) float64 {
	if total == 0 || !finite(total) || !finite(part) {
		return 0
	}
	return part / total
}
