package systems

import (
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/wealthsim/agents"
	"github.com/pthm-cable/wealthsim/config"
)

// NewbornAge is the age every agent enters the population with.
const NewbornAge = 18

// DemographicRates holds per-decile turnover rates (index 0 = decile 1).
type DemographicRates struct {
	Birth     []float64
	Death     []float64
	Migration []float64
	AvgWealth []float64
}

// DemographicRatesFromConfig extracts the demographic arrays.
func DemographicRatesFromConfig(cfg *config.Config) DemographicRates {
	return DemographicRates{
		Birth:     cfg.BirthRate,
		Death:     cfg.DeathRate,
		Migration: cfg.NetMigration,
		AvgWealth: cfg.WealthPerDecile,
	}
}

// PopulationChange counts what one Update did.
type PopulationChange struct {
	Births     int
	Deaths     int
	Migrations int
	Culled     int
}

// PopulationManager applies births, deaths and migrations decile by decile.
type PopulationManager struct {
	rng *rand.Rand

	// DoubleCull drops an extra random sample from a shrinking decile on top
	// of the death marks.
	DoubleCull bool
}

// NewPopulationManager creates a manager drawing from rng.
func NewPopulationManager(rng *rand.Rand, doubleCull bool) *PopulationManager {
	return &PopulationManager{rng: rng, DoubleCull: doubleCull}
}

// Update resets per-step state and applies one step of demographic turnover.
// Deciles with no members are skipped.
func (m *PopulationManager) Update(pop *agents.Population, rates DemographicRates, isFirstStep bool) PopulationChange {
	pop.ResetStep()
	idx := pop.BuildDecileIndex()

	var change PopulationChange
	for d := 1; d <= agents.NumDeciles; d++ {
		members := idx.Members(d)
		count := len(members)
		if count == 0 {
			continue
		}
		slot := d - 1

		births := int(math.Floor(float64(count) * rates.Birth[slot]))
		deaths := int(math.Floor(float64(count) * rates.Death[slot]))
		migrations := int(math.Floor(float64(count) * rates.Migration[slot]))
		target := max(count+births-deaths, 0)

		if deaths > 0 {
			for _, i := range sampleIndices(m.rng, count, deaths) {
				members[i].Status = agents.StatusDead
			}
		}

		// Independent of the death sample; a later mark wins.
		if migrations > 0 {
			for _, i := range sampleIndices(m.rng, count, migrations) {
				members[i].Status = agents.StatusMigrated
			}
		}

		if births > 0 {
			if toAdd := target - count; toAdd > 0 {
				m.spawnNewborns(pop, idx, d, toAdd, rates.AvgWealth[slot], isFirstStep)
				change.Births += toAdd
			}
		}

		if target < count && m.DoubleCull {
			drop := sampleIndices(m.rng, count, count-target)
			ids := make([]agents.ID, len(drop))
			dropped := make(map[agents.ID]struct{}, len(drop))
			for j, i := range drop {
				ids[j] = members[i].ID
				dropped[members[i].ID] = struct{}{}
			}
			pop.Remove(ids)
			change.Culled += len(ids)

			// Later deciles read this decile's minimum wealth.
			kept := make([]*agents.Agent, 0, count-len(ids))
			for _, a := range members {
				if _, gone := dropped[a.ID]; !gone {
					kept = append(kept, a)
				}
			}
			idx[slot] = kept
		}
	}

	change.Deaths = pop.CountStatus(agents.StatusDead)
	change.Migrations = pop.CountStatus(agents.StatusMigrated)
	return change
}

// spawnNewborns adds n agents to decile d. Members of the decile (before
// births) supply sampled wealth and parents.
func (m *PopulationManager) spawnNewborns(pop *agents.Population, idx *agents.DecileIndex, d, n int, avgWealth float64, isFirstStep bool) {
	members := idx.Members(d)
	count := len(members)

	wealth := make([]float64, n)
	for i := range wealth {
		if count > 0 {
			wealth[i] = members[m.rng.IntN(count)].Wealth
		} else {
			wealth[i] = avgWealth
		}
	}

	initial := make([]float64, n)
	if isFirstStep {
		for i := range initial {
			initial[i] = avgWealth
		}
	} else {
		lo := 0.0
		if d > 1 {
			lo = minWealth(idx.Members(d - 1))
		}
		hi := maxWealth(members)
		for i := range initial {
			initial[i] = uniform(m.rng, lo, hi)
		}
	}

	// Parent A takes the first n slots of one permutation, parent B the
	// next n, so the two never coincide while the decile has 2n members.
	var perm []int
	if count > 0 {
		perm = m.rng.Perm(count)
	}

	for i := 0; i < n; i++ {
		a := pop.Spawn(d, wealth[i], initial[i], NewbornAge, agents.StatusNewborn)
		a.Step.PrevDecile = d
		if count == 0 {
			continue
		}
		pa := perm[i%count]
		pb := perm[(n+i)%count]
		if pa == pb && count > 1 {
			pb = perm[(n+i+1)%count]
		}
		a.ParentA = members[pa].ID
		if pb != pa {
			a.ParentB = members[pb].ID
		}
	}
}

func minWealth(members []*agents.Agent) float64 {
	if len(members) == 0 {
		return 0
	}
	lo := members[0].Wealth
	for _, a := range members[1:] {
		lo = min(lo, a.Wealth)
	}
	return lo
}

func maxWealth(members []*agents.Agent) float64 {
	if len(members) == 0 {
		return 0
	}
	hi := members[0].Wealth
	for _, a := range members[1:] {
		hi = max(hi, a.Wealth)
	}
	return hi
}
