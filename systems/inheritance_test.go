package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/wealthsim/agents"
)

func TestDistributeInheritance_SplitsAmongChildren(t *testing.T) {
	pop := agents.NewPopulation()
	parent := pop.Spawn(5, 1000, 1000, 80, agents.StatusDead)
	other := pop.Spawn(5, 10, 10, 60, agents.StatusAlive)
	kid1 := pop.Spawn(5, 100, 100, 18, agents.StatusAlive)
	kid2 := pop.Spawn(5, 200, 200, 18, agents.StatusNewborn)
	kid1.ParentA, kid1.ParentB = parent.ID, other.ID
	kid2.ParentA, kid2.ParentB = other.ID, parent.ID

	pool, sum := DistributeInheritance(pop, 0, DefaultInheritanceRate)

	if pool != 0 {
		t.Errorf("pool = %v, want 0", pool)
	}
	if math.Abs(kid1.Wealth-450) > 1e-9 || math.Abs(kid2.Wealth-550) > 1e-9 {
		t.Errorf("children = %v, %v, want +350 each", kid1.Wealth, kid2.Wealth)
	}
	if math.Abs(parent.Step.InheritanceTax-300) > 1e-9 {
		t.Errorf("inheritance tax = %v, want 300", parent.Step.InheritanceTax)
	}
	if other.Wealth != 10 {
		t.Error("living co-parent must not inherit")
	}
	if sum.Estates != 1 || math.Abs(sum.ToChildren-700) > 1e-9 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestDistributeInheritance_ChildlessGoesToState(t *testing.T) {
	pop := agents.NewPopulation()
	pop.Spawn(9, 1000, 1000, 80, agents.StatusDead)

	pool, sum := DistributeInheritance(pop, 50, DefaultInheritanceRate)

	if math.Abs(pool-750) > 1e-9 {
		t.Errorf("pool = %v, want 750", pool)
	}
	if math.Abs(sum.ToState-700) > 1e-9 {
		t.Errorf("to state = %v, want 700", sum.ToState)
	}
}

func TestDistributeInheritance_PoolNeverDecreases(t *testing.T) {
	pop := agents.NewPopulation()
	pop.Spawn(1, -400, 0, 80, agents.StatusDead)
	pop.Spawn(1, 0, 0, 80, agents.StatusDead)

	pool, _ := DistributeInheritance(pop, 123, DefaultInheritanceRate)
	if pool != 123 {
		t.Errorf("pool = %v, want unchanged 123", pool)
	}
}

func TestDistributeInheritance_IgnoresLiving(t *testing.T) {
	pop := agents.NewPopulation()
	a := pop.Spawn(1, 1000, 1000, 40, agents.StatusMigrated)
	pool, sum := DistributeInheritance(pop, 0, DefaultInheritanceRate)
	if pool != 0 || sum.Estates != 0 || a.Wealth != 1000 {
		t.Errorf("living agent processed: pool=%v sum=%+v", pool, sum)
	}
}
