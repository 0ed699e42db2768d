package agents

import "testing"

func TestSpawnAssignsMonotonicIDs(t *testing.T) {
	p := NewPopulation()
	a := p.Spawn(1, 100, 100, 30, StatusAlive)
	b := p.Spawn(2, 200, 200, 40, StatusAlive)
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", a.ID, b.ID)
	}

	p.Remove([]ID{b.ID})
	c := p.Spawn(3, 300, 300, 50, StatusAlive)
	if c.ID != 3 {
		t.Errorf("id after removal = %d, want 3 (never reused)", c.ID)
	}
	if p.Get(b.ID) != nil {
		t.Error("removed agent still reachable by ID")
	}
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}
}

func TestAddKeepsIDOrder(t *testing.T) {
	p := NewPopulation()
	for _, id := range []ID{5, 2, 9, 1} {
		if !p.Add(&Agent{ID: id, Decile: 1}) {
			t.Fatalf("Add(%d) rejected", id)
		}
	}
	if p.Add(&Agent{ID: 2}) {
		t.Error("duplicate ID accepted")
	}

	want := []ID{1, 2, 5, 9}
	for i, a := range p.Agents() {
		if a.ID != want[i] {
			t.Errorf("agents[%d].ID = %d, want %d", i, a.ID, want[i])
		}
	}
	if p.NextID() != 10 {
		t.Errorf("NextID = %d, want 10", p.NextID())
	}
}

func TestRemoveWhere(t *testing.T) {
	p := NewPopulation()
	for i := 0; i < 6; i++ {
		p.Spawn(1, float64(i), 0, 20, StatusAlive)
	}
	p.Agents()[1].Status = StatusDead
	p.Agents()[4].Status = StatusDead

	removed := p.RemoveWhere(func(a *Agent) bool { return a.Status == StatusDead })
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if p.Len() != 4 || p.CountStatus(StatusDead) != 0 {
		t.Errorf("Len = %d dead = %d, want 4 and 0", p.Len(), p.CountStatus(StatusDead))
	}
}

func TestDecileIndex(t *testing.T) {
	p := NewPopulation()
	for d := 1; d <= NumDeciles; d++ {
		for i := 0; i < d; i++ {
			p.Spawn(d, 1, 1, 20, StatusAlive)
		}
	}
	idx := p.BuildDecileIndex()
	for d := 1; d <= NumDeciles; d++ {
		if got := len(idx.Members(d)); got != d {
			t.Errorf("decile %d has %d members, want %d", d, got, d)
		}
	}
	if idx.Members(0) != nil || idx.Members(11) != nil {
		t.Error("out of range decile should have no members")
	}
}

func TestChildIndex(t *testing.T) {
	p := NewPopulation()
	mum := p.Spawn(1, 1, 1, 40, StatusAlive)
	dad := p.Spawn(1, 1, 1, 40, StatusAlive)
	kid1 := p.Spawn(1, 1, 1, 18, StatusNewborn)
	kid2 := p.Spawn(1, 1, 1, 18, StatusNewborn)
	kid1.ParentA, kid1.ParentB = mum.ID, dad.ID
	kid2.ParentA, kid2.ParentB = dad.ID, mum.ID

	idx := p.BuildChildIndex()
	if len(idx[mum.ID]) != 2 || len(idx[dad.ID]) != 2 {
		t.Errorf("children: mum=%v dad=%v, want two each", idx[mum.ID], idx[dad.ID])
	}
	if len(idx[kid1.ID]) != 0 {
		t.Error("childless agent has children")
	}
	if !kid2.HasParent(mum.ID) || kid2.HasParent(kid1.ID) {
		t.Error("HasParent mismatch")
	}
}

func TestResetStep(t *testing.T) {
	p := NewPopulation()
	a := p.Spawn(4, 10, 10, 30, StatusMigrated)
	a.Step.IncomeTax = 5
	a.Step.Traded = true

	p.ResetStep()
	if a.Status != StatusAlive {
		t.Errorf("status = %v, want alive", a.Status)
	}
	if a.Step.IncomeTax != 0 || a.Step.Traded {
		t.Error("transient fields not cleared")
	}
	if a.Step.PrevDecile != 4 {
		t.Errorf("PrevDecile = %d, want 4", a.Step.PrevDecile)
	}
}
