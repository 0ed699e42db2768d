package agents

import "sort"

// Population holds agents keyed by ID. Iteration is always in ascending ID
// order so runs driven by the same random source are reproducible.
type Population struct {
	agents []*Agent
	byID   map[ID]*Agent
	nextID ID
}

// NewPopulation creates an empty population. The first issued ID is 1.
func NewPopulation() *Population {
	return &Population{
		byID:   make(map[ID]*Agent),
		nextID: 1,
	}
}

// Spawn creates a new agent with a fresh ID and adds it to the population.
func (p *Population) Spawn(decile int, wealth, initialWealth float64, age int, status Status) *Agent {
	a := &Agent{
		ID:            p.nextID,
		Decile:        decile,
		Wealth:        wealth,
		InitialWealth: initialWealth,
		Age:           age,
		Status:        status,
	}
	p.nextID++
	p.agents = append(p.agents, a)
	p.byID[a.ID] = a
	return a
}

// Add inserts an externally built agent. It returns false if the ID is
// already taken. The ID counter advances past the inserted ID.
func (p *Population) Add(a *Agent) bool {
	if _, ok := p.byID[a.ID]; ok || a.ID <= 0 {
		return false
	}
	p.byID[a.ID] = a
	if a.ID >= p.nextID {
		p.nextID = a.ID + 1
	}
	// Keep ascending order; Spawn only ever appends the largest ID.
	n := len(p.agents)
	if n == 0 || p.agents[n-1].ID < a.ID {
		p.agents = append(p.agents, a)
		return true
	}
	i := sort.Search(n, func(i int) bool { return p.agents[i].ID > a.ID })
	p.agents = append(p.agents, nil)
	copy(p.agents[i+1:], p.agents[i:])
	p.agents[i] = a
	return true
}

// Get returns the agent with the given ID, or nil.
func (p *Population) Get(id ID) *Agent {
	return p.byID[id]
}

// Len returns the number of agents, including agents marked Dead that have
// not been pruned yet.
func (p *Population) Len() int {
	return len(p.agents)
}

// Agents returns the agents in ascending ID order. The slice is shared;
// callers must not modify it.
func (p *Population) Agents() []*Agent {
	return p.agents
}

// NextID returns the ID the next spawned agent will receive.
func (p *Population) NextID() ID {
	return p.nextID
}

// Remove deletes the given agents.
func (p *Population) Remove(ids []ID) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(p.byID, id)
	}
	p.filter(func(a *Agent) bool {
		_, gone := drop[a.ID]
		return !gone
	})
}

// RemoveWhere deletes every agent for which fn returns true and returns
// the number removed.
func (p *Population) RemoveWhere(fn func(a *Agent) bool) int {
	before := len(p.agents)
	p.filter(func(a *Agent) bool {
		if fn(a) {
			delete(p.byID, a.ID)
			return false
		}
		return true
	})
	return before - len(p.agents)
}

func (p *Population) filter(keep func(a *Agent) bool) {
	kept := p.agents[:0]
	for _, a := range p.agents {
		if keep(a) {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(p.agents); i++ {
		p.agents[i] = nil
	}
	p.agents = kept
}

// CountStatus counts agents with the given status.
func (p *Population) CountStatus(s Status) int {
	n := 0
	for _, a := range p.agents {
		if a.Status == s {
			n++
		}
	}
	return n
}

// Living counts agents that are not Dead.
func (p *Population) Living() int {
	n := 0
	for _, a := range p.agents {
		if a.Living() {
			n++
		}
	}
	return n
}

// TotalWealth sums wealth over living agents.
func (p *Population) TotalWealth() float64 {
	var sum float64
	for _, a := range p.agents {
		if a.Living() {
			sum += a.Wealth
		}
	}
	return sum
}

// ResetStep clears transient per-step fields and sets every status back to
// Alive. Called before the population update of each step.
func (p *Population) ResetStep() {
	for _, a := range p.agents {
		a.Status = StatusAlive
		a.Step = StepState{PrevDecile: a.Decile}
	}
}

// DecileIndex groups agents by their current decile. Index 0 is decile 1.
type DecileIndex [NumDeciles][]*Agent

// BuildDecileIndex groups the current members of every decile, in ID order.
// Agents with an out-of-range decile are ignored.
func (p *Population) BuildDecileIndex() *DecileIndex {
	var idx DecileIndex
	for _, a := range p.agents {
		if a.Decile >= 1 && a.Decile <= NumDeciles {
			idx[a.Decile-1] = append(idx[a.Decile-1], a)
		}
	}
	return &idx
}

// Members returns the agents of decile d (1-based).
func (idx *DecileIndex) Members(d int) []*Agent {
	if d < 1 || d > NumDeciles {
		return nil
	}
	return idx[d-1]
}

// ChildIndex maps a parent ID to the IDs of agents that reference it.
type ChildIndex map[ID][]ID

// BuildChildIndex scans the population once and records every parent
// back-reference.
func (p *Population) BuildChildIndex() ChildIndex {
	idx := make(ChildIndex)
	for _, a := range p.agents {
		if a.ParentA != NoParent {
			idx[a.ParentA] = append(idx[a.ParentA], a.ID)
		}
		if a.ParentB != NoParent && a.ParentB != a.ParentA {
			idx[a.ParentB] = append(idx[a.ParentB], a.ID)
		}
	}
	return idx
}
