// Package agents defines the economic agent record and the population
// container every simulation system operates on.
package agents

// NumDeciles is the number of wealth bins agents are ranked into.
const NumDeciles = 10

// ID identifies an agent for the lifetime of a run. IDs are never reused.
type ID int64

// NoParent marks an agent seeded at run start (no parent reference).
const NoParent ID = 0

// Status is the per-step lifecycle tag of an agent.
type Status uint8

const (
	StatusAlive Status = iota
	StatusDead
	StatusMigrated
	StatusNewborn
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusAlive:
		return "alive"
	case StatusDead:
		return "dead"
	case StatusMigrated:
		return "migrated"
	case StatusNewborn:
		return "newborn"
	}
	return "unknown"
}

// Agent is one member of the synthetic population.
type Agent struct {
	ID            ID
	Decile        int // 1..NumDeciles, derived from Wealth each step
	Wealth        float64
	InitialWealth float64
	Age           int
	Status        Status
	ParentA       ID
	ParentB       ID

	// Step holds scratch values produced and consumed within one step.
	Step StepState
}

// StepState is the transient per-step accounting of an agent.
// Reset clears it at the start of every step.
type StepState struct {
	Traded         bool // member of a valid (both Alive) trade pair
	TradePartner   ID
	TradeGain      float64
	Wages          float64
	TotalIncome    float64
	IncomeTax      float64
	CGTax          float64
	WealthTax      float64
	InheritanceTax float64
	Savings        float64
	NetReturn      float64
	PriorWealth    float64
	WealthChange   float64
	TaxShare       float64
	PrevDecile     int
}

// TotalTax sums every tax kind collected from the agent this step.
func (s *StepState) TotalTax() float64 {
	return s.IncomeTax + s.CGTax + s.WealthTax + s.InheritanceTax
}

// HasParent reports whether id is one of the agent's recorded parents.
func (a *Agent) HasParent(id ID) bool {
	return id != NoParent && (a.ParentA == id || a.ParentB == id)
}

// Living reports whether the agent is still part of the population this
// step (anything except Dead).
func (a *Agent) Living() bool {
	return a.Status != StatusDead
}
