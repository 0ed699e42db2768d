package systems

// SystemInfo describes one phase of a simulation step.
type SystemInfo struct {
	ID          string // Internal identifier (used for perf tracking)
	Name        string // Display name
	Description string // What this system does
}

// Phase IDs in execution order.
const (
	PhasePopulation     = "population"
	PhaseTrade          = "trade"
	PhaseTax            = "tax"
	PhaseDeciles        = "deciles"
	PhaseInheritance    = "inheritance"
	PhaseRedistribution = "redistribution"
	PhaseMetrics        = "metrics"
	PhaseCleanup        = "cleanup"
)

// SystemRegistry holds metadata about all step systems.
// This centralizes phase naming so logging and the perf tracker stay in sync.
type SystemRegistry struct {
	systems []SystemInfo
}

// NewSystemRegistry creates a registry with all known systems.
func NewSystemRegistry() *SystemRegistry {
	reg := &SystemRegistry{}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds every step phase in execution order.
// Update this when adding new systems.
func (r *SystemRegistry) registerDefaults() {
	r.Register(SystemInfo{ID: PhasePopulation, Name: "Population", Description: "Applies births, deaths and migration per decile"})
	r.Register(SystemInfo{ID: PhaseTrade, Name: "Trade", Description: "Pairs agents and draws investment gains"})
	r.Register(SystemInfo{ID: PhaseTax, Name: "Tax", Description: "Computes wages, income, capital gains and wealth taxes"})
	r.Register(SystemInfo{ID: PhaseDeciles, Name: "Deciles", Description: "Re-ranks wealth into deciles and tracks transitions"})
	r.Register(SystemInfo{ID: PhaseInheritance, Name: "Inheritance", Description: "Passes taxed estates to children or the state"})
	r.Register(SystemInfo{ID: PhaseRedistribution, Name: "Redistribution", Description: "Shares collected tax equally among the living"})
	r.Register(SystemInfo{ID: PhaseMetrics, Name: "Metrics", Description: "Aggregates inequality and tax statistics"})
	r.Register(SystemInfo{ID: PhaseCleanup, Name: "Cleanup", Description: "Prunes the dead, resets statuses and ages agents"})
}

// Register adds a system to the registry.
func (r *SystemRegistry) Register(info SystemInfo) {
	r.systems = append(r.systems, info)
}

// All returns all registered systems.
func (r *SystemRegistry) All() []SystemInfo {
	return r.systems
}
