// Package telemetry aggregates per-step wealth and tax metrics, detects
// notable steps, and writes run output.
package telemetry

// Collector accumulates the report series of one run, along with totals
// that span steps.
type Collector struct {
	reports []StepReport

	// Run totals
	births     int
	deaths     int
	migrations int
	taxTotal   float64
}

// NewCollector creates a collector sized for the expected number of steps.
func NewCollector(steps int) *Collector {
	if steps < 0 {
		steps = 0
	}
	return &Collector{reports: make([]StepReport, 0, steps)}
}

// Flush summarizes the step, appends the report and returns it.
func (c *Collector) Flush(in StepInput) StepReport {
	r := Summarize(in)
	c.reports = append(c.reports, r)

	c.births += r.Births
	c.deaths += r.Deaths
	c.migrations += r.Migrations
	c.taxTotal += r.TotalTax()
	return r
}

// Reports returns the reports recorded so far, in time order.
func (c *Collector) Reports() []StepReport {
	return c.reports
}

// Len returns the number of recorded steps.
func (c *Collector) Len() int {
	return len(c.reports)
}

// RunTotals holds counters accumulated over every flushed step.
type RunTotals struct {
	Steps      int
	Births     int
	Deaths     int
	Migrations int
	TaxTotal   float64
}

// Totals returns the accumulated run counters.
func (c *Collector) Totals() RunTotals {
	return RunTotals{
		Steps:      len(c.reports),
		Births:     c.births,
		Deaths:     c.deaths,
		Migrations: c.migrations,
		TaxTotal:   c.taxTotal,
	}
}
