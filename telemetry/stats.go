package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Gini computes the Gini coefficient of values with the rank-based
// cumulative-sum form: (n+1-2*sum(cum)/cum[n-1])/n over ascending values.
// Non-finite values are ignored. Returns 0 for empty or zero-total input.
func Gini(values []float64) float64 {
	sorted := finiteSorted(values)
	n := len(sorted)
	if n == 0 {
		return 0
	}

	cum := make([]float64, n)
	floats.CumSum(cum, sorted)
	total := cum[n-1]
	if total == 0 {
		return 0
	}
	return (float64(n+1) - 2*floats.Sum(cum)/total) / float64(n)
}

// finiteSorted returns an ascending copy of the finite values.
func finiteSorted(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if finite(v) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// ComputeWealthStats returns the mean and standard deviation of values.
func ComputeWealthStats(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Ratio is a concentration ratio. A zero denominator yields +Inf, which is
// written as the string "inf" in JSON and CSV.
type Ratio float64

const infText = "inf"

// NewRatio divides num by den, returning +Inf when den is zero or both
// sides have overflowed.
func NewRatio(num, den float64) Ratio {
	r := num / den
	if den == 0 || math.IsNaN(r) {
		return Ratio(math.Inf(1))
	}
	return Ratio(r)
}

// IsInf reports whether the ratio is the infinite sentinel.
func (r Ratio) IsInf() bool {
	return math.IsInf(float64(r), 1)
}

func (r Ratio) String() string {
	if r.IsInf() {
		return infText
	}
	return formatFloat(float64(r))
}

// MarshalJSON implements json.Marshaler.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.IsInf() {
		return json.Marshal(infText)
	}
	return json.Marshal(float64(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != infText {
			return fmt.Errorf("ratio: unexpected string %q", s)
		}
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("ratio: %w", err)
	}
	*r = Ratio(f)
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (r Ratio) MarshalCSV() (string, error) {
	return r.String(), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (r *Ratio) UnmarshalCSV(s string) error {
	if s == infText {
		*r = Ratio(math.Inf(1))
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("ratio: %w", err)
	}
	*r = Ratio(f)
	return nil
}

// DecileStats holds the aggregates of one decile for one step.
type DecileStats struct {
	Time       int `csv:"time" json:"-"`
	Decile     int `csv:"decile" json:"decile"`
	Population int `csv:"population" json:"population_size"`
	Births     int `csv:"births" json:"number_of_births"`
	Deaths     int `csv:"deaths" json:"number_of_deaths"`
	Migrations int `csv:"migrations" json:"number_of_migrations"`

	TotalWealth       float64 `csv:"total_wealth" json:"total_wealth"`
	AvgWealth         float64 `csv:"avg_wealth" json:"average_wealth"`
	WealthStdDev      float64 `csv:"wealth_std" json:"wealth_std"`
	TotalWealthChange float64 `csv:"total_wealth_change" json:"total_wealth_change"`
	AvgWealthChange   float64 `csv:"avg_wealth_change" json:"average_wealth_change"`
	TotalIncome       float64 `csv:"total_income" json:"total_income"`
	AvgIncome         float64 `csv:"avg_income" json:"average_income"`
	TotalSavings      float64 `csv:"total_savings" json:"total_savings"`
	AvgSavings        float64 `csv:"avg_savings" json:"average_savings"`

	IncomeTax      float64 `csv:"income_tax" json:"total_income_tax"`
	CGTax          float64 `csv:"cg_tax" json:"total_cg_tax"`
	WealthTax      float64 `csv:"wealth_tax" json:"total_wealth_tax"`
	InheritanceTax float64 `csv:"inheritance_tax" json:"total_inheritance_tax"`

	Gini float64 `csv:"gini" json:"gini_wealth"`
}

// TotalTax sums every tax kind collected in the decile.
func (d DecileStats) TotalTax() float64 {
	return d.IncomeTax + d.CGTax + d.WealthTax + d.InheritanceTax
}

// LogValue implements slog.LogValuer for structured logging.
func (d DecileStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("decile", d.Decile),
		slog.Int("population", d.Population),
		slog.Int("births", d.Births),
		slog.Int("deaths", d.Deaths),
		slog.Int("migrations", d.Migrations),
		slog.Float64("avg_wealth", d.AvgWealth),
		slog.Float64("total_tax", d.TotalTax()),
		slog.Float64("gini", d.Gini),
	)
}
