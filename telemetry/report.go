package telemetry

import (
	"log/slog"
	"math"

	"github.com/pthm-cable/wealthsim/systems"
)

// DecileMap holds one value per decile keyed by decile number.
type DecileMap map[int]float64

// CutoffSet is the decile cutoff list of one step.
type CutoffSet struct {
	Time    int              `json:"time"`
	Cutoffs []systems.Cutoff `json:"cutoffs"`
}

// TransitionSet is the decile transition matrix of one step.
type TransitionSet struct {
	Time   int                      `json:"time"`
	Matrix systems.TransitionMatrix `json:"matrix"`
}

// StepReport is the summary of one simulated step. A run produces one per
// step, in time order.
type StepReport struct {
	Time             int     `json:"time"`
	GiniIndex        float64 `json:"gini_index"`
	TotalWealth      float64 `json:"total_wealth"`
	Population       int     `json:"population"`
	StateCollections float64 `json:"state_collections"`

	WealthByDecile         DecileMap `json:"wealth_by_decile"`
	WealthTaxByDecile      DecileMap `json:"wealth_tax_by_decile"`
	IncomeTaxByDecile      DecileMap `json:"tax_per_decile_income"`
	InheritanceTaxByDecile DecileMap `json:"inheritance_tax_by_decile"`
	CGTaxByDecile          DecileMap `json:"cg_tax_by_decile"`

	TotalWealthTax      float64 `json:"total_wealth_tax_collected"`
	TotalIncomeTax      float64 `json:"total_income_tax_collected"`
	TotalInheritanceTax float64 `json:"total_inheritance_tax"`
	TotalCGTax          float64 `json:"total_cg_tax"`

	WealthShareTop        float64 `json:"wealth_share_10th_decile"`
	WealthShareBottom     float64 `json:"wealth_share_1st_decile"`
	WealthShareBottomHalf float64 `json:"wealth_share_bottom_50"`
	RatioTopBottom        Ratio   `json:"wealth_ratio_90_10"`
	RatioTopBottomHalf    Ratio   `json:"wealth_ratio_90_50"`

	GiniOverallWealth float64  `json:"gini_overall_wealth"`
	GiniOverallIncome *float64 `json:"gini_overall_income"`

	TaxShareWealth      float64 `json:"tax_share_wealth"`
	TaxShareCG          float64 `json:"tax_share_cg"`
	TaxShareIncome      float64 `json:"tax_share_income"`
	TaxShareInheritance float64 `json:"tax_share_inheritance"`

	DecileCutoffs          CutoffSet     `json:"decile_cutoffs"`
	DecileTransitionMatrix TransitionSet `json:"decile_transition_matrix"`

	Births              int           `json:"births"`
	Deaths              int           `json:"deaths"`
	Migrations          int           `json:"migrations"`
	Trades              int           `json:"trades"`
	RedistributionShare float64       `json:"redistribution_share"`
	Deciles             []DecileStats `json:"deciles"`
}

// TotalTax sums every tax kind collected this step.
func (r *StepReport) TotalTax() float64 {
	return r.TotalWealthTax + r.TotalIncomeTax + r.TotalInheritanceTax + r.TotalCGTax
}

// Finite reports whether every wealth, income and tax total is a finite
// number. Wealth roughly doubles for each traded agent, so long runs
// eventually overflow.
func (r *StepReport) Finite() bool {
	if !finite(r.TotalWealth) || !finite(r.StateCollections) || !finite(r.TotalTax()) {
		return false
	}
	for _, d := range r.Deciles {
		if !finite(d.TotalWealth) || !finite(d.TotalIncome) ||
			!finite(d.TotalWealthChange) || !finite(d.TotalSavings) || !finite(d.WealthStdDev) {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// StepRow is the flat CSV form of a StepReport.
type StepRow struct {
	Time                  int     `csv:"time"`
	Population            int     `csv:"population"`
	Births                int     `csv:"births"`
	Deaths                int     `csv:"deaths"`
	Migrations            int     `csv:"migrations"`
	Trades                int     `csv:"trades"`
	TotalWealth           float64 `csv:"total_wealth"`
	StateCollections      float64 `csv:"state_collections"`
	GiniIndex             float64 `csv:"gini_index"`
	GiniOverallWealth     float64 `csv:"gini_overall_wealth"`
	GiniOverallIncome     string  `csv:"gini_overall_income"`
	WealthShareTop        float64 `csv:"wealth_share_10th_decile"`
	WealthShareBottom     float64 `csv:"wealth_share_1st_decile"`
	WealthShareBottomHalf float64 `csv:"wealth_share_bottom_50"`
	RatioTopBottom        Ratio   `csv:"wealth_ratio_90_10"`
	RatioTopBottomHalf    Ratio   `csv:"wealth_ratio_90_50"`
	TotalWealthTax        float64 `csv:"total_wealth_tax"`
	TotalIncomeTax        float64 `csv:"total_income_tax"`
	TotalInheritanceTax   float64 `csv:"total_inheritance_tax"`
	TotalCGTax            float64 `csv:"total_cg_tax"`
	RedistributionShare   float64 `csv:"redistribution_share"`
}

// Row flattens the report for CSV export. A missing income Gini is an
// empty cell.
func (r *StepReport) Row() StepRow {
	row := StepRow{
		Time:                  r.Time,
		Population:            r.Population,
		Births:                r.Births,
		Deaths:                r.Deaths,
		Migrations:            r.Migrations,
		Trades:                r.Trades,
		TotalWealth:           r.TotalWealth,
		StateCollections:      r.StateCollections,
		GiniIndex:             r.GiniIndex,
		GiniOverallWealth:     r.GiniOverallWealth,
		WealthShareTop:        r.WealthShareTop,
		WealthShareBottom:     r.WealthShareBottom,
		WealthShareBottomHalf: r.WealthShareBottomHalf,
		RatioTopBottom:        r.RatioTopBottom,
		RatioTopBottomHalf:    r.RatioTopBottomHalf,
		TotalWealthTax:        r.TotalWealthTax,
		TotalIncomeTax:        r.TotalIncomeTax,
		TotalInheritanceTax:   r.TotalInheritanceTax,
		TotalCGTax:            r.TotalCGTax,
		RedistributionShare:   r.RedistributionShare,
	}
	if r.GiniOverallIncome != nil {
		row.GiniOverallIncome = formatFloat(*r.GiniOverallIncome)
	}
	return row
}

// LogValue implements slog.LogValuer for structured logging.
func (r StepReport) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("time", r.Time),
		slog.Int("population", r.Population),
		slog.Int("births", r.Births),
		slog.Int("deaths", r.Deaths),
		slog.Int("migrations", r.Migrations),
		slog.Int("trades", r.Trades),
		slog.Float64("total_wealth", r.TotalWealth),
		slog.Float64("gini", r.GiniIndex),
		slog.Float64("top_share", r.WealthShareTop),
		slog.String("ratio_90_10", r.RatioTopBottom.String()),
		slog.Float64("total_tax", r.TotalTax()),
		slog.Float64("state_collections", r.StateCollections),
	}
	if r.GiniOverallIncome != nil {
		attrs = append(attrs, slog.Float64("gini_income", *r.GiniOverallIncome))
	}
	return slog.GroupValue(attrs...)
}

// LogStats logs the report at info level.
func (r StepReport) LogStats() {
	slog.Info("step", "report", r)
}
