// Package config provides configuration loading and validation for the
// wealth simulation.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// NumDeciles is the required length of every per-decile array.
const NumDeciles = 10

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all simulation configuration parameters.
// Per-decile arrays are ordered by ascending decile (index 0 = decile 1).
type Config struct {
	TotalPopulation int `yaml:"total_population" json:"total_population" validate:"gte=10"`
	NumTimeSteps    int `yaml:"num_time_steps" json:"num_time_steps" validate:"gte=0"`

	// Declared by the request contract. Only honored when
	// Tax.HonorConfiguredRates is set.
	InheritanceTaxRate float64 `yaml:"inheritance_tax_rate" json:"inheritance_tax_rate" validate:"gte=0,lte=1"`
	WealthTax          float64 `yaml:"wealth_tax" json:"wealth_tax" validate:"gte=0,lte=1"`

	CGTax            float64 `yaml:"cg_tax" json:"cg_tax" validate:"gte=0,lte=1"`
	StateCollections float64 `yaml:"state_collections" json:"state_collections" validate:"gte=0"`

	WealthPerDecile  []float64 `yaml:"wealth_per_decile" json:"wealth_per_decile" validate:"len=10,dive,gte=0"`
	BirthRate        []float64 `yaml:"birth_rate" json:"birth_rate" validate:"len=10,dive,gte=0,lte=1"`
	DeathRate        []float64 `yaml:"death_rate" json:"death_rate" validate:"len=10,dive,gte=0,lte=1"`
	NetMigration     []float64 `yaml:"net_migration" json:"net_migration" validate:"len=10,dive,gte=0,lte=1"`
	RateOfReturn     []float64 `yaml:"rate_of_return" json:"rate_of_return" validate:"len=10"`
	SavingsRate      []float64 `yaml:"savings_rate" json:"savings_rate" validate:"len=10,dive,gte=0,lte=1"`
	WageBandLow      []float64 `yaml:"wage_band_low" json:"wage_band_low" validate:"len=10,dive,gte=0"`
	WageBandHigh     []float64 `yaml:"wage_band_high" json:"wage_band_high" validate:"len=10,dive,gte=0"`
	UnemploymentRate []float64 `yaml:"unemployment_rate" json:"unemployment_rate" validate:"len=10,dive,gte=0,lte=1"`

	Population PopulationConfig `yaml:"population" json:"population"`
	Tax        TaxConfig        `yaml:"tax" json:"tax"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
}

// PopulationConfig holds demographic policy switches.
type PopulationConfig struct {
	FirstStepIndex int  `yaml:"first_step_index" json:"first_step_index"` // Step treated as "first" for newborn initial wealth
	DoubleCull     bool `yaml:"double_cull" json:"double_cull"`           // Drop extra members when births don't offset deaths
	RemoveMigrants bool `yaml:"remove_migrants" json:"remove_migrants"`   // Prune Migrated agents at step end
}

// TaxConfig holds the tax schedules applied by the tax systems.
type TaxConfig struct {
	IncomeBracketRates   []float64 `yaml:"income_bracket_rates" json:"income_bracket_rates" validate:"len=4,dive,gte=0,lte=1"`
	WealthTaxSchedule    []float64 `yaml:"wealth_tax_schedule" json:"wealth_tax_schedule" validate:"len=10,dive,gte=0,lte=1"`
	InheritanceRate      float64   `yaml:"inheritance_rate" json:"inheritance_rate" validate:"gte=0,lte=1"`
	HonorConfiguredRates bool      `yaml:"honor_configured_rates" json:"honor_configured_rates"`
}

// TelemetryConfig holds perf and bookmark parameters.
type TelemetryConfig struct {
	PerfWindow          int             `yaml:"perf_window" json:"perf_window"`
	BookmarkHistorySize int             `yaml:"bookmark_history_size" json:"bookmark_history_size"`
	Bookmarks           BookmarksConfig `yaml:"bookmarks" json:"bookmarks"`
}

// BookmarksConfig holds bookmark detection thresholds.
type BookmarksConfig struct {
	GiniSpike          GiniSpikeConfig          `yaml:"gini_spike" json:"gini_spike"`
	PopulationCollapse PopulationCollapseConfig `yaml:"population_collapse" json:"population_collapse"`
	Concentration      ConcentrationConfig      `yaml:"concentration" json:"concentration"`
	StableDistribution StableDistributionConfig `yaml:"stable_distribution" json:"stable_distribution"`
}

// GiniSpikeConfig holds inequality spike detection parameters.
type GiniSpikeConfig struct {
	Delta float64 `yaml:"delta" json:"delta"` // Gini jump over the rolling mean
}

// PopulationCollapseConfig holds population collapse detection parameters.
type PopulationCollapseConfig struct {
	DropPercent float64 `yaml:"drop_percent" json:"drop_percent"`
	MinDrop     int     `yaml:"min_drop" json:"min_drop"`
}

// ConcentrationConfig holds wealth concentration detection parameters.
type ConcentrationConfig struct {
	TopShare float64 `yaml:"top_share" json:"top_share"` // Top decile share that triggers once
}

// StableDistributionConfig holds stable distribution detection parameters.
type StableDistributionConfig struct {
	GiniTolerance float64 `yaml:"gini_tolerance" json:"gini_tolerance"`
	StableSteps   int     `yaml:"stable_steps" json:"stable_steps"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// MustDefault is like Default but panics on error.
func MustDefault() *Config {
	cfg, err := Default()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeJSON overlays a JSON document on a copy of base. Keys missing from
// data keep the base value.
func MergeJSON(base *Config, data []byte) (*Config, error) {
	cfg := base.Clone()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config json: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and array lengths.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for i := range c.WageBandLow {
		if c.WageBandLow[i] > c.WageBandHigh[i] {
			return fmt.Errorf("%w: wage_band_low[%d]=%g exceeds wage_band_high[%d]=%g",
				ErrInvalidConfig, i, c.WageBandLow[i], i, c.WageBandHigh[i])
		}
	}
	if c.Population.FirstStepIndex < 0 {
		return fmt.Errorf("%w: population.first_step_index must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// InheritanceRate returns the estate tax rate in effect.
func (c *Config) InheritanceRate() float64 {
	if c.Tax.HonorConfiguredRates {
		return c.InheritanceTaxRate
	}
	return c.Tax.InheritanceRate
}

// WealthTaxSchedule returns the per-decile wealth tax rates in effect.
// With configured rates honored, the scalar wealth_tax applies to every decile.
func (c *Config) WealthTaxSchedule() []float64 {
	if c.Tax.HonorConfiguredRates {
		flat := make([]float64, NumDeciles)
		for i := range flat {
			flat[i] = c.WealthTax
		}
		return flat
	}
	return c.Tax.WealthTaxSchedule
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.WealthPerDecile = cloneFloats(c.WealthPerDecile)
	out.BirthRate = cloneFloats(c.BirthRate)
	out.DeathRate = cloneFloats(c.DeathRate)
	out.NetMigration = cloneFloats(c.NetMigration)
	out.RateOfReturn = cloneFloats(c.RateOfReturn)
	out.SavingsRate = cloneFloats(c.SavingsRate)
	out.WageBandLow = cloneFloats(c.WageBandLow)
	out.WageBandHigh = cloneFloats(c.WageBandHigh)
	out.UnemploymentRate = cloneFloats(c.UnemploymentRate)
	out.Tax.IncomeBracketRates = cloneFloats(c.Tax.IncomeBracketRates)
	out.Tax.WealthTaxSchedule = cloneFloats(c.Tax.WealthTaxSchedule)
	return &out
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
