// Package jurisdiction holds the static per-country rule data consumed by the tax,
// social security and cost calculators.
package jurisdiction

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/mathutil"
)

// TaxBracket is one band of a progressive tax schedule. A nil Max is unbounded.
type TaxBracket struct {
	Min  float64  `yaml:"min" mapstructure:"min" json:"min"`
	Max  *float64 `yaml:"max,omitempty" mapstructure:"max" json:"max,omitempty"`
	Rate float64  `yaml:"rate" mapstructure:"rate" json:"rate"`
}

// UpperBound returns the bracket ceiling, +Inf when unbounded.
func (b TaxBracket) UpperBound() float64 {
	if b.Max == nil {
		return math.Inf(1)
	}
	return *b.Max
}

// Config is the rule data for a single jurisdiction. Monetary thresholds (brackets,
// caps) are in the local currency; PerDiemRate is in EUR.
type Config struct {
	Code     string `yaml:"code" mapstructure:"code" json:"code"`
	Name     string `yaml:"name,omitempty" mapstructure:"name" json:"name,omitempty"`
	Currency string `yaml:"currency" mapstructure:"currency" json:"currency"`
	// ExchangeRate is local currency units per EUR.
	ExchangeRate float64 `yaml:"exchangeRate" mapstructure:"exchangeRate" json:"exchangeRate"`
	Group        string  `yaml:"group,omitempty" mapstructure:"group" json:"group,omitempty"`

	ResidentBrackets                []TaxBracket `yaml:"residentBrackets,omitempty" mapstructure:"residentBrackets" json:"residentBrackets,omitempty"`
	NonResidentBrackets             []TaxBracket `yaml:"nonResidentBrackets,omitempty" mapstructure:"nonResidentBrackets" json:"nonResidentBrackets,omitempty"`
	NonResidentUsesResidentBrackets bool         `yaml:"nonResidentUsesResidentBrackets,omitempty" mapstructure:"nonResidentUsesResidentBrackets" json:"nonResidentUsesResidentBrackets,omitempty"`
	NonResidentFlatRate             *float64     `yaml:"nonResidentFlatRate,omitempty" mapstructure:"nonResidentFlatRate" json:"nonResidentFlatRate,omitempty"`
	FlatRate                        float64      `yaml:"flatRate,omitempty" mapstructure:"flatRate" json:"flatRate,omitempty"`

	EmployerSocialSecurityRate float64  `yaml:"employerSocialSecurityRate,omitempty" mapstructure:"employerSocialSecurityRate" json:"employerSocialSecurityRate,omitempty"`
	EmployeeSocialSecurityRate float64  `yaml:"employeeSocialSecurityRate,omitempty" mapstructure:"employeeSocialSecurityRate" json:"employeeSocialSecurityRate,omitempty"`
	SocialSecurityRate         float64  `yaml:"socialSecurityRate,omitempty" mapstructure:"socialSecurityRate" json:"socialSecurityRate,omitempty"`
	EmployeeMonthlyCap         *float64 `yaml:"employeeMonthlyCap,omitempty" mapstructure:"employeeMonthlyCap" json:"employeeMonthlyCap,omitempty"`

	TreatyExists   bool     `yaml:"treatyExists,omitempty" mapstructure:"treatyExists" json:"treatyExists,omitempty"`
	TreatyPartners []string `yaml:"treatyPartners,omitempty" mapstructure:"treatyPartners" json:"treatyPartners,omitempty"`

	PerDiemRate float64 `yaml:"perDiemRate,omitempty" mapstructure:"perDiemRate" json:"perDiemRate,omitempty"`
}

// HasSplitRates reports whether separate employer and employee rates are configured.
func (c Config) HasSplitRates() bool {
	return c.EmployerSocialSecurityRate > 0 || c.EmployeeSocialSecurityRate > 0
}

// TreatyWith reports whether a social security agreement covers workers sent from home.
func (c Config) TreatyWith(home string) bool {
	if !c.TreatyExists {
		return false
	}
	if len(c.TreatyPartners) == 0 {
		return true
	}
	home = NormalizeCode(home)
	for _, partner := range c.TreatyPartners {
		if NormalizeCode(partner) == home {
			return true
		}
	}
	return false
}

// Validate checks rates, bracket sets and monetary fields.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Currency) == "" {
		errs = append(errs, fmt.Errorf("currency is required"))
	}
	if c.ExchangeRate <= 0 || math.IsNaN(c.ExchangeRate) {
		errs = append(errs, fmt.Errorf("exchange rate %.4f must be positive", c.ExchangeRate))
	}
	if len(c.ResidentBrackets) > 0 {
		if err := ValidateBrackets(c.ResidentBrackets); err != nil {
			errs = append(errs, fmt.Errorf("resident brackets: %w", err))
		}
	}
	if len(c.NonResidentBrackets) > 0 {
		if err := ValidateBrackets(c.NonResidentBrackets); err != nil {
			errs = append(errs, fmt.Errorf("non-resident brackets: %w", err))
		}
	}
	rates := map[string]float64{
		"flat rate":                c.FlatRate,
		"employer social security": c.EmployerSocialSecurityRate,
		"employee social security": c.EmployeeSocialSecurityRate,
		"combined social security": c.SocialSecurityRate,
	}
	if c.NonResidentFlatRate != nil {
		rates["non-resident flat rate"] = *c.NonResidentFlatRate
	}
	names := make([]string, 0, len(rates))
	for name := range rates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if rate := rates[name]; rate < 0 || rate > 1 {
			errs = append(errs, fmt.Errorf("%s %.4f must be within [0,1]", name, rate))
		}
	}
	if c.EmployeeMonthlyCap != nil && *c.EmployeeMonthlyCap < 0 {
		errs = append(errs, fmt.Errorf("employee monthly cap %.2f must not be negative", *c.EmployeeMonthlyCap))
	}
	if c.PerDiemRate < 0 {
		errs = append(errs, fmt.Errorf("per-diem rate %.2f must not be negative", c.PerDiemRate))
	}
	return errors.Join(errs...)
}

// ValidateBrackets enforces the bracket set invariants: ascending by Min, contiguous
// and non-overlapping, exactly one open-ended top bracket, rates within [0,1] and
// non-decreasing.
func ValidateBrackets(brackets []TaxBracket) error {
	if len(brackets) == 0 {
		return fmt.Errorf("bracket set is empty")
	}
	openEnded := 0
	for i, b := range brackets {
		if b.Rate < 0 || b.Rate > 1 {
			return fmt.Errorf("bracket %d rate %.4f must be within [0,1]", i, b.Rate)
		}
		if b.Min < 0 {
			return fmt.Errorf("bracket %d minimum %.2f must not be negative", i, b.Min)
		}
		if b.Max == nil {
			openEnded++
			if i != len(brackets)-1 {
				return fmt.Errorf("bracket %d is open-ended but is not the top bracket", i)
			}
		} else if *b.Max <= b.Min {
			return fmt.Errorf("bracket %d maximum %.2f must exceed minimum %.2f", i, *b.Max, b.Min)
		}
		if i == 0 {
			continue
		}
		prev := brackets[i-1]
		if b.Min < prev.Min {
			return fmt.Errorf("bracket %d minimum %.2f is below previous minimum %.2f", i, b.Min, prev.Min)
		}
		// Boundaries are money amounts; a sub-cent mismatch counts as contiguous.
		if prev.Max != nil && !mathutil.WithinTolerance(b.Min, *prev.Max, constants.CurrencyTolerance) {
			if b.Min < *prev.Max {
				return fmt.Errorf("bracket %d overlaps previous bracket (%.2f < %.2f)", i, b.Min, *prev.Max)
			}
			return fmt.Errorf("bracket %d leaves a gap after previous bracket (%.2f > %.2f)", i, b.Min, *prev.Max)
		}
		if b.Rate < prev.Rate {
			return fmt.Errorf("bracket %d rate %.4f is lower than previous rate %.4f", i, b.Rate, prev.Rate)
		}
	}
	if openEnded != 1 {
		return fmt.Errorf("expected exactly one open-ended bracket, found %d", openEnded)
	}
	return nil
}

// Table is a versioned set of jurisdiction configurations keyed by country code.
type Table struct {
	Version       string
	Jurisdictions map[string]Config
}

// NormalizeCode canonicalizes a country code for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns the configuration for a country code.
func (t *Table) Lookup(code string) (Config, bool) {
	if t == nil || t.Jurisdictions == nil {
		return Config{}, false
	}
	cfg, ok := t.Jurisdictions[NormalizeCode(code)]
	return cfg, ok
}

// HasTreaty reports whether a social security agreement exists between home and host.
func (t *Table) HasTreaty(home, host string) bool {
	cfg, ok := t.Lookup(host)
	if !ok {
		return false
	}
	return cfg.TreatyWith(home)
}

// Codes returns the sorted list of configured country codes.
func (t *Table) Codes() []string {
	if t == nil {
		return nil
	}
	codes := make([]string, 0, len(t.Jurisdictions))
	for code := range t.Jurisdictions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Validate checks every jurisdiction and reports all failures together.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("jurisdiction table cannot be nil")
	}
	var errs []error
	for _, code := range t.Codes() {
		if err := t.Jurisdictions[code].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("jurisdiction %s: %w", code, err))
		}
	}
	return errors.Join(errs...)
}

// Merge returns a copy of the table with overrides applied. Override entries replace
// built-in entries with the same code.
func (t *Table) Merge(version string, overrides []Config) *Table {
	merged := &Table{Version: t.Version, Jurisdictions: make(map[string]Config, len(t.Jurisdictions)+len(overrides))}
	for code, cfg := range t.Jurisdictions {
		merged.Jurisdictions[code] = cfg
	}
	for _, cfg := range overrides {
		code := NormalizeCode(cfg.Code)
		if code == "" {
			continue
		}
		cfg.Code = code
		cfg.Currency = NormalizeCode(cfg.Currency)
		cfg.Group = NormalizeCode(cfg.Group)
		merged.Jurisdictions[code] = cfg
	}
	if strings.TrimSpace(version) != "" {
		merged.Version = version
	}
	return merged
}

// Float returns a pointer to v, for optional rule fields.
func Float(v float64) *float64 {
	return &v
}
