// Package tax computes host-country income tax for an assignment.
//
// Bracket selection is an ordered chain of resolvers. The first resolver that
// applies to the jurisdiction and residency status wins and its method label is
// recorded on the result so the path taken is auditable.
package tax

import (
	"fmt"
	"math"

	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/mathutil"
)

// Calculation method labels.
const (
	MethodResidentProgressive         = "resident-progressive"
	MethodNonResidentProgressive      = "non-resident-progressive"
	MethodNonResidentResidentBrackets = "non-resident-resident-brackets"
	MethodNonResidentFlat             = "non-resident-flat"
	MethodFlatRateFallback            = "flat-rate-fallback"
	MethodMissingJurisdiction         = "missing-jurisdiction"
)

// BracketTax is the tax attributed to one bracket of the schedule.
type BracketTax struct {
	Min     float64  `json:"min"`
	Max     *float64 `json:"max,omitempty"`
	Rate    float64  `json:"rate"`
	Taxable float64  `json:"taxable"`
	Tax     float64  `json:"tax"`
}

// Result is the outcome of a tax calculation. Local amounts are in the host currency.
type Result struct {
	Resident         bool         `json:"resident"`
	Method           string       `json:"method"`
	Reason           string       `json:"reason,omitempty"`
	ExchangeRate     float64      `json:"exchangeRate"`
	TaxableBaseLocal float64      `json:"taxableBaseLocal"`
	TaxLocal         float64      `json:"taxLocal"`
	TaxEUR           float64      `json:"taxEur"`
	EffectiveRate    float64      `json:"effectiveRate"`
	Breakdown        []BracketTax `json:"breakdown"`
}

// Resolution describes the schedule a resolver selected.
type Resolution struct {
	Brackets []jurisdiction.TaxBracket
	FlatRate float64
}

// IsFlat reports whether the resolution is a single flat rate.
func (r Resolution) IsFlat() bool {
	return len(r.Brackets) == 0
}

// Resolver is one step of the bracket resolution chain.
type Resolver struct {
	Method  string
	Resolve func(cfg jurisdiction.Config, resident bool) (Resolution, bool)
}

// DefaultResolvers returns the standard resolution chain.
func DefaultResolvers() []Resolver {
	return []Resolver{
		{
			Method: MethodResidentProgressive,
			Resolve: func(cfg jurisdiction.Config, resident bool) (Resolution, bool) {
				if !resident || len(cfg.ResidentBrackets) == 0 {
					return Resolution{}, false
				}
				return Resolution{Brackets: cfg.ResidentBrackets}, true
			},
		},
		{
			Method: MethodNonResidentProgressive,
			Resolve: func(cfg jurisdiction.Config, resident bool) (Resolution, bool) {
				if resident || len(cfg.NonResidentBrackets) == 0 {
					return Resolution{}, false
				}
				return Resolution{Brackets: cfg.NonResidentBrackets}, true
			},
		},
		{
			Method: MethodNonResidentResidentBrackets,
			Resolve: func(cfg jurisdiction.Config, resident bool) (Resolution, bool) {
				if resident || !cfg.NonResidentUsesResidentBrackets || len(cfg.ResidentBrackets) == 0 {
					return Resolution{}, false
				}
				return Resolution{Brackets: cfg.ResidentBrackets}, true
			},
		},
		{
			Method: MethodNonResidentFlat,
			Resolve: func(cfg jurisdiction.Config, resident bool) (Resolution, bool) {
				if resident || cfg.NonResidentFlatRate == nil {
					return Resolution{}, false
				}
				return Resolution{FlatRate: *cfg.NonResidentFlatRate}, true
			},
		},
		{
			Method: MethodFlatRateFallback,
			Resolve: func(cfg jurisdiction.Config, _ bool) (Resolution, bool) {
				return Resolution{FlatRate: cfg.FlatRate}, true
			},
		},
	}
}

// Calculator applies a resolver chain to compute tax.
type Calculator struct {
	resolvers []Resolver
}

// NewCalculator creates a calculator. With no resolvers the default chain is used.
func NewCalculator(resolvers ...Resolver) *Calculator {
	if len(resolvers) == 0 {
		resolvers = DefaultResolvers()
	}
	return &Calculator{resolvers: resolvers}
}

// IsResident reports whether an assignment of the given length crosses the
// residency threshold.
func IsResident(durationMonths int) bool {
	if durationMonths > constants.MaximumDurationMonths {
		durationMonths = constants.MaximumDurationMonths
	}
	return ResidentForDays(durationMonths * constants.DaysPerMonth)
}

// ResidentForDays reports whether a stay of days reaches the residency threshold.
func ResidentForDays(days int) bool {
	return days >= constants.ResidencyThresholdDays
}

// Calculate computes the tax owed on grossSalaryEUR, the salary for the whole
// assignment. A nil cfg is treated as missing configuration and yields zero tax.
// Invalid inputs are coerced: negative or NaN salary becomes 0 and duration below
// one month becomes one month.
func (c *Calculator) Calculate(grossSalaryEUR float64, cfg *jurisdiction.Config, durationMonths int) Result {
	gross := mathutil.NonNegative(grossSalaryEUR)
	if durationMonths < constants.MinimumDurationMonths {
		durationMonths = constants.MinimumDurationMonths
	}
	resident := IsResident(durationMonths)

	if cfg == nil {
		return Result{
			Resident:         resident,
			Method:           MethodMissingJurisdiction,
			Reason:           "no jurisdiction configuration; applying 0% tax",
			ExchangeRate:     1,
			TaxableBaseLocal: gross,
			Breakdown: []BracketTax{{
				Min:     0,
				Max:     jurisdiction.Float(gross),
				Taxable: gross,
			}},
		}
	}

	result := Result{Resident: resident, ExchangeRate: cfg.ExchangeRate}
	if cfg.ExchangeRate <= 0 || math.IsNaN(cfg.ExchangeRate) || math.IsInf(cfg.ExchangeRate, 0) {
		result.ExchangeRate = 1
		result.Reason = fmt.Sprintf("invalid exchange rate %v for %s; using 1.0", cfg.ExchangeRate, cfg.Code)
	}
	base := gross * result.ExchangeRate
	result.TaxableBaseLocal = base

	for _, resolver := range c.resolvers {
		resolution, ok := resolver.Resolve(*cfg, resident)
		if !ok {
			continue
		}
		result.Method = resolver.Method
		if resolution.IsFlat() {
			result.TaxLocal, result.Breakdown = Flat(base, resolution.FlatRate)
		} else {
			result.TaxLocal, result.Breakdown = Progressive(base, resolution.Brackets)
		}
		break
	}

	result.TaxEUR = result.TaxLocal / result.ExchangeRate
	result.EffectiveRate = mathutil.SafeDivide(result.TaxLocal, base)
	return result
}

// Progressive applies a bracket schedule to income and returns the total tax with a
// breakdown of every bracket the income reaches.
func Progressive(income float64, brackets []jurisdiction.TaxBracket) (float64, []BracketTax) {
	income = mathutil.NonNegative(income)
	total := 0.0
	breakdown := make([]BracketTax, 0, len(brackets))
	for _, b := range brackets {
		taxable := math.Max(0, math.Min(income, b.UpperBound())-b.Min)
		if taxable <= 0 {
			continue
		}
		tax := taxable * b.Rate
		total += tax
		breakdown = append(breakdown, BracketTax{
			Min:     b.Min,
			Max:     b.Max,
			Rate:    b.Rate,
			Taxable: taxable,
			Tax:     tax,
		})
	}
	return total, breakdown
}

// Flat applies a single rate to the whole base, reported as one synthetic bracket.
func Flat(base, rate float64) (float64, []BracketTax) {
	base = mathutil.NonNegative(base)
	rate = mathutil.Clamp(rate, 0, 1)
	tax := base * rate
	return tax, []BracketTax{{
		Min:     0,
		Max:     jurisdiction.Float(base),
		Rate:    rate,
		Taxable: base,
		Tax:     tax,
	}}
}
