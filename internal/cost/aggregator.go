// Package cost combines salary, per-diem, admin fees, tax and social security into
// the total and incremental cost of an assignment.
//
// The aggregator is a pure transform: identical requests yield identical results,
// including the calculation ID.
package cost

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/internal/socialsecurity"
	"github.com/iwvelando/deployment-planner/internal/tax"
	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/mathutil"
)

var calculationNamespace = uuid.MustParse("6f1c2a0e-3b7d-4c55-9a0e-2d6c8f4b1a37")

// Options carries presentation choices explicitly.
type Options struct {
	// DisplayCurrency is the currency results are converted into for display. Empty means EUR.
	DisplayCurrency string `json:"displayCurrency,omitempty"`
	// DisplayRates supplies units-per-EUR rates for display currencies other than
	// EUR and the host currency.
	DisplayRates map[string]float64 `json:"displayRates,omitempty"`
}

// Request is everything a cost calculation depends on. Host and Home may be nil
// when the jurisdiction is unknown.
type Request struct {
	Assignment Assignment              `json:"assignment"`
	Host       *jurisdiction.Config    `json:"host,omitempty"`
	Home       *jurisdiction.Config    `json:"home,omitempty"`
	Settings   socialsecurity.Settings `json:"settings"`
	AdminFees  AdminFees               `json:"adminFees"`
	Options    Options                 `json:"options"`
}

// Display holds the headline figures converted into the display currency.
type Display struct {
	Currency       string  `json:"currency"`
	Rate           float64 `json:"rate"`
	GrossSalary    float64 `json:"grossSalary"`
	PerDiem        float64 `json:"perDiem"`
	AdminFees      float64 `json:"adminFees"`
	Tax            float64 `json:"tax"`
	SocialSecurity float64 `json:"socialSecurity"`
	AdditionalCost float64 `json:"additionalCost"`
	GrandTotal     float64 `json:"grandTotal"`
	CostPerDay     float64 `json:"costPerDay"`
}

// Result is the calculation record. All top-level amounts are in EUR.
type Result struct {
	ID                   string                `json:"id"`
	Assignment           Assignment            `json:"assignment"`
	HostCurrency         string                `json:"hostCurrency"`
	ExchangeRate         float64               `json:"exchangeRate"`
	Treaty               bool                  `json:"treaty"`
	TotalWorkingDays     int                   `json:"totalWorkingDays"`
	TotalCalendarDays    int                   `json:"totalCalendarDays"`
	GrossSalary          float64               `json:"grossSalary"`
	PerDiem              float64               `json:"perDiem"`
	AdminFees            float64               `json:"adminFees"`
	Tax                  float64               `json:"tax"`
	SocialSecurity       float64               `json:"socialSecurity"`
	AdditionalCost       float64               `json:"additionalCost"`
	GrandTotal           float64               `json:"grandTotal"`
	CostPerDay           float64               `json:"costPerDay"`
	TaxDetail            tax.Result            `json:"taxDetail"`
	SocialSecurityDetail socialsecurity.Result `json:"socialSecurityDetail"`
	Display              Display               `json:"display"`
	Warnings             []string              `json:"warnings,omitempty"`
}

// Aggregator computes cost results.
type Aggregator struct {
	tax *tax.Calculator
}

// NewAggregator creates an aggregator. A nil calculator uses the default resolver chain.
func NewAggregator(calculator *tax.Calculator) *Aggregator {
	if calculator == nil {
		calculator = tax.NewCalculator()
	}
	return &Aggregator{tax: calculator}
}

// Calculate runs the full cost computation for req.
func (a *Aggregator) Calculate(req Request) Result {
	hostPerDiem := 0.0
	if req.Host != nil {
		hostPerDiem = req.Host.PerDiemRate
	}
	assignment, warnings := req.Assignment.Normalize(hostPerDiem)

	result := Result{
		ID:                CalculationID(req),
		Assignment:        assignment,
		HostCurrency:      constants.BaseCurrency,
		ExchangeRate:      1,
		TotalWorkingDays:  assignment.TotalWorkingDays(),
		TotalCalendarDays: assignment.TotalCalendarDays(),
	}
	if req.Host == nil {
		warnings = append(warnings, fmt.Sprintf("no jurisdiction configuration for host %q; tax and social security are zero", assignment.HostCountry))
	} else {
		result.HostCurrency = req.Host.Currency
		result.ExchangeRate = req.Host.ExchangeRate
		result.Treaty = req.Host.TreatyWith(assignment.HomeCountry)
	}

	months := float64(assignment.DurationMonths)
	result.GrossSalary = assignment.MonthlySalary * months
	result.PerDiem = assignment.DailyAllowance * float64(assignment.WorkingDaysPerMonth) * months
	result.AdminFees = req.AdminFees.Prorated(assignment.DurationMonths)

	result.TaxDetail = a.tax.Calculate(result.GrossSalary, req.Host, assignment.DurationMonths)
	result.Tax = result.TaxDetail.TaxEUR
	if result.TaxDetail.Reason != "" && req.Host != nil {
		warnings = append(warnings, result.TaxDetail.Reason)
	}
	result.ExchangeRate = result.TaxDetail.ExchangeRate

	result.SocialSecurityDetail = socialsecurity.Calculate(socialsecurity.Input{
		GrossSalary:    result.GrossSalary,
		MonthlySalary:  assignment.MonthlySalary,
		DurationMonths: assignment.DurationMonths,
		Treaty:         result.Treaty,
	}, req.Host, req.Settings)
	result.SocialSecurity = result.SocialSecurityDetail.Total

	result.AdditionalCost = result.PerDiem + result.AdminFees + result.Tax + result.SocialSecurity
	result.GrandTotal = result.GrossSalary + result.AdditionalCost
	result.CostPerDay = mathutil.SafeDivide(result.AdditionalCost, float64(result.TotalCalendarDays))

	display, displayWarning := result.convert(req.Options)
	result.Display = display
	if displayWarning != "" {
		warnings = append(warnings, displayWarning)
	}
	result.Warnings = warnings
	return result
}

// DisplayRate resolves the units-per-EUR rate for a display currency. It reports
// false when no usable rate is known.
func DisplayRate(currency, hostCurrency string, hostRate float64, rates map[string]float64) (float64, bool) {
	currency = jurisdiction.NormalizeCode(currency)
	switch {
	case currency == "" || currency == constants.BaseCurrency:
		return 1, true
	case currency == jurisdiction.NormalizeCode(hostCurrency) && hostRate > 0:
		return hostRate, true
	}
	if rate, ok := rates[currency]; ok && rate > 0 && !math.IsInf(rate, 0) {
		return rate, true
	}
	return 0, false
}

func (r Result) convert(opts Options) (Display, string) {
	currency := jurisdiction.NormalizeCode(opts.DisplayCurrency)
	if currency == "" {
		currency = constants.BaseCurrency
	}
	warning := ""
	rate, ok := DisplayRate(currency, r.HostCurrency, r.ExchangeRate, opts.DisplayRates)
	if !ok {
		warning = fmt.Sprintf("no exchange rate for display currency %s; showing EUR", currency)
		currency = constants.BaseCurrency
		rate = 1
	}
	return Display{
		Currency:       currency,
		Rate:           rate,
		GrossSalary:    r.GrossSalary * rate,
		PerDiem:        r.PerDiem * rate,
		AdminFees:      r.AdminFees * rate,
		Tax:            r.Tax * rate,
		SocialSecurity: r.SocialSecurity * rate,
		AdditionalCost: r.AdditionalCost * rate,
		GrandTotal:     r.GrandTotal * rate,
		CostPerDay:     r.CostPerDay * rate,
	}, warning
}

// CalculationID derives a stable identifier from the request contents.
func CalculationID(req Request) string {
	payload, err := json.Marshal(req)
	if err != nil {
		// NaN and Inf inputs are not representable in JSON.
		payload = []byte(fmt.Sprintf("%#v", req.Assignment))
	}
	return uuid.NewSHA1(calculationNamespace, payload).String()
}
