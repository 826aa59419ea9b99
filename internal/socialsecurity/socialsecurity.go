// Package socialsecurity computes host-country social security contributions and
// persists the per-user settings that decide whether they apply.
package socialsecurity

import (
	"math"

	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/mathutil"
)

// Legacy split applied when only a combined rate is configured.
const (
	LegacyEmployerShare = 0.7
	LegacyEmployeeShare = 0.3
)

// Settings controls whether host contributions are included.
type Settings struct {
	IncludeWithTreaty    bool `json:"includeWithTreaty" yaml:"includeWithTreaty" mapstructure:"includeWithTreaty"`
	IncludeWithoutTreaty bool `json:"includeWithoutTreaty" yaml:"includeWithoutTreaty" mapstructure:"includeWithoutTreaty"`
}

// DefaultSettings returns the settings used when a user has none stored.
func DefaultSettings() Settings {
	return Settings{IncludeWithTreaty: false, IncludeWithoutTreaty: true}
}

// Excludes reports whether contributions are dropped for the given treaty status.
func (s Settings) Excludes(treaty bool) bool {
	return (treaty && !s.IncludeWithTreaty) || (!treaty && !s.IncludeWithoutTreaty)
}

// Input carries the assignment figures, in EUR.
type Input struct {
	GrossSalary    float64
	MonthlySalary  float64
	DurationMonths int
	Treaty         bool
}

// Result holds the employer and employee contributions in EUR.
type Result struct {
	Included       bool    `json:"included"`
	Treaty         bool    `json:"treaty"`
	Employer       float64 `json:"employer"`
	Employee       float64 `json:"employee"`
	Total          float64 `json:"total"`
	EmployeeCapped bool    `json:"employeeCapped"`
	LegacySplit    bool    `json:"legacySplit"`
	Reason         string  `json:"reason,omitempty"`
}

// Calculate applies the settings and the jurisdiction's rates to the input. A nil
// cfg is treated as missing configuration and yields zero contributions.
func Calculate(in Input, cfg *jurisdiction.Config, settings Settings) Result {
	result := Result{Treaty: in.Treaty}
	if cfg == nil {
		result.Reason = "no jurisdiction configuration"
		return result
	}
	if settings.Excludes(in.Treaty) {
		if in.Treaty {
			result.Reason = "excluded: social security agreement in place and treaty-country contributions are disabled"
		} else {
			result.Reason = "excluded: no social security agreement and non-treaty contributions are disabled"
		}
		return result
	}

	gross := mathutil.NonNegative(in.GrossSalary)
	monthly := mathutil.NonNegative(in.MonthlySalary)
	months := in.DurationMonths
	if months < constants.MinimumDurationMonths {
		months = constants.MinimumDurationMonths
	}
	result.Included = true

	if !cfg.HasSplitRates() && cfg.SocialSecurityRate > 0 {
		total := gross * cfg.SocialSecurityRate
		result.Employer = total * LegacyEmployerShare
		result.Employee = total * LegacyEmployeeShare
		result.Total = result.Employer + result.Employee
		result.LegacySplit = true
		return result
	}

	result.Employer = gross * cfg.EmployerSocialSecurityRate
	if cfg.EmployeeMonthlyCap != nil {
		perMonth := monthly * cfg.EmployeeSocialSecurityRate
		capEUR := MonthlyCapEUR(*cfg)
		if perMonth > capEUR {
			perMonth = capEUR
			result.EmployeeCapped = true
		}
		result.Employee = perMonth * float64(months)
	} else {
		result.Employee = gross * cfg.EmployeeSocialSecurityRate
	}
	result.Total = result.Employer + result.Employee
	return result
}

// MonthlyCapEUR converts the jurisdiction's employee cap from local currency to EUR.
// It returns +Inf when no cap is configured.
func MonthlyCapEUR(cfg jurisdiction.Config) float64 {
	if cfg.EmployeeMonthlyCap == nil {
		return math.Inf(1)
	}
	rate := cfg.ExchangeRate
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = 1
	}
	return mathutil.NonNegative(*cfg.EmployeeMonthlyCap) / rate
}
