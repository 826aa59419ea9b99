package cost

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/pkg/constants"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Assignment describes a single worker relocation. Monetary fields are in EUR.
type Assignment struct {
	HomeCountry         string  `json:"homeCountry" yaml:"homeCountry" mapstructure:"homeCountry" validate:"required,alpha,len=2"`
	HostCountry         string  `json:"hostCountry" yaml:"hostCountry" mapstructure:"hostCountry" validate:"required,alpha,len=2"`
	MonthlySalary       float64 `json:"monthlySalary" yaml:"monthlySalary" mapstructure:"monthlySalary" validate:"gte=0"`
	DurationMonths      int     `json:"durationMonths" yaml:"durationMonths" mapstructure:"durationMonths" validate:"gte=1,lte=1200"`
	WorkingDaysPerMonth int     `json:"workingDaysPerMonth" yaml:"workingDaysPerMonth" mapstructure:"workingDaysPerMonth" validate:"gte=1,lte=31"`
	DailyAllowance      float64 `json:"dailyAllowance" yaml:"dailyAllowance" mapstructure:"dailyAllowance" validate:"gt=0"`
}

// TotalWorkingDays is the number of working days over the whole assignment.
func (a Assignment) TotalWorkingDays() int {
	return a.WorkingDaysPerMonth * a.DurationMonths
}

// TotalCalendarDays approximates the assignment length as 30 days per month.
func (a Assignment) TotalCalendarDays() int {
	return a.DurationMonths * constants.DaysPerMonth
}

// Validate reports every field that violates its constraints.
func (a Assignment) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("assignment validation failed: %w", err)
	}
	return nil
}

// Normalize returns a copy of the assignment with invalid fields coerced to safe
// values, plus a warning for every coercion. hostPerDiem replaces a missing daily
// allowance.
func (a Assignment) Normalize(hostPerDiem float64) (Assignment, []string) {
	out := a
	out.HomeCountry = jurisdiction.NormalizeCode(a.HomeCountry)
	out.HostCountry = jurisdiction.NormalizeCode(a.HostCountry)

	var warnings []string
	err := validate.Struct(out)
	var fieldErrs validator.ValidationErrors
	if err != nil && !errors.As(err, &fieldErrs) {
		warnings = append(warnings, fmt.Sprintf("assignment could not be validated: %v", err))
	}

	for _, fe := range fieldErrs {
		switch fe.StructField() {
		case "HomeCountry":
			warnings = append(warnings, fmt.Sprintf("home country %q is not a two-letter code", a.HomeCountry))
		case "HostCountry":
			warnings = append(warnings, fmt.Sprintf("host country %q is not a two-letter code", a.HostCountry))
		case "MonthlySalary":
			warnings = append(warnings, fmt.Sprintf("monthly salary %v is invalid; using 0", a.MonthlySalary))
			out.MonthlySalary = 0
		case "DurationMonths":
			if a.DurationMonths > constants.MaximumDurationMonths {
				warnings = append(warnings, fmt.Sprintf("duration %d months exceeds the maximum; using %d", a.DurationMonths, constants.MaximumDurationMonths))
				out.DurationMonths = constants.MaximumDurationMonths
			} else {
				warnings = append(warnings, fmt.Sprintf("duration %d months is below the minimum; using %d", a.DurationMonths, constants.MinimumDurationMonths))
				out.DurationMonths = constants.MinimumDurationMonths
			}
		case "WorkingDaysPerMonth":
			if a.WorkingDaysPerMonth > constants.MaximumWorkingDaysPerMonth {
				warnings = append(warnings, fmt.Sprintf("working days per month %d exceeds %d; using %d",
					a.WorkingDaysPerMonth, constants.MaximumWorkingDaysPerMonth, constants.MaximumWorkingDaysPerMonth))
				out.WorkingDaysPerMonth = constants.MaximumWorkingDaysPerMonth
			} else {
				warnings = append(warnings, fmt.Sprintf("working days per month %d is not positive; using %d", a.WorkingDaysPerMonth, constants.DefaultWorkingDaysPerMonth))
				out.WorkingDaysPerMonth = constants.DefaultWorkingDaysPerMonth
			}
		case "DailyAllowance":
			allowance := math.Max(0, hostPerDiem)
			if math.IsNaN(hostPerDiem) {
				allowance = 0
			}
			warnings = append(warnings, fmt.Sprintf("daily allowance %v is not positive; using host per-diem rate %.2f", a.DailyAllowance, allowance))
			out.DailyAllowance = allowance
		}
	}

	if math.IsInf(out.MonthlySalary, 0) {
		warnings = append(warnings, "monthly salary is not finite; using 0")
		out.MonthlySalary = 0
	}
	if math.IsInf(out.DailyAllowance, 0) {
		warnings = append(warnings, "daily allowance is not finite; using 0")
		out.DailyAllowance = 0
	}
	return out, warnings
}
