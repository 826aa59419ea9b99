package cost

import (
	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/mathutil"
)

// Fee is a named one-time charge in EUR.
type Fee struct {
	Name   string  `json:"name" yaml:"name" mapstructure:"name"`
	Amount float64 `json:"amount" yaml:"amount" mapstructure:"amount" validate:"gte=0"`
}

// AdminFees are the administrative charges attached to an assignment, in EUR.
type AdminFees struct {
	MonthlyRecurring float64 `json:"monthlyRecurring" yaml:"monthlyRecurring" mapstructure:"monthlyRecurring" validate:"gte=0"`
	AnnualRecurring  float64 `json:"annualRecurring" yaml:"annualRecurring" mapstructure:"annualRecurring" validate:"gte=0"`
	ServiceFee       float64 `json:"serviceFee" yaml:"serviceFee" mapstructure:"serviceFee" validate:"gte=0"`
	OneTime          []Fee   `json:"oneTime,omitempty" yaml:"oneTime,omitempty" mapstructure:"oneTime" validate:"dive"`
}

// Recurring is the sum of the fees that prorate with duration.
func (f AdminFees) Recurring() float64 {
	return mathutil.NonNegative(f.MonthlyRecurring) +
		mathutil.NonNegative(f.AnnualRecurring) +
		mathutil.NonNegative(f.ServiceFee)
}

// OneTimeTotal is the sum of the fees charged once regardless of duration.
func (f AdminFees) OneTimeTotal() float64 {
	total := 0.0
	for _, fee := range f.OneTime {
		total += mathutil.NonNegative(fee.Amount)
	}
	return total
}

// Prorated returns the admin fees for an assignment of the given length. Recurring
// fees scale linearly with months/12; one-time fees do not.
func (f AdminFees) Prorated(durationMonths int) float64 {
	if durationMonths < constants.MinimumDurationMonths {
		durationMonths = constants.MinimumDurationMonths
	}
	return f.Recurring()*float64(durationMonths)/constants.MonthsPerYear + f.OneTimeTotal()
}
