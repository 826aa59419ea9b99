// Package constants provides shared constants for the deployment-planner application.
package constants

// BaseCurrency is the currency every cost figure is computed in before display conversion.
const BaseCurrency = "EUR"

// Assignment constants
const (
	// DaysPerMonth is the fixed calendar approximation used for assignment lengths.
	DaysPerMonth = 30

	// ResidencyThresholdDays is the cumulative day count after which host resident
	// tax rules apply.
	ResidencyThresholdDays = 183

	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DefaultWorkingDaysPerMonth is applied when an assignment leaves working days unset.
	DefaultWorkingDaysPerMonth = 22

	// MinimumDurationMonths is the shortest assignment the engine will cost.
	MinimumDurationMonths = 1

	// MaximumDurationMonths caps assignment lengths so day counts stay in range.
	MaximumDurationMonths = 1200

	// MaximumWorkingDaysPerMonth is the most working days a month can hold.
	MaximumWorkingDaysPerMonth = 31
)

// Numeric constants
const (
	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// MaxScore is the upper bound of every candidate score.
	MaxScore = 100.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024
)
