// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	if format != constants.OutputFormatPretty && format != constants.OutputFormatCSV {
		return fmt.Errorf("expected output format of %s or %s, got %s",
			constants.OutputFormatPretty, constants.OutputFormatCSV, format)
	}
	return nil
}

// countryCodeTag matches the tag on scoring.Demand.Destination.
const countryCodeTag = "required,alpha,len=2"

var validate = validator.New()

// ValidateCountryCode checks for a two-letter ISO 3166-1 alpha-2 style code.
// Case is not significant.
func ValidateCountryCode(code string) error {
	if err := validate.Var(strings.TrimSpace(code), countryCodeTag); err != nil {
		return fmt.Errorf("expected a two-letter country code, got %q", code)
	}
	return nil
}

// ValidatePreset checks that a scoring preset name is known.
func ValidatePreset(name string) error {
	if _, ok := scoring.Preset(name); !ok {
		return fmt.Errorf("expected scoring preset of %s, got %s",
			strings.Join(scoring.PresetNames(), ", "), name)
	}
	return nil
}
