// Package config defines the data structures related to configuration and
// includes functions for loading, normalizing and validating the config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/iwvelando/deployment-planner/internal/cost"
	"github.com/iwvelando/deployment-planner/internal/flights"
	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/internal/rates"
	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/internal/socialsecurity"
	"github.com/iwvelando/deployment-planner/internal/visa"
	"github.com/iwvelando/deployment-planner/pkg/constants"
)

// EnvPrefix namespaces environment overrides, e.g. PLANNER_DATABASE_DSN.
const EnvPrefix = "PLANNER"

// Validation failures, checked with errors.Is.
var (
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidLogFormat    = errors.New("invalid log format")
	ErrUnknownPreset       = errors.New("unknown scoring preset")
	ErrDuplicateCandidate  = errors.New("duplicate candidate id")
	ErrInvalidRoute        = errors.New("invalid flight route")
	ErrInvalidVisaRule     = errors.New("invalid visa rule")
)

var validate = validator.New()

// Configuration holds all configuration for deployment-planner.
type Configuration struct {
	Logging        LoggingConfig            `yaml:"logging,omitempty" mapstructure:"logging"`
	Output         OutputConfig             `yaml:"output,omitempty" mapstructure:"output"`
	Jurisdictions  JurisdictionsConfig      `yaml:"jurisdictions,omitempty" mapstructure:"jurisdictions"`
	AdminFees      cost.AdminFees           `yaml:"adminFees,omitempty" mapstructure:"adminFees"`
	SocialSecurity *socialsecurity.Settings `yaml:"socialSecurity,omitempty" mapstructure:"socialSecurity"`
	Scoring        ScoringConfig            `yaml:"scoring,omitempty" mapstructure:"scoring"`
	VisaRules      []visa.Rule              `yaml:"visaRules,omitempty" mapstructure:"visaRules"`
	FlightRoutes   []flights.Route          `yaml:"flightRoutes,omitempty" mapstructure:"flightRoutes"`
	Candidates     []scoring.Candidate      `yaml:"candidates,omitempty" mapstructure:"candidates"`
	Rates          RatesConfig              `yaml:"rates,omitempty" mapstructure:"rates"`
	Database       DatabaseConfig           `yaml:"database,omitempty" mapstructure:"database"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv
}

// JurisdictionsConfig overrides or extends the built-in rule table.
type JurisdictionsConfig struct {
	Version   string                `yaml:"version,omitempty" mapstructure:"version"`
	Overrides []jurisdiction.Config `yaml:"overrides,omitempty" mapstructure:"overrides"`
}

// RatesConfig configures live exchange rates. An empty RedisAddress disables the
// cache and serves table rates only.
type RatesConfig struct {
	RedisAddress  string             `yaml:"redisAddress,omitempty" mapstructure:"redisAddress"`
	RedisPassword string             `yaml:"redisPassword,omitempty" mapstructure:"redisPassword"`
	RedisDB       int                `yaml:"redisDB,omitempty" mapstructure:"redisDB"`
	TTL           time.Duration      `yaml:"ttl,omitempty" mapstructure:"ttl"`
	LookupTimeout time.Duration      `yaml:"lookupTimeout,omitempty" mapstructure:"lookupTimeout"`
	Overrides     map[string]float64 `yaml:"overrides,omitempty" mapstructure:"overrides"`
}

// DatabaseConfig configures the settings store. An empty DSN keeps settings in
// memory.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	MaxOpenConns int    `yaml:"maxOpenConns,omitempty" mapstructure:"maxOpenConns"`
}

var defaults = map[string]interface{}{
	"logging.level":         "info",
	"logging.format":        "console",
	"logging.outputFile":    "",
	"output.format":         constants.OutputFormatPretty,
	"scoring.preset":        scoring.PresetBalanced,
	"rates.redisAddress":    "",
	"rates.redisPassword":   "",
	"rates.redisDB":         0,
	"rates.ttl":             rates.DefaultCacheTTL,
	"rates.lookupTimeout":   rates.DefaultLookupTimeout,
	"database.dsn":          "",
	"database.maxOpenConns": 10,
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed with PLANNER_ override
// scalar settings.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	configuration.Normalize()
	if err := configuration.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &configuration, nil
}

// Normalize applies defaults and canonical casing before validation.
func (c *Configuration) Normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = constants.OutputFormatPretty
	}

	c.Scoring.Normalize()

	for i := range c.Candidates {
		c.Candidates[i].ID = strings.TrimSpace(c.Candidates[i].ID)
		c.Candidates[i].Nationality = jurisdiction.NormalizeCode(c.Candidates[i].Nationality)
		c.Candidates[i].Location = jurisdiction.NormalizeCode(c.Candidates[i].Location)
	}

	if c.Rates.TTL <= 0 {
		c.Rates.TTL = rates.DefaultCacheTTL
	}
	if c.Rates.LookupTimeout <= 0 {
		c.Rates.LookupTimeout = rates.DefaultLookupTimeout
	}
	c.Rates.RedisAddress = strings.TrimSpace(c.Rates.RedisAddress)
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
}

// Validate reports every invalid setting.
func (c *Configuration) Validate() error {
	var errs []error

	switch c.Output.Format {
	case constants.OutputFormatPretty, constants.OutputFormatCSV:
	default:
		errs = append(errs, fmt.Errorf("%w %q: expected %s or %s", ErrInvalidOutputFormat, c.Output.Format, constants.OutputFormatPretty, constants.OutputFormatCSV))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w %q", ErrInvalidLogLevel, c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%w %q", ErrInvalidLogFormat, c.Logging.Format))
	}

	if err := validate.Struct(c.AdminFees); err != nil {
		errs = append(errs, fmt.Errorf("adminFees: %w", err))
	}
	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, override := range c.Jurisdictions.Overrides {
		if err := override.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("jurisdiction override %s: %w", override.Code, err))
		}
	}
	for i, rule := range c.VisaRules {
		if jurisdiction.NormalizeCode(rule.Origin) == "" || jurisdiction.NormalizeCode(rule.Destination) == "" {
			errs = append(errs, fmt.Errorf("%w at index %d: origin and destination are required", ErrInvalidVisaRule, i))
		}
	}
	for i, route := range c.FlightRoutes {
		if jurisdiction.NormalizeCode(route.Origin) == "" || jurisdiction.NormalizeCode(route.Destination) == "" {
			errs = append(errs, fmt.Errorf("%w at index %d: origin and destination are required", ErrInvalidRoute, i))
		}
		if route.Cost < 0 || route.Emissions < 0 {
			errs = append(errs, fmt.Errorf("%w %s-%s: cost and emissions cannot be negative", ErrInvalidRoute, route.Origin, route.Destination))
		}
	}

	seen := make(map[string]struct{}, len(c.Candidates))
	for _, candidate := range c.Candidates {
		if err := candidate.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[candidate.ID]; dup {
			errs = append(errs, fmt.Errorf("%w %q", ErrDuplicateCandidate, candidate.ID))
		}
		seen[candidate.ID] = struct{}{}
	}

	return errors.Join(errs...)
}

// ValidateConfiguration returns warnings for settings that are valid but likely
// mistakes.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	table := c.Table()
	for _, candidate := range c.Candidates {
		if _, ok := table.Lookup(candidate.Location); !ok && candidate.Location != "" {
			warnings = append(warnings, fmt.Sprintf("candidate %s is located in %s, which has no jurisdiction rules", candidate.ID, candidate.Location))
		}
		if candidate.MonthlySalary <= 0 {
			warnings = append(warnings, fmt.Sprintf("candidate %s has no monthly salary; cost scores will be optimistic", candidate.ID))
		}
	}
	if c.Rates.RedisAddress == "" && len(c.Rates.Overrides) == 0 {
		warnings = append(warnings, "no rate cache configured; static jurisdiction exchange rates will be used")
	}
	return warnings
}

// Table returns the built-in jurisdiction table with the configured overrides
// applied.
func (c *Configuration) Table() *jurisdiction.Table {
	return jurisdiction.DefaultTable().Merge(c.Jurisdictions.Version, c.Jurisdictions.Overrides)
}

// SocialSecurityDefaults returns the configured default settings, or the built-in
// defaults when the section is absent.
func (c *Configuration) SocialSecurityDefaults() socialsecurity.Settings {
	if c.SocialSecurity == nil {
		return socialsecurity.DefaultSettings()
	}
	return *c.SocialSecurity
}

// VisaProvider serves the built-in rules with configured rules layered on top.
func (c *Configuration) VisaProvider() *visa.TableProvider {
	rules := append(visa.DefaultRules(), c.VisaRules...)
	return visa.NewTableProvider(rules)
}

// FlightTable serves the built-in routes with configured routes layered on top.
func (c *Configuration) FlightTable() *flights.Table {
	routes := append(flights.DefaultRoutes(), c.FlightRoutes...)
	return flights.NewTable(routes)
}

// CacheConfig returns the rate cache tuning.
func (c *Configuration) CacheConfig() rates.CacheConfig {
	return rates.CacheConfig{TTL: c.Rates.TTL, LookupTimeout: c.Rates.LookupTimeout}
}
