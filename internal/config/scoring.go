package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/deployment-planner/internal/scoring"
)

// ScoringConfig selects the weighting and tunes the visa lookup fan-out. Explicit
// Weights take precedence over Preset.
type ScoringConfig struct {
	Preset        string           `yaml:"preset,omitempty" mapstructure:"preset"`
	Weights       *scoring.Weights `yaml:"weights,omitempty" mapstructure:"weights"`
	Concurrency   int              `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	LookupTimeout time.Duration    `yaml:"lookupTimeout,omitempty" mapstructure:"lookupTimeout"`
}

// CanonicalPreset returns the canonical name for a preset alias.
func CanonicalPreset(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch trimmed {
	case "":
		return scoring.PresetBalanced
	case "fast", "fastest", "speed":
		return scoring.PresetSpeed
	case "cheap", "cheapest", "cost":
		return scoring.PresetCost
	case "safe", "compliant", "compliance":
		return scoring.PresetCompliance
	default:
		return trimmed
	}
}

// Normalize ensures defaults and canonical values are applied before validation.
func (s *ScoringConfig) Normalize() {
	if s == nil {
		return
	}
	s.Preset = CanonicalPreset(s.Preset)
	if s.Concurrency <= 0 {
		s.Concurrency = scoring.DefaultConcurrency
	}
	if s.LookupTimeout <= 0 {
		s.LookupTimeout = scoring.DefaultLookupTimeout
	}
}

// Validate returns an error when the scoring configuration is unsupported.
func (s *ScoringConfig) Validate() error {
	if s == nil {
		return fmt.Errorf("scoring configuration cannot be nil")
	}
	if s.Weights != nil {
		w := *s.Weights
		if w.Speed < 0 || w.Cost < 0 || w.Compliance < 0 {
			return fmt.Errorf("scoring weights cannot be negative")
		}
		return nil
	}
	if _, ok := scoring.Preset(s.Preset); !ok {
		return fmt.Errorf("%w %q: expected one of %s", ErrUnknownPreset, s.Preset, strings.Join(scoring.PresetNames(), ", "))
	}
	return nil
}

// ResolveWeights returns the explicit weights, or the preset's.
func (s ScoringConfig) ResolveWeights() scoring.Weights {
	if s.Weights != nil {
		return *s.Weights
	}
	if w, ok := scoring.Preset(CanonicalPreset(s.Preset)); ok {
		return w
	}
	w, _ := scoring.Preset(scoring.PresetBalanced)
	return w
}

// Options returns the scorer tuning.
func (s ScoringConfig) Options() scoring.Options {
	return scoring.Options{Concurrency: s.Concurrency, LookupTimeout: s.LookupTimeout}
}
