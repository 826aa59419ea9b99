// Package visa provides visa wait-time and work-authorization rules keyed by
// nationality and destination.
package visa

import (
	"context"
	"fmt"

	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
)

// Defaults for pairs without a configured rule.
const (
	DefaultWaitDays = 30
	DefaultVisaType = "Standard work permit"
	CitizenVisaType = "Citizen"
)

// Rule is the visa outcome for a nationality travelling to a destination.
type Rule struct {
	Origin         string `json:"origin" yaml:"origin" mapstructure:"origin"`
	Destination    string `json:"destination" yaml:"destination" mapstructure:"destination"`
	WaitDays       int    `json:"waitDays" yaml:"waitDays" mapstructure:"waitDays"`
	VisaType       string `json:"visaType" yaml:"visaType" mapstructure:"visaType"`
	VisaExempt     bool   `json:"visaExempt" yaml:"visaExempt" mapstructure:"visaExempt"`
	WorkAuthorized bool   `json:"workAuthorized" yaml:"workAuthorized" mapstructure:"workAuthorized"`
}

// Provider looks up the rule for a nationality and destination.
type Provider interface {
	Lookup(ctx context.Context, nationality, destination string) (Rule, error)
}

// DefaultRule is returned when no rule is configured for the pair.
func DefaultRule(origin, destination string) Rule {
	return Rule{
		Origin:         jurisdiction.NormalizeCode(origin),
		Destination:    jurisdiction.NormalizeCode(destination),
		WaitDays:       DefaultWaitDays,
		VisaType:       DefaultVisaType,
		WorkAuthorized: true,
	}
}

type pair struct {
	origin      string
	destination string
}

// TableProvider serves rules from an in-memory table.
type TableProvider struct {
	rules map[pair]Rule
}

// NewTableProvider indexes rules by origin and destination. Later duplicates win.
func NewTableProvider(rules []Rule) *TableProvider {
	p := &TableProvider{rules: make(map[pair]Rule, len(rules))}
	for _, rule := range rules {
		rule.Origin = jurisdiction.NormalizeCode(rule.Origin)
		rule.Destination = jurisdiction.NormalizeCode(rule.Destination)
		if rule.WaitDays < 0 {
			rule.WaitDays = 0
		}
		p.rules[pair{rule.Origin, rule.Destination}] = rule
	}
	return p
}

// Lookup returns the rule for the pair. Nationals of the destination need no visa.
func (p *TableProvider) Lookup(ctx context.Context, nationality, destination string) (Rule, error) {
	if err := ctx.Err(); err != nil {
		return Rule{}, fmt.Errorf("visa lookup %s->%s: %w", nationality, destination, err)
	}
	key := pair{jurisdiction.NormalizeCode(nationality), jurisdiction.NormalizeCode(destination)}
	if key.origin != "" && key.origin == key.destination {
		return Rule{
			Origin:         key.origin,
			Destination:    key.destination,
			VisaType:       CitizenVisaType,
			WorkAuthorized: true,
		}, nil
	}
	if rule, ok := p.rules[key]; ok {
		return rule, nil
	}
	return DefaultRule(key.origin, key.destination), nil
}

// Len returns the number of configured rules.
func (p *TableProvider) Len() int {
	return len(p.rules)
}

// DefaultRules is the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{Origin: "FI", Destination: "DE", WaitDays: 0, VisaType: "EU freedom of movement", WorkAuthorized: true},
		{Origin: "DE", Destination: "FI", WaitDays: 0, VisaType: "EU freedom of movement", WorkAuthorized: true},
		{Origin: "SE", Destination: "FI", WaitDays: 0, VisaType: "EU freedom of movement", WorkAuthorized: true},
		{Origin: "PL", Destination: "DE", WaitDays: 0, VisaType: "EU freedom of movement", WorkAuthorized: true},
		{Origin: "US", Destination: "DE", WaitDays: 0, VisaType: "Schengen visa waiver", VisaExempt: true, WorkAuthorized: false},
		{Origin: "US", Destination: "FI", WaitDays: 0, VisaType: "Schengen visa waiver", VisaExempt: true, WorkAuthorized: false},
		{Origin: "BR", Destination: "DE", WaitDays: 0, VisaType: "Schengen visa waiver", VisaExempt: true, WorkAuthorized: false},
		{Origin: "IN", Destination: "DE", WaitDays: 45, VisaType: "EU Blue Card", WorkAuthorized: true},
		{Origin: "IN", Destination: "FI", WaitDays: 60, VisaType: "Specialist residence permit", WorkAuthorized: true},
		{Origin: "IN", Destination: "US", WaitDays: 90, VisaType: "H-1B", WorkAuthorized: true},
		{Origin: "FI", Destination: "US", WaitDays: 0, VisaType: "ESTA visa waiver", VisaExempt: true, WorkAuthorized: false},
		{Origin: "FI", Destination: "GB", WaitDays: 0, VisaType: "Standard visitor", VisaExempt: true, WorkAuthorized: false},
		{Origin: "FI", Destination: "BR", WaitDays: 21, VisaType: "Temporary work visa (VITEM V)", WorkAuthorized: true},
		{Origin: "DE", Destination: "BR", WaitDays: 21, VisaType: "Temporary work visa (VITEM V)", WorkAuthorized: true},
		{Origin: "FI", Destination: "AE", WaitDays: 14, VisaType: "Employment visa", WorkAuthorized: true},
	}
}
