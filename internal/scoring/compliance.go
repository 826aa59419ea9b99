package scoring

import (
	"fmt"

	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/internal/visa"
	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/mathutil"
)

// Compliance penalties and thresholds.
const (
	VisaExemptStayPenalty    = 40.0
	WorkAuthorizationPenalty = 30.0
	PostedWorkerPenalty      = 5.0
	LongExemptStayPenalty    = 10.0
	DefaultExemptStayDays    = 90
	GBExemptStayDays         = 180
	LongExemptStayMonths     = 12
	GroupSchengen            = "SCHENGEN"
	complianceStartingScore  = constants.MaxScore
)

// ComplianceInput is what a rule is evaluated against.
type ComplianceInput struct {
	Candidate Candidate
	Demand    Demand
	Visa      visa.Rule
}

// StayDays is the assignment length in days.
func (in ComplianceInput) StayDays() int {
	return in.Demand.DurationMonths * constants.DaysPerMonth
}

// ComplianceRule is a predicate with the penalty and risk flag it produces.
type ComplianceRule struct {
	Name    string
	Penalty float64
	Applies func(ComplianceInput) bool
	Flag    func(ComplianceInput) string
}

// RuleTable maps destinations, then destination groups, to ordered rule lists.
type RuleTable struct {
	ByDestination map[string][]ComplianceRule
	ByGroup       map[string][]ComplianceRule
	Default       []ComplianceRule
}

// RulesFor returns the rules for a destination, falling back to its group and then
// to the default list.
func (t *RuleTable) RulesFor(destination, group string) []ComplianceRule {
	if rules, ok := t.ByDestination[jurisdiction.NormalizeCode(destination)]; ok {
		return rules
	}
	if rules, ok := t.ByGroup[jurisdiction.NormalizeCode(group)]; ok {
		return rules
	}
	return t.Default
}

// Evaluate applies every rule independently and returns the clamped score and
// the flags of the rules that fired.
func (t *RuleTable) Evaluate(in ComplianceInput, group string) (float64, []string) {
	score := complianceStartingScore
	flags := []string{}
	for _, rule := range t.RulesFor(in.Demand.Destination, group) {
		if !rule.Applies(in) {
			continue
		}
		score -= rule.Penalty
		flags = append(flags, rule.Flag(in))
	}
	return mathutil.ClampScore(score), flags
}

// VisaExemptStayRule flags visa-exempt entry for stays longer than maxDays.
func VisaExemptStayRule(maxDays int) ComplianceRule {
	return ComplianceRule{
		Name:    "visa-exempt-stay",
		Penalty: VisaExemptStayPenalty,
		Applies: func(in ComplianceInput) bool {
			return in.Visa.VisaExempt && in.StayDays() > maxDays
		},
		Flag: func(in ComplianceInput) string {
			return fmt.Sprintf("%s: %d-day stay exceeds the %d-day visa-exempt limit", in.Visa.VisaType, in.StayDays(), maxDays)
		},
	}
}

// WorkAuthorizationRule flags visa types that do not permit paid work.
func WorkAuthorizationRule() ComplianceRule {
	return ComplianceRule{
		Name:    "work-authorization",
		Penalty: WorkAuthorizationPenalty,
		Applies: func(in ComplianceInput) bool {
			return !in.Visa.WorkAuthorized
		},
		Flag: func(in ComplianceInput) string {
			return fmt.Sprintf("%s does not authorize paid work", in.Visa.VisaType)
		},
	}
}

// PostedWorkerRule flags the posted-worker notification foreign nationals need.
func PostedWorkerRule() ComplianceRule {
	return ComplianceRule{
		Name:    "posted-worker-notification",
		Penalty: PostedWorkerPenalty,
		Applies: func(in ComplianceInput) bool {
			return jurisdiction.NormalizeCode(in.Candidate.Nationality) != in.Demand.Destination
		},
		Flag: func(in ComplianceInput) string {
			return fmt.Sprintf("posted-worker notification required in %s", in.Demand.Destination)
		},
	}
}

// LongExemptStayRule flags assignments beyond a year on a visa-exempt entry.
func LongExemptStayRule() ComplianceRule {
	return ComplianceRule{
		Name:    "long-exempt-stay",
		Penalty: LongExemptStayPenalty,
		Applies: func(in ComplianceInput) bool {
			return in.Visa.VisaExempt && in.Demand.DurationMonths > LongExemptStayMonths
		},
		Flag: func(in ComplianceInput) string {
			return fmt.Sprintf("%d-month assignment on a visa-exempt entry", in.Demand.DurationMonths)
		},
	}
}

// DefaultRuleTable returns the built-in compliance rules.
func DefaultRuleTable() *RuleTable {
	return &RuleTable{
		ByDestination: map[string][]ComplianceRule{
			"GB": {VisaExemptStayRule(GBExemptStayDays), WorkAuthorizationRule(), LongExemptStayRule()},
			"US": {VisaExemptStayRule(DefaultExemptStayDays), WorkAuthorizationRule(), LongExemptStayRule()},
		},
		ByGroup: map[string][]ComplianceRule{
			GroupSchengen: {VisaExemptStayRule(DefaultExemptStayDays), WorkAuthorizationRule(), PostedWorkerRule(), LongExemptStayRule()},
		},
		Default: []ComplianceRule{VisaExemptStayRule(DefaultExemptStayDays), WorkAuthorizationRule(), LongExemptStayRule()},
	}
}
