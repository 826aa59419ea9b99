package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/internal/visa"
	"github.com/iwvelando/deployment-planner/pkg/constants"
)

var validate = validator.New()

// Candidate is a worker that may be staffed on a project.
type Candidate struct {
	ID            string   `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Name          string   `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Nationality   string   `json:"nationality" yaml:"nationality" mapstructure:"nationality"`
	Location      string   `json:"location" yaml:"location" mapstructure:"location"`
	Role          string   `json:"role" yaml:"role" mapstructure:"role" validate:"required"`
	MonthlySalary float64  `json:"monthlySalary" yaml:"monthlySalary" mapstructure:"monthlySalary"`
	Skills        []string `json:"skills,omitempty" yaml:"skills,omitempty" mapstructure:"skills"`
}

// Validate checks the fields a candidate cannot be scored without.
func (c Candidate) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("candidate %q: %w", c.ID, err)
	}
	return nil
}

// Demand is the staffing requirement of a project.
type Demand struct {
	Destination    string   `json:"destination" yaml:"destination" mapstructure:"destination" validate:"required,alpha,len=2"`
	Role           string   `json:"role" yaml:"role" mapstructure:"role" validate:"required"`
	DurationMonths int      `json:"durationMonths" yaml:"durationMonths" mapstructure:"durationMonths" validate:"gte=1,lte=1200"`
	Positions      int      `json:"positions" yaml:"positions" mapstructure:"positions" validate:"gte=0"`
	RequiredSkills []string `json:"requiredSkills,omitempty" yaml:"requiredSkills,omitempty" mapstructure:"requiredSkills"`
}

// Validate reports every field that violates its constraints.
func (d Demand) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("demand validation failed: %w", err)
	}
	return nil
}

// Normalize coerces the demand into a scoreable shape and describes each change.
func (d Demand) Normalize() (Demand, []string) {
	out := d
	out.Destination = jurisdiction.NormalizeCode(d.Destination)
	out.Role = strings.TrimSpace(d.Role)
	out.RequiredSkills = normalizeSkills(d.RequiredSkills)

	var warnings []string
	if out.DurationMonths < constants.MinimumDurationMonths {
		warnings = append(warnings, fmt.Sprintf("duration %d months is below the minimum; using %d", d.DurationMonths, constants.MinimumDurationMonths))
		out.DurationMonths = constants.MinimumDurationMonths
	}
	if out.DurationMonths > constants.MaximumDurationMonths {
		warnings = append(warnings, fmt.Sprintf("duration %d months exceeds the maximum; using %d", d.DurationMonths, constants.MaximumDurationMonths))
		out.DurationMonths = constants.MaximumDurationMonths
	}
	if out.Positions < 0 {
		warnings = append(warnings, fmt.Sprintf("positions %d is negative; using 0", d.Positions))
		out.Positions = 0
	}
	return out, warnings
}

// Qualifies reports whether the candidate's role matches the demand.
func (d Demand) Qualifies(c Candidate) bool {
	return strings.EqualFold(strings.TrimSpace(c.Role), strings.TrimSpace(d.Role))
}

// ScoredCandidate is a candidate with its sub-scores for one run.
type ScoredCandidate struct {
	Candidate        Candidate `json:"candidate"`
	Visa             visa.Rule `json:"visa"`
	VisaLookupFailed bool      `json:"visaLookupFailed,omitempty"`
	OnSite           bool      `json:"onSite"`
	FlightCost       float64   `json:"flightCost"`
	Emissions        float64   `json:"emissions"`
	AssignmentCost   float64   `json:"assignmentCost"`
	SpeedScore       float64   `json:"speedScore"`
	CostScore        float64   `json:"costScore"`
	ComplianceScore  float64   `json:"complianceScore"`
	RiskFlags        []string  `json:"riskFlags"`
	SkillMatch       float64   `json:"skillMatch"`
	SkillBonus       float64   `json:"skillBonus"`
	FinalScore       float64   `json:"finalScore"`
}

// ID returns the candidate identity.
func (s ScoredCandidate) ID() string {
	return s.Candidate.ID
}

// Weights are the relative importance of the three sub-scores.
type Weights struct {
	Speed      float64 `json:"speed" yaml:"speed" mapstructure:"speed"`
	Cost       float64 `json:"cost" yaml:"cost" mapstructure:"cost"`
	Compliance float64 `json:"compliance" yaml:"compliance" mapstructure:"compliance"`
}

// Normalize returns weights that sum to one. Negative or non-finite weights count
// as zero; an all-zero set becomes equal thirds.
func (w Weights) Normalize() Weights {
	clean := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0
		}
		return v
	}
	out := Weights{Speed: clean(w.Speed), Cost: clean(w.Cost), Compliance: clean(w.Compliance)}
	sum := out.Speed + out.Cost + out.Compliance
	if sum == 0 {
		return Weights{Speed: 1.0 / 3, Cost: 1.0 / 3, Compliance: 1.0 / 3}
	}
	return Weights{Speed: out.Speed / sum, Cost: out.Cost / sum, Compliance: out.Compliance / sum}
}

// Preset names.
const (
	PresetBalanced   = "balanced"
	PresetSpeed      = "speed"
	PresetCost       = "cost"
	PresetCompliance = "compliance"
)

var presets = map[string]Weights{
	PresetBalanced:   {Speed: 1, Cost: 1, Compliance: 1},
	PresetSpeed:      {Speed: 0.6, Cost: 0.2, Compliance: 0.2},
	PresetCost:       {Speed: 0.2, Cost: 0.6, Compliance: 0.2},
	PresetCompliance: {Speed: 0.2, Cost: 0.2, Compliance: 0.6},
}

// Preset resolves a named weighting.
func Preset(name string) (Weights, bool) {
	w, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return w, ok
}

// PresetNames lists the available presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeSkills(skills []string) []string {
	if len(skills) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		key := strings.ToLower(strings.TrimSpace(skill))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
