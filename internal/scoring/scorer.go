// Package scoring ranks candidates against a project demand on speed, cost and
// compliance, plus a bonus for matching required skills.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iwvelando/deployment-planner/internal/flights"
	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/internal/metrics"
	"github.com/iwvelando/deployment-planner/internal/visa"
	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/mathutil"
)

// Scoring heuristics.
const (
	SpeedDecayPerDay     = 1.6
	MinMonthlyAnchor     = 3000.0
	MaxMonthlyAnchor     = 12000.0
	AnchorBuffer         = 1500.0
	SkillBonusCeiling    = 10.0
	DefaultConcurrency   = 8
	DefaultLookupTimeout = 2 * time.Second
)

var runNamespace = uuid.MustParse("0b8f5c3e-1d2a-4e67-8f90-a1b2c3d4e5f6")

// Options tunes the visa lookup fan-out.
type Options struct {
	Concurrency   int
	LookupTimeout time.Duration
	Rules         *RuleTable
}

// Scorer evaluates candidates for a demand.
type Scorer struct {
	logger  *zap.Logger
	table   *jurisdiction.Table
	visas   visa.Provider
	flights flights.Provider
	rules   *RuleTable
	opts    Options
}

// Run is the ranked outcome of one scoring pass.
type Run struct {
	ID       string            `json:"id"`
	Demand   Demand            `json:"demand"`
	Weights  Weights           `json:"weights"`
	Ranked   []ScoredCandidate `json:"ranked"`
	Filtered int               `json:"filtered"`
	Warnings []string          `json:"warnings,omitempty"`
}

// NewScorer constructs a Scorer. The rule table and providers are required.
func NewScorer(logger *zap.Logger, table *jurisdiction.Table, visas visa.Provider, routes flights.Provider, opts Options) (*Scorer, error) {
	if table == nil {
		return nil, fmt.Errorf("jurisdiction table cannot be nil")
	}
	if visas == nil {
		return nil, fmt.Errorf("visa provider cannot be nil")
	}
	if routes == nil {
		return nil, fmt.Errorf("flight provider cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRuleTable()
	}
	return &Scorer{logger: logger, table: table, visas: visas, flights: routes, rules: rules, opts: opts}, nil
}

// SpeedScore is 100 for a candidate already at the destination and otherwise
// decays linearly with the visa wait.
func SpeedScore(alreadyThere bool, waitDays int) float64 {
	if alreadyThere {
		return constants.MaxScore
	}
	return mathutil.ClampScore(constants.MaxScore - float64(waitDays)*SpeedDecayPerDay)
}

// CostAnchors returns the cheapest and most expensive reference costs for an
// assignment of the given length.
func CostAnchors(durationMonths int) (float64, float64) {
	months := float64(durationMonths)
	return MinMonthlyAnchor*months + AnchorBuffer, MaxMonthlyAnchor*months + AnchorBuffer
}

// CostScore places the assignment cost between the duration-scaled anchors.
func CostScore(totalCost float64, durationMonths int) float64 {
	minAnchor, maxAnchor := CostAnchors(durationMonths)
	return mathutil.ClampScore((maxAnchor - totalCost) / (maxAnchor - minAnchor) * constants.MaxScore)
}

// SkillMatch returns the percentage of required skills the candidate has and the
// bonus points it earns.
func SkillMatch(required, have []string) (float64, float64) {
	required = normalizeSkills(required)
	if len(required) == 0 {
		return constants.MaxScore, 0
	}
	owned := make(map[string]struct{}, len(have))
	for _, skill := range normalizeSkills(have) {
		owned[skill] = struct{}{}
	}
	matched := 0
	for _, skill := range required {
		if _, ok := owned[skill]; ok {
			matched++
		}
	}
	pct := mathutil.CalculatePercentage(float64(matched), float64(len(required)))
	return pct, pct / constants.PercentageMultiplier * SkillBonusCeiling
}

// FinalScore combines the sub-scores with normalized weights and adds the bonus.
func FinalScore(speed, cost, compliance, bonus float64, w Weights) float64 {
	n := w.Normalize()
	base := n.Speed*speed + n.Cost*cost + n.Compliance*compliance
	return mathutil.ClampScore(base + bonus)
}

type lookupResult struct {
	rule   visa.Rule
	failed bool
}

// Run scores every qualified candidate and ranks them by final score, highest
// first, ties broken by candidate ID. Visa lookups run concurrently; a failed or
// slow lookup falls back to the default rule for that candidate only.
func (s *Scorer) Run(ctx context.Context, demand Demand, candidates []Candidate, weights Weights) (*Run, error) {
	demand, warnings := demand.Normalize()
	weights = weights.Normalize()

	qualified := make([]Candidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	filtered := 0
	for _, c := range candidates {
		c.ID = strings.TrimSpace(c.ID)
		if err := c.Validate(); err != nil {
			s.logger.Debug("skipping invalid candidate",
				zap.String("op", "scoring.Run"),
				zap.Error(err))
			filtered++
			continue
		}
		if _, dup := seen[c.ID]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate candidate %q ignored", c.ID))
			filtered++
			continue
		}
		seen[c.ID] = struct{}{}
		if !demand.Qualifies(c) {
			filtered++
			continue
		}
		qualified = append(qualified, c)
	}

	lookups := make([]lookupResult, len(qualified))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, c := range qualified {
		i, c := i, c
		g.Go(func() error {
			lookups[i] = s.lookup(gctx, c, demand.Destination)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scoring run cancelled: %w", err)
	}

	group := ""
	if cfg, ok := s.table.Lookup(demand.Destination); ok {
		group = cfg.Group
	}

	ranked := make([]ScoredCandidate, len(qualified))
	for i, c := range qualified {
		ranked[i] = s.score(c, demand, weights, group, lookups[i])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].ID() < ranked[j].ID()
	})

	metrics.OptimizationRuns.Inc()
	metrics.CandidatesScored.Add(float64(len(ranked)))

	return &Run{
		ID:       RunID(demand, candidates, weights),
		Demand:   demand,
		Weights:  weights,
		Ranked:   ranked,
		Filtered: filtered,
		Warnings: warnings,
	}, nil
}

func (s *Scorer) lookup(ctx context.Context, c Candidate, destination string) lookupResult {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LookupTimeout)
	defer cancel()

	type reply struct {
		rule visa.Rule
		err  error
	}
	// Buffered so a provider that ignores ctx can still deliver after we stop waiting.
	replies := make(chan reply, 1)
	go func() {
		rule, err := s.visas.Lookup(ctx, c.Nationality, destination)
		replies <- reply{rule: rule, err: err}
	}()

	var (
		rule visa.Rule
		err  error
	)
	select {
	case r := <-replies:
		rule, err = r.rule, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.VisaLookupFailures.WithLabelValues(reason).Inc()
		s.logger.Warn("visa lookup failed, using default rule",
			zap.String("op", "scoring.lookup"),
			zap.String("candidate", c.ID),
			zap.String("nationality", c.Nationality),
			zap.String("destination", destination),
			zap.Error(err))
		return lookupResult{rule: visa.DefaultRule(c.Nationality, destination), failed: true}
	}
	return lookupResult{rule: rule}
}

func (s *Scorer) score(c Candidate, demand Demand, weights Weights, group string, lookup lookupResult) ScoredCandidate {
	c.MonthlySalary = mathutil.NonNegative(c.MonthlySalary)
	alreadyThere := jurisdiction.NormalizeCode(c.Location) == demand.Destination

	flightCost := s.flights.RouteCost(c.Location, demand.Destination)
	total := c.MonthlySalary*float64(demand.DurationMonths) + flightCost

	compliance, flags := s.rules.Evaluate(ComplianceInput{Candidate: c, Demand: demand, Visa: lookup.rule}, group)
	if lookup.failed {
		flags = append(flags, "visa lookup unavailable; default wait time assumed")
	}
	match, bonus := SkillMatch(demand.RequiredSkills, c.Skills)

	scored := ScoredCandidate{
		Candidate:        c,
		Visa:             lookup.rule,
		VisaLookupFailed: lookup.failed,
		OnSite:           alreadyThere,
		FlightCost:       flightCost,
		Emissions:        s.flights.Emissions(c.Location, demand.Destination),
		AssignmentCost:   total,
		SpeedScore:       SpeedScore(alreadyThere, lookup.rule.WaitDays),
		CostScore:        CostScore(total, demand.DurationMonths),
		ComplianceScore:  compliance,
		RiskFlags:        flags,
		SkillMatch:       match,
		SkillBonus:       bonus,
	}
	scored.FinalScore = FinalScore(scored.SpeedScore, scored.CostScore, scored.ComplianceScore, bonus, weights)
	return scored
}

// RunID derives a stable identifier for a scoring run from its inputs.
func RunID(demand Demand, candidates []Candidate, weights Weights) string {
	payload, err := json.Marshal(struct {
		Demand     Demand      `json:"demand"`
		Candidates []Candidate `json:"candidates"`
		Weights    Weights     `json:"weights"`
	}{demand, candidates, weights})
	if err != nil {
		payload = []byte(fmt.Sprintf("%v|%d", demand, len(candidates)))
	}
	return uuid.NewSHA1(runNamespace, payload).String()
}
