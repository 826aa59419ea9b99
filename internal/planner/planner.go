// Package planner wires the jurisdiction table, rate resolution, settings store and
// scorer into the two operations the CLI and HTTP server expose: costing a single
// assignment and staffing a project.
package planner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/deployment-planner/internal/cost"
	"github.com/iwvelando/deployment-planner/internal/flights"
	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/internal/metrics"
	"github.com/iwvelando/deployment-planner/internal/rates"
	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/internal/socialsecurity"
	"github.com/iwvelando/deployment-planner/internal/team"
	"github.com/iwvelando/deployment-planner/internal/visa"
)

// unknownHostLabel keeps unconfigured host codes from adding metric series.
const unknownHostLabel = "unknown"

// Dependencies are the collaborators a Planner is built from. Only Table is
// required; every other field has a built-in default.
type Dependencies struct {
	Table     *jurisdiction.Table
	AdminFees cost.AdminFees
	Rates     rates.Provider
	Visas     visa.Provider
	Flights   flights.Provider
	Settings  socialsecurity.SettingsStore
	Scoring   scoring.Options
}

// Planner is safe for concurrent use when its collaborators are.
type Planner struct {
	logger     *zap.Logger
	table      *jurisdiction.Table
	adminFees  cost.AdminFees
	rates      rates.Provider
	settings   socialsecurity.SettingsStore
	aggregator *cost.Aggregator
	scorer     *scoring.Scorer
}

// CostOptions are the per-request choices for a cost calculation.
type CostOptions struct {
	cost.Options
	// AdminFees replaces the configured fees when set.
	AdminFees *cost.AdminFees `json:"adminFees,omitempty"`
}

// CostReport is a cost result together with the exchange rate quote it used.
type CostReport struct {
	cost.Result
	RateSource string    `json:"rateSource"`
	RateAsOf   time.Time `json:"rateAsOf,omitempty"`
}

// Staffing is a scoring run and the team selected from it.
type Staffing struct {
	Run      *scoring.Run
	Selector *team.Selector
}

// New creates a Planner.
func New(logger *zap.Logger, deps Dependencies) (*Planner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Table == nil {
		return nil, fmt.Errorf("jurisdiction table cannot be nil")
	}
	if deps.Rates == nil {
		deps.Rates = rates.NewStaticProvider(deps.Table, nil, time.Time{})
	}
	if deps.Visas == nil {
		deps.Visas = visa.NewTableProvider(visa.DefaultRules())
	}
	if deps.Flights == nil {
		deps.Flights = flights.NewTable(flights.DefaultRoutes())
	}
	if deps.Settings == nil {
		deps.Settings = socialsecurity.NewMemoryStore(socialsecurity.DefaultSettings())
	}

	scorer, err := scoring.NewScorer(logger, deps.Table, deps.Visas, deps.Flights, deps.Scoring)
	if err != nil {
		return nil, fmt.Errorf("failed to create scorer: %w", err)
	}

	return &Planner{
		logger:     logger,
		table:      deps.Table,
		adminFees:  deps.AdminFees,
		rates:      deps.Rates,
		settings:   deps.Settings,
		aggregator: cost.NewAggregator(nil),
		scorer:     scorer,
	}, nil
}

// Table returns the jurisdiction table in use.
func (p *Planner) Table() *jurisdiction.Table {
	return p.table
}

// Settings returns the stored social security settings for userID, or the
// defaults when the store fails.
func (p *Planner) Settings(ctx context.Context, userID string) socialsecurity.Settings {
	settings, err := p.settings.Get(ctx, userID)
	if err != nil {
		metrics.SettingsStoreErrors.WithLabelValues("get").Inc()
		p.logger.Warn("failed to load social security settings, using defaults",
			zap.String("op", "planner.Settings"),
			zap.String("user", userID),
			zap.Error(err))
		return socialsecurity.DefaultSettings()
	}
	return settings
}

// SaveSettings stores the social security settings for userID.
func (p *Planner) SaveSettings(ctx context.Context, userID string, settings socialsecurity.Settings) error {
	if err := p.settings.Save(ctx, userID, settings); err != nil {
		metrics.SettingsStoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("failed to save settings for %q: %w", userID, err)
	}
	return nil
}

// CalculateCost computes the cost of an assignment with the user's settings and
// the current exchange rate for the host currency. It only errors when ctx is
// already done; every other problem degrades into a warning on the result.
func (p *Planner) CalculateCost(ctx context.Context, userID string, assignment cost.Assignment, opts CostOptions) (CostReport, error) {
	if err := ctx.Err(); err != nil {
		return CostReport{}, fmt.Errorf("cost calculation cancelled: %w", err)
	}
	start := time.Now()

	req := cost.Request{
		Assignment: assignment,
		Settings:   p.Settings(ctx, userID),
		AdminFees:  p.adminFees,
		Options:    opts.Options,
	}
	if opts.AdminFees != nil {
		req.AdminFees = *opts.AdminFees
	}

	report := CostReport{RateSource: rates.SourceFallback}
	if host, ok := p.table.Lookup(assignment.HostCountry); ok {
		quote := rates.Resolve(ctx, p.rates, host.Currency, host.ExchangeRate)
		host.ExchangeRate = quote.Rate
		report.RateSource = quote.Source
		report.RateAsOf = quote.AsOf
		req.Host = &host
	}
	if home, ok := p.table.Lookup(assignment.HomeCountry); ok {
		req.Home = &home
	}

	report.Result = p.aggregator.Calculate(req)

	hostLabel := unknownHostLabel
	if req.Host != nil {
		hostLabel = jurisdiction.NormalizeCode(assignment.HostCountry)
	}
	metrics.CostCalculations.WithLabelValues(hostLabel).Inc()
	metrics.CostCalculationDuration.Observe(time.Since(start).Seconds())
	p.logger.Debug("calculated assignment cost",
		zap.String("op", "planner.CalculateCost"),
		zap.String("id", report.ID),
		zap.String("host", report.Assignment.HostCountry),
		zap.String("rateSource", report.RateSource),
		zap.Float64("grandTotal", report.GrandTotal),
		zap.Int("warnings", len(report.Warnings)))
	return report, nil
}

// Optimize ranks the candidates for the demand and selects the top positions.
func (p *Planner) Optimize(ctx context.Context, demand scoring.Demand, candidates []scoring.Candidate, weights scoring.Weights) (Staffing, error) {
	run, err := p.scorer.Run(ctx, demand, candidates, weights)
	if err != nil {
		return Staffing{}, fmt.Errorf("failed to score candidates: %w", err)
	}
	selector := team.New(run.Ranked, run.Demand.Positions)
	agg := selector.Aggregates()
	p.logger.Info("staffing run complete",
		zap.String("op", "planner.Optimize"),
		zap.String("run", run.ID),
		zap.String("destination", run.Demand.Destination),
		zap.Int("ranked", len(run.Ranked)),
		zap.Int("filtered", run.Filtered),
		zap.Int("selected", agg.Headcount),
		zap.Int("shortfall", agg.Shortfall))
	return Staffing{Run: run, Selector: selector}, nil
}
