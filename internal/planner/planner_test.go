package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwvelando/deployment-planner/internal/cost"
	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/internal/metrics"
	"github.com/iwvelando/deployment-planner/internal/rates"
	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/internal/socialsecurity"
)

const epsilon = 1e-6

type stubRates struct {
	quotes map[string]rates.Quote
	err    error
}

func (s stubRates) Rates(_ context.Context, _ string, _ []string) (map[string]rates.Quote, error) {
	return s.quotes, s.err
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (socialsecurity.Settings, error) {
	return socialsecurity.Settings{}, errors.New("connection refused")
}

func (failingStore) Save(context.Context, string, socialsecurity.Settings) error {
	return errors.New("connection refused")
}

func brazilAssignment() cost.Assignment {
	return cost.Assignment{
		HomeCountry:         "FI",
		HostCountry:         "BR",
		MonthlySalary:       7000,
		DurationMonths:      6,
		WorkingDaysPerMonth: 22,
		DailyAllowance:      72,
	}
}

func newPlanner(t *testing.T, deps Dependencies) *Planner {
	t.Helper()
	if deps.Table == nil {
		deps.Table = jurisdiction.DefaultTable()
	}
	p, err := New(nil, deps)
	require.NoError(t, err)
	return p
}

func TestNewRequiresTable(t *testing.T) {
	_, err := New(nil, Dependencies{})
	require.Error(t, err)
}

func TestCalculateCostUsesTableRateByDefault(t *testing.T) {
	p := newPlanner(t, Dependencies{})

	report, err := p.CalculateCost(context.Background(), "alice", brazilAssignment(), CostOptions{})
	require.NoError(t, err)

	assert.Equal(t, rates.SourceFallback, report.RateSource)
	assert.Equal(t, 5.5, report.ExchangeRate)
	assert.InDelta(t, 10500, report.Tax, epsilon)
	assert.InDelta(t, 908.85/5.5*6, report.SocialSecurityDetail.Employee, epsilon)
	assert.Empty(t, report.Warnings)
}

func TestCalculateCostUsesResolvedRate(t *testing.T) {
	asOf := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	p := newPlanner(t, Dependencies{
		Rates: stubRates{quotes: map[string]rates.Quote{
			"BRL": {Currency: "BRL", Rate: 5.0, AsOf: asOf, Source: rates.SourceUpstream},
		}},
	})

	report, err := p.CalculateCost(context.Background(), "alice", brazilAssignment(), CostOptions{})
	require.NoError(t, err)

	assert.Equal(t, rates.SourceUpstream, report.RateSource)
	assert.Equal(t, asOf, report.RateAsOf)
	assert.Equal(t, 5.0, report.ExchangeRate)
	assert.InDelta(t, 908.85/5.0*6, report.SocialSecurityDetail.Employee, epsilon)

	// The shared table keeps its own rate.
	host, ok := p.Table().Lookup("BR")
	require.True(t, ok)
	assert.Equal(t, 5.5, host.ExchangeRate)
}

func TestCalculateCostFallsBackWhenProviderFails(t *testing.T) {
	p := newPlanner(t, Dependencies{Rates: stubRates{err: errors.New("upstream down")}})

	report, err := p.CalculateCost(context.Background(), "alice", brazilAssignment(), CostOptions{})
	require.NoError(t, err)
	assert.Equal(t, rates.SourceFallback, report.RateSource)
	assert.Equal(t, 5.5, report.ExchangeRate)
}

func TestCalculateCostAppliesStoredSettings(t *testing.T) {
	store := socialsecurity.NewMemoryStore(socialsecurity.DefaultSettings())
	p := newPlanner(t, Dependencies{Settings: store})
	ctx := context.Background()

	require.NoError(t, p.SaveSettings(ctx, "bob", socialsecurity.Settings{IncludeWithoutTreaty: false}))

	report, err := p.CalculateCost(ctx, "bob", brazilAssignment(), CostOptions{})
	require.NoError(t, err)
	assert.False(t, report.SocialSecurityDetail.Included)
	assert.Zero(t, report.SocialSecurity)

	other, err := p.CalculateCost(ctx, "alice", brazilAssignment(), CostOptions{})
	require.NoError(t, err)
	assert.True(t, other.SocialSecurityDetail.Included)
}

func TestCalculateCostDegradesOnStoreFailure(t *testing.T) {
	p := newPlanner(t, Dependencies{Settings: failingStore{}})

	report, err := p.CalculateCost(context.Background(), "alice", brazilAssignment(), CostOptions{})
	require.NoError(t, err)
	assert.True(t, report.SocialSecurityDetail.Included)
	assert.Equal(t, socialsecurity.DefaultSettings(), p.Settings(context.Background(), "alice"))

	err = p.SaveSettings(context.Background(), "alice", socialsecurity.DefaultSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCalculateCostAdminFeeOverride(t *testing.T) {
	p := newPlanner(t, Dependencies{AdminFees: cost.AdminFees{MonthlyRecurring: 1200}})
	ctx := context.Background()

	configured, err := p.CalculateCost(ctx, "alice", brazilAssignment(), CostOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 600, configured.AdminFees, epsilon)

	override, err := p.CalculateCost(ctx, "alice", brazilAssignment(), CostOptions{AdminFees: &cost.AdminFees{ServiceFee: 240}})
	require.NoError(t, err)
	assert.InDelta(t, 120, override.AdminFees, epsilon)
}

func TestCalculateCostUnknownHost(t *testing.T) {
	p := newPlanner(t, Dependencies{})
	assignment := brazilAssignment()
	assignment.HostCountry = "ZZ"

	report, err := p.CalculateCost(context.Background(), "alice", assignment, CostOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Tax)
	assert.Zero(t, report.SocialSecurity)
	assert.NotEmpty(t, report.Warnings)
}

func TestCalculateCostMetricLabels(t *testing.T) {
	tests := []struct {
		name      string
		hosts     []string
		wantLabel string
	}{
		{name: "Unconfigured hosts share one series", hosts: []string{"ZZ", "not-a-country", " qq "}, wantLabel: unknownHostLabel},
		{name: "Configured host is normalized", hosts: []string{"br", " BR"}, wantLabel: "BR"},
	}

	p := newPlanner(t, Dependencies{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := metrics.CostCalculations.WithLabelValues(tt.wantLabel)
			before := testutil.ToFloat64(counter)
			series := testutil.CollectAndCount(metrics.CostCalculations)

			for _, host := range tt.hosts {
				assignment := brazilAssignment()
				assignment.HostCountry = host
				_, err := p.CalculateCost(context.Background(), "alice", assignment, CostOptions{})
				require.NoError(t, err)
			}

			assert.InDelta(t, before+float64(len(tt.hosts)), testutil.ToFloat64(counter), epsilon)
			assert.Equal(t, series, testutil.CollectAndCount(metrics.CostCalculations))
		})
	}
}

func TestCalculateCostCancelled(t *testing.T) {
	p := newPlanner(t, Dependencies{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CalculateCost(ctx, "alice", brazilAssignment(), CostOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOptimize(t *testing.T) {
	p := newPlanner(t, Dependencies{})
	demand := scoring.Demand{Destination: "DE", Role: "engineer", DurationMonths: 6, Positions: 2}
	candidates := []scoring.Candidate{
		{ID: "c1", Nationality: "FI", Location: "DE", Role: "engineer", MonthlySalary: 5000},
		{ID: "c2", Nationality: "IN", Location: "IN", Role: "Engineer", MonthlySalary: 4000},
		{ID: "c3", Nationality: "US", Location: "US", Role: "engineer", MonthlySalary: 9000},
		{ID: "c4", Nationality: "DE", Location: "DE", Role: "designer", MonthlySalary: 3000},
	}

	staffing, err := p.Optimize(context.Background(), demand, candidates, scoring.Weights{Speed: 1, Cost: 1, Compliance: 1})
	require.NoError(t, err)

	require.Len(t, staffing.Run.Ranked, 3)
	assert.Equal(t, 1, staffing.Run.Filtered)
	assert.Equal(t, 2, staffing.Selector.Aggregates().Headcount)
	assert.Len(t, staffing.Selector.Alternatives(), 1)
	assert.Equal(t, staffing.Run.Ranked[0].ID(), staffing.Selector.SelectedTeam()[0].ID())
}

func TestOptimizeCancelled(t *testing.T) {
	p := newPlanner(t, Dependencies{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Optimize(ctx, scoring.Demand{Destination: "DE", Role: "engineer", DurationMonths: 1, Positions: 1},
		[]scoring.Candidate{{ID: "c1", Nationality: "FI", Location: "FI", Role: "engineer"}}, scoring.Weights{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
