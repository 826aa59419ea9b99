package integration

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/iwvelando/deployment-planner/internal/config"
	"github.com/iwvelando/deployment-planner/internal/cost"
	"github.com/iwvelando/deployment-planner/internal/planner"
	"github.com/iwvelando/deployment-planner/internal/rates"
	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/pkg/output"
	"github.com/iwvelando/deployment-planner/pkg/testutil"
)

const testConfig = "../test_config.yaml"

func loadPlanner(t *testing.T) (*config.Configuration, *planner.Planner) {
	t.Helper()
	conf, err := config.LoadConfiguration(testConfig)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	p, err := testutil.NewPlanner(zap.NewNop(), conf)
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}
	return conf, p
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

func germanDemand() scoring.Demand {
	return scoring.Demand{Destination: "DE", Role: "engineer", DurationMonths: 6, Positions: 2}
}

// TestCostBaseline checks a full cost calculation against hand-computed figures.
func TestCostBaseline(t *testing.T) {
	_, p := loadPlanner(t)

	report, err := p.CalculateCost(context.Background(), "alice", brazilAssignment(), planner.CostOptions{})
	if err != nil {
		t.Fatalf("CalculateCost() error = %v", err)
	}

	checks := []struct {
		name     string
		actual   float64
		expected float64
	}{
		{"gross salary", report.GrossSalary, 42000},
		{"per diem", report.PerDiem, 9504},
		{"admin fees", report.AdminFees, 800},
		{"tax", report.Tax, 10500},
		{"exchange rate", report.ExchangeRate, 5.0},
		{"employee social security", report.SocialSecurityDetail.Employee, 908.85 / 5.0 * 6},
	}
	for _, check := range checks {
		if math.Abs(check.actual-check.expected) > 0.01 {
			t.Errorf("%s: expected %.2f, got %.2f", check.name, check.expected, check.actual)
		}
	}

	if report.RateSource != rates.SourceFallback {
		t.Errorf("Expected rate source %s, got %s", rates.SourceFallback, report.RateSource)
	}
	if report.TotalWorkingDays != 132 {
		t.Errorf("Expected 132 working days, got %d", report.TotalWorkingDays)
	}

	additional := report.PerDiem + report.AdminFees + report.Tax + report.SocialSecurity
	if math.Abs(additional-report.AdditionalCost) > 0.01 {
		t.Errorf("Additional cost %.2f does not match component sum %.2f", report.AdditionalCost, additional)
	}
	if math.Abs(report.GrossSalary+additional-report.GrandTotal) > 0.01 {
		t.Errorf("Grand total %.2f does not match gross plus additional %.2f", report.GrandTotal, report.GrossSalary+additional)
	}
}

// TestStaffingBaseline runs the configured candidate pool against a demand.
func TestStaffingBaseline(t *testing.T) {
	conf, p := loadPlanner(t)

	staffing, err := p.Optimize(context.Background(), germanDemand(), conf.Candidates, conf.Scoring.ResolveWeights())
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}

	if len(staffing.Run.Ranked) != 3 {
		t.Fatalf("Expected 3 ranked engineers, got %d", len(staffing.Run.Ranked))
	}
	if staffing.Run.Filtered != 1 {
		t.Errorf("Expected the designer to be filtered, got %d filtered", staffing.Run.Filtered)
	}

	anna := testutil.FindCandidate(staffing.Run.Ranked, "anna")
	if anna == nil {
		t.Fatal("Candidate anna not found in ranking")
	}
	if anna.Visa.WaitDays != 0 {
		t.Errorf("Expected no visa wait for anna, got %d days", anna.Visa.WaitDays)
	}

	marta := testutil.FindCandidate(staffing.Run.Ranked, "marta")
	if marta == nil {
		t.Fatal("Candidate marta not found in ranking")
	}
	if len(marta.RiskFlags) == 0 {
		t.Error("Expected risk flags for a candidate without work authorization")
	}

	ravi := testutil.FindCandidate(staffing.Run.Ranked, "ravi")
	if ravi == nil {
		t.Fatal("Candidate ravi not found in ranking")
	}
	if ravi.FlightCost != 750 {
		t.Errorf("Expected configured flight cost 750 for ravi, got %.2f", ravi.FlightCost)
	}

	for i := 1; i < len(staffing.Run.Ranked); i++ {
		if staffing.Run.Ranked[i].FinalScore > staffing.Run.Ranked[i-1].FinalScore {
			t.Errorf("Ranking not sorted at position %d", i)
		}
	}

	snapshot := staffing.Selector.Snapshot()
	if len(snapshot.Selected) != 2 || len(snapshot.Alternatives) != 1 {
		t.Fatalf("Expected 2 selected and 1 alternate, got %d and %d", len(snapshot.Selected), len(snapshot.Alternatives))
	}
	if snapshot.Selected[0].ID() != staffing.Run.Ranked[0].ID() {
		t.Errorf("Expected the top ranked candidate to be selected first")
	}
}

// TestTeamEditsAfterStaffing exercises the selector the way the HTTP API does.
func TestTeamEditsAfterStaffing(t *testing.T) {
	conf, p := loadPlanner(t)

	staffing, err := p.Optimize(context.Background(), germanDemand(), conf.Candidates, conf.Scoring.ResolveWeights())
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	selector := staffing.Selector
	snapshot := selector.Snapshot()
	outgoing := snapshot.Selected[1].ID()
	incoming := snapshot.Alternatives[0].ID()

	if err := selector.Swap(outgoing, incoming); err != nil {
		t.Fatalf("Swap() error = %v", err)
	}
	if !selector.IsSelected(incoming) || selector.IsSelected(outgoing) {
		t.Errorf("Swap did not exchange %s and %s", outgoing, incoming)
	}
	if selector.Len() != 3 {
		t.Errorf("Expected 3 candidates across both sets, got %d", selector.Len())
	}

	if !selector.Remove(incoming) {
		t.Fatalf("Remove(%s) reported no change", incoming)
	}
	if got := selector.Snapshot().Aggregates.Shortfall; got != 1 {
		t.Errorf("Expected shortfall 1 after removal, got %d", got)
	}
}

// TestCSVOutputFormat tests that CSV output matches the documented layout.
func TestCSVOutputFormat(t *testing.T) {
	conf, p := loadPlanner(t)

	report, err := p.CalculateCost(context.Background(), "alice", brazilAssignment(), planner.CostOptions{
		Options: cost.Options{DisplayCurrency: "BRL"},
	})
	if err != nil {
		t.Fatalf("CalculateCost() error = %v", err)
	}

	var buf bytes.Buffer
	output.CsvCost(&buf, report)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != `"item","amount (EUR)","amount (BRL)"` {
		t.Errorf("Unexpected cost header: %s", lines[0])
	}
	if lines[1] != `"Gross salary","42000.00","210000.00"` {
		t.Errorf("Unexpected gross salary row: %s", lines[1])
	}

	staffing, err := p.Optimize(context.Background(), germanDemand(), conf.Candidates, conf.Scoring.ResolveWeights())
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	buf.Reset()
	output.CsvStaffing(&buf, staffing.Selector.Snapshot())
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header and 3 candidate rows, got %d lines", len(lines))
	}
	for _, line := range lines[1:3] {
		if !strings.HasPrefix(line, `"selected",`) {
			t.Errorf("Expected selected row, got %s", line)
		}
	}
	if !strings.HasPrefix(lines[3], `"alternate",`) {
		t.Errorf("Expected alternate row, got %s", lines[3])
	}
}
