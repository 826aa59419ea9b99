// Package output provides utilities for formatting and displaying cost and
// staffing results.
package output

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/iwvelando/deployment-planner/internal/planner"
	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/internal/team"
	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/format"
	"github.com/iwvelando/deployment-planner/pkg/mathutil"
)

type costLine struct {
	label   string
	eur     float64
	display float64
}

// costLines lists the report figures rounded half away from zero to whole cents.
func costLines(report planner.CostReport) []costLine {
	d := report.Display
	lines := []costLine{
		{"Gross salary", report.GrossSalary, d.GrossSalary},
		{"Per diem", report.PerDiem, d.PerDiem},
		{"Admin fees", report.AdminFees, d.AdminFees},
		{"Tax", report.Tax, d.Tax},
		{"Social security", report.SocialSecurity, d.SocialSecurity},
		{"Additional cost", report.AdditionalCost, d.AdditionalCost},
		{"Grand total", report.GrandTotal, d.GrandTotal},
		{"Cost per day", report.CostPerDay, d.CostPerDay},
	}
	for i := range lines {
		lines[i].eur = mathutil.Round(lines[i].eur)
		lines[i].display = mathutil.Round(lines[i].display)
	}
	return lines
}

// PrettyCost outputs a human-readable cost breakdown.
func PrettyCost(w io.Writer, report planner.CostReport) {
	p := message.NewPrinter(language.English)
	a := report.Assignment
	_, _ = p.Fprintf(w, "--- Assignment cost %s -> %s (%d months, %d working days) ---\n",
		a.HomeCountry, a.HostCountry, a.DurationMonths, report.TotalWorkingDays)
	_, _ = fmt.Fprintf(w, "Calculation %s\n", report.ID)

	showDisplay := report.Display.Currency != constants.BaseCurrency
	if showDisplay {
		_, _ = fmt.Fprintf(w, "%-16s | %-16s | %s\n", "Item", "Amount (EUR)", "Amount ("+report.Display.Currency+")")
		_, _ = fmt.Fprintf(w, "%-16s | %-16s | %s\n", "____", "____________", "______")
	} else {
		_, _ = fmt.Fprintf(w, "%-16s | %s\n", "Item", "Amount (EUR)")
		_, _ = fmt.Fprintf(w, "%-16s | %s\n", "____", "____________")
	}
	for _, line := range costLines(report) {
		if showDisplay {
			_, _ = fmt.Fprintf(w, "%-16s | %-16s | %s\n", line.label,
				format.Currency(line.eur, constants.BaseCurrency), format.Currency(line.display, report.Display.Currency))
			continue
		}
		_, _ = fmt.Fprintf(w, "%-16s | %s\n", line.label, format.Currency(line.eur, constants.BaseCurrency))
	}

	_, _ = p.Fprintf(w, "\nExchange rate: %.4f %s per EUR (%s)\n", report.ExchangeRate, report.HostCurrency, report.RateSource)
	_, _ = fmt.Fprintf(w, "Tax method: %s, effective rate %s\n", report.TaxDetail.Method, format.Percent(report.TaxDetail.EffectiveRate))
	ss := report.SocialSecurityDetail
	switch {
	case ss.Included:
		_, _ = fmt.Fprintf(w, "Social security: employer %s, employee %s", format.Currency(ss.Employer, constants.BaseCurrency), format.Currency(ss.Employee, constants.BaseCurrency))
		if ss.EmployeeCapped {
			_, _ = fmt.Fprintf(w, " (employee capped)")
		}
		_, _ = fmt.Fprintf(w, "\n")
	default:
		_, _ = fmt.Fprintf(w, "Social security: excluded (%s)\n", ss.Reason)
	}
	writeWarnings(w, report.Warnings)
}

// CsvCost outputs the cost breakdown in comma-separated value format.
func CsvCost(w io.Writer, report planner.CostReport) {
	_, _ = fmt.Fprintf(w, `"item","amount (EUR)","amount (%s)"`+"\n", report.Display.Currency)
	for _, line := range costLines(report) {
		_, _ = fmt.Fprintf(w, `%s,"%.2f","%.2f"`+"\n", quote(line.label), line.eur, line.display)
	}
}

// PrettyStaffing outputs the ranking and the selected team.
func PrettyStaffing(w io.Writer, run *scoring.Run, snapshot team.Snapshot) {
	p := message.NewPrinter(language.English)
	d := run.Demand
	_, _ = p.Fprintf(w, "--- Staffing %d x %s for %s (%d months) ---\n", d.Positions, d.Role, d.Destination, d.DurationMonths)
	_, _ = fmt.Fprintf(w, "Run %s, weights speed %.2f cost %.2f compliance %.2f\n", run.ID, run.Weights.Speed, run.Weights.Cost, run.Weights.Compliance)
	_, _ = fmt.Fprintf(w, "Rank | Candidate    | Score  | Speed  | Cost   | Compl. | Skills | Assignment cost | Flags\n")
	_, _ = fmt.Fprintf(w, "____ | ____________ | ______ | ______ | ______ | ______ | ______ | _______________ | _____\n")
	for i, c := range run.Ranked {
		_, _ = fmt.Fprintf(w, "%4d | %-12s | %6.2f | %6.2f | %6.2f | %6.2f | %6.2f | %15s | %s\n",
			i+1, c.ID(), c.FinalScore, c.SpeedScore, c.CostScore, c.ComplianceScore, c.SkillMatch,
			format.Currency(c.AssignmentCost, constants.BaseCurrency), strings.Join(c.RiskFlags, "; "))
	}

	agg := snapshot.Aggregates
	_, _ = fmt.Fprintf(w, "\nSelected team: %s\n", joinIDs(snapshot.Selected))
	_, _ = fmt.Fprintf(w, "Alternatives: %s\n", joinIDs(snapshot.Alternatives))
	_, _ = p.Fprintf(w, "Headcount %d of %d", agg.Headcount, agg.PositionsNeeded)
	if agg.Shortfall > 0 {
		_, _ = p.Fprintf(w, " (short by %d)", agg.Shortfall)
	}
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Total cost %s, slowest visa %d days, mean compliance %.2f, emissions %.2f t CO2e\n",
		format.Currency(agg.TotalCost, constants.BaseCurrency), agg.SlowestVisaWaitDays, agg.MeanCompliance, agg.TotalEmissions)
	writeWarnings(w, run.Warnings)
}

// CsvStaffing outputs every candidate with its team membership.
func CsvStaffing(w io.Writer, snapshot team.Snapshot) {
	_, _ = fmt.Fprintf(w, `"status","id","finalScore","speedScore","costScore","complianceScore","skillMatch","assignmentCost","visaWaitDays","riskFlags"`+"\n")
	write := func(status string, list []scoring.ScoredCandidate) {
		for _, c := range list {
			_, _ = fmt.Fprintf(w, `"%s",%s,"%.2f","%.2f","%.2f","%.2f","%.2f","%.2f","%d",%s`+"\n",
				status, quote(c.ID()), c.FinalScore, c.SpeedScore, c.CostScore, c.ComplianceScore,
				c.SkillMatch, c.AssignmentCost, c.Visa.WaitDays, quote(strings.Join(c.RiskFlags, "; ")))
		}
	}
	write("selected", snapshot.Selected)
	write("alternate", snapshot.Alternatives)
}

func writeWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "Warnings:\n")
	for _, warning := range warnings {
		_, _ = fmt.Fprintf(w, "  - %s\n", warning)
	}
}

func joinIDs(list []scoring.ScoredCandidate) string {
	if len(list) == 0 {
		return "(none)"
	}
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID()
	}
	return strings.Join(ids, ", ")
}

func quote(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
