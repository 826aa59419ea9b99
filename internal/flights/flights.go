// Package flights estimates route flight costs and emissions from a static table.
package flights

import (
	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
)

// Defaults for unknown routes.
const (
	DefaultCost      = 800.0
	DefaultEmissions = 1.0
)

// Route is a round-trip estimate between two countries. Cost is in EUR and
// Emissions in tonnes of CO2e.
type Route struct {
	Origin      string  `json:"origin" yaml:"origin" mapstructure:"origin"`
	Destination string  `json:"destination" yaml:"destination" mapstructure:"destination"`
	Cost        float64 `json:"cost" yaml:"cost" mapstructure:"cost"`
	Emissions   float64 `json:"emissions" yaml:"emissions" mapstructure:"emissions"`
}

// Provider estimates route figures.
type Provider interface {
	RouteCost(origin, destination string) float64
	Emissions(origin, destination string) float64
}

// Table is a symmetric route table.
type Table struct {
	routes map[string]Route
}

func routeKey(a, b string) string {
	a, b = jurisdiction.NormalizeCode(a), jurisdiction.NormalizeCode(b)
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

// NewTable indexes routes in both directions.
func NewTable(routes []Route) *Table {
	t := &Table{routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		if r.Cost < 0 {
			r.Cost = 0
		}
		if r.Emissions < 0 {
			r.Emissions = 0
		}
		t.routes[routeKey(r.Origin, r.Destination)] = r
	}
	return t
}

func (t *Table) lookup(origin, destination string) (Route, bool, bool) {
	if jurisdiction.NormalizeCode(origin) == jurisdiction.NormalizeCode(destination) {
		return Route{}, false, true
	}
	r, ok := t.routes[routeKey(origin, destination)]
	return r, ok, false
}

// RouteCost returns the flight cost. No travel is needed when origin and
// destination are the same.
func (t *Table) RouteCost(origin, destination string) float64 {
	r, ok, same := t.lookup(origin, destination)
	switch {
	case same:
		return 0
	case ok:
		return r.Cost
	default:
		return DefaultCost
	}
}

// Emissions returns the route emissions estimate.
func (t *Table) Emissions(origin, destination string) float64 {
	r, ok, same := t.lookup(origin, destination)
	switch {
	case same:
		return 0
	case ok:
		return r.Emissions
	default:
		return DefaultEmissions
	}
}

// DefaultRoutes is the built-in route table.
func DefaultRoutes() []Route {
	return []Route{
		{Origin: "FI", Destination: "DE", Cost: 250, Emissions: 0.3},
		{Origin: "FI", Destination: "SE", Cost: 150, Emissions: 0.1},
		{Origin: "FI", Destination: "BR", Cost: 1400, Emissions: 2.4},
		{Origin: "FI", Destination: "US", Cost: 900, Emissions: 1.6},
		{Origin: "FI", Destination: "IN", Cost: 750, Emissions: 1.2},
		{Origin: "FI", Destination: "AE", Cost: 600, Emissions: 1.0},
		{Origin: "DE", Destination: "BR", Cost: 1200, Emissions: 2.1},
		{Origin: "DE", Destination: "IN", Cost: 700, Emissions: 1.1},
		{Origin: "DE", Destination: "US", Cost: 850, Emissions: 1.4},
		{Origin: "DE", Destination: "PL", Cost: 180, Emissions: 0.2},
		{Origin: "GB", Destination: "US", Cost: 700, Emissions: 1.3},
		{Origin: "IN", Destination: "AE", Cost: 300, Emissions: 0.5},
	}
}
