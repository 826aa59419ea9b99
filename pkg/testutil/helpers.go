// Package testutil provides common utility functions for testing.
package testutil

import (
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/deployment-planner/internal/config"
	"github.com/iwvelando/deployment-planner/internal/planner"
	"github.com/iwvelando/deployment-planner/internal/rates"
	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/internal/socialsecurity"
)

// FindCandidate finds a scored candidate by ID in the ranked slice.
// Returns a pointer to the candidate if found, nil otherwise.
func FindCandidate(ranked []scoring.ScoredCandidate, id string) *scoring.ScoredCandidate {
	for i := range ranked {
		if ranked[i].ID() == id {
			return &ranked[i]
		}
	}
	return nil
}

// NewPlanner builds a planner from conf with in-memory collaborators only: table
// rates with the configured overrides and a memory settings store.
func NewPlanner(logger *zap.Logger, conf *config.Configuration) (*planner.Planner, error) {
	table := conf.Table()
	return planner.New(logger, planner.Dependencies{
		Table:     table,
		AdminFees: conf.AdminFees,
		Rates:     rates.NewStaticProvider(table, conf.Rates.Overrides, time.Time{}),
		Visas:     conf.VisaProvider(),
		Flights:   conf.FlightTable(),
		Settings:  socialsecurity.NewMemoryStore(conf.SocialSecurityDefaults()),
		Scoring:   conf.Scoring.Options(),
	})
}
