package team

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/internal/visa"
)

func scored(id string, score, cost float64, wait int, flags ...string) scoring.ScoredCandidate {
	if flags == nil {
		flags = []string{}
	}
	return scoring.ScoredCandidate{
		Candidate:       scoring.Candidate{ID: id, Role: "engineer"},
		Visa:            visa.Rule{WaitDays: wait},
		AssignmentCost:  cost,
		Emissions:       1.5,
		ComplianceScore: 80,
		RiskFlags:       flags,
		FinalScore:      score,
	}
}

func pool() []scoring.ScoredCandidate {
	return []scoring.ScoredCandidate{
		scored("c3", 60, 30000, 45),
		scored("c1", 90, 20000, 0),
		scored("c5", 40, 50000, 60, "posted-worker notification required in DE"),
		scored("c2", 75, 25000, 30),
		scored("c4", 55, 40000, 10),
	}
}

func ids(list []scoring.ScoredCandidate) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.ID()
	}
	return out
}

func snapshotJSON(t *testing.T, s *Selector) string {
	t.Helper()
	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	return string(data)
}

func assertPartition(t *testing.T, s *Selector, universe []string) {
	t.Helper()
	seen := make(map[string]int)
	for _, c := range s.SelectedTeam() {
		seen[c.ID()]++
	}
	for _, c := range s.Alternatives() {
		seen[c.ID()]++
	}
	require.Len(t, seen, len(universe))
	for _, id := range universe {
		assert.Equal(t, 1, seen[id], "candidate %s must be in exactly one set", id)
	}
}

func TestNewSelectsTopPositions(t *testing.T) {
	tests := []struct {
		name         string
		positions    int
		selected     []string
		alternatives []string
		shortfall    int
	}{
		{"Two positions", 2, []string{"c1", "c2"}, []string{"c3", "c4", "c5"}, 0},
		{"Zero positions", 0, []string{}, []string{"c1", "c2", "c3", "c4", "c5"}, 0},
		{"Negative positions", -3, []string{}, []string{"c1", "c2", "c3", "c4", "c5"}, 0},
		{"More positions than candidates", 7, []string{"c1", "c2", "c3", "c4", "c5"}, []string{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(pool(), tt.positions)
			assert.Equal(t, tt.selected, ids(s.SelectedTeam()))
			assert.Equal(t, tt.alternatives, ids(s.Alternatives()))
			assert.Equal(t, tt.shortfall, s.Aggregates().Shortfall)
			assert.Equal(t, 5, s.Len())
		})
	}
}

func TestNewIgnoresDuplicates(t *testing.T) {
	ranked := append(pool(), scored("c1", 10, 1, 0))
	s := New(ranked, 1)

	assert.Equal(t, 5, s.Len())
	require.Len(t, s.SelectedTeam(), 1)
	assert.Equal(t, 90.0, s.SelectedTeam()[0].FinalScore)
}

func TestNewBreaksTiesByID(t *testing.T) {
	s := New([]scoring.ScoredCandidate{
		scored("b", 50, 1, 0),
		scored("a", 50, 1, 0),
		scored("c", 50, 1, 0),
	}, 2)

	assert.Equal(t, []string{"a", "b"}, ids(s.SelectedTeam()))
	assert.Equal(t, []string{"c"}, ids(s.Alternatives()))
}

func TestNewDoesNotMutateInput(t *testing.T) {
	ranked := pool()
	_ = New(ranked, 2)
	assert.Equal(t, "c3", ranked[0].ID())
}

func TestRemoveAndAdd(t *testing.T) {
	s := New(pool(), 2)

	assert.True(t, s.Remove("c2"))
	assert.False(t, s.IsSelected("c2"))
	assert.Equal(t, []string{"c1"}, ids(s.SelectedTeam()))
	assert.Equal(t, 1, s.Aggregates().Shortfall)

	assert.False(t, s.Remove("c2"), "already an alternate")
	assert.False(t, s.Remove("missing"))

	assert.True(t, s.Add("c4"))
	assert.True(t, s.IsSelected("c4"))
	assert.False(t, s.Add("c4"), "already selected")
	assert.False(t, s.Add("missing"))

	assert.True(t, s.Add(" c5 "), "IDs are trimmed")
	assert.Equal(t, 3, s.Aggregates().Headcount)
	assert.Equal(t, 0, s.Aggregates().Shortfall)
}

func TestSwap(t *testing.T) {
	s := New(pool(), 2)

	require.NoError(t, s.Swap("c2", "c4"))
	assert.Equal(t, []string{"c1", "c4"}, ids(s.SelectedTeam()))
	assert.Equal(t, []string{"c2", "c3", "c5"}, ids(s.Alternatives()))
}

func TestSwapRejectionLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name     string
		outgoing string
		incoming string
		want     error
	}{
		{"Outgoing is an alternate", "c3", "c4", ErrNotSelected},
		{"Outgoing is unknown", "zz", "c4", ErrNotSelected},
		{"Incoming is selected", "c1", "c2", ErrNotAlternate},
		{"Incoming is unknown", "c1", "zz", ErrNotAlternate},
		{"Same candidate", "c1", "c1", ErrNotAlternate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(pool(), 2)
			before := snapshotJSON(t, s)

			err := s.Swap(tt.outgoing, tt.incoming)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, before, snapshotJSON(t, s))
		})
	}
}

func TestPartitionHoldsUnderRandomOperations(t *testing.T) {
	universe := []string{"c1", "c2", "c3", "c4", "c5"}
	rng := rand.New(rand.NewSource(42))
	s := New(pool(), 3)

	for i := 0; i < 500; i++ {
		a := universe[rng.Intn(len(universe))]
		b := universe[rng.Intn(len(universe))]
		switch rng.Intn(3) {
		case 0:
			s.Remove(a)
		case 1:
			s.Add(a)
		default:
			_ = s.Swap(a, b)
		}
		assertPartition(t, s, universe)

		agg := s.Aggregates()
		assert.Equal(t, len(s.SelectedTeam()), agg.Headcount)
		if agg.Headcount < 3 {
			assert.Equal(t, 3-agg.Headcount, agg.Shortfall)
		} else {
			assert.Zero(t, agg.Shortfall)
		}
	}
}

func TestAggregates(t *testing.T) {
	s := New(pool(), 3)

	agg := s.Aggregates()
	assert.Equal(t, 3, agg.Headcount)
	assert.Equal(t, 3, agg.PositionsNeeded)
	assert.InDelta(t, 75000.0, agg.TotalCost, 1e-9)
	assert.InDelta(t, 4.5, agg.TotalEmissions, 1e-9)
	assert.Equal(t, 45, agg.SlowestVisaWaitDays)
	assert.InDelta(t, 80.0, agg.MeanCompliance, 1e-9)
	assert.InDelta(t, 75.0, agg.MeanScore, 1e-9)
	assert.Zero(t, agg.RiskFlagCount)

	require.NoError(t, s.Swap("c3", "c5"))
	agg = s.Aggregates()
	assert.InDelta(t, 95000.0, agg.TotalCost, 1e-9)
	assert.Equal(t, 60, agg.SlowestVisaWaitDays)
	assert.Equal(t, 1, agg.RiskFlagCount)
}

func TestAggregatesIgnoreWaitForOnSiteCandidates(t *testing.T) {
	local := scored("local", 95, 10000, 90)
	local.OnSite = true
	s := New([]scoring.ScoredCandidate{local, scored("remote", 50, 10000, 20)}, 2)

	assert.Equal(t, 20, s.Aggregates().SlowestVisaWaitDays)
}

func TestEmptySelector(t *testing.T) {
	s := New(nil, 2)

	agg := s.Aggregates()
	assert.Zero(t, agg.Headcount)
	assert.Equal(t, 2, agg.Shortfall)
	assert.Zero(t, agg.MeanScore)
	assert.Empty(t, s.SelectedTeam())
	assert.Empty(t, s.Alternatives())

	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"selectedTeam":[]`)
	assert.Contains(t, string(data), `"availableAlternatives":[]`)
}
