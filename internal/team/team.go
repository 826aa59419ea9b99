// Package team partitions ranked candidates into a selected team and an
// alternates pool.
//
// Every scored candidate lives in a single arena and carries a membership tag,
// so a candidate is always in exactly one of the two sets.
package team

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/pkg/mathutil"
)

// Swap rejection reasons.
var (
	ErrNotSelected  = errors.New("candidate is not in the selected team")
	ErrNotAlternate = errors.New("candidate is not in the alternates pool")
)

type membership uint8

const (
	alternate membership = iota
	selected
)

type member struct {
	candidate scoring.ScoredCandidate
	tag       membership
}

// Aggregates summarizes the selected team.
type Aggregates struct {
	Headcount           int     `json:"headcount"`
	PositionsNeeded     int     `json:"positionsNeeded"`
	Shortfall           int     `json:"shortfall"`
	TotalCost           float64 `json:"totalCost"`
	TotalEmissions      float64 `json:"totalEmissions"`
	SlowestVisaWaitDays int     `json:"slowestVisaWaitDays"`
	MeanCompliance      float64 `json:"meanCompliance"`
	MeanScore           float64 `json:"meanScore"`
	RiskFlagCount       int     `json:"riskFlagCount"`
}

// Snapshot is a serializable view of the partition.
type Snapshot struct {
	Selected     []scoring.ScoredCandidate `json:"selectedTeam"`
	Alternatives []scoring.ScoredCandidate `json:"availableAlternatives"`
	Aggregates   Aggregates                `json:"aggregates"`
}

// Selector owns the team partition. It is not safe for concurrent use.
type Selector struct {
	members    []member
	index      map[string]int
	positions  int
	aggregates Aggregates
}

// New selects the top positions candidates from ranked and places the rest in the
// alternates pool. Candidates with duplicate IDs after the first are ignored.
func New(ranked []scoring.ScoredCandidate, positions int) *Selector {
	if positions < 0 {
		positions = 0
	}
	s := &Selector{index: make(map[string]int, len(ranked)), positions: positions}

	ordered := make([]scoring.ScoredCandidate, len(ranked))
	copy(ordered, ranked)
	sortCandidates(ordered)

	for _, c := range ordered {
		if _, dup := s.index[c.ID()]; dup {
			continue
		}
		tag := alternate
		if s.count(selected) < positions {
			tag = selected
		}
		s.index[c.ID()] = len(s.members)
		s.members = append(s.members, member{candidate: c, tag: tag})
	}
	s.recompute()
	return s
}

func sortCandidates(list []scoring.ScoredCandidate) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].FinalScore != list[j].FinalScore {
			return list[i].FinalScore > list[j].FinalScore
		}
		return list[i].ID() < list[j].ID()
	})
}

func (s *Selector) count(tag membership) int {
	n := 0
	for _, m := range s.members {
		if m.tag == tag {
			n++
		}
	}
	return n
}

func (s *Selector) find(id string) (int, bool) {
	i, ok := s.index[strings.TrimSpace(id)]
	return i, ok
}

// Remove moves a selected candidate to the alternates pool. It reports false and
// changes nothing when the candidate is not selected.
func (s *Selector) Remove(id string) bool {
	i, ok := s.find(id)
	if !ok || s.members[i].tag != selected {
		return false
	}
	s.members[i].tag = alternate
	s.recompute()
	return true
}

// Add moves an alternate into the selected team. Headcount is not capped here.
func (s *Selector) Add(id string) bool {
	i, ok := s.find(id)
	if !ok || s.members[i].tag != alternate {
		return false
	}
	s.members[i].tag = selected
	s.recompute()
	return true
}

// Swap replaces a selected candidate with an alternate. A rejected swap leaves the
// partition untouched.
func (s *Selector) Swap(outgoingID, incomingID string) error {
	out, ok := s.find(outgoingID)
	if !ok || s.members[out].tag != selected {
		return fmt.Errorf("swap %q for %q: %w", outgoingID, incomingID, ErrNotSelected)
	}
	in, ok := s.find(incomingID)
	if !ok || s.members[in].tag != alternate {
		return fmt.Errorf("swap %q for %q: %w", outgoingID, incomingID, ErrNotAlternate)
	}
	s.members[out].tag = alternate
	s.members[in].tag = selected
	s.recompute()
	return nil
}

// IsSelected reports whether the candidate is in the selected team.
func (s *Selector) IsSelected(id string) bool {
	i, ok := s.find(id)
	return ok && s.members[i].tag == selected
}

// Len returns the number of candidates across both sets.
func (s *Selector) Len() int {
	return len(s.members)
}

func (s *Selector) list(tag membership) []scoring.ScoredCandidate {
	out := make([]scoring.ScoredCandidate, 0, len(s.members))
	for _, m := range s.members {
		if m.tag == tag {
			out = append(out, m.candidate)
		}
	}
	sortCandidates(out)
	return out
}

// SelectedTeam returns the selected candidates, best first.
func (s *Selector) SelectedTeam() []scoring.ScoredCandidate {
	return s.list(selected)
}

// Alternatives returns the alternates pool, best first.
func (s *Selector) Alternatives() []scoring.ScoredCandidate {
	return s.list(alternate)
}

// Aggregates returns the team summary as of the last mutation.
func (s *Selector) Aggregates() Aggregates {
	return s.aggregates
}

// Snapshot returns both sets and the aggregates.
func (s *Selector) Snapshot() Snapshot {
	return Snapshot{
		Selected:     s.SelectedTeam(),
		Alternatives: s.Alternatives(),
		Aggregates:   s.aggregates,
	}
}

func (s *Selector) recompute() {
	agg := Aggregates{PositionsNeeded: s.positions}
	complianceSum, scoreSum := 0.0, 0.0
	for _, m := range s.members {
		if m.tag != selected {
			continue
		}
		c := m.candidate
		agg.Headcount++
		agg.TotalCost += c.AssignmentCost
		agg.TotalEmissions += c.Emissions
		agg.RiskFlagCount += len(c.RiskFlags)
		if wait := waitDays(c); wait > agg.SlowestVisaWaitDays {
			agg.SlowestVisaWaitDays = wait
		}
		complianceSum += c.ComplianceScore
		scoreSum += c.FinalScore
	}
	agg.MeanCompliance = mathutil.SafeDivide(complianceSum, float64(agg.Headcount))
	agg.MeanScore = mathutil.SafeDivide(scoreSum, float64(agg.Headcount))
	if agg.Headcount < agg.PositionsNeeded {
		agg.Shortfall = agg.PositionsNeeded - agg.Headcount
	}
	s.aggregates = agg
}

// waitDays is zero for candidates already at the destination.
func waitDays(c scoring.ScoredCandidate) int {
	if c.OnSite {
		return 0
	}
	return c.Visa.WaitDays
}
