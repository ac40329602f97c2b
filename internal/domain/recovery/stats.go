// Package recovery holds orphan reassignment statistics.
package recovery

import "github.com/kailas-cloud/commentlens/internal/domain/item"

// Stats summarizes one reassignment run.
// TotalOrphaned == RecoveredByPattern + RecoveredBySimilarity + Unassigned.
type Stats struct {
	TotalOrphaned         int
	RecoveredByPattern    int
	RecoveredBySimilarity int
	Unassigned            int
	// SimilarityDegraded is set when the similarity pass could not run.
	SimilarityDegraded bool
	ByMethod           map[item.Method]int
}

// NewStats starts a run over total orphans.
func NewStats(total int) Stats {
	return Stats{TotalOrphaned: total, ByMethod: make(map[item.Method]int)}
}

// Record counts one terminal outcome.
func (s *Stats) Record(m item.Method) {
	switch {
	case m.IsPattern():
		s.RecoveredByPattern++
	case m == item.MethodSemantic:
		s.RecoveredBySimilarity++
	default:
		s.Unassigned++
	}
	if s.ByMethod == nil {
		s.ByMethod = make(map[item.Method]int)
	}
	s.ByMethod[m]++
}

// Recovered returns orphans placed in a real group.
func (s Stats) Recovered() int {
	return s.RecoveredByPattern + s.RecoveredBySimilarity
}

// RecoveryRate returns recovered/total, 0 when nothing was orphaned.
func (s Stats) RecoveryRate() float64 {
	if s.TotalOrphaned == 0 {
		return 0
	}
	return float64(s.Recovered()) / float64(s.TotalOrphaned)
}

// Balanced reports whether every orphan is accounted for exactly once.
func (s Stats) Balanced() bool {
	return s.TotalOrphaned == s.RecoveredByPattern+s.RecoveredBySimilarity+s.Unassigned
}
