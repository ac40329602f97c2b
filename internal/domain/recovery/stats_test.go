package recovery

import (
	"testing"

	"github.com/kailas-cloud/commentlens/internal/domain/item"
)

func TestStats_RecordAndRate(t *testing.T) {
	s := NewStats(4)
	s.Record(item.MethodPatternExact)
	s.Record(item.MethodPatternURL)
	s.Record(item.MethodSemantic)
	s.Record(item.MethodUnassigned)

	if s.RecoveredByPattern != 2 || s.RecoveredBySimilarity != 1 || s.Unassigned != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if !s.Balanced() {
		t.Error("stats not balanced")
	}
	if s.RecoveryRate() != 0.75 {
		t.Errorf("rate = %f, want 0.75", s.RecoveryRate())
	}
	if s.ByMethod[item.MethodPatternURL] != 1 {
		t.Errorf("by method = %v", s.ByMethod)
	}
}

func TestStats_EmptyRate(t *testing.T) {
	s := NewStats(0)
	if s.RecoveryRate() != 0 || !s.Balanced() {
		t.Errorf("empty stats: rate=%f balanced=%v", s.RecoveryRate(), s.Balanced())
	}
}

func TestStats_Unbalanced(t *testing.T) {
	s := NewStats(2)
	s.Record(item.MethodSemantic)
	if s.Balanced() {
		t.Error("expected unbalanced stats")
	}
}
