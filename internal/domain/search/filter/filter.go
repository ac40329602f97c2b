package filter

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

// Kind names a predicate in the closed set.
type Kind string

// Supported predicate kinds.
const (
	KindMinLength           Kind = "min_length"
	KindExcludeSpam         Kind = "exclude_spam"
	KindRequireQuestionMark Kind = "require_question_mark"
)

// Predicate is a single content check.
type Predicate struct {
	kind      Kind
	minLength int
}

// MinLength keeps content with at least n characters (runes).
func MinLength(n int) (Predicate, error) {
	if n <= 0 {
		return Predicate{}, fmt.Errorf("min_length must be positive, got %d: %w", n, domain.ErrInvalidSpec)
	}
	return Predicate{kind: KindMinLength, minLength: n}, nil
}

// ExcludeSpam drops content that looks like spam.
func ExcludeSpam() Predicate { return Predicate{kind: KindExcludeSpam} }

// RequireQuestionMark keeps content containing '?'.
func RequireQuestionMark() Predicate { return Predicate{kind: KindRequireQuestionMark} }

// Kind returns the predicate kind.
func (p Predicate) Kind() Kind { return p.kind }

// MinLengthValue returns the threshold of a min_length predicate.
func (p Predicate) MinLengthValue() int { return p.minLength }

// Match reports whether content passes the predicate.
func (p Predicate) Match(content string) bool {
	switch p.kind {
	case KindMinLength:
		return utf8.RuneCountInString(content) >= p.minLength
	case KindExcludeSpam:
		return !IsSpam(content)
	case KindRequireQuestionMark:
		return strings.Contains(content, "?")
	default:
		return true
	}
}

// Set is an AND-combination of predicates. The zero Set matches everything.
type Set struct {
	preds []Predicate
}

// NewSet validates and creates a Set. Each kind may appear at most once.
func NewSet(preds ...Predicate) (Set, error) {
	seen := make(map[Kind]struct{}, len(preds))
	for _, p := range preds {
		if _, dup := seen[p.kind]; dup {
			return Set{}, fmt.Errorf("duplicate filter %q: %w", p.kind, domain.ErrInvalidSpec)
		}
		seen[p.kind] = struct{}{}
	}
	return Set{preds: preds}, nil
}

// FromMap resolves a loose key/value filter mapping into a Set.
// Boolean predicates set to false are omitted; unknown keys are rejected.
func FromMap(m map[string]any) (Set, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(m))
	for _, k := range keys {
		v := m[k]
		switch Kind(k) {
		case KindMinLength:
			n, ok := toInt(v)
			if !ok {
				return Set{}, fmt.Errorf("min_length must be an integer, got %T: %w", v, domain.ErrInvalidSpec)
			}
			p, err := MinLength(n)
			if err != nil {
				return Set{}, err
			}
			preds = append(preds, p)
		case KindExcludeSpam, KindRequireQuestionMark:
			b, ok := v.(bool)
			if !ok {
				return Set{}, fmt.Errorf("%s must be a boolean, got %T: %w", k, v, domain.ErrInvalidSpec)
			}
			if b {
				preds = append(preds, Predicate{kind: Kind(k)})
			}
		default:
			return Set{}, fmt.Errorf("unknown filter %q: %w", k, domain.ErrInvalidSpec)
		}
	}
	return NewSet(preds...)
}

// Predicates returns the predicates in the set.
func (s Set) Predicates() []Predicate { return s.preds }

// IsEmpty reports whether the set has no predicates.
func (s Set) IsEmpty() bool { return len(s.preds) == 0 }

// Match reports whether content passes every predicate.
func (s Set) Match(content string) bool {
	for _, p := range s.preds {
		if !p.Match(content) {
			return false
		}
	}
	return true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
