package item

// Method tags which recovery rule resolved an orphan.
type Method string

// Recovery methods, in pass order.
const (
	MethodPatternExact     Method = "pattern_exact"
	MethodPatternSubstring Method = "pattern_substring"
	MethodPatternURL       Method = "pattern_url"
	MethodSemantic         Method = "semantic"
	MethodUnassigned       Method = "unassigned"
)

// IsPattern reports whether m belongs to identifier pattern matching.
func (m Method) IsPattern() bool {
	switch m {
	case MethodPatternExact, MethodPatternSubstring, MethodPatternURL:
		return true
	default:
		return false
	}
}

// Provenance records how an orphan was resolved. Immutable once set on an item.
type Provenance struct {
	method           Method
	score            float64
	originalParentID string
}

// NewProvenance creates provenance for a non-semantic resolution.
func NewProvenance(m Method) Provenance {
	return Provenance{method: m}
}

// NewSemanticProvenance creates provenance carrying the achieved similarity.
func NewSemanticProvenance(score float64) Provenance {
	return Provenance{method: MethodSemantic, score: score}
}

// Method returns the resolving method.
func (p Provenance) Method() Method { return p.method }

// Score returns the similarity score (semantic only).
func (p Provenance) Score() float64 { return p.score }

// OriginalParentID returns the parent reference the item carried before recovery.
func (p Provenance) OriginalParentID() string { return p.originalParentID }
