package field

import (
	"fmt"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

// Field is an insight the search engine can derive from its top results.
type Field string

// Extractable fields.
const (
	Sentiment        Field = "sentiment"
	Topics           Field = "topics"
	Suggestions      Field = "suggestions"
	QuestionCategory Field = "question_category"
)

// IsValid checks if the field is one of the supported values.
func (f Field) IsValid() bool {
	return f == Sentiment || f == Topics || f == Suggestions || f == QuestionCategory
}

// Parse resolves field names, rejecting unknown ones and dropping duplicates.
func Parse(names []string) ([]Field, error) {
	out := make([]Field, 0, len(names))
	seen := make(map[Field]struct{}, len(names))
	for _, n := range names {
		f := Field(n)
		if !f.IsValid() {
			return nil, fmt.Errorf("unknown extract field %q: %w", n, domain.ErrInvalidSpec)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}
