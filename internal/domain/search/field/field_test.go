package field

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

func TestIsValid(t *testing.T) {
	valid := []Field{Sentiment, Topics, Suggestions, QuestionCategory}
	for _, f := range valid {
		if !f.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", f)
		}
	}

	invalid := []Field{"", "emotions", "SENTIMENT"}
	for _, f := range invalid {
		if f.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", f)
		}
	}
}

func TestParse(t *testing.T) {
	got, err := Parse([]string{"topics", "sentiment", "topics"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != Topics || got[1] != Sentiment {
		t.Errorf("Parse = %v", got)
	}

	if _, err := Parse([]string{"emotions"}); !errors.Is(err, domain.ErrInvalidSpec) {
		t.Errorf("expected ErrInvalidSpec, got %v", err)
	}
}
