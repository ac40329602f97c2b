package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/search/field"
)

func TestTopTopics_TiesAlphabetical(t *testing.T) {
	items := []*item.Item{
		newItem(t, "a", "zebra apple mango", nil, nil),
		newItem(t, "b", "mango apple", nil, nil),
	}
	assert.Equal(t, []string{"apple", "mango", "zebra"}, topTopics(items, 5))
	assert.Equal(t, []string{"apple"}, topTopics(items, 1))
}

func TestTopTopics_SkipsShortAndStopWords(t *testing.T) {
	items := []*item.Item{newItem(t, "a", "this that with the cat; really great, don't", nil, nil)}
	assert.Equal(t, []string{"great"}, topTopics(items, 5))
}

func TestSuggestions_Limit(t *testing.T) {
	items := []*item.Item{
		newItem(t, "a", "You should add dark mode", nil, nil),
		newItem(t, "b", "I wish it was faster", nil, nil),
		newItem(t, "c", "Great video", nil, nil),
		newItem(t, "d", "Would be nice to have captions", nil, nil),
		newItem(t, "e", "Please add more examples", nil, nil),
	}
	got := suggestions(items, 3)
	assert.Equal(t, []string{"You should add dark mode", "I wish it was faster", "Would be nice to have captions"}, got)
}

func TestQuestionCategory(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"I get an error when exporting, why?", "troubleshooting"},
		{"Is this better than the other tool?", "comparison"},
		{"Will you add offline mode?", "feature_request"},
		{"Which API version do you use?", "technical"},
		{"How do I start?", "usage"},
		{"Nice shirt?", "other"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			got := questionCategory([]*item.Item{newItem(t, "q", tc.text, nil, nil)})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQuestionCategory_PrefersQuestions(t *testing.T) {
	items := []*item.Item{
		newItem(t, "a", "The price is too high", nil, nil),
		newItem(t, "b", "How to install it?", nil, nil),
	}
	assert.Equal(t, "technical", questionCategory(items))
}

func TestExtractInsights_OnlyRequested(t *testing.T) {
	items := []*item.Item{newItem(t, "a", "You should try harder", nil, map[string]any{"sentiment": 0.3})}
	req := newRequest(t, "q", 1, nil, field.Suggestions)

	ins := extractInsights(items, req)
	assert.Nil(t, ins.AvgSentiment)
	assert.Nil(t, ins.Topics)
	assert.Empty(t, ins.QuestionCategory)
	assert.Len(t, ins.Suggestions, 1)
}

func TestMeanSentiment_NoSignal(t *testing.T) {
	assert.Nil(t, meanSentiment([]*item.Item{newItem(t, "a", "text", nil, nil)}))
}
