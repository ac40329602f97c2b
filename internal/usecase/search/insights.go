package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/search/field"
	"github.com/kailas-cloud/commentlens/internal/domain/search/request"
	"github.com/kailas-cloud/commentlens/internal/domain/search/result"
)

// Insight extraction limits.
const (
	insightWindow  = 5
	maxTopics      = 5
	maxSuggestions = 3
	minTopicLen    = 4
)

var stopWords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "because": {}, "been": {},
	"being": {}, "could": {}, "does": {}, "doing": {}, "dont": {}, "each": {},
	"even": {}, "from": {}, "have": {}, "here": {}, "into": {}, "just": {},
	"like": {}, "make": {}, "more": {}, "most": {}, "much": {}, "only": {},
	"other": {}, "really": {}, "same": {}, "should": {}, "some": {}, "such": {},
	"than": {}, "that": {}, "their": {}, "them": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "thing": {}, "this": {}, "those": {}, "very": {},
	"want": {}, "were": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"while": {}, "will": {}, "with": {}, "would": {}, "your": {}, "youre": {},
}

var suggestionMarkers = []string{
	"should", "could", "suggest", "recommend", "would be nice", "wish", "please add",
}

// questionCategories are checked in order; the first category with a hit wins.
var questionCategories = []struct {
	name     string
	keywords []string
}{
	{"troubleshooting", []string{"error", "crash", "crashes", "broken", "bug", "fix", "fails", "failed", "not working", "doesn't work", "issue"}},
	{"pricing", []string{"price", "pricing", "cost", "costs", "pay", "paid", "expensive", "cheap", "subscription", "free tier"}},
	{"comparison", []string{"vs", "versus", "better than", "compared", "compare", "difference", "alternative"}},
	{"feature_request", []string{"feature", "add", "support for", "roadmap", "will you", "could you add", "any plans"}},
	{"technical", []string{"api", "code", "install", "config", "configure", "version", "architecture", "algorithm", "performance", "memory"}},
	{"usage", []string{"how do", "how to", "how can", "use", "using", "tutorial", "setup", "set up"}},
}

// extractInsights derives the requested fields from the top items, locally.
func extractInsights(items []*item.Item, req request.Request) result.Insights {
	top := items[:min(insightWindow, len(items))]

	var ins result.Insights
	if req.Wants(field.Sentiment) {
		ins.AvgSentiment = meanSentiment(top)
	}
	if req.Wants(field.Topics) {
		ins.Topics = topTopics(top, maxTopics)
	}
	if req.Wants(field.Suggestions) {
		ins.Suggestions = suggestions(top, maxSuggestions)
	}
	if req.Wants(field.QuestionCategory) {
		ins.QuestionCategory = questionCategory(top)
	}
	return ins
}

func meanSentiment(items []*item.Item) *float64 {
	var sum float64
	var n int
	for _, it := range items {
		if s, ok := it.Sentiment(); ok {
			sum += s
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

// topTopics returns the most frequent non-stop-word tokens; ties sort alphabetically.
func topTopics(items []*item.Item, n int) []string {
	counts := make(map[string]int)
	for _, it := range items {
		for _, tok := range tokenize(it.Content()) {
			tok = strings.ReplaceAll(tok, "'", "")
			if utf8.RuneCountInString(tok) < minTopicLen {
				continue
			}
			if _, stop := stopWords[tok]; stop {
				continue
			}
			counts[tok]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func suggestions(items []*item.Item, n int) []string {
	var out []string
	for _, it := range items {
		lower := strings.ToLower(it.Content())
		for _, m := range suggestionMarkers {
			if strings.Contains(lower, m) {
				out = append(out, it.Content())
				break
			}
		}
		if len(out) == n {
			break
		}
	}
	return out
}

// questionCategory classifies the best-ranked question, or the top item if none asks one.
func questionCategory(items []*item.Item) string {
	if len(items) == 0 {
		return ""
	}
	text := items[0].Content()
	for _, it := range items {
		if strings.Contains(it.Content(), "?") {
			text = it.Content()
			break
		}
	}

	lower := strings.ToLower(text)
	tokens := make(map[string]struct{})
	for _, tok := range tokenize(lower) {
		tokens[tok] = struct{}{}
	}

	for _, cat := range questionCategories {
		for _, kw := range cat.keywords {
			if strings.ContainsRune(kw, ' ') || strings.ContainsRune(kw, '\'') {
				if strings.Contains(lower, kw) {
					return cat.name
				}
				continue
			}
			if _, ok := tokens[kw]; ok {
				return cat.name
			}
		}
	}
	return "other"
}
