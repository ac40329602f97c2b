package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// spamMarkers are case-insensitive substrings that mark promotional content.
var spamMarkers = []string{
	"http://",
	"https://",
	"www.",
	"subscribe",
	"click here",
	"check out my",
	"follow me",
	"free money",
}

const (
	minContentRunes = 3
	maxRepeatRun    = 10
	capsCheckMinLen = 50
	maxSpecialRatio = 0.5
)

// IsSpam reports whether text looks like spam: promo markers, long runs of one
// character, shouting, or mostly symbols.
func IsSpam(text string) bool {
	n := utf8.RuneCountInString(text)
	if n < minContentRunes {
		return true
	}

	lower := strings.ToLower(text)
	for _, m := range spamMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}

	var (
		prev     rune
		run      int
		special  int
		hasUpper bool
		hasLower bool
	)
	for i, r := range []rune(text) {
		if i > 0 && r == prev {
			run++
			if run >= maxRepeatRun {
				return true
			}
		} else {
			run = 0
		}
		prev = r

		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}

	if n > capsCheckMinLen && hasUpper && !hasLower {
		return true
	}
	return float64(special)/float64(n) > maxSpecialRatio
}
