package reassign

import (
	"strings"

	"github.com/kailas-cloud/commentlens/internal/domain/group"
	"github.com/kailas-cloud/commentlens/internal/domain/item"
)

// urlTokenLen is the length of the identifier embedded in watch/short URLs.
const urlTokenLen = 11

var urlMarkers = []string{"watch?v=", "youtu.be/"}

// Strategy resolves a dangling parent reference against the real groups.
// Match returns nil when the strategy does not apply.
type Strategy interface {
	Method() item.Method
	Match(parentID string, groups []*group.Group) *group.Group
}

// DefaultStrategies returns the identifier strategies in the order they are tried.
func DefaultStrategies() []Strategy {
	return []Strategy{ExactMatch{}, SubstringMatch{}, URLTokenMatch{}}
}

// ExactMatch compares the parent id with group ids ignoring case.
type ExactMatch struct{}

// Method implements Strategy.
func (ExactMatch) Method() item.Method { return item.MethodPatternExact }

// Match implements Strategy.
func (ExactMatch) Match(parentID string, groups []*group.Group) *group.Group {
	if parentID == "" {
		return nil
	}
	for _, g := range groups {
		if g.Synthetic() {
			continue
		}
		if strings.EqualFold(g.ID(), parentID) {
			return g
		}
	}
	return nil
}

// SubstringMatch accepts a group whose id contains the parent id or is contained in it.
type SubstringMatch struct{}

// Method implements Strategy.
func (SubstringMatch) Method() item.Method { return item.MethodPatternSubstring }

// Match implements Strategy. An empty parent id never matches.
func (SubstringMatch) Match(parentID string, groups []*group.Group) *group.Group {
	if parentID == "" {
		return nil
	}
	for _, g := range groups {
		if g.Synthetic() || g.ID() == "" {
			continue
		}
		if strings.Contains(parentID, g.ID()) || strings.Contains(g.ID(), parentID) {
			return g
		}
	}
	return nil
}

// URLTokenMatch pulls the video token out of a watch or short URL and looks it up exactly.
type URLTokenMatch struct{}

// Method implements Strategy.
func (URLTokenMatch) Method() item.Method { return item.MethodPatternURL }

// Match implements Strategy.
func (URLTokenMatch) Match(parentID string, groups []*group.Group) *group.Group {
	token := urlToken(parentID)
	if token == "" {
		return nil
	}
	for _, g := range groups {
		if !g.Synthetic() && g.ID() == token {
			return g
		}
	}
	return nil
}

func urlToken(ref string) string {
	for _, marker := range urlMarkers {
		idx := strings.Index(ref, marker)
		if idx < 0 {
			continue
		}
		rest := ref[idx+len(marker):]
		if len(rest) > urlTokenLen {
			rest = rest[:urlTokenLen]
		}
		return rest
	}
	return ""
}

// matchPattern runs strategies in order; the first hit wins.
func matchPattern(strategies []Strategy, parentID string, groups []*group.Group) (*group.Group, item.Method) {
	for _, s := range strategies {
		if g := s.Match(parentID, groups); g != nil {
			return g, s.Method()
		}
	}
	return nil, ""
}
