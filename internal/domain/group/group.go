// Package group holds the parent entity that owns items.
package group

import (
	"fmt"

	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/vector"
)

// Synthetic residual bucket identity.
const (
	UnassignedID  = "UNASSIGNED"
	UnassignedURL = "unassigned://orphaned-comments"
)

// Group is a parent entity owning an ordered sequence of items.
type Group struct {
	id        string
	title     string
	url       string
	synthetic bool
	items     []*item.Item
}

// New creates a real group.
func New(id, title, url string) (*Group, error) {
	if id == "" {
		return nil, fmt.Errorf("group id is required")
	}
	return &Group{id: id, title: title, url: url}, nil
}

// NewUnassigned creates the synthetic bucket for orphans nothing else claimed.
func NewUnassigned() *Group {
	return &Group{
		id:        UnassignedID,
		title:     "Unassigned Comments",
		url:       UnassignedURL,
		synthetic: true,
	}
}

// ID returns the group identifier.
func (g *Group) ID() string { return g.id }

// Title returns the display title.
func (g *Group) Title() string { return g.title }

// URL returns the group URL.
func (g *Group) URL() string { return g.url }

// Synthetic reports whether this is the residual bucket rather than a real parent.
func (g *Group) Synthetic() bool { return g.synthetic }

// Items returns the owned items in order.
func (g *Group) Items() []*item.Item { return g.items }

// Len returns the number of owned items.
func (g *Group) Len() int { return len(g.items) }

// Add takes ownership of it. Fails if it still belongs to a different group.
func (g *Group) Add(it *item.Item) error {
	if err := it.AssignTo(g.id); err != nil {
		return fmt.Errorf("add to group %s: %w", g.id, err)
	}
	g.items = append(g.items, it)
	return nil
}

// Vectors returns the vectors of items that have one, in item order.
func (g *Group) Vectors() []vector.Vector {
	out := make([]vector.Vector, 0, len(g.items))
	for _, it := range g.items {
		if it.HasVector() {
			out = append(out, it.Vector())
		}
	}
	return out
}

// ReassignedCount returns how many owned items arrived through orphan recovery.
func (g *Group) ReassignedCount() int {
	n := 0
	for _, it := range g.items {
		if it.IsReassigned() {
			n++
		}
	}
	return n
}
