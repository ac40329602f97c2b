// Package item holds the free-text item entity and its recovery provenance.
package item

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/vector"
)

// Metadata keys read from or written to an item's metadata.
const (
	MetaLikes            = "likes"
	MetaReplies          = "replies"
	MetaSentiment        = "sentiment"
	MetaReassigned       = "reassigned"
	MetaOriginalParentID = "original_parent_id"
	MetaReassignMethod   = "reassignment_method"
	MetaSimilarityScore  = "similarity_score"
)

// Item is a single free-text post owned by at most one group.
type Item struct {
	id         string
	parentID   string
	rawContent string
	content    string
	vector     vector.Vector
	metadata   map[string]any
	groupID    string
	provenance *Provenance
}

// New creates an item. content is the normalized text; when empty it is derived
// from rawContent by collapsing whitespace.
func New(id, parentID, rawContent, content string, metadata map[string]any) (*Item, error) {
	if id == "" {
		return nil, fmt.Errorf("item id is required")
	}
	if content == "" {
		content = strings.Join(strings.Fields(rawContent), " ")
	}
	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &Item{
		id:         id,
		parentID:   parentID,
		rawContent: rawContent,
		content:    content,
		metadata:   md,
	}, nil
}

// ID returns the item identifier.
func (i *Item) ID() string { return i.id }

// ParentID returns the declared parent reference, which may not resolve.
func (i *Item) ParentID() string { return i.parentID }

// RawContent returns the original text.
func (i *Item) RawContent() string { return i.rawContent }

// Content returns the normalized text used for hashing, embedding and filtering.
func (i *Item) Content() string { return i.content }

// Vector returns the embedding, nil until embedded.
func (i *Item) Vector() vector.Vector { return i.vector }

// HasVector reports whether the item has been embedded.
func (i *Item) HasVector() bool { return len(i.vector) > 0 }

// SetVector assigns the embedding.
func (i *Item) SetVector(v vector.Vector) { i.vector = v }

// GroupID returns the owning group id, empty while unowned.
func (i *Item) GroupID() string { return i.groupID }

// Meta returns a raw metadata value.
func (i *Item) Meta(key string) (any, bool) {
	v, ok := i.metadata[key]
	return v, ok
}

// AssignTo records ownership by groupID. An item already owned by another group
// must be released first.
func (i *Item) AssignTo(groupID string) error {
	if i.groupID != "" && i.groupID != groupID {
		return fmt.Errorf("item %s owned by %s: %w", i.id, i.groupID, domain.ErrAlreadyOwned)
	}
	i.groupID = groupID
	return nil
}

// Release clears ownership.
func (i *Item) Release() { i.groupID = "" }

// Likes returns the like counter from metadata (0 if absent).
func (i *Item) Likes() float64 {
	n, _ := number(i.metadata[MetaLikes])
	return n
}

// Replies returns the reply counter from metadata (0 if absent).
func (i *Item) Replies() float64 {
	n, _ := number(i.metadata[MetaReplies])
	return n
}

// Engagement is likes + 2*replies.
func (i *Item) Engagement() float64 {
	return i.Likes() + 2*i.Replies()
}

// Sentiment returns the precomputed sentiment proxy, if present.
func (i *Item) Sentiment() (float64, bool) {
	return number(i.metadata[MetaSentiment])
}

// Provenance returns the recovery provenance, if the item was resolved by reassignment.
func (i *Item) Provenance() (Provenance, bool) {
	if i.provenance == nil {
		return Provenance{}, false
	}
	return *i.provenance, true
}

// IsReassigned reports whether the item landed in a real group through recovery.
func (i *Item) IsReassigned() bool {
	return i.provenance != nil && i.provenance.method != MethodUnassigned
}

// MarkResolved sets provenance once. A second call fails with domain.ErrProvenanceSet.
func (i *Item) MarkResolved(p Provenance) error {
	if i.provenance != nil {
		return fmt.Errorf("item %s: %w", i.id, domain.ErrProvenanceSet)
	}
	p.originalParentID = i.parentID
	i.provenance = &p
	return nil
}

// Metadata returns a copy of the metadata with provenance keys rendered in.
func (i *Item) Metadata() map[string]any {
	out := make(map[string]any, len(i.metadata)+4)
	for k, v := range i.metadata {
		out[k] = v
	}
	if p := i.provenance; p != nil {
		out[MetaReassigned] = p.method != MethodUnassigned
		out[MetaOriginalParentID] = p.originalParentID
		out[MetaReassignMethod] = string(p.method)
		if p.method == MethodSemantic {
			out[MetaSimilarityScore] = p.score
		}
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
