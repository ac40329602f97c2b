package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/search/field"
	"github.com/kailas-cloud/commentlens/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 30
	MaxTopK        = 500
)

// Request is a validated search spec: what to look for in one group and what to extract.
type Request struct {
	name       string
	query      string
	contextTag string
	filters    filter.Set
	fields     []field.Field
	topK       int
	static     bool
	rationale  string
}

// Option customizes a Request.
type Option func(*Request)

// WithName labels the request (static specs are addressed by name).
func WithName(name string) Option {
	return func(r *Request) { r.name = name }
}

// WithContext tags the request with the intent it serves, e.g. "feedback".
func WithContext(tag string) Option {
	return func(r *Request) { r.contextTag = tag }
}

// Static marks the request as configured rather than generated per group.
func Static(rationale string) Option {
	return func(r *Request) {
		r.static = true
		r.rationale = rationale
	}
}

// Dynamic marks a per-group request and records why it was generated.
func Dynamic(rationale string) Option {
	return func(r *Request) {
		r.static = false
		r.rationale = rationale
	}
}

// New validates search parameters. topK must be positive; there is no implicit default.
func New(
	query string, topK int, filters filter.Set, fields []field.Field, opts ...Option,
) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrInvalidSpec)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query exceeds %d bytes: %w", MaxQueryLength, domain.ErrInvalidSpec)
	}
	if topK <= 0 {
		return Request{}, fmt.Errorf("top_k must be positive, got %d: %w", topK, domain.ErrInvalidSpec)
	}
	if topK > MaxTopK {
		return Request{}, fmt.Errorf("top_k must be at most %d, got %d: %w", MaxTopK, topK, domain.ErrInvalidSpec)
	}
	for _, f := range fields {
		if !f.IsValid() {
			return Request{}, fmt.Errorf("unknown extract field %q: %w", f, domain.ErrInvalidSpec)
		}
	}

	r := Request{
		query:   query,
		filters: filters,
		fields:  fields,
		topK:    topK,
	}
	for _, o := range opts {
		o(&r)
	}
	return r, nil
}

// Name returns the request label, empty for unnamed dynamic requests.
func (r Request) Name() string { return r.name }

// Query returns the natural-language query.
func (r Request) Query() string { return r.query }

// ContextTag returns the intent tag.
func (r Request) ContextTag() string { return r.contextTag }

// Filters returns the predicate set.
func (r Request) Filters() filter.Set { return r.filters }

// Fields returns the insight fields to extract.
func (r Request) Fields() []field.Field { return r.fields }

// Wants reports whether f was requested.
func (r Request) Wants(f field.Field) bool {
	for _, x := range r.fields {
		if x == f {
			return true
		}
	}
	return false
}

// TopK returns the final result size.
func (r Request) TopK() int { return r.topK }

// CandidatePool returns the stage-1 pool size (twice TopK).
func (r Request) CandidatePool() int { return 2 * r.topK }

// IsStatic reports whether the request came from configuration.
func (r Request) IsStatic() bool { return r.static }

// Rationale returns why the request exists.
func (r Request) Rationale() string { return r.rationale }

// Parse builds a request from loosely typed input such as a config file or dataset.
// Filters and fields are resolved against the closed sets; unknown names are rejected.
func Parse(query string, topK int, filters map[string]any, fields []string, opts ...Option) (Request, error) {
	fs, err := filter.FromMap(filters)
	if err != nil {
		return Request{}, fmt.Errorf("parse filters: %w", err)
	}
	ff, err := field.Parse(fields)
	if err != nil {
		return Request{}, fmt.Errorf("parse fields: %w", err)
	}
	return New(query, topK, fs, ff, opts...)
}
