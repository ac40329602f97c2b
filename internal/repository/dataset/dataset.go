// Package dataset decodes a JSON export of groups, their items and orphaned items.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/group"
	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/search/request"
)

type itemRecord struct {
	ID         string         `json:"id"`
	ParentID   string         `json:"parent_id"`
	RawContent string         `json:"raw_content"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
}

type specRecord struct {
	Name      string         `json:"name"`
	Query     string         `json:"query"`
	Context   string         `json:"context"`
	Filters   map[string]any `json:"filters"`
	Fields    []string       `json:"extract_fields"`
	TopK      int            `json:"top_k"`
	Rationale string         `json:"rationale"`
}

type groupRecord struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Items       []itemRecord `json:"items"`
	SearchSpecs []specRecord `json:"search_specs"`
}

type fileRecord struct {
	Groups  []groupRecord `json:"groups"`
	Orphans []itemRecord  `json:"orphans"`
}

// Dataset is a decoded input: real groups with their items, orphans whose
// parent did not resolve, and per-group dynamic search specs.
type Dataset struct {
	Groups  []*group.Group
	Orphans []*item.Item
	specs   map[string][]request.Request
}

// Specs returns the dynamic search specs declared for a group.
func (d *Dataset) Specs(groupID string) []request.Request {
	return d.specs[groupID]
}

// Group finds a group by id.
func (d *Dataset) Group(id string) (*group.Group, error) {
	for _, g := range d.Groups {
		if g.ID() == id {
			return g, nil
		}
	}
	return nil, fmt.Errorf("group %q: %w", id, domain.ErrGroupNotFound)
}

// ItemCount returns the number of owned items plus orphans.
func (d *Dataset) ItemCount() int {
	n := len(d.Orphans)
	for _, g := range d.Groups {
		n += g.Len()
	}
	return n
}

// Load reads and decodes a dataset file.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// Decode parses a dataset. Group items without a parent id inherit the group id.
// Duplicate group or item ids are rejected.
func Decode(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rec fileRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	ds := &Dataset{specs: make(map[string][]request.Request)}
	seenGroups := make(map[string]struct{}, len(rec.Groups))
	seenItems := make(map[string]struct{})

	for gi, gr := range rec.Groups {
		if _, dup := seenGroups[gr.ID]; dup {
			return nil, fmt.Errorf("group %d: duplicate id %q", gi, gr.ID)
		}
		seenGroups[gr.ID] = struct{}{}

		g, err := group.New(gr.ID, gr.Title, gr.URL)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", gi, err)
		}
		for ii, ir := range gr.Items {
			if ir.ParentID == "" {
				ir.ParentID = gr.ID
			}
			it, err := buildItem(ir, seenItems)
			if err != nil {
				return nil, fmt.Errorf("group %s item %d: %w", gr.ID, ii, err)
			}
			if err := g.Add(it); err != nil {
				return nil, fmt.Errorf("group %s item %d: %w", gr.ID, ii, err)
			}
		}
		for si, sr := range gr.SearchSpecs {
			req, err := sr.toRequest()
			if err != nil {
				return nil, fmt.Errorf("group %s spec %d: %w", gr.ID, si, err)
			}
			ds.specs[gr.ID] = append(ds.specs[gr.ID], req)
		}
		ds.Groups = append(ds.Groups, g)
	}

	for oi, orec := range rec.Orphans {
		it, err := buildItem(orec, seenItems)
		if err != nil {
			return nil, fmt.Errorf("orphan %d: %w", oi, err)
		}
		ds.Orphans = append(ds.Orphans, it)
	}
	return ds, nil
}

func buildItem(r itemRecord, seen map[string]struct{}) (*item.Item, error) {
	if _, dup := seen[r.ID]; dup {
		return nil, fmt.Errorf("duplicate item id %q", r.ID)
	}
	md, err := normalizeMetadata(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", r.ID, err)
	}
	raw := r.RawContent
	if raw == "" {
		raw = r.Content
	}
	it, err := item.New(r.ID, r.ParentID, raw, r.Content, md)
	if err != nil {
		return nil, fmt.Errorf("build item: %w", err)
	}
	seen[r.ID] = struct{}{}
	return it, nil
}

// normalizeMetadata turns json.Number values into float64 so numeric
// accessors on the item see plain numbers.
func normalizeMetadata(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		n, ok := v.(json.Number)
		if !ok {
			out[k] = v
			continue
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %w", k, err)
		}
		out[k] = f
	}
	return out, nil
}

func (s specRecord) toRequest() (request.Request, error) {
	topK := s.TopK
	if topK == 0 {
		topK = request.DefaultTopK
	}
	opts := []request.Option{request.Dynamic(s.Rationale)}
	if s.Name != "" {
		opts = append(opts, request.WithName(s.Name))
	}
	if s.Context != "" {
		opts = append(opts, request.WithContext(s.Context))
	}
	req, err := request.Parse(s.Query, topK, s.Filters, s.Fields, opts...)
	if err != nil {
		return request.Request{}, fmt.Errorf("search spec %q: %w", s.Name, err)
	}
	return req, nil
}
