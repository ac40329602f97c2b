package reassign

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain/group"
	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/vector"
	"github.com/kailas-cloud/commentlens/internal/metrics"
	"github.com/kailas-cloud/commentlens/internal/usecase/embedding"
)

func TestMain(m *testing.M) {
	metrics.RegisterMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

// mockEmbedder assigns vectors by item id.
type mockEmbedder struct {
	vectors map[string]vector.Vector
	err     error
	calls   int
	seen    []string
}

func (m *mockEmbedder) EmbedMany(_ context.Context, items []*item.Item, _ bool) (embedding.Report, error) {
	m.calls++
	if m.err != nil {
		return embedding.Report{}, m.err
	}
	var rep embedding.Report
	for _, it := range items {
		m.seen = append(m.seen, it.ID())
		if v, ok := m.vectors[it.ID()]; ok {
			it.SetVector(v)
			rep.Encoded++
			continue
		}
		rep.Failed++
	}
	return rep, nil
}

// --- Helpers ---

// unit returns a unit vector whose cosine with e_axis is cos. The remainder goes
// to dimension 3, which no group uses.
func unit(axis int, cos float64) vector.Vector {
	v := make(vector.Vector, 4)
	v[axis] = float32(cos)
	v[3] = float32(math.Sqrt(1 - cos*cos))
	return v
}

func axis(i int) vector.Vector {
	return unit(i, 1)
}

func newItem(t *testing.T, id, parentID string, v vector.Vector) *item.Item {
	t.Helper()
	it, err := item.New(id, parentID, "text of "+id, "", nil)
	require.NoError(t, err)
	if v != nil {
		it.SetVector(v)
	}
	return it
}

// newGroup creates a group whose members all carry v.
func newGroup(t *testing.T, id string, members int, v vector.Vector) *group.Group {
	t.Helper()
	g, err := group.New(id, "Group "+id, "https://example.com/watch?v="+id)
	require.NoError(t, err)
	for i := range members {
		require.NoError(t, g.Add(newItem(t, id+"-m"+string(rune('0'+i)), id, v)))
	}
	return g
}

func newService(t *testing.T, emb Embedder, mutate func(*Config)) *Service {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(emb, cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func method(t *testing.T, it *item.Item) item.Method {
	t.Helper()
	p, ok := it.Provenance()
	require.True(t, ok, "item %s has no provenance", it.ID())
	return p.Method()
}
