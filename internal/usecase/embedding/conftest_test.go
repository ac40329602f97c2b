package embedding

import (
	"context"
	"strings"
	"sync"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/vector"
)

// --- Mock BudgetStore ---

type mockBudgetStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	setErr error
}

func newMockBudgetStore() *mockBudgetStore {
	return &mockBudgetStore{data: make(map[string]int64)}
}

func (m *mockBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] += val
	return nil
}

func (m *mockBudgetStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func (m *mockBudgetStore) get(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

// --- Mock TextEncoder ---

// mockEncoder returns a deterministic 3-dim vector per text and records every batch.
type mockEncoder struct {
	calls   [][]string
	err     error
	failOn  string // any batch containing this text fails
	tokens  int
	dropOne bool // return one vector fewer than requested
}

func (m *mockEncoder) Encode(_ context.Context, texts []string) (domain.EncodeResult, error) {
	m.calls = append(m.calls, append([]string(nil), texts...))
	if m.err != nil {
		return domain.EncodeResult{}, m.err
	}
	for _, t := range texts {
		if m.failOn != "" && t == m.failOn {
			return domain.EncodeResult{}, domain.ErrEncoderFailure
		}
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = fakeVector(t)
	}
	if m.dropOne && len(vecs) > 0 {
		vecs = vecs[:len(vecs)-1]
	}
	return domain.EncodeResult{Vectors: vecs, PromptTokens: m.tokens, TotalTokens: m.tokens}, nil
}

func (m *mockEncoder) encodedTexts() int {
	n := 0
	for _, c := range m.calls {
		n += len(c)
	}
	return n
}

func fakeVector(text string) []float32 {
	return []float32{float32(len(text)), float32(strings.Count(text, "a")), 1}
}

// --- Mock cache ---

type mockCache struct {
	entries map[string]vector.Vector
	saves   int
	saveErr error
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]vector.Vector)}
}

func (m *mockCache) Get(hash string) (vector.Vector, bool) {
	v, ok := m.entries[hash]
	return v, ok
}

func (m *mockCache) Set(hash string, v vector.Vector) { m.entries[hash] = v }

func (m *mockCache) Save(_ context.Context) error {
	m.saves++
	return m.saveErr
}

// --- Mock limiter ---

type mockLimiter struct {
	costs []int
	err   error
}

func (m *mockLimiter) Acquire(_ context.Context, cost int) error {
	m.costs = append(m.costs, cost)
	return m.err
}

// --- Mock budget checker ---

type mockBudget struct {
	checkErr error
	recorded int64
}

func (m *mockBudget) Check(_ context.Context) error { return m.checkErr }
func (m *mockBudget) Record(tokens int64)           { m.recorded += tokens }
func (m *mockBudget) RemainingDaily() int64         { return -1 }
func (m *mockBudget) RemainingMonthly() int64       { return -1 }

// --- Mock TextCompleter ---

type mockCompleter struct {
	result domain.CompletionResult
	err    error
	calls  int
}

func (m *mockCompleter) Complete(_ context.Context, _ domain.CompletionRequest) (domain.CompletionResult, error) {
	m.calls++
	if m.err != nil {
		return domain.CompletionResult{}, m.err
	}
	return m.result, nil
}
