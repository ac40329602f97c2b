package langchain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterMetrics()
	os.Exit(m.Run())
}

func fakeHost(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(hostHandler())
	t.Cleanup(srv.Close)
	return srv
}

// hostHandler serves OpenAI-compatible embeddings and chat completions.
func hostHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/embeddings":
			var body struct {
				Input []string `json:"input"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			data := make([]map[string]any, len(body.Input))
			for i := range body.Input {
				data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 1}}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data":   data,
				"usage":  map[string]any{"prompt_tokens": 3, "total_tokens": 3},
			})
		case "/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": `{"scores":[1]}`},
					"finish_reason": "stop",
				}},
				"usage": map[string]any{"prompt_tokens": 11, "completion_tokens": 4, "total_tokens": 15},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestEncoder_Encode(t *testing.T) {
	srv := fakeHost(t)
	enc, err := NewEncoder(&Config{BaseURL: srv.URL, EmbeddingModel: "emb", Logger: zap.NewNop()})
	require.NoError(t, err)

	res, err := enc.Encode(context.Background(), []string{"first text", "second"})
	require.NoError(t, err)
	require.Len(t, res.Vectors, 2)
	assert.Equal(t, float32(0), res.Vectors[0][0])
	assert.Equal(t, float32(1), res.Vectors[1][0])
	assert.Positive(t, res.TotalTokens)
}

func TestEncoder_Empty(t *testing.T) {
	enc, err := NewEncoder(&Config{BaseURL: "http://unused", Logger: zap.NewNop()})
	require.NoError(t, err)

	res, err := enc.Encode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Vectors)
}

func TestCompleter_Complete(t *testing.T) {
	srv := fakeHost(t)
	c, err := NewCompleter(&Config{BaseURL: srv.URL, CompletionModel: "chat", Logger: zap.NewNop()})
	require.NoError(t, err)

	res, err := c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "score"},
			{Role: domain.RoleUser, Content: "[0] hi"},
		},
		Temperature: 0.1,
		MaxTokens:   50,
		Format:      domain.FormatJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"scores":[1]}`, res.Text)
	assert.Equal(t, 15, res.TotalTokens)
}

func TestCompleter_HostError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewCompleter(fastRetry(&Config{BaseURL: srv.URL, CompletionModel: "chat", Logger: zap.NewNop()}))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	assert.True(t, errors.Is(err, domain.ErrCompleterFailure), "got %v", err)
}

func fastRetry(cfg *Config) *Config {
	cfg.RetryMinDelay = time.Millisecond
	cfg.RetryMaxDelay = 2 * time.Millisecond
	return cfg
}

// failingHost answers the first failures requests with status, then delegates to ok.
func failingHost(t *testing.T, failures int32, status int, ok http.Handler) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= failures {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"try again"}}`))
			return
		}
		ok.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestEncoder_RetriesRateLimit(t *testing.T) {
	srv, calls := failingHost(t, 1, http.StatusTooManyRequests, hostHandler())
	enc, err := NewEncoder(fastRetry(&Config{BaseURL: srv.URL, EmbeddingModel: "emb", Logger: zap.NewNop()}))
	require.NoError(t, err)

	res, err := enc.Encode(context.Background(), []string{"text"})
	require.NoError(t, err)
	assert.Len(t, res.Vectors, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEncoder_UnauthorizedIsFatal(t *testing.T) {
	srv, calls := failingHost(t, 10, http.StatusUnauthorized, hostHandler())
	enc, err := NewEncoder(fastRetry(&Config{BaseURL: srv.URL, EmbeddingModel: "emb", Logger: zap.NewNop()}))
	require.NoError(t, err)

	_, err = enc.Encode(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, int32(1), calls.Load(), "401 must not be retried")
}

func TestCompleter_ForbiddenIsFatal(t *testing.T) {
	srv, calls := failingHost(t, 10, http.StatusForbidden, hostHandler())
	c, err := NewCompleter(fastRetry(&Config{BaseURL: srv.URL, CompletionModel: "chat", Logger: zap.NewNop()}))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleter_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := failingHost(t, 10, http.StatusBadGateway, hostHandler())
	c, err := NewCompleter(fastRetry(&Config{BaseURL: srv.URL, CompletionModel: "chat", Logger: zap.NewNop()}))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	assert.ErrorIs(t, err, domain.ErrCompleterFailure)
	assert.Equal(t, int32(3), calls.Load())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", errors.New("API returned unexpected status code: 429: slow down"), true},
		{"server error", errors.New("API returned unexpected status code: 503"), true},
		{"unauthorized", errors.New("API returned unexpected status code: 401: bad key"), false},
		{"bad request", errors.New("API returned unexpected status code: 400"), false},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isRetryable(tc.err))
		})
	}
}

func TestClassifyError_KeepsContextErrors(t *testing.T) {
	err := classifyError("langchain embed", context.DeadlineExceeded, domain.ErrEncoderFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrEncoderFailure)
}

func TestIntInfo(t *testing.T) {
	info := map[string]any{"a": 3, "b": int64(4), "c": 5.0, "d": "x"}
	assert.Equal(t, 3, intInfo(info, "a"))
	assert.Equal(t, 4, intInfo(info, "b"))
	assert.Equal(t, 5, intInfo(info, "c"))
	assert.Equal(t, 0, intInfo(info, "d"))
	assert.Equal(t, 0, intInfo(nil, "missing"))
}
