package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/search/request"
	"github.com/kailas-cloud/commentlens/internal/metrics"
)

// neutralScore is assigned to every item of a batch whose rerank failed.
const neutralScore = 0.5

const rerankSystemPrompt = "You rate how relevant social media comments are to a search query. " +
	"Respond with a single JSON object and nothing else."

var errScoreCount = errors.New("score count mismatch")

type rerankOutcome struct {
	scores   []float64
	issued   int
	degraded int
}

// rerank scores the pool in order, batch by batch.
func (s *Service) rerank(ctx context.Context, req request.Request, pool []candidate, log *zap.Logger) (rerankOutcome, error) {
	out := rerankOutcome{scores: make([]float64, 0, len(pool))}
	size := s.cfg.RerankBatchSize

	for start := 0; start < len(pool); start += size {
		if err := ctx.Err(); err != nil {
			return rerankOutcome{}, fmt.Errorf("rerank: %w", err)
		}
		batch := pool[start:min(start+size, len(pool))]
		batchNo := start / size

		scores, issued, err := s.scoreBatch(ctx, req, batch)
		if issued {
			out.issued++
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rerankOutcome{}, fmt.Errorf("rerank batch %d: %w", batchNo, ctxErr)
			}
			log.Warn("Rerank batch degraded to neutral scores",
				zap.Int("batch", batchNo),
				zap.Int("size", len(batch)),
				zap.Bool("issued", issued),
				zap.Error(err),
			)
			metrics.RerankBatchesTotal.WithLabelValues("degraded").Inc()
			out.degraded++
			scores = make([]float64, len(batch))
			for i := range scores {
				scores[i] = neutralScore
			}
		} else {
			metrics.RerankBatchesTotal.WithLabelValues("scored").Inc()
		}
		out.scores = append(out.scores, scores...)
	}
	return out, nil
}

// scoreBatch asks the completer for one score per candidate.
// issued reports whether the completer was actually called.
func (s *Service) scoreBatch(ctx context.Context, req request.Request, batch []candidate) ([]float64, bool, error) {
	prompt := buildRerankPrompt(req, batch, s.cfg.ContentTruncate)
	cost := domain.EstimateTokens(utf8.RuneCountInString(rerankSystemPrompt)+utf8.RuneCountInString(prompt)) +
		s.cfg.RerankMaxTokens

	if err := s.limiter.Acquire(ctx, cost); err != nil {
		return nil, false, fmt.Errorf("acquire: %w", err)
	}

	res, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: rerankSystemPrompt},
			{Role: domain.RoleUser, Content: prompt},
		},
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.RerankMaxTokens,
		Format:      domain.FormatJSON,
	})
	if err != nil {
		return nil, true, fmt.Errorf("complete: %w", err)
	}

	scores, err := parseScores(res.Text, len(batch))
	if err != nil {
		return nil, true, err
	}
	return scores, true, nil
}

func buildRerankPrompt(req request.Request, batch []candidate, truncate int) string {
	var b strings.Builder
	b.WriteString("Search query: ")
	b.WriteString(req.Query())
	b.WriteString("\n")
	if req.ContextTag() != "" {
		b.WriteString("Context: ")
		b.WriteString(req.ContextTag())
		b.WriteString("\n")
	}
	b.WriteString("\nComments:\n")
	for i, c := range batch {
		fmt.Fprintf(&b, "[%d] %s\n", i, truncateRunes(flatten(c.item.Content()), truncate))
	}
	fmt.Fprintf(&b, "\nReturn {\"scores\": [...]} with exactly %d numbers between 0 and 1, "+
		"one per comment in the order listed. 1 means highly relevant to the query.", len(batch))
	return b.String()
}

// parseScores reads either {"scores":[...]} or a bare JSON array, tolerating code fences.
// Scores are clamped to [0,1].
func parseScores(text string, want int) ([]float64, error) {
	text = stripFences(text)

	var scores []float64
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &scores); err != nil {
			return nil, fmt.Errorf("parse score array: %w", err)
		}
	} else {
		var obj struct {
			Scores []float64 `json:"scores"`
		}
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("parse score object: %w", err)
		}
		scores = obj.Scores
	}

	if len(scores) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", errScoreCount, len(scores), want)
	}
	for i, sc := range scores {
		scores[i] = min(max(sc, 0), 1)
	}
	return scores, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
