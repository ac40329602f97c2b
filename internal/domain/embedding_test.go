package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEncoder struct {
	result EncodeResult
	err    error
	got    []string
}

func (s *stubEncoder) Encode(_ context.Context, texts []string) (EncodeResult, error) {
	s.got = texts
	return s.result, s.err
}

func TestInstructionEncoder_PrependsInstruction(t *testing.T) {
	inner := &stubEncoder{result: EncodeResult{Vectors: [][]float32{{0.1}, {0.2}}}}
	enc := NewInstructionEncoder(inner, "query: ")

	res, err := enc.Encode(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "query: hello" || inner.got[1] != "query: world" {
		t.Errorf("expected prefixed texts, got %v", inner.got)
	}
	if len(res.Vectors) != 2 {
		t.Errorf("expected 2 vectors, got %d", len(res.Vectors))
	}
}

func TestInstructionEncoder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	enc := NewInstructionEncoder(&stubEncoder{err: innerErr}, "query: ")

	_, err := enc.Encode(context.Background(), []string{"hello"})
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstructionEncoder_EmptyInstruction(t *testing.T) {
	inner := &stubEncoder{}
	enc := NewInstructionEncoder(inner, "")

	if _, err := enc.Encode(context.Background(), []string{"test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "test" {
		t.Errorf("expected 'test', got %q", inner.got[0])
	}
}

func TestUsage_CollectsThroughContext(t *testing.T) {
	ctx, u := NewContextWithUsage(context.Background())

	UsageFromContext(ctx).AddEncoder(10)
	UsageFromContext(ctx).AddEncoder(5)
	UsageFromContext(ctx).AddCompleter(7)

	s := u.Snapshot()
	if s.EncoderCalls != 2 || s.EncoderTokens != 15 {
		t.Errorf("encoder usage = %+v", s)
	}
	if s.CompleterCalls != 1 || s.CompleterTokens != 7 {
		t.Errorf("completer usage = %+v", s)
	}
}

func TestUsage_NilSafe(t *testing.T) {
	u := UsageFromContext(context.Background())
	if u != nil {
		t.Fatal("expected nil usage")
	}
	u.AddEncoder(1)
	u.AddCompleter(1)
	if s := u.Snapshot(); s != (UsageSnapshot{}) {
		t.Errorf("expected zero snapshot, got %+v", s)
	}
}
