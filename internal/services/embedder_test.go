package services

import (
  "context"
  "errors"
  "math"
  "testing"

  "github.com/notewise/notewise-backend/internal/clients/openai"
  "github.com/notewise/notewise-backend/internal/errs"
  "github.com/notewise/notewise-backend/internal/logger"
)

func testLogger(tb testing.TB) *logger.Logger {
  tb.Helper()
  log, err := logger.New("development")
  if err != nil {
    tb.Fatalf("logger init: %v", err)
  }
  return log
}

type fakeOpenAI struct {
  embedFn  func(ctx context.Context, texts []string) ([][]float32, error)
  streamFn func(ctx context.Context, msgs []openai.Message, onDelta func(string) error) (string, error)

  embedCalls [][]string
}

func (f *fakeOpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
  f.embedCalls = append(f.embedCalls, texts)
  return f.embedFn(ctx, texts)
}

func (f *fakeOpenAI) StreamChat(ctx context.Context, msgs []openai.Message, onDelta func(string) error) (string, error) {
  if f.streamFn == nil {
    return "", errors.New("not implemented")
  }
  return f.streamFn(ctx, msgs, onDelta)
}

func constantVectors(dim int, fill float32) func(ctx context.Context, texts []string) ([][]float32, error) {
  return func(ctx context.Context, texts []string) ([][]float32, error) {
    out := make([][]float32, len(texts))
    for i := range texts {
      v := make([]float32, dim)
      for j := range v {
        v[j] = fill
      }
      out[i] = v
    }
    return out, nil
  }
}

func TestEmbed_EmptyInput(t *testing.T) {
  ai := &fakeOpenAI{embedFn: constantVectors(4, 1)}
  svc := NewEmbedderService(testLogger(t), ai, 4, 2)

  vecs, err := svc.Embed(context.Background(), nil)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(vecs) != 0 {
    t.Fatalf("expected no vectors, got %d", len(vecs))
  }
  if len(ai.embedCalls) != 0 {
    t.Fatalf("expected no upstream calls, got %d", len(ai.embedCalls))
  }
}

func TestEmbed_BatchesRequests(t *testing.T) {
  ai := &fakeOpenAI{embedFn: constantVectors(4, 1)}
  svc := NewEmbedderService(testLogger(t), ai, 4, 2)

  texts := []string{"a", "b", "c", "d", "e"}
  vecs, err := svc.Embed(context.Background(), texts)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(vecs) != 5 {
    t.Fatalf("expected 5 vectors, got %d", len(vecs))
  }
  if len(ai.embedCalls) != 3 {
    t.Fatalf("expected 3 batches, got %d", len(ai.embedCalls))
  }
  if len(ai.embedCalls[0]) != 2 || len(ai.embedCalls[2]) != 1 {
    t.Fatalf("unexpected batch sizes: %d, %d, %d",
      len(ai.embedCalls[0]), len(ai.embedCalls[1]), len(ai.embedCalls[2]))
  }
}

func TestEmbed_NormalizesVectors(t *testing.T) {
  ai := &fakeOpenAI{embedFn: constantVectors(4, 3)}
  svc := NewEmbedderService(testLogger(t), ai, 4, 32)

  vecs, err := svc.Embed(context.Background(), []string{"x"})
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  var sum float64
  for _, x := range vecs[0] {
    sum += float64(x) * float64(x)
  }
  if norm := math.Sqrt(sum); math.Abs(norm-1) > 1e-5 {
    t.Fatalf("expected unit norm, got %f", norm)
  }
}

func TestEmbed_DimensionMismatch(t *testing.T) {
  ai := &fakeOpenAI{embedFn: constantVectors(3, 1)}
  svc := NewEmbedderService(testLogger(t), ai, 4, 32)

  _, err := svc.Embed(context.Background(), []string{"x"})
  if err == nil {
    t.Fatalf("expected error")
  }
  if errs.KindOf(err) != errs.KindModelError {
    t.Fatalf("expected model_error, got %s", errs.KindOf(err))
  }
}

func TestEmbed_UpstreamErrorWrapped(t *testing.T) {
  ai := &fakeOpenAI{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
    return nil, errors.New("boom")
  }}
  svc := NewEmbedderService(testLogger(t), ai, 4, 32)

  _, err := svc.Embed(context.Background(), []string{"x"})
  if errs.KindOf(err) != errs.KindModelError {
    t.Fatalf("expected model_error, got %v", err)
  }
}

func TestL2Normalize_ZeroVector(t *testing.T) {
  v := []float32{0, 0, 0}
  out := l2Normalize(v)
  for i, x := range out {
    if x != 0 {
      t.Fatalf("expected zero at %d, got %f", i, x)
    }
  }
}
