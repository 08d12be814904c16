package services

import (
  "context"
  "math"
  "sync"
  "github.com/notewise/notewise-backend/internal/clients/openai"
  "github.com/notewise/notewise-backend/internal/errs"
  "github.com/notewise/notewise-backend/internal/logger"
)

// EmbedderService produces L2-normalized embeddings for chunk and query
// text. Calls are serialized so a burst of index workers cannot overwhelm
// the embedding endpoint.
type EmbedderService interface {
  Embed(ctx context.Context, texts []string) ([][]float32, error)
  Dimension() int
}

type embedderService struct {
  log       *logger.Logger
  ai        openai.Client
  dim       int
  batchSize int
  mu        sync.Mutex
}

func NewEmbedderService(log *logger.Logger, ai openai.Client, dim, batchSize int) EmbedderService {
  if dim <= 0 {
    dim = 768
  }
  if batchSize <= 0 {
    batchSize = 32
  }
  return &embedderService{
    log:       log.With("service", "EmbedderService"),
    ai:        ai,
    dim:       dim,
    batchSize: batchSize,
  }
}

func (s *embedderService) Dimension() int {
  return s.dim
}

func (s *embedderService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
  if len(texts) == 0 {
    return [][]float32{}, nil
  }

  s.mu.Lock()
  defer s.mu.Unlock()

  out := make([][]float32, 0, len(texts))
  for start := 0; start < len(texts); start += s.batchSize {
    end := start + s.batchSize
    if end > len(texts) {
      end = len(texts)
    }
    vecs, err := s.ai.Embed(ctx, texts[start:end])
    if err != nil {
      return nil, errs.Wrap(errs.KindModelError, "embedding request failed", err)
    }
    if len(vecs) != end-start {
      return nil, errs.Newf(errs.KindModelError, "embedding count mismatch: want=%d got=%d", end-start, len(vecs))
    }
    for _, v := range vecs {
      if len(v) != s.dim {
        return nil, errs.Newf(errs.KindModelError, "embedding dimension mismatch: want=%d got=%d", s.dim, len(v))
      }
      out = append(out, l2Normalize(v))
    }
  }
  return out, nil
}

func l2Normalize(v []float32) []float32 {
  var sum float64
  for _, x := range v {
    sum += float64(x) * float64(x)
  }
  norm := math.Sqrt(sum)
  if norm == 0 {
    return v
  }
  out := make([]float32, len(v))
  for i, x := range v {
    out[i] = float32(float64(x) / norm)
  }
  return out
}
