package observability

import (
	"context"
	"time"

	"github.com/notewise/notewise-backend/internal/clients/milvus"
)

type instrumentedVectorStore struct {
	provider string
	inner    milvus.VectorStore
	metrics  *Metrics
}

// InstrumentVectorStore wraps a vector store so every operation is timed
// and counted. With metrics disabled the wrapper is pass-through.
func InstrumentVectorStore(provider string, inner milvus.VectorStore) milvus.VectorStore {
	if inner == nil {
		return nil
	}
	return &instrumentedVectorStore{
		provider: provider,
		inner:    inner,
		metrics:  Current(),
	}
}

func (s *instrumentedVectorStore) EnsureCollection(ctx context.Context, dim int) error {
	start := time.Now()
	err := s.inner.EnsureCollection(ctx, dim)
	s.observe("ensure_collection", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) Insert(ctx context.Context, records []milvus.Record) (int64, error) {
	start := time.Now()
	n, err := s.inner.Insert(ctx, records)
	s.observe("insert", err, time.Since(start))
	return n, err
}

func (s *instrumentedVectorStore) Search(ctx context.Context, vector []float32, topK int, f milvus.Filter) ([]milvus.Hit, error) {
	start := time.Now()
	hits, err := s.inner.Search(ctx, vector, topK, f)
	s.observe("search", err, time.Since(start))
	return hits, err
}

func (s *instrumentedVectorStore) Delete(ctx context.Context, f milvus.Filter) (int64, error) {
	start := time.Now()
	n, err := s.inner.Delete(ctx, f)
	s.observe("delete", err, time.Since(start))
	return n, err
}

func (s *instrumentedVectorStore) observe(operation string, err error, dur time.Duration) {
	if s == nil || s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveVectorStoreOperation(s.provider, operation, status, dur)
}
