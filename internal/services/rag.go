package services

import (
  "context"
  "strings"
  "github.com/google/uuid"
  "github.com/notewise/notewise-backend/internal/clients/milvus"
  "github.com/notewise/notewise-backend/internal/errs"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/types"
)

const DefaultSearchTopK = 5

type SearchResult struct {
  Content  string         `json:"content"`
  Source   string         `json:"source"`
  Score    float64        `json:"score"`
  Metadata map[string]any `json:"metadata"`
}

// RAGService owns chunking, embedding and the vector collection. Reindex is
// the unit of work executed by index workers: it fully replaces a
// document's chunks.
type RAGService interface {
  EnsureReady(ctx context.Context) error
  Reindex(ctx context.Context, doc *types.Document, maxTokens, overlapTokens int) (int, error)
  Search(ctx context.Context, userID uuid.UUID, query string, kbID *uuid.UUID, topK int) ([]SearchResult, error)
  DeleteDocument(ctx context.Context, userID, docID uuid.UUID) (int64, error)
  DeleteKnowledgeBase(ctx context.Context, userID, kbID uuid.UUID) (int64, error)
}

type ragService struct {
  log      *logger.Logger
  embedder EmbedderService
  store    milvus.VectorStore
}

const ragInsertBatchSize = 100

func NewRAGService(log *logger.Logger, embedder EmbedderService, store milvus.VectorStore) RAGService {
  return &ragService{
    log:      log.With("service", "RAGService"),
    embedder: embedder,
    store:    store,
  }
}

func (s *ragService) EnsureReady(ctx context.Context) error {
  if err := s.store.EnsureCollection(ctx, s.embedder.Dimension()); err != nil {
    return errs.Wrap(errs.KindStoreError, "vector collection init failed", err)
  }
  return nil
}

func (s *ragService) Reindex(ctx context.Context, doc *types.Document, maxTokens, overlapTokens int) (int, error) {
  if doc == nil {
    return 0, errs.New(errs.KindValidation, "document required")
  }

  // Stale chunks go first so a failed run never leaves the old and new
  // generations mixed.
  if _, err := s.store.Delete(ctx, milvus.Filter{
    UserID: doc.UserID.String(),
    DocID:  doc.ID.String(),
  }); err != nil {
    return 0, errs.Wrap(errs.KindIndexError, "clearing previous chunks failed", err)
  }

  if doc.IsFolder() || strings.TrimSpace(doc.Content) == "" {
    return 0, nil
  }

  chunker := NewChunker(maxTokens, overlapTokens)
  chunks := chunker.Chunk(doc.Content)
  if len(chunks) == 0 {
    return 0, nil
  }

  vectors, err := s.embedder.Embed(ctx, chunks)
  if err != nil {
    return 0, errs.Wrap(errs.KindIndexError, "embedding chunks failed", err)
  }

  records := make([]milvus.Record, 0, len(chunks))
  for i, chunk := range chunks {
    records = append(records, milvus.Record{
      Embedding: vectors[i],
      Content:   chunk,
      Source:    doc.Name,
      Metadata: milvus.Metadata{
        UserID:     doc.UserID.String(),
        KBID:       doc.KnowledgeBaseID.String(),
        DocID:      doc.ID.String(),
        DocType:    doc.DocType,
        DocName:    doc.Name,
        ChunkIndex: i,
      },
    })
  }

  for start := 0; start < len(records); start += ragInsertBatchSize {
    end := start + ragInsertBatchSize
    if end > len(records) {
      end = len(records)
    }
    if _, err := s.store.Insert(ctx, records[start:end]); err != nil {
      return 0, errs.Wrap(errs.KindIndexError, "inserting chunks failed", err)
    }
  }

  s.log.Debug("Document reindexed", "doc_id", doc.ID, "chunks", len(chunks))
  return len(chunks), nil
}

func (s *ragService) Search(ctx context.Context, userID uuid.UUID, query string, kbID *uuid.UUID, topK int) ([]SearchResult, error) {
  query = strings.TrimSpace(query)
  if query == "" {
    return nil, errs.New(errs.KindValidation, "query required")
  }
  if topK <= 0 {
    topK = DefaultSearchTopK
  }

  vecs, err := s.embedder.Embed(ctx, []string{query})
  if err != nil {
    return nil, err
  }

  f := milvus.Filter{UserID: userID.String()}
  if kbID != nil {
    f.KBID = kbID.String()
  }

  hits, err := s.store.Search(ctx, vecs[0], topK, f)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "vector search failed", err)
  }

  results := make([]SearchResult, 0, len(hits))
  for _, h := range hits {
    results = append(results, SearchResult{
      Content:  h.Content,
      Source:   h.Source,
      Score:    h.Score,
      Metadata: h.Metadata,
    })
  }
  return results, nil
}

func (s *ragService) DeleteDocument(ctx context.Context, userID, docID uuid.UUID) (int64, error) {
  n, err := s.store.Delete(ctx, milvus.Filter{
    UserID: userID.String(),
    DocID:  docID.String(),
  })
  if err != nil {
    return 0, errs.Wrap(errs.KindStoreError, "deleting document chunks failed", err)
  }
  return n, nil
}

func (s *ragService) DeleteKnowledgeBase(ctx context.Context, userID, kbID uuid.UUID) (int64, error) {
  n, err := s.store.Delete(ctx, milvus.Filter{
    UserID: userID.String(),
    KBID:   kbID.String(),
  })
  if err != nil {
    return 0, errs.Wrap(errs.KindStoreError, "deleting knowledge base chunks failed", err)
  }
  return n, nil
}
