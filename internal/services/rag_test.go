package services

import (
  "context"
  "errors"
  "strings"
  "testing"

  "github.com/google/uuid"

  "github.com/notewise/notewise-backend/internal/clients/milvus"
  "github.com/notewise/notewise-backend/internal/errs"
  "github.com/notewise/notewise-backend/internal/types"
)

type fakeEmbedder struct {
  dim     int
  err     error
  called  [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
  f.called = append(f.called, texts)
  if f.err != nil {
    return nil, f.err
  }
  out := make([][]float32, len(texts))
  for i := range texts {
    v := make([]float32, f.dim)
    v[0] = 1
    out[i] = v
  }
  return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

type fakeVectorStore struct {
  inserted   []milvus.Record
  deletes    []milvus.Filter
  deleteN    int64
  deleteErr  error
  insertErr  error
  searchErr  error
  searchHits []milvus.Hit
  lastSearch milvus.Filter
  lastTopK   int
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, dim int) error { return nil }

func (f *fakeVectorStore) Insert(ctx context.Context, records []milvus.Record) (int64, error) {
  if f.insertErr != nil {
    return 0, f.insertErr
  }
  f.inserted = append(f.inserted, records...)
  return int64(len(records)), nil
}

func (f *fakeVectorStore) Search(ctx context.Context, vector []float32, topK int, flt milvus.Filter) ([]milvus.Hit, error) {
  f.lastSearch = flt
  f.lastTopK = topK
  if f.searchErr != nil {
    return nil, f.searchErr
  }
  return f.searchHits, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, flt milvus.Filter) (int64, error) {
  f.deletes = append(f.deletes, flt)
  if f.deleteErr != nil {
    return 0, f.deleteErr
  }
  return f.deleteN, nil
}

func testDocument(content string) *types.Document {
  return &types.Document{
    ID:              uuid.New(),
    UserID:          uuid.New(),
    KnowledgeBaseID: uuid.New(),
    Name:            "notes.md",
    DocType:         types.DocTypeDocument,
    Content:         content,
  }
}

func TestReindex_DeletesBeforeInserting(t *testing.T) {
  store := &fakeVectorStore{}
  emb := &fakeEmbedder{dim: 4}
  svc := NewRAGService(testLogger(t), emb, store)

  doc := testDocument("hello world notes about indexing")
  n, err := svc.Reindex(context.Background(), doc, 512, 128)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if n != 1 {
    t.Fatalf("expected 1 chunk, got %d", n)
  }
  if len(store.deletes) != 1 {
    t.Fatalf("expected 1 delete call, got %d", len(store.deletes))
  }
  if store.deletes[0].DocID != doc.ID.String() || store.deletes[0].UserID != doc.UserID.String() {
    t.Fatalf("delete filter mismatch: %+v", store.deletes[0])
  }
  if len(store.inserted) != 1 {
    t.Fatalf("expected 1 record, got %d", len(store.inserted))
  }
  rec := store.inserted[0]
  if rec.Metadata.DocID != doc.ID.String() || rec.Metadata.ChunkIndex != 0 {
    t.Fatalf("record metadata mismatch: %+v", rec.Metadata)
  }
  if rec.Source != "notes.md" {
    t.Fatalf("expected source notes.md, got %q", rec.Source)
  }
}

func TestReindex_FolderClearsAndSkips(t *testing.T) {
  store := &fakeVectorStore{}
  emb := &fakeEmbedder{dim: 4}
  svc := NewRAGService(testLogger(t), emb, store)

  doc := testDocument("irrelevant")
  doc.DocType = types.DocTypeFolder
  n, err := svc.Reindex(context.Background(), doc, 0, 0)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if n != 0 {
    t.Fatalf("expected 0 chunks for folder, got %d", n)
  }
  if len(store.deletes) != 1 {
    t.Fatalf("folder reindex must still clear old chunks")
  }
  if len(emb.called) != 0 {
    t.Fatalf("folder must not be embedded")
  }
}

func TestReindex_EmptyContentClearsAndSkips(t *testing.T) {
  store := &fakeVectorStore{}
  svc := NewRAGService(testLogger(t), &fakeEmbedder{dim: 4}, store)

  n, err := svc.Reindex(context.Background(), testDocument("   \n"), 0, 0)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if n != 0 || len(store.inserted) != 0 {
    t.Fatalf("expected no chunks, got n=%d inserted=%d", n, len(store.inserted))
  }
}

func TestReindex_DeleteFailureIsIndexError(t *testing.T) {
  store := &fakeVectorStore{deleteErr: errors.New("down")}
  svc := NewRAGService(testLogger(t), &fakeEmbedder{dim: 4}, store)

  _, err := svc.Reindex(context.Background(), testDocument("content"), 0, 0)
  if errs.KindOf(err) != errs.KindIndexError {
    t.Fatalf("expected index_error, got %v", err)
  }
}

func TestReindex_EmbedFailureIsIndexError(t *testing.T) {
  emb := &fakeEmbedder{dim: 4, err: errs.New(errs.KindModelError, "quota")}
  svc := NewRAGService(testLogger(t), emb, &fakeVectorStore{})

  _, err := svc.Reindex(context.Background(), testDocument("content"), 0, 0)
  if errs.KindOf(err) != errs.KindIndexError {
    t.Fatalf("expected index_error, got %v", err)
  }
}

func TestSearch_FiltersAndMapsHits(t *testing.T) {
  userID := uuid.New()
  kbID := uuid.New()
  store := &fakeVectorStore{searchHits: []milvus.Hit{
    {PK: 1, Content: "c1", Source: "a.md", Distance: 0.5, Score: 1.0 / 1.5},
    {PK: 2, Content: "c2", Source: "b.md", Distance: 1.0, Score: 0.5},
  }}
  svc := NewRAGService(testLogger(t), &fakeEmbedder{dim: 4}, store)

  results, err := svc.Search(context.Background(), userID, "what is go", &kbID, 3)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if len(results) != 2 {
    t.Fatalf("expected 2 results, got %d", len(results))
  }
  if store.lastSearch.UserID != userID.String() || store.lastSearch.KBID != kbID.String() {
    t.Fatalf("search filter mismatch: %+v", store.lastSearch)
  }
  if store.lastTopK != 3 {
    t.Fatalf("expected topK=3, got %d", store.lastTopK)
  }
  if results[0].Source != "a.md" || results[0].Score <= results[1].Score {
    t.Fatalf("unexpected result order: %+v", results)
  }
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
  svc := NewRAGService(testLogger(t), &fakeEmbedder{dim: 4}, &fakeVectorStore{})
  _, err := svc.Search(context.Background(), uuid.New(), "  ", nil, 5)
  if errs.KindOf(err) != errs.KindValidation {
    t.Fatalf("expected validation error, got %v", err)
  }
}

func TestSearch_StoreFailureIsStoreError(t *testing.T) {
  store := &fakeVectorStore{searchErr: errors.New("timeout")}
  svc := NewRAGService(testLogger(t), &fakeEmbedder{dim: 4}, store)
  _, err := svc.Search(context.Background(), uuid.New(), "q", nil, 5)
  if errs.KindOf(err) != errs.KindStoreError {
    t.Fatalf("expected store_error, got %v", err)
  }
}

func TestDeleteKnowledgeBase_ScopesFilter(t *testing.T) {
  store := &fakeVectorStore{deleteN: 7}
  svc := NewRAGService(testLogger(t), &fakeEmbedder{dim: 4}, store)

  userID := uuid.New()
  kbID := uuid.New()
  n, err := svc.DeleteKnowledgeBase(context.Background(), userID, kbID)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if n != 7 {
    t.Fatalf("expected 7 removed, got %d", n)
  }
  f := store.deletes[0]
  if f.UserID != userID.String() || f.KBID != kbID.String() || f.DocID != "" {
    t.Fatalf("unexpected filter: %+v", f)
  }
}

func TestReindex_LongDocumentSplitsIntoChunks(t *testing.T) {
  store := &fakeVectorStore{}
  svc := NewRAGService(testLogger(t), &fakeEmbedder{dim: 4}, store)

  words := make([]string, 30)
  for i := range words {
    words[i] = "tok"
  }
  doc := testDocument(strings.Join(words, " "))
  n, err := svc.Reindex(context.Background(), doc, 10, 4)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if n < 2 {
    t.Fatalf("expected multiple chunks, got %d", n)
  }
  for i, rec := range store.inserted {
    if rec.Metadata.ChunkIndex != i {
      t.Fatalf("chunk %d has index %d", i, rec.Metadata.ChunkIndex)
    }
  }
}
