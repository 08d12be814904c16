package handlers

import (
  "bytes"
  "context"
  "encoding/json"
  "net/http"
  "net/http/httptest"
  "testing"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/notewise/notewise-backend/internal/errs"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/requestdata"
  "github.com/notewise/notewise-backend/internal/services"
)

func testLogger(tb testing.TB) *logger.Logger {
  tb.Helper()
  log, err := logger.New("development")
  if err != nil {
    tb.Fatalf("logger init: %v", err)
  }
  return log
}

type fakeCoordinator struct {
  reindexKBStats *services.IndexStats
  reindexKBErr   error
}

func (f *fakeCoordinator) OnDocumentCreated(ctx context.Context, userID, docID uuid.UUID) error {
  return nil
}

func (f *fakeCoordinator) OnDocumentUpdated(ctx context.Context, userID, docID uuid.UUID) error {
  return nil
}

func (f *fakeCoordinator) OnDocumentDeleted(ctx context.Context, userID, docID uuid.UUID) error {
  return nil
}

func (f *fakeCoordinator) ReindexDocument(ctx context.Context, userID, docID uuid.UUID, maxTokens, overlapTokens int) (*services.IndexStats, error) {
  return nil, nil
}

func (f *fakeCoordinator) ReindexKnowledgeBase(ctx context.Context, userID, kbID uuid.UUID, maxTokens, overlapTokens int) (*services.IndexStats, error) {
  return f.reindexKBStats, f.reindexKBErr
}

func (f *fakeCoordinator) DeleteKnowledgeBaseIndex(ctx context.Context, userID, kbID uuid.UUID) (int64, error) {
  return 0, nil
}

func (f *fakeCoordinator) CheckTimeoutTasks(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeCoordinator) ActiveTaskCount() int64                             { return 0 }
func (f *fakeCoordinator) Enable()                                            {}
func (f *fakeCoordinator) Disable()                                           {}
func (f *fakeCoordinator) Enabled() bool                                      { return true }
func (f *fakeCoordinator) Wait()                                              {}

func ragIndexRequest(t *testing.T, h *RAGHandler, kbID uuid.UUID) *httptest.ResponseRecorder {
  t.Helper()
  gin.SetMode(gin.TestMode)
  rec := httptest.NewRecorder()
  c, _ := gin.CreateTestContext(rec)

  body, _ := json.Marshal(map[string]any{"kb_id": kbID.String()})
  req := httptest.NewRequest(http.MethodPost, "/api/v1/rag/index", bytes.NewReader(body))
  req.Header.Set("Content-Type", "application/json")
  rd := &requestdata.RequestData{UserID: uuid.New()}
  c.Request = req.WithContext(requestdata.WithRequestData(req.Context(), rd))

  h.Index(c)
  return rec
}

func TestRAGHandler_IndexReturnsStatsBody(t *testing.T) {
  kbID := uuid.New()
  coord := &fakeCoordinator{reindexKBStats: &services.IndexStats{
    KnowledgeBaseID:  kbID.String(),
    TotalDocuments:   3,
    IndexedDocuments: 2,
    SkippedDocuments: 1,
  }}
  h := NewRAGHandler(testLogger(t), nil, coord)

  rec := ragIndexRequest(t, h, kbID)
  if rec.Code != http.StatusAccepted {
    t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
  }

  var body map[string]any
  if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
    t.Fatalf("invalid response body: %v", err)
  }
  // The stats object is the response body, not wrapped in an envelope.
  if _, wrapped := body["stats"]; wrapped {
    t.Fatalf("stats must not be enveloped: %s", rec.Body.String())
  }
  if body["kb_id"] != kbID.String() {
    t.Fatalf("kb_id = %v, want %s", body["kb_id"], kbID)
  }
  if body["total_documents"] != float64(3) || body["indexed_documents"] != float64(2) {
    t.Fatalf("unexpected stats body: %s", rec.Body.String())
  }
}

func TestRAGHandler_IndexBackpressureReturnsPartialStats(t *testing.T) {
  kbID := uuid.New()
  coord := &fakeCoordinator{
    reindexKBStats: &services.IndexStats{
      KnowledgeBaseID:  kbID.String(),
      TotalDocuments:   5,
      IndexedDocuments: 2,
    },
    reindexKBErr: errs.New(errs.KindBackpressure, "index worker pool saturated"),
  }
  h := NewRAGHandler(testLogger(t), nil, coord)

  rec := ragIndexRequest(t, h, kbID)
  if rec.Code != http.StatusTooManyRequests {
    t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
  }

  var body map[string]any
  if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
    t.Fatalf("invalid response body: %v", err)
  }
  if body["indexed_documents"] != float64(2) || body["total_documents"] != float64(5) {
    t.Fatalf("expected partial stats body, got %s", rec.Body.String())
  }
}
