package services

import (
  "context"
  "fmt"
  "sync"
  "sync/atomic"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/semaphore"

  "github.com/notewise/notewise-backend/internal/errs"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/repos"
  "github.com/notewise/notewise-backend/internal/types"
)

const timeoutErrorMessage = "Task exceeded timeout limit"

type IndexStats struct {
  KnowledgeBaseID  string `json:"kb_id"`
  TotalDocuments   int    `json:"total_documents"`
  IndexedDocuments int    `json:"indexed_documents"`
  SkippedDocuments int    `json:"skipped_documents"`
  TotalChunks      int    `json:"total_chunks"`
}

// IndexCoordinator schedules background (re)index work for documents. There
// are no per-document locks: every submission installs a fresh task uuid on
// the row, and a worker may only publish its result while the row still
// carries the uuid it was spawned with. A later submission silently
// supersedes any in-flight worker.
type IndexCoordinator interface {
  OnDocumentCreated(ctx context.Context, userID, docID uuid.UUID) error
  OnDocumentUpdated(ctx context.Context, userID, docID uuid.UUID) error
  OnDocumentDeleted(ctx context.Context, userID, docID uuid.UUID) error

  ReindexDocument(ctx context.Context, userID, docID uuid.UUID, maxTokens, overlapTokens int) (*IndexStats, error)
  ReindexKnowledgeBase(ctx context.Context, userID, kbID uuid.UUID, maxTokens, overlapTokens int) (*IndexStats, error)
  DeleteKnowledgeBaseIndex(ctx context.Context, userID, kbID uuid.UUID) (int64, error)

  // CheckTimeoutTasks moves documents stuck in the indexing status past the
  // task timeout into the timeout status. Returns how many rows moved.
  CheckTimeoutTasks(ctx context.Context) (int, error)

  ActiveTaskCount() int64
  Enable()
  Disable()
  Enabled() bool

  // Wait blocks until all in-flight workers finish. Used on shutdown and in
  // tests.
  Wait()
}

type indexCoordinator struct {
  log      *logger.Logger
  docRepo  repos.DocumentRepo
  kbRepo   repos.KnowledgeBaseRepo
  rag      RAGService
  notifier IndexNotifier

  sem           *semaphore.Weighted
  admissionWait time.Duration
  taskTimeout   time.Duration

  active    atomic.Int64
  enabled   atomic.Bool
  workerSeq atomic.Int64
  wg        sync.WaitGroup
}

func NewIndexCoordinator(
  log *logger.Logger,
  docRepo repos.DocumentRepo,
  kbRepo repos.KnowledgeBaseRepo,
  rag RAGService,
  notifier IndexNotifier,
  maxWorkers int,
  taskTimeout time.Duration,
) IndexCoordinator {
  if maxWorkers <= 0 {
    maxWorkers = 4
  }
  if taskTimeout <= 0 {
    taskTimeout = 300 * time.Second
  }
  c := &indexCoordinator{
    log:           log.With("service", "IndexCoordinator"),
    docRepo:       docRepo,
    kbRepo:        kbRepo,
    rag:           rag,
    notifier:      notifier,
    sem:           semaphore.NewWeighted(int64(maxWorkers)),
    admissionWait: 2 * time.Second,
    taskTimeout:   taskTimeout,
  }
  c.enabled.Store(true)
  return c
}

func (c *indexCoordinator) Enable()  { c.enabled.Store(true) }
func (c *indexCoordinator) Disable() { c.enabled.Store(false) }
func (c *indexCoordinator) Enabled() bool {
  return c.enabled.Load()
}

func (c *indexCoordinator) ActiveTaskCount() int64 {
  return c.active.Load()
}

func (c *indexCoordinator) Wait() {
  c.wg.Wait()
}

func (c *indexCoordinator) OnDocumentCreated(ctx context.Context, userID, docID uuid.UUID) error {
  if !c.enabled.Load() {
    return nil
  }
  return c.submit(ctx, userID, docID, 0, 0)
}

func (c *indexCoordinator) OnDocumentUpdated(ctx context.Context, userID, docID uuid.UUID) error {
  if !c.enabled.Load() {
    return nil
  }
  return c.submit(ctx, userID, docID, 0, 0)
}

// OnDocumentDeleted removes the document's vectors synchronously. Any
// in-flight worker for the row loses its final compare-and-swap once the
// row is gone and cleans up after itself.
func (c *indexCoordinator) OnDocumentDeleted(ctx context.Context, userID, docID uuid.UUID) error {
  if _, err := c.rag.DeleteDocument(ctx, userID, docID); err != nil {
    return err
  }
  return nil
}

func (c *indexCoordinator) ReindexDocument(ctx context.Context, userID, docID uuid.UUID, maxTokens, overlapTokens int) (*IndexStats, error) {
  if !c.enabled.Load() {
    return nil, errs.New(errs.KindDisabled, "indexing is disabled")
  }
  doc, err := c.docRepo.GetByID(ctx, nil, userID, docID)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "loading document failed", err)
  }
  if doc == nil {
    return nil, errs.New(errs.KindNotFound, "document not found")
  }
  stats := &IndexStats{
    KnowledgeBaseID: doc.KnowledgeBaseID.String(),
    TotalDocuments:  1,
  }
  if doc.IsFolder() {
    stats.SkippedDocuments = 1
    return stats, nil
  }
  if err := c.submit(ctx, userID, docID, maxTokens, overlapTokens); err != nil {
    return nil, err
  }
  stats.IndexedDocuments = 1
  return stats, nil
}

func (c *indexCoordinator) ReindexKnowledgeBase(ctx context.Context, userID, kbID uuid.UUID, maxTokens, overlapTokens int) (*IndexStats, error) {
  if !c.enabled.Load() {
    return nil, errs.New(errs.KindDisabled, "indexing is disabled")
  }
  kb, err := c.kbRepo.GetByID(ctx, nil, userID, kbID)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "loading knowledge base failed", err)
  }
  if kb == nil {
    return nil, errs.New(errs.KindNotFound, "knowledge base not found")
  }

  docs, err := c.docRepo.ListByKnowledgeBase(ctx, nil, userID, kbID, 0, 0, nil)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "listing documents failed", err)
  }

  stats := &IndexStats{KnowledgeBaseID: kbID.String(), TotalDocuments: len(docs)}
  if c.notifier != nil {
    c.notifier.NotifyKnowledgeBaseReindex(ctx, userID, kbID, len(docs))
  }
  for _, doc := range docs {
    if doc.IsFolder() {
      stats.SkippedDocuments++
      continue
    }
    if err := c.submit(ctx, userID, doc.ID, maxTokens, overlapTokens); err != nil {
      return stats, err
    }
    stats.IndexedDocuments++
  }
  return stats, nil
}

func (c *indexCoordinator) DeleteKnowledgeBaseIndex(ctx context.Context, userID, kbID uuid.UUID) (int64, error) {
  return c.rag.DeleteKnowledgeBase(ctx, userID, kbID)
}

// submit installs a fresh task uuid on the document and hands the work to a
// bounded worker pool. The unconditional write sets status=indexing with a
// start time right away, so a task that never reaches a worker (admission
// rejected, process crash) still falls inside the timeout sweep's window
// instead of sitting in a state the sweep never selects. Admission waits a
// short bounded time for a slot and then reports backpressure instead of
// queueing unbounded work.
func (c *indexCoordinator) submit(ctx context.Context, userID, docID uuid.UUID, maxTokens, overlapTokens int) error {
  taskUUID := uuid.NewString()
  now := time.Now().UTC()

  ok, err := c.docRepo.CompareAndSetIndexState(ctx, nil, userID, docID, nil, types.IndexState{
    Status:    types.IndexStatusIndexing,
    TaskUUID:  &taskUUID,
    StartedAt: &now,
  })
  if err != nil {
    return errs.Wrap(errs.KindStoreError, "installing index task failed", err)
  }
  if !ok {
    return errs.New(errs.KindNotFound, "document not found")
  }

  admissionCtx, cancel := context.WithTimeout(context.Background(), c.admissionWait)
  defer cancel()
  if err := c.sem.Acquire(admissionCtx, 1); err != nil {
    c.log.Warn("Index submission rejected, worker pool saturated", "doc_id", docID)
    return errs.New(errs.KindBackpressure, "index worker pool saturated")
  }

  c.active.Add(1)
  c.wg.Add(1)
  workerID := fmt.Sprintf("worker-%d", c.workerSeq.Add(1))
  go c.runWorker(userID, docID, taskUUID, workerID, maxTokens, overlapTokens, now)
  return nil
}

func (c *indexCoordinator) runWorker(userID, docID uuid.UUID, taskUUID, workerID string, maxTokens, overlapTokens int, submittedAt time.Time) {
  defer func() {
    c.sem.Release(1)
    c.active.Add(-1)
    c.wg.Done()
  }()

  ctx, cancel := context.WithTimeout(context.Background(), c.taskTimeout)
  defer cancel()

  log := c.log.With("doc_id", docID, "task_uuid", taskUUID, "worker_id", workerID)

  doc, err := c.docRepo.GetByID(ctx, nil, userID, docID)
  if err != nil {
    log.Error("Worker failed to load document", "error", err)
    return
  }
  if doc == nil {
    // Deleted between submit and pickup; clear any vectors left behind.
    if _, err := c.rag.DeleteDocument(ctx, userID, docID); err != nil {
      log.Warn("Failed to clear vectors for deleted document", "error", err)
    }
    return
  }
  if doc.IndexState.TaskUUID == nil || *doc.IndexState.TaskUUID != taskUUID {
    log.Debug("Task superseded before start")
    return
  }

  // Informational only; a newer submission taking the row between the
  // stamp and the final CAS is still handled by that CAS.
  ok, err := c.docRepo.StampIndexWorker(ctx, nil, docID, taskUUID, workerID)
  if err != nil {
    log.Error("Worker failed to stamp worker id", "error", err)
    return
  }
  if !ok {
    c.handleLostCAS(ctx, log, userID, docID)
    return
  }

  chunks, indexErr := c.rag.Reindex(ctx, doc, maxTokens, overlapTokens)
  completedAt := time.Now().UTC()

  if indexErr != nil {
    msg := errs.Message(indexErr)
    ok, err := c.docRepo.CompareAndSetIndexState(ctx, nil, userID, docID, &taskUUID, types.IndexState{
      Status:      types.IndexStatusFailed,
      TaskUUID:    &taskUUID,
      WorkerID:    &workerID,
      StartedAt:   &submittedAt,
      CompletedAt: &completedAt,
      Error:       &msg,
    })
    if err != nil {
      log.Error("Worker failed to mark failure", "error", err)
      return
    }
    if !ok {
      c.handleLostCAS(ctx, log, userID, docID)
      return
    }
    log.Warn("Document indexing failed", "error", indexErr)
    if c.notifier != nil {
      c.notifier.NotifyIndexStatus(ctx, userID, docID, types.IndexStatusFailed, &msg)
    }
    return
  }

  ok, err = c.docRepo.CompareAndSetIndexState(ctx, nil, userID, docID, &taskUUID, types.IndexState{
    Status:      types.IndexStatusCompleted,
    TaskUUID:    &taskUUID,
    WorkerID:    &workerID,
    StartedAt:   &submittedAt,
    CompletedAt: &completedAt,
  })
  if err != nil {
    log.Error("Worker failed to mark completion", "error", err)
    return
  }
  if !ok {
    c.handleLostCAS(ctx, log, userID, docID)
    return
  }

  log.Info("Document indexed", "chunks", chunks, "elapsed", completedAt.Sub(submittedAt).String())
  if c.notifier != nil {
    c.notifier.NotifyIndexStatus(ctx, userID, docID, types.IndexStatusCompleted, nil)
  }
}

// handleLostCAS runs when a worker's conditional update matched no row.
// Either a newer submission owns the row now, in which case the newer
// worker is responsible for the vectors, or the row was deleted, in which
// case this worker may have just written chunks for a document that no
// longer exists and must delete them again.
func (c *indexCoordinator) handleLostCAS(ctx context.Context, log *logger.Logger, userID, docID uuid.UUID) {
  doc, err := c.docRepo.GetByID(ctx, nil, userID, docID)
  if err != nil {
    log.Warn("Failed to re-read document after lost CAS", "error", err)
    return
  }
  if doc != nil {
    log.Debug("Task superseded by newer submission")
    return
  }
  if _, err := c.rag.DeleteDocument(ctx, userID, docID); err != nil {
    log.Warn("Failed to clear vectors for deleted document", "error", err)
    return
  }
  log.Debug("Cleared vectors for document deleted mid-index")
}

func (c *indexCoordinator) CheckTimeoutTasks(ctx context.Context) (int, error) {
  cutoff := time.Now().UTC().Add(-c.taskTimeout)
  stale, err := c.docRepo.ListStaleIndexing(ctx, nil, cutoff)
  if err != nil {
    return 0, errs.Wrap(errs.KindStoreError, "listing stale index tasks failed", err)
  }

  moved := 0
  for _, doc := range stale {
    if doc.IndexState.TaskUUID == nil {
      continue
    }
    now := time.Now().UTC()
    msg := timeoutErrorMessage
    ok, err := c.docRepo.CompareAndSetIndexState(ctx, nil, doc.UserID, doc.ID, doc.IndexState.TaskUUID, types.IndexState{
      Status:      types.IndexStatusTimeout,
      TaskUUID:    doc.IndexState.TaskUUID,
      WorkerID:    doc.IndexState.WorkerID,
      StartedAt:   doc.IndexState.StartedAt,
      CompletedAt: &now,
      Error:       &msg,
    })
    if err != nil {
      return moved, errs.Wrap(errs.KindStoreError, "marking timeout failed", err)
    }
    if ok {
      moved++
      c.log.Warn("Index task timed out", "doc_id", doc.ID, "task_uuid", *doc.IndexState.TaskUUID)
      if c.notifier != nil {
        c.notifier.NotifyIndexStatus(ctx, doc.UserID, doc.ID, types.IndexStatusTimeout, &msg)
      }
    }
  }
  return moved, nil
}
