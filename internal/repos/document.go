package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/types"
)

type DocumentRepo interface {
  Create(ctx context.Context, tx *gorm.DB, docs []*types.Document) ([]*types.Document, error)
  GetByID(ctx context.Context, tx *gorm.DB, userID, docID uuid.UUID) (*types.Document, error)
  ListByKnowledgeBase(ctx context.Context, tx *gorm.DB, userID, kbID uuid.UUID, skip, limit int, folderID *uuid.UUID) ([]*types.Document, error)
  CountByKnowledgeBase(ctx context.Context, tx *gorm.DB, userID, kbID uuid.UUID) (int64, error)
  UpdateContent(ctx context.Context, tx *gorm.DB, userID, docID uuid.UUID, name, content string) (bool, error)
  Delete(ctx context.Context, tx *gorm.DB, userID, docID uuid.UUID) (bool, error)

  // CompareAndSetIndexState writes the full index state of a document in a
  // single conditional UPDATE. A nil expectedTaskUUID matches any current
  // task uuid (used when a submission installs a fresh uuid); a non-nil
  // value only matches rows still carrying that exact uuid. Returns false
  // when no row matched, without distinguishing a missing row from a uuid
  // mismatch.
  CompareAndSetIndexState(ctx context.Context, tx *gorm.DB, userID, docID uuid.UUID, expectedTaskUUID *string, state types.IndexState) (bool, error)

  // StampIndexWorker records the worker id on a row still owned by taskUUID.
  StampIndexWorker(ctx context.Context, tx *gorm.DB, docID uuid.UUID, taskUUID, workerID string) (bool, error)

  // ListStaleIndexing returns documents stuck in the indexing status whose
  // start time is older than the cutoff.
  ListStaleIndexing(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Document, error)
}

type documentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
  repoLog := baseLog.With("repo", "DocumentRepo")
  return &documentRepo{db: db, log: repoLog}
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, docs []*types.Document) ([]*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(docs) == 0 {
    return []*types.Document{}, nil
  }
  const batchSize = 100
  if err := transaction.WithContext(ctx).CreateInBatches(docs, batchSize).Error; err != nil {
    return nil, err
  }
  return docs, nil
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, userID, docID uuid.UUID) (*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Document
  if err := transaction.WithContext(ctx).
    Where("id = ? AND user_id = ?", docID, userID).
    Limit(1).
    Find(&results).Error; err != nil {
    return nil, err
  }
  if len(results) == 0 {
    return nil, nil
  }
  return results[0], nil
}

func (r *documentRepo) ListByKnowledgeBase(ctx context.Context, tx *gorm.DB, userID, kbID uuid.UUID, skip, limit int, folderID *uuid.UUID) ([]*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  q := transaction.WithContext(ctx).
    Where("user_id = ? AND knowledge_base_id = ?", userID, kbID).
    Order("created_at ASC, id ASC")
  if folderID != nil {
    q = q.Where("folder_id = ?", *folderID)
  }
  if skip > 0 {
    q = q.Offset(skip)
  }
  if limit > 0 {
    q = q.Limit(limit)
  }
  var results []*types.Document
  if err := q.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *documentRepo) CountByKnowledgeBase(ctx context.Context, tx *gorm.DB, userID, kbID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.Document{}).
    Where("user_id = ? AND knowledge_base_id = ?", userID, kbID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

func (r *documentRepo) UpdateContent(ctx context.Context, tx *gorm.DB, userID, docID uuid.UUID, name, content string) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Model(&types.Document{}).
    Where("id = ? AND user_id = ?", docID, userID).
    Updates(map[string]any{
      "name":       name,
      "content":    content,
      "updated_at": time.Now().UTC(),
    })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (r *documentRepo) Delete(ctx context.Context, tx *gorm.DB, userID, docID uuid.UUID) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Where("id = ? AND user_id = ?", docID, userID).
    Delete(&types.Document{})
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (r *documentRepo) CompareAndSetIndexState(ctx context.Context, tx *gorm.DB, userID, docID uuid.UUID, expectedTaskUUID *string, state types.IndexState) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  q := transaction.WithContext(ctx).
    Model(&types.Document{}).
    Where("id = ? AND user_id = ?", docID, userID)
  if expectedTaskUUID != nil {
    q = q.Where("rag_index_task_uuid = ?", *expectedTaskUUID)
  }
  res := q.Updates(map[string]any{
    "rag_index_status":       state.Status,
    "rag_index_task_uuid":    state.TaskUUID,
    "rag_index_thread_id":    state.WorkerID,
    "rag_index_started_at":   state.StartedAt,
    "rag_index_completed_at": state.CompletedAt,
    "rag_index_error":        state.Error,
  })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (r *documentRepo) StampIndexWorker(ctx context.Context, tx *gorm.DB, docID uuid.UUID, taskUUID, workerID string) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Model(&types.Document{}).
    Where("id = ? AND rag_index_task_uuid = ?", docID, taskUUID).
    Update("rag_index_thread_id", workerID)
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (r *documentRepo) ListStaleIndexing(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Document
  if err := transaction.WithContext(ctx).
    Where("rag_index_status = ? AND rag_index_started_at IS NOT NULL AND rag_index_started_at < ?", types.IndexStatusIndexing, cutoff).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
