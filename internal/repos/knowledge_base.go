package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/types"
)

type KnowledgeBaseRepo interface {
  Create(ctx context.Context, tx *gorm.DB, kbs []*types.KnowledgeBase) ([]*types.KnowledgeBase, error)
  GetByID(ctx context.Context, tx *gorm.DB, userID, kbID uuid.UUID) (*types.KnowledgeBase, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.KnowledgeBase, error)
  Delete(ctx context.Context, tx *gorm.DB, userID, kbID uuid.UUID) (bool, error)
}

type knowledgeBaseRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewKnowledgeBaseRepo(db *gorm.DB, baseLog *logger.Logger) KnowledgeBaseRepo {
  repoLog := baseLog.With("repo", "KnowledgeBaseRepo")
  return &knowledgeBaseRepo{db: db, log: repoLog}
}

func (r *knowledgeBaseRepo) Create(ctx context.Context, tx *gorm.DB, kbs []*types.KnowledgeBase) ([]*types.KnowledgeBase, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(kbs) == 0 {
    return []*types.KnowledgeBase{}, nil
  }
  if err := transaction.WithContext(ctx).Create(kbs).Error; err != nil {
    return nil, err
  }
  return kbs, nil
}

func (r *knowledgeBaseRepo) GetByID(ctx context.Context, tx *gorm.DB, userID, kbID uuid.UUID) (*types.KnowledgeBase, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.KnowledgeBase
  if err := transaction.WithContext(ctx).
    Where("id = ? AND user_id = ?", kbID, userID).
    Limit(1).
    Find(&results).Error; err != nil {
    return nil, err
  }
  if len(results) == 0 {
    return nil, nil
  }
  return results[0], nil
}

func (r *knowledgeBaseRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.KnowledgeBase, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.KnowledgeBase
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *knowledgeBaseRepo) Delete(ctx context.Context, tx *gorm.DB, userID, kbID uuid.UUID) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Where("id = ? AND user_id = ?", kbID, userID).
    Delete(&types.KnowledgeBase{})
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}
