package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/types"
)

type ChatSessionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, sessions []*types.ChatSession) ([]*types.ChatSession, error)
  GetByID(ctx context.Context, tx *gorm.DB, userID, sessionID uuid.UUID) (*types.ChatSession, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skip, limit int) ([]*types.ChatSession, error)
  Update(ctx context.Context, tx *gorm.DB, userID, sessionID uuid.UUID, updates map[string]any) (bool, error)
  Touch(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) error
  Delete(ctx context.Context, tx *gorm.DB, userID, sessionID uuid.UUID) (bool, error)
}

type chatSessionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChatSessionRepo(db *gorm.DB, baseLog *logger.Logger) ChatSessionRepo {
  repoLog := baseLog.With("repo", "ChatSessionRepo")
  return &chatSessionRepo{db: db, log: repoLog}
}

func (r *chatSessionRepo) Create(ctx context.Context, tx *gorm.DB, sessions []*types.ChatSession) ([]*types.ChatSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(sessions) == 0 {
    return []*types.ChatSession{}, nil
  }
  if err := transaction.WithContext(ctx).Create(sessions).Error; err != nil {
    return nil, err
  }
  return sessions, nil
}

func (r *chatSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, userID, sessionID uuid.UUID) (*types.ChatSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.ChatSession
  if err := transaction.WithContext(ctx).
    Where("id = ? AND user_id = ?", sessionID, userID).
    Limit(1).
    Find(&results).Error; err != nil {
    return nil, err
  }
  if len(results) == 0 {
    return nil, nil
  }
  return results[0], nil
}

func (r *chatSessionRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skip, limit int) ([]*types.ChatSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  q := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("updated_at DESC, id ASC")
  if skip > 0 {
    q = q.Offset(skip)
  }
  if limit > 0 {
    q = q.Limit(limit)
  }
  var results []*types.ChatSession
  if err := q.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chatSessionRepo) Update(ctx context.Context, tx *gorm.DB, userID, sessionID uuid.UUID, updates map[string]any) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(updates) == 0 {
    return false, nil
  }
  updates["updated_at"] = time.Now().UTC()
  res := transaction.WithContext(ctx).
    Model(&types.ChatSession{}).
    Where("id = ? AND user_id = ?", sessionID, userID).
    Updates(updates)
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (r *chatSessionRepo) Touch(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Model(&types.ChatSession{}).
    Where("id = ?", sessionID).
    Update("updated_at", time.Now().UTC()).Error
}

func (r *chatSessionRepo) Delete(ctx context.Context, tx *gorm.DB, userID, sessionID uuid.UUID) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  deleted := false
  err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
    var results []*types.ChatSession
    if err := inner.
      Where("id = ? AND user_id = ?", sessionID, userID).
      Limit(1).
      Find(&results).Error; err != nil {
      return err
    }
    if len(results) == 0 {
      return nil
    }
    if err := inner.Where("session_id = ?", sessionID).Delete(&types.ChatMessage{}).Error; err != nil {
      return err
    }
    if err := inner.Where("id = ?", sessionID).Delete(&types.ChatSession{}).Error; err != nil {
      return err
    }
    deleted = true
    return nil
  })
  if err != nil {
    return false, err
  }
  return deleted, nil
}
