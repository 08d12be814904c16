package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/types"
)

type ChatMessageRepo interface {
  Create(ctx context.Context, tx *gorm.DB, msgs []*types.ChatMessage) ([]*types.ChatMessage, error)
  ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, skip, limit int) ([]*types.ChatMessage, error)

  // ListRecent returns the newest limit messages of a session in
  // chronological order.
  ListRecent(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*types.ChatMessage, error)

  DeleteBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (int64, error)
}

type chatMessageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
  repoLog := baseLog.With("repo", "ChatMessageRepo")
  return &chatMessageRepo{db: db, log: repoLog}
}

func (r *chatMessageRepo) Create(ctx context.Context, tx *gorm.DB, msgs []*types.ChatMessage) ([]*types.ChatMessage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(msgs) == 0 {
    return []*types.ChatMessage{}, nil
  }
  const batchSize = 100
  if err := transaction.WithContext(ctx).CreateInBatches(msgs, batchSize).Error; err != nil {
    return nil, err
  }
  return msgs, nil
}

func (r *chatMessageRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, skip, limit int) ([]*types.ChatMessage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  q := transaction.WithContext(ctx).
    Where("session_id = ?", sessionID).
    Order("created_at ASC, id ASC")
  if skip > 0 {
    q = q.Offset(skip)
  }
  if limit > 0 {
    q = q.Limit(limit)
  }
  var results []*types.ChatMessage
  if err := q.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chatMessageRepo) ListRecent(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if limit <= 0 {
    return []*types.ChatMessage{}, nil
  }
  var results []*types.ChatMessage
  if err := transaction.WithContext(ctx).
    Where("session_id = ?", sessionID).
    Order("created_at DESC, id DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
    results[i], results[j] = results[j], results[i]
  }
  return results, nil
}

func (r *chatMessageRepo) DeleteBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Where("session_id = ?", sessionID).
    Delete(&types.ChatMessage{})
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}
