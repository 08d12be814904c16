package services

import (
  "context"
  "strings"

  "github.com/google/uuid"

  "github.com/notewise/notewise-backend/internal/errs"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/repos"
  "github.com/notewise/notewise-backend/internal/types"
)

type KnowledgeBaseService interface {
  Create(ctx context.Context, userID uuid.UUID, name, description string) (*types.KnowledgeBase, error)
  List(ctx context.Context, userID uuid.UUID) ([]*types.KnowledgeBase, error)
  Get(ctx context.Context, userID, kbID uuid.UUID) (*types.KnowledgeBase, error)

  // Delete removes the knowledge base row, its documents and its vectors.
  // Returns how many vectors were removed.
  Delete(ctx context.Context, userID, kbID uuid.UUID) (int64, error)
}

type knowledgeBaseService struct {
  log     *logger.Logger
  kbRepo  repos.KnowledgeBaseRepo
  docRepo repos.DocumentRepo
  rag     RAGService
}

func NewKnowledgeBaseService(
  log *logger.Logger,
  kbRepo repos.KnowledgeBaseRepo,
  docRepo repos.DocumentRepo,
  rag RAGService,
) KnowledgeBaseService {
  return &knowledgeBaseService{
    log:     log.With("service", "KnowledgeBaseService"),
    kbRepo:  kbRepo,
    docRepo: docRepo,
    rag:     rag,
  }
}

func (s *knowledgeBaseService) Create(ctx context.Context, userID uuid.UUID, name, description string) (*types.KnowledgeBase, error) {
  if strings.TrimSpace(name) == "" {
    return nil, errs.New(errs.KindValidation, "knowledge base name required")
  }
  kb := &types.KnowledgeBase{
    UserID:      userID,
    Name:        name,
    Description: description,
  }
  created, err := s.kbRepo.Create(ctx, nil, []*types.KnowledgeBase{kb})
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "creating knowledge base failed", err)
  }
  return created[0], nil
}

func (s *knowledgeBaseService) List(ctx context.Context, userID uuid.UUID) ([]*types.KnowledgeBase, error) {
  kbs, err := s.kbRepo.ListByUser(ctx, nil, userID)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "listing knowledge bases failed", err)
  }
  return kbs, nil
}

func (s *knowledgeBaseService) Get(ctx context.Context, userID, kbID uuid.UUID) (*types.KnowledgeBase, error) {
  kb, err := s.kbRepo.GetByID(ctx, nil, userID, kbID)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "loading knowledge base failed", err)
  }
  if kb == nil {
    return nil, errs.New(errs.KindNotFound, "knowledge base not found")
  }
  return kb, nil
}

func (s *knowledgeBaseService) Delete(ctx context.Context, userID, kbID uuid.UUID) (int64, error) {
  if _, err := s.Get(ctx, userID, kbID); err != nil {
    return 0, err
  }

  // Vectors first: a failed vector delete leaves the rows in place so the
  // operation can be retried.
  removed, err := s.rag.DeleteKnowledgeBase(ctx, userID, kbID)
  if err != nil {
    return 0, err
  }

  ok, err := s.kbRepo.Delete(ctx, nil, userID, kbID)
  if err != nil {
    return removed, errs.Wrap(errs.KindStoreError, "deleting knowledge base failed", err)
  }
  if !ok {
    return removed, errs.New(errs.KindNotFound, "knowledge base not found")
  }
  return removed, nil
}
