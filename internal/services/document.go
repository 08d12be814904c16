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

type CreateDocumentInput struct {
  KnowledgeBaseID uuid.UUID
  FolderID        *uuid.UUID
  Name            string
  DocType         string
  Content         string
}

type DocumentService interface {
  Create(ctx context.Context, userID uuid.UUID, in CreateDocumentInput) (*types.Document, error)
  Get(ctx context.Context, userID, docID uuid.UUID) (*types.Document, error)
  List(ctx context.Context, userID, kbID uuid.UUID, skip, limit int, folderID *uuid.UUID) ([]*types.Document, int64, error)
  Update(ctx context.Context, userID, docID uuid.UUID, name, content string) (*types.Document, error)
  Delete(ctx context.Context, userID, docID uuid.UUID) error
}

type documentService struct {
  log         *logger.Logger
  docRepo     repos.DocumentRepo
  kbRepo      repos.KnowledgeBaseRepo
  coordinator IndexCoordinator
}

func NewDocumentService(
  log *logger.Logger,
  docRepo repos.DocumentRepo,
  kbRepo repos.KnowledgeBaseRepo,
  coordinator IndexCoordinator,
) DocumentService {
  return &documentService{
    log:         log.With("service", "DocumentService"),
    docRepo:     docRepo,
    kbRepo:      kbRepo,
    coordinator: coordinator,
  }
}

func (s *documentService) Create(ctx context.Context, userID uuid.UUID, in CreateDocumentInput) (*types.Document, error) {
  if strings.TrimSpace(in.Name) == "" {
    return nil, errs.New(errs.KindValidation, "document name required")
  }
  docType := in.DocType
  if docType == "" {
    docType = types.DocTypeDocument
  }
  if docType != types.DocTypeDocument && docType != types.DocTypeFolder {
    return nil, errs.WithDetails(errs.KindValidation, "unknown doc_type", map[string]any{"doc_type": docType})
  }

  kb, err := s.kbRepo.GetByID(ctx, nil, userID, in.KnowledgeBaseID)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "loading knowledge base failed", err)
  }
  if kb == nil {
    return nil, errs.New(errs.KindNotFound, "knowledge base not found")
  }

  if in.FolderID != nil {
    folder, err := s.docRepo.GetByID(ctx, nil, userID, *in.FolderID)
    if err != nil {
      return nil, errs.Wrap(errs.KindStoreError, "loading folder failed", err)
    }
    if folder == nil || !folder.IsFolder() {
      return nil, errs.New(errs.KindValidation, "folder_id does not reference a folder")
    }
    if folder.KnowledgeBaseID != in.KnowledgeBaseID {
      return nil, errs.New(errs.KindValidation, "folder belongs to a different knowledge base")
    }
  }

  doc := &types.Document{
    UserID:          userID,
    KnowledgeBaseID: in.KnowledgeBaseID,
    FolderID:        in.FolderID,
    Name:            in.Name,
    DocType:         docType,
    Content:         in.Content,
  }
  created, err := s.docRepo.Create(ctx, nil, []*types.Document{doc})
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "creating document failed", err)
  }
  doc = created[0]

  if !doc.IsFolder() {
    if err := s.coordinator.OnDocumentCreated(ctx, userID, doc.ID); err != nil {
      // The document exists either way; backpressure still reaches the
      // caller so it can retry indexing later.
      if errs.Is(err, errs.KindBackpressure) {
        return doc, err
      }
      s.log.Warn("Index submission on create failed", "doc_id", doc.ID, "error", err)
    }
  }
  return doc, nil
}

func (s *documentService) Get(ctx context.Context, userID, docID uuid.UUID) (*types.Document, error) {
  doc, err := s.docRepo.GetByID(ctx, nil, userID, docID)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "loading document failed", err)
  }
  if doc == nil {
    return nil, errs.New(errs.KindNotFound, "document not found")
  }
  return doc, nil
}

func (s *documentService) List(ctx context.Context, userID, kbID uuid.UUID, skip, limit int, folderID *uuid.UUID) ([]*types.Document, int64, error) {
  // Listing doubles as an opportunistic sweep for tasks whose worker died
  // without publishing a terminal status.
  if _, err := s.coordinator.CheckTimeoutTasks(ctx); err != nil {
    s.log.Warn("Timeout sweep during list failed", "error", err)
  }

  docs, err := s.docRepo.ListByKnowledgeBase(ctx, nil, userID, kbID, skip, limit, folderID)
  if err != nil {
    return nil, 0, errs.Wrap(errs.KindStoreError, "listing documents failed", err)
  }
  total, err := s.docRepo.CountByKnowledgeBase(ctx, nil, userID, kbID)
  if err != nil {
    return nil, 0, errs.Wrap(errs.KindStoreError, "counting documents failed", err)
  }
  return docs, total, nil
}

func (s *documentService) Update(ctx context.Context, userID, docID uuid.UUID, name, content string) (*types.Document, error) {
  doc, err := s.Get(ctx, userID, docID)
  if err != nil {
    return nil, err
  }
  if name == "" {
    name = doc.Name
  }

  ok, err := s.docRepo.UpdateContent(ctx, nil, userID, docID, name, content)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "updating document failed", err)
  }
  if !ok {
    return nil, errs.New(errs.KindNotFound, "document not found")
  }

  updated, err := s.Get(ctx, userID, docID)
  if err != nil {
    return nil, err
  }

  if !updated.IsFolder() {
    if err := s.coordinator.OnDocumentUpdated(ctx, userID, docID); err != nil {
      if errs.Is(err, errs.KindBackpressure) {
        return updated, err
      }
      s.log.Warn("Index submission on update failed", "doc_id", docID, "error", err)
    }
  }
  return updated, nil
}

func (s *documentService) Delete(ctx context.Context, userID, docID uuid.UUID) error {
  doc, err := s.Get(ctx, userID, docID)
  if err != nil {
    return err
  }

  ok, err := s.docRepo.Delete(ctx, nil, userID, docID)
  if err != nil {
    return errs.Wrap(errs.KindStoreError, "deleting document failed", err)
  }
  if !ok {
    return errs.New(errs.KindNotFound, "document not found")
  }

  if !doc.IsFolder() {
    if err := s.coordinator.OnDocumentDeleted(ctx, userID, docID); err != nil {
      s.log.Warn("Vector cleanup on delete failed", "doc_id", docID, "error", err)
    }
  }
  return nil
}
