package handlers

import (
  "net/http"
  "strconv"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/requestdata"
  "github.com/notewise/notewise-backend/internal/services"
)

type DocumentHandler struct {
  log        *logger.Logger
  docService services.DocumentService
}

func NewDocumentHandler(log *logger.Logger, docService services.DocumentService) *DocumentHandler {
  return &DocumentHandler{
    log:        log.With("handler", "DocumentHandler"),
    docService: docService,
  }
}

type createDocumentRequest struct {
  KnowledgeBaseID string  `json:"knowledge_base_id" binding:"required"`
  FolderID        *string `json:"folder_id"`
  Name            string  `json:"name" binding:"required"`
  DocType         string  `json:"doc_type"`
  Content         string  `json:"content"`
}

type updateDocumentRequest struct {
  Name    string `json:"name"`
  Content string `json:"content"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  var req createDocumentRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid request body")
    return
  }
  kbID, err := uuid.Parse(req.KnowledgeBaseID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid knowledge_base_id")
    return
  }
  var folderID *uuid.UUID
  if req.FolderID != nil {
    parsed, err := uuid.Parse(*req.FolderID)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "validation", "invalid folder_id")
      return
    }
    folderID = &parsed
  }

  doc, err := h.docService.Create(c.Request.Context(), rd.UserID, services.CreateDocumentInput{
    KnowledgeBaseID: kbID,
    FolderID:        folderID,
    Name:            req.Name,
    DocType:         req.DocType,
    Content:         req.Content,
  })
  if err != nil {
    // Backpressure still delivers the created row: the caller keeps the
    // document and retries indexing later.
    if doc != nil {
      c.JSON(http.StatusTooManyRequests, gin.H{"document": doc, "index_deferred": true})
      return
    }
    h.log.Error("Create document failed", "error", err, "user_id", rd.UserID)
    RespondErr(c, err)
    return
  }
  RespondCreated(c, gin.H{"document": doc})
}

func (h *DocumentHandler) Get(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  docID, err := uuid.Parse(c.Param("doc_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid document id")
    return
  }
  doc, err := h.docService.Get(c.Request.Context(), rd.UserID, docID)
  if err != nil {
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{"document": doc})
}

func (h *DocumentHandler) List(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  kbID, err := uuid.Parse(c.Param("kb_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid knowledge base id")
    return
  }
  skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
  var folderID *uuid.UUID
  if raw := c.Query("folder_id"); raw != "" {
    parsed, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "validation", "invalid folder_id")
      return
    }
    folderID = &parsed
  }

  docs, total, err := h.docService.List(c.Request.Context(), rd.UserID, kbID, skip, limit, folderID)
  if err != nil {
    h.log.Error("List documents failed", "error", err, "kb_id", kbID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{"documents": docs, "total": total, "skip": skip, "limit": limit})
}

func (h *DocumentHandler) Update(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  docID, err := uuid.Parse(c.Param("doc_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid document id")
    return
  }
  var req updateDocumentRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid request body")
    return
  }
  doc, err := h.docService.Update(c.Request.Context(), rd.UserID, docID, req.Name, req.Content)
  if err != nil {
    if doc != nil {
      c.JSON(http.StatusTooManyRequests, gin.H{"document": doc, "index_deferred": true})
      return
    }
    h.log.Error("Update document failed", "error", err, "doc_id", docID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{"document": doc})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  docID, err := uuid.Parse(c.Param("doc_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid document id")
    return
  }
  if err := h.docService.Delete(c.Request.Context(), rd.UserID, docID); err != nil {
    h.log.Error("Delete document failed", "error", err, "doc_id", docID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": true})
}
