package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/requestdata"
  "github.com/notewise/notewise-backend/internal/services"
)

type RAGHandler struct {
  log         *logger.Logger
  rag         services.RAGService
  coordinator services.IndexCoordinator
}

func NewRAGHandler(log *logger.Logger, rag services.RAGService, coordinator services.IndexCoordinator) *RAGHandler {
  return &RAGHandler{
    log:         log.With("handler", "RAGHandler"),
    rag:         rag,
    coordinator: coordinator,
  }
}

type indexRequest struct {
  KnowledgeBaseID string `json:"kb_id" binding:"required"`
  MaxTokens       int    `json:"max_tokens"`
  OverlapTokens   int    `json:"overlap_tokens"`
}

type searchRequest struct {
  Query           string  `json:"query" binding:"required"`
  KnowledgeBaseID *string `json:"kb_id"`
  TopK            int     `json:"top_k"`
}

// Index submits every document of a knowledge base for background
// (re)indexing.
func (h *RAGHandler) Index(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  var req indexRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid request body")
    return
  }
  kbID, err := uuid.Parse(req.KnowledgeBaseID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid kb_id")
    return
  }
  stats, err := h.coordinator.ReindexKnowledgeBase(c.Request.Context(), rd.UserID, kbID, req.MaxTokens, req.OverlapTokens)
  if err != nil {
    // Partial stats survive a mid-batch backpressure rejection.
    if stats != nil {
      c.JSON(http.StatusTooManyRequests, stats)
      return
    }
    h.log.Error("Knowledge base reindex failed", "error", err, "kb_id", kbID)
    RespondErr(c, err)
    return
  }
  c.JSON(http.StatusAccepted, stats)
}

// ReindexDocument submits a single document for background reindexing.
func (h *RAGHandler) ReindexDocument(c *gin.Context) {
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
  var req struct {
    MaxTokens     int `json:"max_tokens"`
    OverlapTokens int `json:"overlap_tokens"`
  }
  _ = c.ShouldBindJSON(&req)

  stats, err := h.coordinator.ReindexDocument(c.Request.Context(), rd.UserID, docID, req.MaxTokens, req.OverlapTokens)
  if err != nil {
    h.log.Error("Document reindex failed", "error", err, "doc_id", docID)
    RespondErr(c, err)
    return
  }
  c.JSON(http.StatusAccepted, stats)
}

func (h *RAGHandler) DeleteDocumentIndex(c *gin.Context) {
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
  removed, err := h.rag.DeleteDocument(c.Request.Context(), rd.UserID, docID)
  if err != nil {
    h.log.Error("Document index delete failed", "error", err, "doc_id", docID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": removed})
}

func (h *RAGHandler) DeleteKnowledgeBaseIndex(c *gin.Context) {
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
  removed, err := h.coordinator.DeleteKnowledgeBaseIndex(c.Request.Context(), rd.UserID, kbID)
  if err != nil {
    h.log.Error("Knowledge base index delete failed", "error", err, "kb_id", kbID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": removed})
}

func (h *RAGHandler) Search(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  var req searchRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid request body")
    return
  }
  var kbID *uuid.UUID
  if req.KnowledgeBaseID != nil {
    parsed, err := uuid.Parse(*req.KnowledgeBaseID)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "validation", "invalid kb_id")
      return
    }
    kbID = &parsed
  }
  results, err := h.rag.Search(c.Request.Context(), rd.UserID, req.Query, kbID, req.TopK)
  if err != nil {
    h.log.Error("Search failed", "error", err, "user_id", rd.UserID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{
    "query":   req.Query,
    "kb_id":   req.KnowledgeBaseID,
    "total":   len(results),
    "results": results,
  })
}

// Status reports coordinator health for dashboards.
func (h *RAGHandler) Status(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  RespondOK(c, gin.H{
    "enabled":      h.coordinator.Enabled(),
    "active_tasks": h.coordinator.ActiveTaskCount(),
  })
}
