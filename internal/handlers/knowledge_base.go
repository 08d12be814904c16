package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/requestdata"
  "github.com/notewise/notewise-backend/internal/services"
)

type KnowledgeBaseHandler struct {
  log       *logger.Logger
  kbService services.KnowledgeBaseService
}

func NewKnowledgeBaseHandler(log *logger.Logger, kbService services.KnowledgeBaseService) *KnowledgeBaseHandler {
  return &KnowledgeBaseHandler{
    log:       log.With("handler", "KnowledgeBaseHandler"),
    kbService: kbService,
  }
}

type createKnowledgeBaseRequest struct {
  Name        string `json:"name" binding:"required"`
  Description string `json:"description"`
}

func (h *KnowledgeBaseHandler) Create(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  var req createKnowledgeBaseRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid request body")
    return
  }
  kb, err := h.kbService.Create(c.Request.Context(), rd.UserID, req.Name, req.Description)
  if err != nil {
    h.log.Error("Create knowledge base failed", "error", err, "user_id", rd.UserID)
    RespondErr(c, err)
    return
  }
  RespondCreated(c, gin.H{"knowledge_base": kb})
}

func (h *KnowledgeBaseHandler) List(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  kbs, err := h.kbService.List(c.Request.Context(), rd.UserID)
  if err != nil {
    h.log.Error("List knowledge bases failed", "error", err, "user_id", rd.UserID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{"knowledge_bases": kbs})
}

func (h *KnowledgeBaseHandler) Get(c *gin.Context) {
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
  kb, err := h.kbService.Get(c.Request.Context(), rd.UserID, kbID)
  if err != nil {
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{"knowledge_base": kb})
}

func (h *KnowledgeBaseHandler) Delete(c *gin.Context) {
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
  removed, err := h.kbService.Delete(c.Request.Context(), rd.UserID, kbID)
  if err != nil {
    h.log.Error("Delete knowledge base failed", "error", err, "kb_id", kbID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": true, "vectors_removed": removed})
}
