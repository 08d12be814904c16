package handlers

import (
  "net/http"
  "strconv"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/requestdata"
  "github.com/notewise/notewise-backend/internal/services"
  "github.com/notewise/notewise-backend/internal/sse"
)

type ChatHandler struct {
  log         *logger.Logger
  chatService services.ChatService
}

func NewChatHandler(log *logger.Logger, chatService services.ChatService) *ChatHandler {
  return &ChatHandler{
    log:         log.With("handler", "ChatHandler"),
    chatService: chatService,
  }
}

type createSessionRequest struct {
  Title           string  `json:"title"`
  KnowledgeBaseID *string `json:"knowledge_base_id"`
}

type updateSessionRequest struct {
  Title           *string `json:"title"`
  KnowledgeBaseID *string `json:"knowledge_base_id"`
  ClearKB         bool    `json:"clear_knowledge_base"`
}

type sendMessageRequest struct {
  Content string `json:"content" binding:"required"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  var req createSessionRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid request body")
    return
  }
  var kbID *uuid.UUID
  if req.KnowledgeBaseID != nil {
    parsed, err := uuid.Parse(*req.KnowledgeBaseID)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "validation", "invalid knowledge_base_id")
      return
    }
    kbID = &parsed
  }
  session, err := h.chatService.CreateSession(c.Request.Context(), rd.UserID, kbID, req.Title)
  if err != nil {
    h.log.Error("Create chat session failed", "error", err, "user_id", rd.UserID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
  sessions, err := h.chatService.ListSessions(c.Request.Context(), rd.UserID, skip, limit)
  if err != nil {
    h.log.Error("List chat sessions failed", "error", err, "user_id", rd.UserID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, sessions)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  sessionID, err := uuid.Parse(c.Param("session_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid session id")
    return
  }
  session, err := h.chatService.GetSession(c.Request.Context(), rd.UserID, sessionID)
  if err != nil {
    RespondErr(c, err)
    return
  }
  RespondOK(c, session)
}

func (h *ChatHandler) UpdateSession(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  sessionID, err := uuid.Parse(c.Param("session_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid session id")
    return
  }
  var req updateSessionRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid request body")
    return
  }
  var kbID *uuid.UUID
  if req.KnowledgeBaseID != nil {
    parsed, err := uuid.Parse(*req.KnowledgeBaseID)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "validation", "invalid knowledge_base_id")
      return
    }
    kbID = &parsed
  }
  session, err := h.chatService.UpdateSession(c.Request.Context(), rd.UserID, sessionID, req.Title, kbID, req.ClearKB)
  if err != nil {
    h.log.Error("Update chat session failed", "error", err, "session_id", sessionID)
    RespondErr(c, err)
    return
  }
  RespondOK(c, session)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  sessionID, err := uuid.Parse(c.Param("session_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid session id")
    return
  }
  if err := h.chatService.DeleteSession(c.Request.Context(), rd.UserID, sessionID); err != nil {
    h.log.Error("Delete chat session failed", "error", err, "session_id", sessionID)
    RespondErr(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  sessionID, err := uuid.Parse(c.Param("session_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid session id")
    return
  }
  skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
  msgs, err := h.chatService.ListMessages(c.Request.Context(), rd.UserID, sessionID, skip, limit)
  if err != nil {
    RespondErr(c, err)
    return
  }
  RespondOK(c, msgs)
}

// SendMessage streams the assistant reply as server-sent events. Validation
// and lookups happen before the first event, so those failures still come
// back as plain JSON with a real status code.
func (h *ChatHandler) SendMessage(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "permission_denied", "unauthorized")
    return
  }
  sessionID, err := uuid.Parse(c.Param("session_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid session id")
    return
  }
  var req sendMessageRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "validation", "invalid request body")
    return
  }

  // The session must exist before the stream opens.
  if _, err := h.chatService.GetSession(c.Request.Context(), rd.UserID, sessionID); err != nil {
    RespondErr(c, err)
    return
  }

  sw, err := sse.NewWriter(c.Writer)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "internal", "streaming unsupported")
    return
  }

  emit := func(ev sse.StreamEvent) error {
    select {
    case <-c.Request.Context().Done():
      return c.Request.Context().Err()
    default:
    }
    return sw.Send(ev)
  }

  if err := h.chatService.SendMessageStream(c.Request.Context(), rd.UserID, sessionID, req.Content, emit); err != nil {
    // Headers already went out; all that remains is a terminal error event.
    h.log.Error("Chat stream failed", "error", err, "session_id", sessionID)
    _ = sw.Send(sse.ErrorEvent("chat stream failed", nil))
  }
}
