package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"

  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/notewise/notewise-backend/internal/clients/openai"
  "github.com/notewise/notewise-backend/internal/errs"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/repos"
  "github.com/notewise/notewise-backend/internal/sse"
  "github.com/notewise/notewise-backend/internal/types"
)

// historyWindow is how many recent messages get replayed to the model. The
// just-persisted user message counts toward the window.
const historyWindow = 20

const kbSystemPrompt = "You are a helpful assistant answering questions " +
  "using the user's personal knowledge base. Ground your answers in the " +
  "provided context. When the context does not cover the question, say so " +
  "instead of guessing."

type ChatService interface {
  CreateSession(ctx context.Context, userID uuid.UUID, kbID *uuid.UUID, title string) (*types.ChatSession, error)
  ListSessions(ctx context.Context, userID uuid.UUID, skip, limit int) ([]*types.ChatSession, error)
  GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.ChatSession, error)
  UpdateSession(ctx context.Context, userID, sessionID uuid.UUID, title *string, kbID *uuid.UUID, clearKB bool) (*types.ChatSession, error)
  DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error
  ListMessages(ctx context.Context, userID, sessionID uuid.UUID, skip, limit int) ([]*types.ChatMessage, error)

  // SendMessageStream persists the user message, runs retrieval when the
  // session is bound to a knowledge base, and streams the assistant reply
  // through emit. A non-nil error from emit means the client went away:
  // generation stops and nothing further is persisted.
  SendMessageStream(ctx context.Context, userID, sessionID uuid.UUID, content string, emit func(sse.StreamEvent) error) error
}

type chatService struct {
  log         *logger.Logger
  sessionRepo repos.ChatSessionRepo
  messageRepo repos.ChatMessageRepo
  rag         RAGService
  llm         openai.Client
  coordinator IndexCoordinator
  topK        int
}

func NewChatService(
  log *logger.Logger,
  sessionRepo repos.ChatSessionRepo,
  messageRepo repos.ChatMessageRepo,
  rag RAGService,
  llm openai.Client,
  coordinator IndexCoordinator,
  topK int,
) ChatService {
  if topK <= 0 {
    topK = DefaultSearchTopK
  }
  return &chatService{
    log:         log.With("service", "ChatService"),
    sessionRepo: sessionRepo,
    messageRepo: messageRepo,
    rag:         rag,
    llm:         llm,
    coordinator: coordinator,
    topK:        topK,
  }
}

// ragEnabled reports whether retrieval should run for this process. The
// toggle covers the whole RAG subsystem, so a disabled coordinator also
// turns kb-bound chat sessions into plain ones.
func (s *chatService) ragEnabled() bool {
  return s.coordinator == nil || s.coordinator.Enabled()
}

func (s *chatService) CreateSession(ctx context.Context, userID uuid.UUID, kbID *uuid.UUID, title string) (*types.ChatSession, error) {
  if strings.TrimSpace(title) == "" {
    title = "New chat"
  }
  session := &types.ChatSession{
    UserID:          userID,
    KnowledgeBaseID: kbID,
    Title:           title,
  }
  created, err := s.sessionRepo.Create(ctx, nil, []*types.ChatSession{session})
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "creating chat session failed", err)
  }
  return created[0], nil
}

func (s *chatService) ListSessions(ctx context.Context, userID uuid.UUID, skip, limit int) ([]*types.ChatSession, error) {
  sessions, err := s.sessionRepo.ListByUser(ctx, nil, userID, skip, limit)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "listing chat sessions failed", err)
  }
  return sessions, nil
}

func (s *chatService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.ChatSession, error) {
  session, err := s.sessionRepo.GetByID(ctx, nil, userID, sessionID)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "loading chat session failed", err)
  }
  if session == nil {
    return nil, errs.New(errs.KindNotFound, "chat session not found")
  }
  return session, nil
}

func (s *chatService) UpdateSession(ctx context.Context, userID, sessionID uuid.UUID, title *string, kbID *uuid.UUID, clearKB bool) (*types.ChatSession, error) {
  updates := map[string]any{}
  if title != nil {
    updates["title"] = *title
  }
  if clearKB {
    updates["knowledge_base_id"] = nil
  } else if kbID != nil {
    updates["knowledge_base_id"] = *kbID
  }
  if len(updates) > 0 {
    ok, err := s.sessionRepo.Update(ctx, nil, userID, sessionID, updates)
    if err != nil {
      return nil, errs.Wrap(errs.KindStoreError, "updating chat session failed", err)
    }
    if !ok {
      return nil, errs.New(errs.KindNotFound, "chat session not found")
    }
  }
  return s.GetSession(ctx, userID, sessionID)
}

func (s *chatService) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
  ok, err := s.sessionRepo.Delete(ctx, nil, userID, sessionID)
  if err != nil {
    return errs.Wrap(errs.KindStoreError, "deleting chat session failed", err)
  }
  if !ok {
    return errs.New(errs.KindNotFound, "chat session not found")
  }
  return nil
}

func (s *chatService) ListMessages(ctx context.Context, userID, sessionID uuid.UUID, skip, limit int) ([]*types.ChatMessage, error) {
  if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
    return nil, err
  }
  msgs, err := s.messageRepo.ListBySession(ctx, nil, sessionID, skip, limit)
  if err != nil {
    return nil, errs.Wrap(errs.KindStoreError, "listing chat messages failed", err)
  }
  return msgs, nil
}

func (s *chatService) SendMessageStream(ctx context.Context, userID, sessionID uuid.UUID, content string, emit func(sse.StreamEvent) error) error {
  if strings.TrimSpace(content) == "" {
    return errs.New(errs.KindValidation, "message content required")
  }

  session, err := s.GetSession(ctx, userID, sessionID)
  if err != nil {
    return err
  }

  log := s.log.With("session_id", sessionID)

  userMsg := &types.ChatMessage{
    SessionID:   sessionID,
    Role:        types.RoleUser,
    Content:     content,
    ContentType: types.ContentTypeContent,
  }
  if _, err := s.messageRepo.Create(ctx, nil, []*types.ChatMessage{userMsg}); err != nil {
    return errs.Wrap(errs.KindStoreError, "persisting user message failed", err)
  }

  history, err := s.messageRepo.ListRecent(ctx, nil, sessionID, historyWindow)
  if err != nil {
    return errs.Wrap(errs.KindStoreError, "loading chat history failed", err)
  }

  // Once the first event goes out, errors can no longer surface as an HTTP
  // status. A failed emit means the client disconnected; everything after
  // it is skipped.
  emitFailed := false
  send := func(ev sse.StreamEvent) bool {
    if emitFailed {
      return false
    }
    if err := emit(ev); err != nil {
      emitFailed = true
      log.Debug("Client disconnected during stream", "error", err)
      return false
    }
    return true
  }

  var (
    ragContext *string
    ragSources datatypes.JSON
  )

  prompt := make([]openai.Message, 0, len(history)+1)

  if session.KnowledgeBaseID != nil && s.ragEnabled() {
    send(sse.RAGStepEvent(sse.StepSearchStart, map[string]any{"kb_id": session.KnowledgeBaseID.String()}))

    results, searchErr := s.rag.Search(ctx, userID, content, session.KnowledgeBaseID, s.topK)
    if searchErr != nil {
      log.Warn("Knowledge base search failed", "error", searchErr)
      msg := errs.Message(searchErr)
      send(sse.RAGStepEvent(sse.StepSearchError, map[string]any{"error": msg}))
      send(sse.ErrorEvent("knowledge base search failed", map[string]any{"error": msg}))
      send(sse.DoneEvent())
      s.persistAssistant(ctx, log, sessionID, "Knowledge base search failed: "+msg, nil, nil)
      return nil
    }

    send(sse.RAGStepEvent(sse.StepSearchComplete, map[string]any{"count": len(results)}))

    send(sse.RAGStepEvent(sse.StepContextBuild, map[string]any{}))

    blocks := make([]string, 0, len(results))
    sources := make([]map[string]any, 0, len(results))
    for _, r := range results {
      blocks = append(blocks, fmt.Sprintf("[Source: %s]\n%s", r.Source, r.Content))
      src := map[string]any{"doc_name": r.Source, "score": r.Score}
      if id, ok := r.Metadata["doc_id"]; ok {
        src["doc_id"] = id
      }
      sources = append(sources, src)
    }
    contextBlock := strings.Join(blocks, "\n\n")
    if raw, err := json.Marshal(sources); err == nil {
      ragSources = datatypes.JSON(raw)
    }
    send(sse.RAGStepEvent(sse.StepContextComplete, map[string]any{"sources": len(results)}))

    if len(results) > 0 {
      ragContext = &contextBlock
      prompt = append(prompt, openai.Message{
        Role:    types.RoleSystem,
        Content: kbSystemPrompt + "\n\nContext:\n" + contextBlock,
      })
    } else {
      prompt = append(prompt, openai.Message{
        Role:    types.RoleSystem,
        Content: kbSystemPrompt + "\n\nContext: (no matching documents were found)",
      })
    }

    send(sse.RAGStepEvent(sse.StepGenerateStart, map[string]any{}))
  }

  for _, m := range history {
    prompt = append(prompt, openai.Message{Role: m.Role, Content: m.Content})
  }

  if emitFailed {
    return nil
  }

  reply, streamErr := s.llm.StreamChat(ctx, prompt, func(delta string) error {
    if !send(sse.MessageEvent(delta)) {
      return context.Canceled
    }
    return nil
  })

  if emitFailed {
    return nil
  }

  if streamErr != nil {
    log.Warn("Chat completion stream failed", "error", streamErr)
    if reply != "" {
      s.persistAssistant(ctx, log, sessionID, reply, ragContext, ragSources)
    }
    send(sse.ErrorEvent("model stream interrupted", map[string]any{"error": streamErr.Error()}))
    return nil
  }

  s.persistAssistant(ctx, log, sessionID, reply, ragContext, ragSources)
  if err := s.sessionRepo.Touch(ctx, nil, sessionID); err != nil {
    log.Warn("Failed to touch session", "error", err)
  }
  send(sse.DoneEvent())
  return nil
}

func (s *chatService) persistAssistant(ctx context.Context, log *logger.Logger, sessionID uuid.UUID, content string, ragContext *string, ragSources datatypes.JSON) {
  msg := &types.ChatMessage{
    SessionID:   sessionID,
    Role:        types.RoleAssistant,
    Content:     content,
    ContentType: types.ContentTypeContent,
    RAGContext:  ragContext,
    RAGSources:  ragSources,
  }
  if _, err := s.messageRepo.Create(ctx, nil, []*types.ChatMessage{msg}); err != nil {
    log.Error("Persisting assistant message failed", "error", err)
  }
}
