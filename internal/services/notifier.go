package services

import (
  "context"
  "github.com/google/uuid"
  redisclient "github.com/notewise/notewise-backend/internal/clients/redis"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/sse"
)

// IndexNotifier pushes index status transitions to connected clients. With
// a redis bus configured the message travels through pub/sub so every
// replica's hub sees it; otherwise it goes straight to the local hub.
type IndexNotifier interface {
  NotifyIndexStatus(ctx context.Context, userID, docID uuid.UUID, status string, errMsg *string)
  NotifyKnowledgeBaseReindex(ctx context.Context, userID, kbID uuid.UUID, documents int)
}

type indexNotifier struct {
  log *logger.Logger
  hub *sse.SSEHub
  bus redisclient.SSEBus
}

func NewIndexNotifier(log *logger.Logger, hub *sse.SSEHub, bus redisclient.SSEBus) IndexNotifier {
  return &indexNotifier{
    log: log.With("service", "IndexNotifier"),
    hub: hub,
    bus: bus,
  }
}

func (n *indexNotifier) NotifyIndexStatus(ctx context.Context, userID, docID uuid.UUID, status string, errMsg *string) {
  data := map[string]any{
    "document_id": docID.String(),
    "status":      status,
  }
  if errMsg != nil {
    data["error"] = *errMsg
  }
  n.send(ctx, sse.SSEMessage{
    Channel: sse.UserChannel(userID),
    Event:   sse.SSEEventDocumentIndexStatus,
    Data:    data,
  })
}

func (n *indexNotifier) NotifyKnowledgeBaseReindex(ctx context.Context, userID, kbID uuid.UUID, documents int) {
  n.send(ctx, sse.SSEMessage{
    Channel: sse.UserChannel(userID),
    Event:   sse.SSEEventKnowledgeBaseReindex,
    Data: map[string]any{
      "kb_id":     kbID.String(),
      "documents": documents,
    },
  })
}

func (n *indexNotifier) send(ctx context.Context, msg sse.SSEMessage) {
  if n.bus != nil {
    if err := n.bus.Publish(ctx, msg); err != nil {
      n.log.Warn("Failed to publish SSE message", "error", err, "event", msg.Event)
    }
    return
  }
  if n.hub != nil {
    n.hub.Broadcast(msg)
  }
}
