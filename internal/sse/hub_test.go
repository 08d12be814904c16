package sse

import (
  "testing"

  "github.com/google/uuid"

  "github.com/notewise/notewise-backend/internal/logger"
)

func hubLogger(tb testing.TB) *logger.Logger {
  tb.Helper()
  log, err := logger.New("development")
  if err != nil {
    tb.Fatalf("logger init: %v", err)
  }
  return log
}

func TestHub_BroadcastReachesUserChannel(t *testing.T) {
  hub := NewSSEHub(hubLogger(t))
  userID := uuid.New()
  client := hub.NewSSEClient(userID)
  other := hub.NewSSEClient(uuid.New())

  hub.Broadcast(SSEMessage{
    Channel: UserChannel(userID),
    Event:   SSEEventDocumentIndexStatus,
    Data:    map[string]any{"status": "completed"},
  })

  select {
  case msg := <-client.Outbound:
    if msg.Event != SSEEventDocumentIndexStatus {
      t.Fatalf("unexpected event %q", msg.Event)
    }
  default:
    t.Fatalf("expected a delivered message")
  }
  select {
  case msg := <-other.Outbound:
    t.Fatalf("message leaked to another user's client: %+v", msg)
  default:
  }
}

func TestHub_CloseClientStopsDelivery(t *testing.T) {
  hub := NewSSEHub(hubLogger(t))
  userID := uuid.New()
  client := hub.NewSSEClient(userID)

  hub.CloseClient(client)

  select {
  case <-client.done:
  default:
    t.Fatalf("done channel must be closed")
  }
  if _, open := <-client.Outbound; open {
    t.Fatalf("outbound channel must be closed")
  }

  // The client is gone from the subscription table, so a broadcast after
  // close must not reach (or panic on) its closed outbound channel.
  hub.Broadcast(SSEMessage{
    Channel: UserChannel(userID),
    Event:   SSEEventDocumentIndexStatus,
  })
}
