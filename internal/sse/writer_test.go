package sse

import (
  "net/http/httptest"
  "strings"
  "testing"
)

func TestWriter_SetsStreamingHeaders(t *testing.T) {
  rec := httptest.NewRecorder()
  sw, err := NewWriter(rec)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
    t.Fatalf("unexpected content type %q", got)
  }
  if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
    t.Fatalf("unexpected cache control %q", got)
  }
  if sw == nil {
    t.Fatalf("expected writer")
  }
}

func TestWriter_FramesEventsAsSSE(t *testing.T) {
  rec := httptest.NewRecorder()
  sw, err := NewWriter(rec)
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }

  if err := sw.Send(MessageEvent("hi")); err != nil {
    t.Fatalf("send failed: %v", err)
  }
  if err := sw.Send(DoneEvent()); err != nil {
    t.Fatalf("send failed: %v", err)
  }

  body := rec.Body.String()
  frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
  if len(frames) != 2 {
    t.Fatalf("expected 2 frames, got %d: %q", len(frames), body)
  }
  for i, frame := range frames {
    if !strings.HasPrefix(frame, "data: ") {
      t.Fatalf("frame %d missing data prefix: %q", i, frame)
    }
  }
  if !strings.Contains(frames[0], `"content":"hi"`) {
    t.Fatalf("unexpected first frame: %q", frames[0])
  }
  if !strings.Contains(frames[1], `"type":"done"`) {
    t.Fatalf("unexpected second frame: %q", frames[1])
  }
  if !rec.Flushed {
    t.Fatalf("expected flush after send")
  }
}
