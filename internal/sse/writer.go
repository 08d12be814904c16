package sse

import (
  "encoding/json"
  "fmt"
  "net/http"
)

// Writer frames StreamEvents onto an http.ResponseWriter as server-sent
// events and flushes after every event so deltas reach the client
// immediately.
type Writer struct {
  w       http.ResponseWriter
  flusher http.Flusher
}

func NewWriter(w http.ResponseWriter) (*Writer, error) {
  flusher, ok := w.(http.Flusher)
  if !ok {
    return nil, fmt.Errorf("response writer does not support streaming")
  }
  w.Header().Set("Content-Type", "text/event-stream")
  w.Header().Set("Cache-Control", "no-cache")
  w.Header().Set("Connection", "keep-alive")
  w.Header().Set("X-Accel-Buffering", "no")
  return &Writer{w: w, flusher: flusher}, nil
}

func (sw *Writer) Send(ev StreamEvent) error {
  raw, err := json.Marshal(ev)
  if err != nil {
    return err
  }
  if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", raw); err != nil {
    return err
  }
  sw.flusher.Flush()
  return nil
}
