package sse

import (
  "encoding/json"
)

// Event types that appear on the chat message stream.
const (
  EventRAGStep = "rag_step"
  EventMessage = "message"
  EventDone    = "done"
  EventError   = "error"
)

// Pipeline step names carried by rag_step events.
const (
  StepSearchStart     = "search_start"
  StepSearchComplete  = "search_complete"
  StepSearchError     = "search_error"
  StepContextBuild    = "context_build"
  StepContextComplete = "context_complete"
  StepGenerateStart   = "generate_start"
)

// StreamEvent is the tagged union written to chat streaming responses. The
// Type field decides which of the remaining fields are serialized.
type StreamEvent struct {
  Type        string
  Step        string
  Content     string
  ContentType string
  Data        map[string]any
}

func RAGStepEvent(step string, data map[string]any) StreamEvent {
  return StreamEvent{Type: EventRAGStep, Step: step, Data: data}
}

func MessageEvent(content string) StreamEvent {
  return StreamEvent{Type: EventMessage, Content: content, ContentType: "content"}
}

func DoneEvent() StreamEvent {
  return StreamEvent{Type: EventDone}
}

func ErrorEvent(content string, data map[string]any) StreamEvent {
  return StreamEvent{Type: EventError, Content: content, Data: data}
}

func (e StreamEvent) MarshalJSON() ([]byte, error) {
  switch e.Type {
  case EventRAGStep:
    data := e.Data
    if data == nil {
      data = map[string]any{}
    }
    return json.Marshal(struct {
      Type string         `json:"type"`
      Step string         `json:"step"`
      Data map[string]any `json:"data"`
    }{Type: e.Type, Step: e.Step, Data: data})
  case EventMessage:
    contentType := e.ContentType
    if contentType == "" {
      contentType = "content"
    }
    return json.Marshal(struct {
      Type        string `json:"type"`
      Content     string `json:"content"`
      ContentType string `json:"content_type"`
    }{Type: e.Type, Content: e.Content, ContentType: contentType})
  case EventError:
    return json.Marshal(struct {
      Type    string         `json:"type"`
      Content string         `json:"content"`
      Data    map[string]any `json:"data,omitempty"`
    }{Type: e.Type, Content: e.Content, Data: e.Data})
  default:
    return json.Marshal(struct {
      Type string `json:"type"`
    }{Type: e.Type})
  }
}
