package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

const (
  RoleUser      = "user"
  RoleAssistant = "assistant"
  RoleSystem    = "system"
)

const ContentTypeContent = "content"

type ChatMessage struct {
  ID          uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  SessionID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"session_id"`
  Session     *ChatSession    `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
  Role        string          `gorm:"column:role;not null" json:"role"`
  Content     string          `gorm:"column:content;type:text;not null" json:"content"`
  ContentType string          `gorm:"column:content_type;not null;default:content" json:"content_type"`
  RAGContext  *string         `gorm:"column:rag_context;type:text" json:"rag_context,omitempty"`
  RAGSources  datatypes.JSON  `gorm:"column:rag_sources;type:jsonb" json:"rag_sources,omitempty"`
  CreatedAt   time.Time       `gorm:"not null;default:now();index" json:"created_at"`
}

func (ChatMessage) TableName() string {
  return "chat_message"
}
